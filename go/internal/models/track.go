package models

// Track represents a catalog track that can be played in a round
type Track struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	CoverURL   string  `json:"cover_url,omitempty"`
	PreviewURL *string `json:"preview_url,omitempty"` // Optional - not every track has a preview clip
}
