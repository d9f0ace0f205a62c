package match

import (
	"strings"
	"unicode"

	"github.com/mcdev12/songduel/go/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeGuessText folds case, strips diacritics and punctuation and
// collapses whitespace, so "Beyoncé - Halo!" and "beyonce halo" compare equal.
func normalizeGuessText(s string) string {
	// Chained transformers keep internal buffers and are not safe to share
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

func guessKey(title, artist string) string {
	return normalizeGuessText(title) + "|" + normalizeGuessText(artist)
}

// isCorrectGuess matches by track id first. The title|artist fallback only
// applies when both fields were supplied; two catalog entries sharing a
// normalized title and artist are indistinguishable here.
func isCorrectGuess(track models.Track, trackID, title, artist string) bool {
	if trackID != "" && trackID == track.ID {
		return true
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" {
		return false
	}
	return guessKey(title, artist) == guessKey(track.Title, track.Artist)
}
