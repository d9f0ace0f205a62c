package match

import (
	"testing"

	"github.com/mcdev12/songduel/go/internal/models"
)

func TestNormalizeGuessText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Halo", want: "halo"},
		{in: "  Beyoncé - Halo! ", want: "beyonce halo"},
		{in: "Sigur Rós", want: "sigur ros"},
		{in: "AC/DC", want: "acdc"},
		{in: "Don't   Stop\tMe Now", want: "dont stop me now"},
		{in: "99 Luftballons", want: "99 luftballons"},
		{in: "!!!", want: ""},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := normalizeGuessText(tt.in); got != tt.want {
			t.Errorf("normalizeGuessText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsCorrectGuess(t *testing.T) {
	track := models.Track{ID: "trk-9", Title: "Jolene", Artist: "Dolly Parton"}

	tests := []struct {
		name    string
		trackID string
		title   string
		artist  string
		want    bool
	}{
		{name: "matching id", trackID: "trk-9", want: true},
		{name: "wrong id", trackID: "trk-1"},
		{name: "empty guess"},
		{name: "title and artist", title: "JOLENE", artist: "dolly  parton", want: true},
		{name: "title only", title: "Jolene"},
		{name: "artist only", artist: "Dolly Parton"},
		{name: "wrong artist", title: "Jolene", artist: "Dolly"},
		{name: "wrong id right text", trackID: "trk-1", title: "jolene", artist: "Dolly Parton!", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCorrectGuess(track, tt.trackID, tt.title, tt.artist); got != tt.want {
				t.Fatalf("isCorrectGuess = %v, want %v", got, tt.want)
			}
		})
	}
}
