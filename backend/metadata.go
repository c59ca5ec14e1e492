package backend

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TitleMeta is the artist/track split of a free-text media title.
// Artist is empty when the title carries no recognisable artist.
type TitleMeta struct {
	Artist string
	Track  string
}

// HasArtist reports whether an artist was recognised.
func (m TitleMeta) HasArtist() bool {
	return m.Artist != ""
}

// String renders the meta the way it was most likely written.
func (m TitleMeta) String() string {
	if m.Artist == "" {
		return m.Track
	}
	return m.Artist + " - " + m.Track
}

var titleSeparators = []string{"-", "–", "—", ":"}

var (
	quotedTrackPattern = regexp.MustCompile(`^(.+?)\s*["“](.+?)["”]\s*$`)
	parenTrackPattern  = regexp.MustCompile(`^(.+?)\s*\((.+)\)\s*$`)
)

// ParseTitle splits a title into artist and track. The first rule that
// matches wins:
//
//  1. the earliest separator among "-", "–", "—", ":" with text on both sides
//  2. artist "track"
//  3. artist (track)
//
// Otherwise the whole title is the track.
func ParseTitle(full string) TitleMeta {
	full = strings.TrimSpace(full)

	if meta, ok := splitOnSeparator(full); ok {
		return meta
	}
	if m := quotedTrackPattern.FindStringSubmatch(full); m != nil {
		if meta, ok := newTitleMeta(m[1], m[2]); ok {
			return meta
		}
	}
	if m := parenTrackPattern.FindStringSubmatch(full); m != nil {
		if meta, ok := newTitleMeta(m[1], m[2]); ok {
			return meta
		}
	}
	return TitleMeta{Track: full}
}

func splitOnSeparator(full string) (TitleMeta, bool) {
	best, bestLen := -1, 0
	for _, sep := range titleSeparators {
		if i := strings.Index(full, sep); i >= 0 && (best < 0 || i < best) {
			best, bestLen = i, len(sep)
		}
	}
	if best < 0 {
		return TitleMeta{}, false
	}
	return newTitleMeta(full[:best], full[best+bestLen:])
}

func newTitleMeta(artist, track string) (TitleMeta, bool) {
	artist = strings.TrimSpace(artist)
	track = strings.TrimSpace(track)
	if artist == "" || track == "" {
		return TitleMeta{}, false
	}
	return TitleMeta{Artist: artist, Track: track}, true
}

const maxFileNameBytes = 200

// SanitizeFileName keeps letters, digits, spaces, '-' and '_' and trims the
// result. An empty result becomes "audio".
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	sanitized := strings.TrimSpace(b.String())

	if len(sanitized) > maxFileNameBytes {
		cut := maxFileNameBytes
		for cut > 0 && !utf8.RuneStart(sanitized[cut]) {
			cut--
		}
		sanitized = strings.TrimSpace(sanitized[:cut])
	}

	if sanitized == "" {
		return "audio"
	}
	return sanitized
}

// MetadataArgs returns ffmpeg -metadata arguments for meta.
func MetadataArgs(meta TitleMeta) []string {
	args := []string{}

	if meta.Track != "" {
		args = append(args, "-metadata", fmt.Sprintf("title=%s", meta.Track))
	}
	if meta.Artist != "" {
		args = append(args, "-metadata", fmt.Sprintf("artist=%s", meta.Artist))
	}

	return args
}
