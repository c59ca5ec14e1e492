package backend

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected TitleMeta
	}{
		{"Artist - Track Name", TitleMeta{Artist: "Artist", Track: "Track Name"}},
		{"Track: Remix", TitleMeta{Artist: "Track", Track: "Remix"}},
		{"JustATitle", TitleMeta{Track: "JustATitle"}},
		{"Daft Punk – One More Time", TitleMeta{Artist: "Daft Punk", Track: "One More Time"}},
		{"Artist — Song", TitleMeta{Artist: "Artist", Track: "Song"}},
		{"A: B - C", TitleMeta{Artist: "A", Track: "B - C"}},
		{"A - B: C", TitleMeta{Artist: "A", Track: "B: C"}},
		{`Queen "Bohemian Rhapsody"`, TitleMeta{Artist: "Queen", Track: "Bohemian Rhapsody"}},
		{"Adele (Hello)", TitleMeta{Artist: "Adele", Track: "Hello"}},
		{"- Leading dash", TitleMeta{Track: "- Leading dash"}},
		{"Trailing dash -", TitleMeta{Track: "Trailing dash -"}},
		{"  Spaced  -  Out  ", TitleMeta{Artist: "Spaced", Track: "Out"}},
		{"", TitleMeta{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseTitle(tt.input)
			if got != tt.expected {
				t.Errorf("ParseTitle(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTitleMetaString(t *testing.T) {
	if got := (TitleMeta{Artist: "A", Track: "B"}).String(); got != "A - B" {
		t.Errorf("String() = %q", got)
	}
	if got := (TitleMeta{Track: "B"}).String(); got != "B" {
		t.Errorf("String() = %q", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Normal Title", "Normal Title"},
		{"AC/DC: Back in Black!", "ACDC Back in Black"},
		{"  under_score-dash  ", "under_score-dash"},
		{"???", "audio"},
		{"", "audio"},
		{"Café Niño", "Café Niño"},
		{"../../etc/passwd", "etcpasswd"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.expected {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFileName_Length(t *testing.T) {
	long := strings.Repeat("é", 300)
	got := SanitizeFileName(long)
	if len(got) > maxFileNameBytes {
		t.Errorf("length %d exceeds %d", len(got), maxFileNameBytes)
	}
	if !strings.HasPrefix(long, got) {
		t.Error("truncation split a rune")
	}
}

func TestMetadataArgs(t *testing.T) {
	got := MetadataArgs(TitleMeta{Artist: "Artist", Track: "Song"})
	want := []string{"-metadata", "title=Song", "-metadata", "artist=Artist"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MetadataArgs = %v, want %v", got, want)
	}

	got = MetadataArgs(TitleMeta{Track: "Song"})
	want = []string{"-metadata", "title=Song"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MetadataArgs = %v, want %v", got, want)
	}
}
