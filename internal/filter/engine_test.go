package filter

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFindKeywords(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keywords []string
		want     []string
	}{
		{
			name:     "empty text",
			text:     "",
			keywords: []string{"sax"},
			want:     nil,
		},
		{
			name:     "no keywords",
			text:     "need a saxophonist",
			keywords: nil,
			want:     nil,
		},
		{
			name:     "single match",
			text:     "Need a saxophonist for a wedding",
			keywords: []string{"saxophon"},
			want:     []string{"saxophon"},
		},
		{
			name:     "case insensitive both ways",
			text:     "NEED A SAXOPHONIST",
			keywords: []string{"SaxoPhon"},
			want:     []string{"SaxoPhon"},
		},
		{
			name:     "cyrillic case folding",
			text:     "Ищем САКСОФОНИСТА на свадьбу",
			keywords: []string{"саксофон"},
			want:     []string{"саксофон"},
		},
		{
			name:     "configured order not text order",
			text:     "drums first, then bass",
			keywords: []string{"bass", "guitar", "drums"},
			want:     []string{"bass", "drums"},
		},
		{
			name:     "duplicate keyword reported twice",
			text:     "looking for a singer",
			keywords: []string{"singer", "singer"},
			want:     []string{"singer", "singer"},
		},
		{
			name:     "no match",
			text:     "selling a used piano",
			keywords: []string{"violin", "cello"},
			want:     nil,
		},
		{
			name:     "blank keyword never matches",
			text:     "anything",
			keywords: []string{""},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindKeywords(tt.text, tt.keywords)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindKeywordsOnlyReturnsSubstrings(t *testing.T) {
	texts := []string{
		"Nothing here",
		"Вакансия: барабанщик, бас-гитарист",
		"Gig tonight: SAX + Keys",
		"",
	}
	keywords := []string{"sax", "keys", "барабан", "bass", "gig"}

	for _, text := range texts {
		lower := strings.ToLower(text)
		got := FindKeywords(text, keywords)
		for _, kw := range got {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				t.Errorf("FindKeywords(%q) returned %q which is not a substring", text, kw)
			}
		}
		if text == "" && len(got) != 0 {
			t.Errorf("FindKeywords(\"\") = %v, want empty", got)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]string{" sax ", "", "  ", "drums"})
	if diff := cmp.Diff([]string{"sax", "drums"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
