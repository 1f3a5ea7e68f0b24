// Package filter implements the message keyword matching engine.
package filter

import "strings"

// FindKeywords returns the keywords contained in text, ignoring case.
// Matches are returned in configured order, not in the order they appear in
// the text. A keyword configured twice is reported twice.
func FindKeywords(text string, keywords []string) []string {
	if text == "" || len(keywords) == 0 {
		return nil
	}

	lower := strings.ToLower(text)

	var found []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			found = append(found, kw)
		}
	}
	return found
}

// Normalize trims keywords and drops empty entries, keeping order.
func Normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		out = append(out, kw)
	}
	return out
}
