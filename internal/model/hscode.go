package model

import "strings"

// NormalizeHSCode strips the punctuation commonly used when writing HS/HTS
// codes so "9504.40.00", "9504 40 00" and "95044000" share one lookup key.
func NormalizeHSCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.TrimSpace(code) {
		switch r {
		case '.', ' ', '-':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// NormalizeCountry upper-cases and trims an ISO 3166 alpha-2 country code.
func NormalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}
