// Package extract turns raw fetched content into candidate normalized
// fields: dates, budget, procurement object, attachments, title quality.
// Every extractor returns (value, ok); a miss is never an error.
package extract

import (
	"regexp"
	"strings"
	"time"
)

var spanishMonths = map[string]string{
	"enero":      "1",
	"febrero":    "2",
	"marzo":      "3",
	"abril":      "4",
	"mayo":       "5",
	"junio":      "6",
	"julio":      "7",
	"agosto":     "8",
	"septiembre": "9",
	"setiembre":  "9",
	"octubre":    "10",
	"noviembre":  "11",
	"diciembre":  "12",
}

var (
	timeOfDayPattern = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?`)
	noiseTokens      = regexp.MustCompile(`(?i)\b(?:hrs?|hs|horas?|a\s+las)\b\.?`)
	dateLayouts      = []string{
		"2/1/2006",
		"2006/1/2",
		"2/1/06",
	}
)

// ParseDate parses the locale formats seen across sources: slash or dash
// separated day-month-year, ISO dates, Spanish month names ("12 de marzo
// de 2026"), with trailing time-of-day and unit suffixes tolerated.
// Returns the first successful parse as a UTC date, or ok=false.
func ParseDate(raw string) (time.Time, bool) {
	return ParseDateWithLayouts(raw, nil)
}

// ParseDateWithLayouts tries source-specific layouts (from hints) before
// the built-in pattern list.
func ParseDateWithLayouts(raw string, extra []string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range extra {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return dateOnly(t), true
		}
	}

	normalized := normalizeDateString(trimmed)
	if normalized == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return dateOnly(t), true
		}
	}
	return time.Time{}, false
}

// normalizeDateString reduces a raw date expression to slash-separated
// numeric tokens: noise stripped, month names substituted, filler words
// dropped.
func normalizeDateString(s string) string {
	s = strings.ToLower(s)
	s = timeOfDayPattern.ReplaceAllString(s, " ")
	s = noiseTokens.ReplaceAllString(s, " ")

	var tokens []string
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '/' || r == '-' || r == '.' || r == ',' || r == '\t'
	}) {
		switch {
		case tok == "de" || tok == "del" || tok == "año" || tok == "el" || tok == "día" || tok == "dia":
			continue
		case isNumeric(tok):
			tokens = append(tokens, strings.TrimLeft(tok, "0"))
		default:
			if m, ok := spanishMonths[tok]; ok {
				tokens = append(tokens, m)
			}
		}
	}
	if len(tokens) != 3 {
		return ""
	}
	// TrimLeft of "0" can empty a token like "00"; reject those outright.
	for i, tok := range tokens {
		if tok == "" {
			tokens[i] = "0"
		}
	}
	return strings.Join(tokens, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
