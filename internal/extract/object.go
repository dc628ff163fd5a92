package extract

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	maxObjectLen = 200
	minObjectLen = 15
)

// boilerplateObjects are phrases some sources emit instead of a real
// object description; they carry no information and are rejected.
var boilerplateObjects = map[string]struct{}{
	"ver pliego":                {},
	"ver pliego de bases":       {},
	"sin descripcion":           {},
	"objeto de la contratacion": {},
	"segun pliego":              {},
	"consultar en el organismo": {},
}

var (
	objetoLabelPattern = regexp.MustCompile(
		`(?i)objeto(?:\s+de\s+la\s+contrataci[oó]n)?\s*[:\-]\s*([^\n]+?)(?:\.\s|\n|$)`)
	verbPhrasePattern = regexp.MustCompile(
		`(?i)\b((?:provisi[oó]n|adquisici[oó]n|contrataci[oó]n|construcci[oó]n|ejecuci[oó]n|concesi[oó]n|suministro|refacci[oó]n|ampliaci[oó]n|servicio)\s+de\s+[^.;,\n]+)`)
	decreePhrasePattern = regexp.MustCompile(
		`(?:LL[ÁA]MASE|LLAMADO|CONV[ÓO]CASE|CONTR[ÁA]TASE)\s+(?:A\s+)?(?:LICITACI[ÓO]N\s+(?:P[ÚU]BLICA\s+)?)?(?:PARA\s+)?(?:LA\s+|EL\s+)?([A-ZÁÉÍÓÚÑ][^.;\n]{10,})`)
	sentenceSplitPattern = regexp.MustCompile(`[.;\n]+`)
)

// SynthesizeObject derives a short procurement-object description.
// Priority cascade, first hit wins: a structured field supplied by the
// source, an explicit "Objeto:" label in the text, a verb-phrase pattern,
// an uppercase decree-style phrase, and finally the first sufficiently
// long non-boilerplate sentence.
func SynthesizeObject(structured, text string) (string, bool) {
	if obj, ok := cleanObject(structured); ok {
		return obj, true
	}
	if m := objetoLabelPattern.FindStringSubmatch(text); m != nil {
		if obj, ok := cleanObject(m[1]); ok {
			return obj, true
		}
	}
	if m := verbPhrasePattern.FindStringSubmatch(text); m != nil {
		if obj, ok := cleanObject(m[1]); ok {
			return obj, true
		}
	}
	if m := decreePhrasePattern.FindStringSubmatch(text); m != nil {
		if obj, ok := cleanObject(m[1]); ok {
			return obj, true
		}
	}
	for _, sentence := range sentenceSplitPattern.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < 40 || mostlyDigits(sentence) {
			continue
		}
		if obj, ok := cleanObject(sentence); ok {
			return obj, true
		}
	}
	return "", false
}

// cleanObject trims, collapses whitespace, enforces length limits at a
// word boundary, and rejects boilerplate.
func cleanObject(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) < minObjectLen {
		return "", false
	}
	if _, bad := boilerplateObjects[strings.ToLower(stripAccents(s))]; bad {
		return "", false
	}
	if len(s) > maxObjectLen {
		cut := strings.LastIndex(s[:maxObjectLen], " ")
		if cut < minObjectLen {
			cut = maxObjectLen
		}
		s = strings.TrimRight(s[:cut], " ,") + "…"
	}
	return s, true
}

var (
	codeTitlePattern = regexp.MustCompile(
		`(?i)^(?:[a-z]{2,5}[\s\-]*)?n?[ºo°]?\s*\d+([/\-]\d+)*$`)
	decreeTitlePattern = regexp.MustCompile(
		`(?i)^(?:decreto|resoluci[oó]n|disposici[oó]n|expediente|expte|ordenanza)\b`)
)

// TitleIsPoor reports whether a title is too low-information to display:
// short with fewer than two descriptive words, a bare code/number, or a
// decree/resolution header.
func TitleIsPoor(title string) bool {
	t := strings.TrimSpace(title)
	if t == "" {
		return true
	}
	if codeTitlePattern.MatchString(t) {
		return true
	}
	if decreeTitlePattern.MatchString(t) {
		return true
	}
	if len(t) < 30 && descriptiveWordCount(t) < 2 {
		return true
	}
	return false
}

// BestTitle applies the poor-title fallback: a low-information title is
// replaced by the source's descriptive name when one exists, otherwise
// kept as-is (the synthesized object is stored separately).
func BestTitle(title, descriptiveName string) string {
	if TitleIsPoor(title) && strings.TrimSpace(descriptiveName) != "" {
		return strings.TrimSpace(descriptiveName)
	}
	return strings.TrimSpace(title)
}

// descriptiveWordCount counts words of four or more letters.
func descriptiveWordCount(s string) int {
	count := 0
	for _, w := range strings.Fields(s) {
		letters := 0
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters >= 4 {
			count++
		}
	}
	return count
}

func mostlyDigits(s string) bool {
	digits, letters := 0, 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		}
	}
	return digits > letters
}

func stripAccents(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case 'á', 'à', 'ä':
			return 'a'
		case 'é', 'è', 'ë':
			return 'e'
		case 'í', 'ì', 'ï':
			return 'i'
		case 'ó', 'ò', 'ö':
			return 'o'
		case 'ú', 'ù', 'ü':
			return 'u'
		case 'ñ':
			return 'n'
		}
		return r
	}, s)
}
