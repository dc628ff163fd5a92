package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/licitawatch/licitawatch/internal/record"
)

// minPlausibleAmount rejects values that are almost certainly parser
// noise (a lone "12" captured next to a "$" sign, say). Public tenders
// below this figure do not exist in practice.
const minPlausibleAmount = 1000

const defaultCurrency = "ARS"

// budgetPatterns is an ordered cascade: explicit currency markers first,
// then amount keywords with a trailing number.
var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:u\$s|us\$|usd|d[oó]lares)\s*:?\s*([\d][\d.,]*)`),
	regexp.MustCompile(`(?i)(?:\$|ars|pesos)\s*:?\s*([\d][\d.,]*)`),
	regexp.MustCompile(`(?i)(?:presupuesto|monto|importe|valor)\b[^.\n\d]{0,40}?([\d][\d.,]*)`),
}

var usdMarkerPattern = regexp.MustCompile(`(?i)u\$s|us\$|usd|d[oó]lares`)

// ParseBudget extracts an amount and currency from free text. Amounts in
// Latin formatting ("1.234.567,89") are normalized; implausibly small
// values are discarded as parse errors; currency defaults to the local
// peso unless a dollar marker appears in the match.
func ParseBudget(text string) (record.Budget, bool) {
	return ParseBudgetDefault(text, defaultCurrency)
}

// ParseBudgetDefault is ParseBudget with a source-specific default currency.
func ParseBudgetDefault(text, fallbackCurrency string) (record.Budget, bool) {
	if fallbackCurrency == "" {
		fallbackCurrency = defaultCurrency
	}
	for _, re := range budgetPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			amount, ok := parseAmount(m[1])
			if !ok || amount < minPlausibleAmount {
				continue
			}
			currency := fallbackCurrency
			if usdMarkerPattern.MatchString(m[0]) {
				currency = "USD"
			}
			return record.Budget{Amount: amount, Currency: currency}, true
		}
	}
	return record.Budget{}, false
}

// parseAmount normalizes Latin-style separators: dots group thousands,
// the comma is the decimal mark. A lone dot followed by exactly three
// digits is read as a thousands separator, not a decimal.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Trim(s, ".,"))
	if s == "" {
		return 0, false
	}
	hasComma := strings.Contains(s, ",")
	if hasComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else if strings.Contains(s, ".") {
		parts := strings.Split(s, ".")
		last := parts[len(parts)-1]
		if len(last) == 3 {
			s = strings.Join(parts, "")
		} else if len(parts) > 2 {
			// "1.234.56" — malformed grouping, refuse rather than guess.
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
