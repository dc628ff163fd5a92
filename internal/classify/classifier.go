// Package classify assigns taxonomy categories to procurement records
// by counting keyword hits against a static keyword table.
package classify

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rule maps one category to the keywords that vote for it. Table order
// is the deterministic tie-breaker, so rules are a slice, not a map.
type Rule struct {
	Category string
	Keywords []string
}

// DefaultRules is the built-in procurement taxonomy.
var DefaultRules = []Rule{
	{Category: "obra_publica", Keywords: []string{
		"obra", "obras", "construcción", "pavimentación", "refacción", "ampliación",
		"remodelación", "infraestructura", "edificio", "cloacas", "red vial",
	}},
	{Category: "informatica", Keywords: []string{
		"notebooks", "computadoras", "software", "informático", "informática",
		"servidores", "licencias", "impresoras", "equipamiento tecnológico",
	}},
	{Category: "salud", Keywords: []string{
		"medicamentos", "hospital", "hospitalario", "insumos médicos", "descartables",
		"reactivos", "ambulancia", "salud",
	}},
	{Category: "alimentos", Keywords: []string{
		"alimentos", "raciones", "comedores", "víveres", "alimentarias", "leche",
	}},
	{Category: "limpieza", Keywords: []string{
		"limpieza", "higiene", "desinfección", "residuos", "recolección",
	}},
	{Category: "seguridad", Keywords: []string{
		"seguridad", "vigilancia", "monitoreo", "cámaras", "alarmas",
	}},
	{Category: "transporte", Keywords: []string{
		"transporte", "vehículos", "camiones", "combustible", "neumáticos", "traslado",
	}},
	{Category: "energia", Keywords: []string{
		"energía", "eléctrico", "eléctrica", "luminarias", "alumbrado", "solar", "gas",
	}},
}

type compiledRule struct {
	category string
	keywords [][]string // each keyword as a normalized token sequence
}

// Classifier scores text against a keyword table. Safe for concurrent
// use; Reload swaps the table atomically.
type Classifier struct {
	mu    sync.RWMutex
	rules []compiledRule
}

// New builds a Classifier. Nil rules fall back to DefaultRules.
func New(rules []Rule) *Classifier {
	c := &Classifier{}
	c.Reload(rules)
	return c
}

// Reload replaces the keyword table. Nil rules fall back to DefaultRules.
func (c *Classifier) Reload(rules []Rule) {
	if rules == nil {
		rules = DefaultRules
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{category: r.Category}
		for _, kw := range r.Keywords {
			toks := tokenize(kw)
			if len(toks) > 0 {
				cr.keywords = append(cr.keywords, toks)
			}
		}
		compiled = append(compiled, cr)
	}
	c.mu.Lock()
	c.rules = compiled
	c.mu.Unlock()
}

// Classify picks a category for a record. The title gets a pass of its
// own first: titles are short and precise, while descriptions carry
// boilerplate that skews keyword counts.
func (c *Classifier) Classify(title, object, description string, tags []string) string {
	if cat := c.Score(title); cat != "" {
		return cat
	}
	full := strings.Join(append([]string{title, object, description}, tags...), " ")
	return c.Score(full)
}

// Score returns the highest-scoring category for text, or "" when no
// keyword matches. Ties go to the earlier table entry.
func (c *Classifier) Score(text string) string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return ""
	}
	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()

	best := ""
	bestScore := 0
	for _, r := range rules {
		score := 0
		for _, kw := range r.keywords {
			score += countSequence(tokens, kw)
		}
		if score > bestScore {
			best = r.category
			bestScore = score
		}
	}
	return best
}

// countSequence counts whole-word occurrences of the token sequence kw
// inside tokens.
func countSequence(tokens, kw []string) int {
	if len(kw) == 0 || len(kw) > len(tokens) {
		return 0
	}
	count := 0
	for i := 0; i+len(kw) <= len(tokens); i++ {
		match := true
		for j, w := range kw {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}
	return count
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// tokenize lower-cases, strips diacritics, and splits text into
// letter/digit runs. Keyword and text go through the same funnel, so
// matching is case and accent insensitive.
func tokenize(text string) []string {
	folded, _, err := transform.String(foldAccents, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
