// Package nodo tags records against user-curated keyword groups
// ("nodos"). Matching is accent-agnostic so "Energía" and "energia"
// behave identically, and each nodo carries a scope limiting it to one
// jurisdiction or opening it to all.
package nodo

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/licitawatch/licitawatch/internal/metrics"
	"github.com/licitawatch/licitawatch/internal/record"
)

// ScopeGlobal matches records from every jurisdiction.
const ScopeGlobal = "global"

// descriptionWindow caps how much description text participates in
// matching; long notices bury boilerplate far past anything useful.
const descriptionWindow = 600

// Nodo is one interest tag: named keyword groups plus a scope.
type Nodo struct {
	ID     string              `mapstructure:"id"`
	Name   string              `mapstructure:"name"`
	Scope  string              `mapstructure:"scope"`
	Groups map[string][]string `mapstructure:"groups"`
}

type compiledNodo struct {
	id       string
	scope    string
	patterns []*regexp.Regexp
}

type arena struct {
	nodos []compiledNodo
}

// Matcher evaluates nodos against records. Reload swaps the compiled
// set atomically, so matching never observes a half-built table.
type Matcher struct {
	current atomic.Pointer[arena]
}

// NewMatcher compiles the given nodos.
func NewMatcher(nodos []Nodo) (*Matcher, error) {
	m := &Matcher{}
	if err := m.Reload(nodos); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload replaces the whole compiled nodo set. On error the previous
// set stays active.
func (m *Matcher) Reload(nodos []Nodo) error {
	a := &arena{nodos: make([]compiledNodo, 0, len(nodos))}
	for _, n := range nodos {
		cn := compiledNodo{id: n.ID, scope: normalizeScope(n.Scope)}
		for group, keywords := range n.Groups {
			for _, kw := range keywords {
				p, err := compileKeyword(kw)
				if err != nil {
					return fmt.Errorf("nodo %q group %q keyword %q: %w", n.ID, group, kw, err)
				}
				cn.patterns = append(cn.patterns, p)
			}
		}
		a.nodos = append(a.nodos, cn)
	}
	m.current.Store(a)
	return nil
}

// Match returns the ids of every nodo whose scope admits the record and
// whose keywords hit its combined text. Any keyword in any group is
// enough.
func (m *Matcher) Match(rec *record.Record) []string {
	a := m.current.Load()
	if a == nil || rec == nil {
		return nil
	}
	text := matchText(rec)
	var ids []string
	for _, n := range a.nodos {
		if !scopeAdmits(n.scope, rec.Jurisdiction) {
			continue
		}
		for _, p := range n.patterns {
			if p.MatchString(text) {
				ids = append(ids, n.id)
				metrics.IncNodoMatch(n.id)
				break
			}
		}
	}
	return ids
}

// Apply recomputes the record's tag set. The result replaces whatever
// was there: repeated runs never accumulate stale tags.
func (m *Matcher) Apply(rec *record.Record) {
	rec.KeywordTags = m.Match(rec)
}

func matchText(rec *record.Record) string {
	desc := rec.Description
	if len(desc) > descriptionWindow {
		desc = desc[:descriptionWindow]
	}
	return rec.Title + " " + rec.ProcurementObject + " " + desc + " " + rec.Organization
}

func normalizeScope(scope string) string {
	s := foldString(strings.TrimSpace(scope))
	if s == "" {
		return ScopeGlobal
	}
	return s
}

func scopeAdmits(scope, jurisdiction string) bool {
	if scope == ScopeGlobal {
		return true
	}
	return scope == foldString(strings.TrimSpace(jurisdiction))
}

// diacriticClasses expands each base letter to the class of its accented
// variants, so the compiled pattern hits text regardless of accents.
var diacriticClasses = map[rune]string{
	'a': "[aáàäâã]",
	'e': "[eéèëê]",
	'i': "[iíìïî]",
	'o': "[oóòöôõ]",
	'u': "[uúùüû]",
	'n': "[nñ]",
	'c': "[cç]",
}

// compileKeyword folds the keyword to base letters, then rebuilds it as
// a case-insensitive pattern where each foldable letter matches its
// whole diacritic class, bounded by non-letter context.
func compileKeyword(keyword string) (*regexp.Regexp, error) {
	kw := foldString(strings.TrimSpace(keyword))
	if kw == "" {
		return nil, fmt.Errorf("empty keyword")
	}
	var b strings.Builder
	b.WriteString(`(?i)(?:^|[^\p{L}\p{N}])`)
	for _, r := range kw {
		if class, ok := diacriticClasses[r]; ok {
			b.WriteString(class)
		} else if unicode.IsSpace(r) {
			b.WriteString(`\s+`)
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`(?:[^\p{L}\p{N}]|$)`)
	return regexp.Compile(b.String())
}

var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldString(s string) string {
	folded, _, err := transform.String(foldTransform, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}
