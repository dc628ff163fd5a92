package nodo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitawatch/licitawatch/internal/record"
)

func testNodos() []Nodo {
	return []Nodo{
		{
			ID:    "energia-renovable",
			Scope: ScopeGlobal,
			Groups: map[string][]string{
				"principal": {"energía solar", "parque fotovoltaico"},
				"general":   {"energía"},
			},
		},
		{
			ID:    "obras-mendoza",
			Scope: "mendoza",
			Groups: map[string][]string{
				"obras": {"pavimentación", "cloacas"},
			},
		},
	}
}

func rec(title, jurisdiction string) *record.Record {
	return &record.Record{Title: title, Jurisdiction: jurisdiction}
}

func TestMatchAccentInvariance(t *testing.T) {
	m, err := NewMatcher(testNodos())
	require.NoError(t, err)

	accented := m.Match(rec("Provisión de energía solar para escuelas de Guaymallén", "mendoza"))
	plain := m.Match(rec("Provision de energia solar para escuelas de Guaymallen", "mendoza"))

	assert.Equal(t, accented, plain, "accented and plain text produce identical match sets")
	assert.Equal(t, []string{"energia-renovable"}, accented)
}

func TestMatchAnyKeywordInAnyGroup(t *testing.T) {
	m, err := NewMatcher(testNodos())
	require.NoError(t, err)

	got := m.Match(rec("Instalación de parque fotovoltaico municipal", "cordoba"))
	assert.Equal(t, []string{"energia-renovable"}, got)
}

func TestMatchScopeLimitsJurisdiction(t *testing.T) {
	m, err := NewMatcher(testNodos())
	require.NoError(t, err)

	inScope := m.Match(rec("Pavimentación de calles urbanas", "mendoza"))
	assert.Contains(t, inScope, "obras-mendoza")

	outOfScope := m.Match(rec("Pavimentación de calles urbanas", "cordoba"))
	assert.NotContains(t, outOfScope, "obras-mendoza")
}

func TestMatchWholeWordsOnly(t *testing.T) {
	m, err := NewMatcher([]Nodo{{
		ID:     "gas",
		Scope:  ScopeGlobal,
		Groups: map[string][]string{"g": {"gas"}},
	}})
	require.NoError(t, err)

	assert.Empty(t, m.Match(rec("compra de gasas estériles", "")))
	assert.Equal(t, []string{"gas"}, m.Match(rec("red de gas natural", "")))
}

func TestApplyReplacesTagSet(t *testing.T) {
	m, err := NewMatcher(testNodos())
	require.NoError(t, err)

	r := rec("Servicio de limpieza integral", "mendoza")
	r.KeywordTags = []string{"tag-viejo", "otro-viejo"}
	m.Apply(r)
	assert.Empty(t, r.KeywordTags, "recomputation discards stale tags instead of accumulating")

	r2 := rec("Obra de cloacas en el distrito", "mendoza")
	r2.KeywordTags = []string{"tag-viejo"}
	m.Apply(r2)
	assert.Equal(t, []string{"obras-mendoza"}, r2.KeywordTags)
}

func TestReloadSwapsNodoSet(t *testing.T) {
	m, err := NewMatcher(testNodos())
	require.NoError(t, err)

	require.NoError(t, m.Reload([]Nodo{{
		ID:     "nuevo",
		Scope:  ScopeGlobal,
		Groups: map[string][]string{"g": {"dragado"}},
	}}))

	assert.Empty(t, m.Match(rec("Provisión de energía solar", "mendoza")))
	assert.Equal(t, []string{"nuevo"}, m.Match(rec("Dragado del canal", "")))
}

func TestReloadRejectsEmptyKeyword(t *testing.T) {
	m, err := NewMatcher(nil)
	require.NoError(t, err)

	err = m.Reload([]Nodo{{
		ID:     "malo",
		Scope:  ScopeGlobal,
		Groups: map[string][]string{"g": {"   "}},
	}})
	assert.Error(t, err)
}

func TestMatchDescriptionWindow(t *testing.T) {
	m, err := NewMatcher(testNodos())
	require.NoError(t, err)

	r := rec("Licitación genérica sin palabras clave", "")
	r.Description = "energía solar al comienzo de la descripción"
	assert.Equal(t, []string{"energia-renovable"}, m.Match(r))
}
