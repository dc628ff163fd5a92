package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStableAcrossFormatting(t *testing.T) {
	a := Fingerprint("Adquisición de Notebooks", "compras-mza", "EXP-2026-123")
	b := Fingerprint("  adquisicion   de notebooks ", "Compras-MZA", "exp 2026 123")
	assert.Equal(t, a, b)
}

func TestFingerprintDistinguishesNotices(t *testing.T) {
	a := Fingerprint("Adquisición de notebooks", "compras-mza", "EXP-1")
	b := Fingerprint("Adquisición de notebooks", "compras-mza", "EXP-2")
	c := Fingerprint("Adquisición de notebooks", "otra-fuente", "EXP-1")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprintEmptyExpedient(t *testing.T) {
	a := Fingerprint("Provisión de insumos", "boletin", "")
	require.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint("provision de insumos", "boletin", ""))
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Guaymallén", "guaymallen"},
		{"LPU Nº 12/2026", "lpu n 12 2026"},
		{"  a  b  ", "a b"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeKey(tt.in), "input %q", tt.in)
	}
}

func TestRecordClone(t *testing.T) {
	r := &Record{Title: "t", KeywordTags: []string{"a"}}
	c := r.Clone()
	c.KeywordTags[0] = "b"
	assert.Equal(t, "a", r.KeywordTags[0])
}
