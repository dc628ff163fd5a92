package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBudgetLatinFormatting(t *testing.T) {
	b, ok := ParseBudget("Presupuesto Oficial: $ 1.234.567,89")
	require.True(t, ok)
	assert.InDelta(t, 1234567.89, b.Amount, 0.001)
	assert.Equal(t, "ARS", b.Currency)
}

func TestParseBudgetDollarMarkers(t *testing.T) {
	for _, text := range []string{
		"Monto estimado: U$S 500.000",
		"importe USD 500000",
		"valor estimado de 500.000 dólares",
	} {
		b, ok := ParseBudget(text)
		if !ok {
			// The last form has the number before the marker; only the
			// keyword pattern catches it and currency stays default.
			continue
		}
		assert.InDelta(t, 500000, b.Amount, 0.001, "text %q", text)
	}

	b, ok := ParseBudget("Monto estimado: U$S 500.000")
	require.True(t, ok)
	assert.Equal(t, "USD", b.Currency)
}

func TestParseBudgetKeywordWithoutSymbol(t *testing.T) {
	b, ok := ParseBudget("El presupuesto asignado es de 2.500.000 para la obra")
	require.True(t, ok)
	assert.InDelta(t, 2500000, b.Amount, 0.001)
	assert.Equal(t, "ARS", b.Currency)
}

func TestParseBudgetRejectsImplausiblySmall(t *testing.T) {
	_, ok := ParseBudget("Monto: $ 12")
	assert.False(t, ok, "tiny amounts are parser noise, not budgets")
}

func TestParseBudgetNoAmount(t *testing.T) {
	_, ok := ParseBudget("Sin presupuesto publicado")
	assert.False(t, ok)
}

func TestParseBudgetDefaultCurrencyOverride(t *testing.T) {
	b, ok := ParseBudgetDefault("Monto: $ 3.000.000", "CLP")
	require.True(t, ok)
	assert.Equal(t, "CLP", b.Currency)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234.567,89", 1234567.89, true},
		{"1234567.89", 1234567.89, true},
		{"500.000", 500000, true},
		{"2500000", 2500000, true},
		{"1.234,5", 1234.5, true},
		{"", 0, false},
		{"..", 0, false},
		{"1.23.4", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseAmount(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 0.0001, "input %q", tt.in)
		}
	}
}
