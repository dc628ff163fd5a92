package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorePicksMaxCategory(t *testing.T) {
	c := New(nil)
	got := c.Score("Construcción de obra nueva y refacción de edificio escolar, incluye limpieza final")
	assert.Equal(t, "obra_publica", got, "three obra hits beat one limpieza hit")
}

func TestScoreWholeWordsOnly(t *testing.T) {
	c := New([]Rule{{Category: "salud", Keywords: []string{"salud"}}})
	assert.Empty(t, c.Score("saludos cordiales del organismo"))
	assert.Equal(t, "salud", c.Score("ministerio de salud provincial"))
}

func TestScoreCaseAndAccentInsensitive(t *testing.T) {
	c := New(nil)
	assert.Equal(t, "energia", c.Score("PROVISIÓN DE ENERGIA ELECTRICA"))
	assert.Equal(t, "energia", c.Score("provisión de energía eléctrica"))
}

func TestScoreMultiWordKeyword(t *testing.T) {
	c := New(nil)
	got := c.Score("adquisición de insumos médicos para guardias")
	assert.Equal(t, "salud", got)
}

func TestScoreTieBrokenByTableOrder(t *testing.T) {
	c := New([]Rule{
		{Category: "primera", Keywords: []string{"alfa"}},
		{Category: "segunda", Keywords: []string{"beta"}},
	})
	assert.Equal(t, "primera", c.Score("alfa y beta empatan"))
}

func TestScoreNoMatches(t *testing.T) {
	c := New(nil)
	assert.Empty(t, c.Score("texto administrativo sin palabras de rubro"))
	assert.Empty(t, c.Score(""))
}

func TestClassifyTitleWinsOverDescription(t *testing.T) {
	c := New(nil)
	got := c.Classify(
		"Adquisición de medicamentos oncológicos",
		"",
		"la entrega se hará en el edificio de la obra social junto a las obras del anexo, obras que siguen en curso",
		nil,
	)
	assert.Equal(t, "salud", got, "title-only pass decides before description boilerplate")
}

func TestClassifyFallsBackToFullText(t *testing.T) {
	c := New(nil)
	got := c.Classify("Licitación Pública Nº 18/2026", "", "servicio de vigilancia y monitoreo con cámaras", nil)
	assert.Equal(t, "seguridad", got)
}

func TestReloadSwapsTable(t *testing.T) {
	c := New(nil)
	c.Reload([]Rule{{Category: "custom", Keywords: []string{"dragado"}}})
	assert.Equal(t, "custom", c.Score("dragado del canal principal"))
	assert.Empty(t, c.Score("adquisición de medicamentos"), "old table is gone")
}
