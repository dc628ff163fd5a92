package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitawatch/licitawatch/internal/source"
)

func TestBuildCandidateFull(t *testing.T) {
	e := NewEngine(nil)
	n := source.Notice{
		Title:              "LPU 12345",
		Organization:       "Ministerio de Infraestructura",
		Jurisdiction:       "mendoza",
		URL:                "https://compras.mendoza.gob.ar/licitacion/12345",
		Expedient:          "EXP-2026-12345",
		Description:        "Objeto: Adquisición de notebooks para oficinas regionales. Presupuesto Oficial: $ 45.000.000. Apertura el 12 de marzo de 2026.",
		PublicationDateRaw: "10/01/2026",
		OpeningDateRaw:     "12 de marzo de 2026",
		Fields: map[string]string{
			"nombre_descriptivo": "Adquisición de notebooks para oficinas regionales",
		},
		HTML: `<a href="/pliego.pdf">Pliego</a>`,
	}
	hints := source.Hints{DescriptiveNameField: "nombre_descriptivo"}

	cand := e.BuildCandidate(n, "compras-mza", hints)

	assert.Equal(t, "compras-mza", cand.Source)
	assert.Equal(t, "Adquisición de notebooks para oficinas regionales", cand.Title,
		"poor title replaced by descriptive name")
	require.NotNil(t, cand.PublicationDate)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), *cand.PublicationDate)
	require.NotNil(t, cand.OpeningDate)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), *cand.OpeningDate)
	require.NotNil(t, cand.Budget)
	assert.InDelta(t, 45000000, cand.Budget.Amount, 0.001)
	assert.Contains(t, cand.ProcurementObject, "Adquisición de notebooks")
	require.Len(t, cand.Attachments, 1)
	assert.Equal(t, "https://compras.mendoza.gob.ar/pliego.pdf", cand.Attachments[0].URL)
	assert.Equal(t, "EXP-2026-12345", cand.Expedient)
}

func TestBuildCandidatePoorTitleWithoutDescriptiveName(t *testing.T) {
	e := NewEngine(nil)
	n := source.Notice{
		Title:       "LPU 12345",
		Description: "Objeto: Adquisición de notebooks para oficinas regionales.",
	}
	cand := e.BuildCandidate(n, "src", source.Hints{})

	// Title is retained; the object is stored separately.
	assert.Equal(t, "LPU 12345", cand.Title)
	assert.Contains(t, cand.ProcurementObject, "Adquisición de notebooks")
}

func TestBuildCandidateUnparseableDatesAreNil(t *testing.T) {
	e := NewEngine(nil)
	n := source.Notice{
		Title:              "Servicio de limpieza integral de edificios",
		PublicationDateRaw: "a confirmar",
		OpeningDateRaw:     "",
	}
	cand := e.BuildCandidate(n, "src", source.Hints{})
	assert.Nil(t, cand.PublicationDate)
	assert.Nil(t, cand.OpeningDate)
}

func TestBuildCandidateStructuredObjectHint(t *testing.T) {
	e := NewEngine(nil)
	n := source.Notice{
		Title:       "Licitación de servicios varios con nombre largo",
		Description: "texto libre sin objeto claro",
		Fields:      map[string]string{"objeto_contratacion": "Provisión de raciones alimentarias escolares"},
	}
	cand := e.BuildCandidate(n, "src", source.Hints{ObjectField: "objeto_contratacion"})
	assert.Equal(t, "Provisión de raciones alimentarias escolares", cand.ProcurementObject)
}
