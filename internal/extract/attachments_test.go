package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const attachmentHTML = `
<html><body>
<a href="/docs/pliego-general.pdf">Pliego de bases y condiciones</a>
<a href="anexo1.docx">Anexo I</a>
<a href="https://otro.gob.ar/circular.PDF">Circular aclaratoria</a>
<a href="/descarga?id=991">Descargar documentación</a>
<a href="/docs/pliego-general.pdf">Pliego (duplicado)</a>
<a href="/contacto">Contacto</a>
<a href="#arriba">Volver</a>
<a href="javascript:void(0)">Imprimir</a>
<a href="mailto:compras@example.gob.ar">Escribinos</a>
</body></html>`

func TestFindAttachments(t *testing.T) {
	base, err := url.Parse("https://compras.example.gob.ar/licitacion/44")
	require.NoError(t, err)

	atts := FindAttachments(attachmentHTML, base)
	require.Len(t, atts, 4)

	assert.Equal(t, "Pliego de bases y condiciones", atts[0].Name)
	assert.Equal(t, "https://compras.example.gob.ar/docs/pliego-general.pdf", atts[0].URL)
	assert.Equal(t, "pdf", atts[0].Type)

	assert.Equal(t, "https://compras.example.gob.ar/licitacion/anexo1.docx", atts[1].URL)
	assert.Equal(t, "doc", atts[1].Type)

	assert.Equal(t, "https://otro.gob.ar/circular.PDF", atts[2].URL)
	assert.Equal(t, "pdf", atts[2].Type, "extension match is case-insensitive")

	// No extension, classified by link text.
	assert.Equal(t, "https://compras.example.gob.ar/descarga?id=991", atts[3].URL)
	assert.Equal(t, "document", atts[3].Type)
}

func TestFindAttachmentsDedupeByResolvedURL(t *testing.T) {
	base, _ := url.Parse("https://x.gob.ar/a")
	html := `<a href="/p.pdf">uno</a><a href="https://x.gob.ar/p.pdf">dos</a>`
	atts := FindAttachments(html, base)
	require.Len(t, atts, 1)
	assert.Equal(t, "uno", atts[0].Name, "first occurrence wins")
}

func TestFindAttachmentsEmptyAndGarbage(t *testing.T) {
	base, _ := url.Parse("https://x.gob.ar/")
	assert.Empty(t, FindAttachments("", base))
	assert.Empty(t, FindAttachments("<p>sin links</p>", base))
	assert.Empty(t, FindAttachments(`<a href="ftp://x/archivo.pdf">raro</a>`, base))
}
