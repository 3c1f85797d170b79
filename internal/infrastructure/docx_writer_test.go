package infrastructure

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(b)
		}
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestDocxWriter_Package(t *testing.T) {
	data, err := NewDocxWriter().RenderDocx([]entities.DocBlock{{Text: "текст"}})
	require.NoError(t, err)

	assert.Contains(t, readPart(t, data, "[Content_Types].xml"), "wordprocessingml.document.main+xml")
	assert.Contains(t, readPart(t, data, "_rels/.rels"), `Target="word/document.xml"`)
}

func TestDocxWriter_Paragraphs(t *testing.T) {
	data, err := NewDocxWriter().RenderDocx([]entities.DocBlock{
		{Text: "ДОГОВОР АРЕНДЫ", Heading: true, Centered: true},
		{Text: "Статья 1 очень длинный заголовок", Heading: true},
		{Text: "Цена < 100 & > 10\nвторая строка"},
	})
	require.NoError(t, err)

	doc := readPart(t, data, "word/document.xml")
	assert.Contains(t, doc, `<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">ДОГОВОР АРЕНДЫ</w:t>`)
	assert.Contains(t, doc, `<w:p><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Статья 1`)
	assert.Contains(t, doc, `Цена &lt; 100 &amp; &gt; 10</w:t><w:br/><w:t xml:space="preserve">вторая строка</w:t>`)
}

func TestDocxWriter_Empty(t *testing.T) {
	data, err := NewDocxWriter().RenderDocx(nil)
	require.NoError(t, err)
	assert.Contains(t, readPart(t, data, "word/document.xml"), "<w:body><w:sectPr>")
}
