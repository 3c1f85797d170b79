package infrastructure

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	docxDocumentOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

	docxDocumentClose = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1134" w:right="850" w:bottom="1134" w:left="1701" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr></w:body></w:document>`
)

// DocxWriter builds minimal WordprocessingML packages: one w:p per block,
// bold runs for headings, centered alignment when requested.
type DocxWriter struct{}

func NewDocxWriter() *DocxWriter {
	return &DocxWriter{}
}

func (w *DocxWriter) RenderDocx(blocks []entities.DocBlock) ([]byte, error) {
	var body strings.Builder
	body.WriteString(docxDocumentOpen)
	for _, b := range blocks {
		if err := writeParagraph(&body, b); err != nil {
			return nil, err
		}
	}
	body.WriteString(docxDocumentClose)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name, content string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", body.String()},
	}
	for _, p := range parts {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("docx %s: %w", p.name, err)
		}
		if _, err := f.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("docx %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx close: %w", err)
	}
	return buf.Bytes(), nil
}

func writeParagraph(sb *strings.Builder, b entities.DocBlock) error {
	sb.WriteString("<w:p>")
	if b.Centered {
		sb.WriteString(`<w:pPr><w:jc w:val="center"/></w:pPr>`)
	}
	sb.WriteString("<w:r>")
	if b.Heading {
		sb.WriteString("<w:rPr><w:b/></w:rPr>")
	}
	for i, line := range strings.Split(b.Text, "\n") {
		if i > 0 {
			sb.WriteString("<w:br/>")
		}
		sb.WriteString(`<w:t xml:space="preserve">`)
		if err := xml.EscapeText(sb, []byte(line)); err != nil {
			return fmt.Errorf("docx escape: %w", err)
		}
		sb.WriteString("</w:t>")
	}
	sb.WriteString("</w:r></w:p>")
	return nil
}
