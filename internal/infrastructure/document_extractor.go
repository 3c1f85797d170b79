package infrastructure

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

const (
	wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	DefaultMaxPDFPages = 100
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DocumentExtractor turns uploaded .txt, .pdf and .docx files into plain text.
type DocumentExtractor struct {
	MaxPDFPages int
}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{MaxPDFPages: DefaultMaxPDFPages}
}

func (e *DocumentExtractor) Extract(data []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".txt":
		return decodePlainText(data), nil
	case ".pdf":
		return e.extractPDF(data)
	case ".docx":
		return extractDocx(data)
	}
	return "", fmt.Errorf("no extractor for %q", ext)
}

// decodePlainText reads UTF-8, dropping invalid bytes. Files that are mostly
// invalid UTF-8 are treated as Windows-1251.
func decodePlainText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}

	invalid := 0
	for rest := data; len(rest) > 0; {
		r, size := utf8.DecodeRune(rest)
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		rest = rest[size:]
	}
	if invalid*10 > len(data) {
		if decoded, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
			return string(decoded)
		}
	}
	return strings.ToValidUTF8(string(data), "")
}

func (e *DocumentExtractor) extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := reader.NumPage()
	if pages == 0 {
		return "", errors.New("pdf has no pages")
	}
	if e.MaxPDFPages > 0 && pages > e.MaxPDFPages {
		pages = e.MaxPDFPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(strings.ReplaceAll(content, "\x00", ""))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return paragraphsFromXML(rc)
	}
	return "", errors.New("docx: missing word/document.xml")
}

// paragraphsFromXML emits one line per w:p, concatenating the w:t runs.
func paragraphsFromXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var out, para strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteString(para.String())
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return out.String(), nil
}
