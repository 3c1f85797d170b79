package usecases

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

const (
	maxHeadingRunes  = 150
	maxCenteredRunes = 80
)

var (
	numberingRe = regexp.MustCompile(`^(\d+(\.\d+)+\.?|\d+[.)])\s`)
	romanRe     = regexp.MustCompile(`^[IVXLCDM]+[.)]\s`)
	keywordRe   = regexp.MustCompile(`(^|[^\p{L}])(ДОГОВОР|СОГЛАШЕНИЕ|ЗАЯВЛЕНИЕ|ПРЕТЕНЗИЯ|ДОВЕРЕННОСТЬ|ЖАЛОБА|ХОДАТАЙСТВО|ИСКОВОЕ|АКТ|ПРИКАЗ|ПОЛОЖЕНИЕ)([^\p{L}]|$)`)
	blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

	sectionPrefixes = []string{"Статья", "Раздел", "Глава", "Пункт", "Приложение"}
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// IsHeading reports whether a line of a generated legal document reads as a
// section heading.
func IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if isAllUpper(line) && utf8.RuneCountInString(line) < maxHeadingRunes {
		return true
	}
	if keywordRe.MatchString(line) {
		return true
	}
	if numberingRe.MatchString(line) || romanRe.MatchString(line) {
		return true
	}
	for _, p := range sectionPrefixes {
		if hasWordPrefix(line, p) {
			return true
		}
	}
	return false
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func hasWordPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(s[len(prefix):])
	return next == utf8.RuneError || !unicode.IsLetter(next)
}

func classify(line string) entities.DocBlock {
	b := entities.DocBlock{Text: line}
	if IsHeading(line) {
		b.Heading = true
		b.Centered = utf8.RuneCountInString(line) < maxCenteredRunes
	}
	return b
}

func heading(line string) entities.DocBlock {
	return entities.DocBlock{Text: line, Heading: true, Centered: utf8.RuneCountInString(line) < maxCenteredRunes}
}

// PlainBlocks splits text into one paragraph per blank-line-separated block.
func PlainBlocks(s string) []entities.DocBlock {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []entities.DocBlock
	for _, part := range blankLineRe.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, entities.DocBlock{Text: part})
		}
	}
	return out
}

// StructureDocument parses generated markdown and classifies each line into
// a heading or a body paragraph. Inline markup is dropped.
func StructureDocument(md string) []entities.DocBlock {
	src := []byte(strings.ReplaceAll(md, "\r\n", "\n"))
	root := markdown.Parser().Parse(text.NewReader(src))
	s := &structurer{src: src}
	s.children(root)
	return s.blocks
}

type structurer struct {
	src    []byte
	blocks []entities.DocBlock
}

func (s *structurer) add(b entities.DocBlock) {
	if b.Text = strings.TrimSpace(b.Text); b.Text != "" {
		s.blocks = append(s.blocks, b)
	}
}

func (s *structurer) children(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		s.block(c, "")
	}
}

func (s *structurer) block(n ast.Node, prefix string) {
	switch v := n.(type) {
	case *ast.Heading:
		s.add(heading(prefix + strings.Join(s.inlineLines(v), " ")))
	case *ast.Paragraph, *ast.TextBlock:
		for i, line := range s.inlineLines(v) {
			if i == 0 {
				line = prefix + line
			}
			s.add(classify(line))
		}
	case *ast.List:
		num := v.Start
		for item := v.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "• "
			if v.IsOrdered() {
				marker = fmt.Sprintf("%d. ", num)
				num++
			}
			first := true
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if first {
					s.block(c, marker)
					first = false
					continue
				}
				s.block(c, "")
			}
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		lines := v.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			s.add(entities.DocBlock{Text: string(seg.Value(s.src))})
		}
	case *ast.ThematicBreak:
	case *extast.TableHeader, *extast.TableRow:
		var cells []string
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, strings.Join(s.inlineLines(c), " "))
		}
		s.add(entities.DocBlock{Text: strings.Join(cells, " | ")})
	default:
		s.children(n)
	}
}

// inlineLines flattens the inline content of n, breaking at soft and hard
// line breaks.
func (s *structurer) inlineLines(n ast.Node) []string {
	var (
		lines []string
		b     strings.Builder
	)
	flush := func() {
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
		b.Reset()
	}
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(s.src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				flush()
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(s.src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *extast.TaskCheckBox:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush()
	return lines
}
