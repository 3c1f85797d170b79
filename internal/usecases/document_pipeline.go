package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/interfaces"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/metrics"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/prompts"
)

// Delivery is the outcome of a flow, ready to hand to a transport.
type Delivery struct {
	Texts   []string
	File    *entities.RenderedFile
	Caption string
	// Charge is true when the remote backend produced a usable answer.
	Charge bool
	// Err is the remote or render failure, if any. Texts are still set.
	Err error
}

// DocumentPipeline turns uploaded documents and descriptions into replies.
type DocumentPipeline struct {
	gateway   *RemoteGateway
	extractor interfaces.TextExtractor
	renderer  interfaces.DocumentRenderer
	catalog   *prompts.Catalog
	now       func() time.Time
	logger    *slog.Logger
}

type PipelineOption func(*DocumentPipeline)

func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *DocumentPipeline) { p.now = now }
}

func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *DocumentPipeline) { p.logger = l }
}

func NewDocumentPipeline(gateway *RemoteGateway, extractor interfaces.TextExtractor, renderer interfaces.DocumentRenderer, catalog *prompts.Catalog, opts ...PipelineOption) *DocumentPipeline {
	if catalog == nil {
		catalog = prompts.Default()
	}
	p := &DocumentPipeline{
		gateway:   gateway,
		extractor: extractor,
		renderer:  renderer,
		catalog:   catalog,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrepareText extracts the document text and enforces the minimum length.
// The result is truncated to MaxDocumentChars.
func (p *DocumentPipeline) PrepareText(data []byte, ext string) (string, error) {
	text, err := p.extractor.Extract(data, ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinDocumentRunes {
		return "", ErrTooShort
	}
	return TruncateRunes(text, MaxDocumentChars), nil
}

// Analyze returns the analysis as chunked rich text.
func (p *DocumentPipeline) Analyze(ctx context.Context, text string) Delivery {
	resp := p.gateway.ProcessDocument(ctx, entities.DocumentAnalyze, p.catalog.Instruction(entities.DocumentAnalyze), text)
	if !resp.OK() {
		return Delivery{Texts: []string{resp.Text}, Err: resp.Err}
	}
	body := p.catalog.Texts.AnalysisHeader + "\n\n" + NormalizeText(resp.Text) + "\n\n" + p.catalog.Texts.AnalysisFooter
	return Delivery{Texts: ChunkText(body, MaxMessageChars), Charge: true}
}

// Edit returns the improved document in the uploaded format.
func (p *DocumentPipeline) Edit(ctx context.Context, name, ext, text string) Delivery {
	resp := p.gateway.ProcessDocument(ctx, entities.DocumentEdit, p.catalog.Instruction(entities.DocumentEdit), text)
	if !resp.OK() {
		return Delivery{Texts: []string{resp.Text}, Err: resp.Err}
	}

	fileName := "edited_" + SanitizeFileName(name)
	var (
		data []byte
		mime string
		err  error
	)
	switch ext {
	case ".txt":
		data, mime = []byte(resp.Text), "text/plain; charset=utf-8"
	case ".docx":
		data, err = p.renderer.RenderDocx(PlainBlocks(resp.Text))
		mime = entities.MIMEDocx
	default:
		err = fmt.Errorf("%w: %q", ErrNotEditable, ext)
	}
	if err != nil {
		return p.fallback(entities.DocumentEdit, resp.Text, err)
	}

	return Delivery{
		File:    &entities.RenderedFile{Name: fileName, Data: data, MIMEType: mime},
		Caption: p.catalog.Texts.EditedCaption,
		Charge:  true,
	}
}

// Create drafts a new document from the user's description.
func (p *DocumentPipeline) Create(ctx context.Context, description string) Delivery {
	instruction := p.catalog.Instruction(entities.DocumentCreate) + "\n" + description
	resp := p.gateway.ProcessDocument(ctx, entities.DocumentCreate, instruction, "")
	if !resp.OK() {
		return Delivery{Texts: []string{resp.Text}, Err: resp.Err}
	}

	blocks := StructureDocument(resp.Text)
	if len(blocks) == 0 {
		return p.fallback(entities.DocumentCreate, resp.Text, fmt.Errorf("no paragraphs in generated document"))
	}
	data, err := p.renderer.RenderDocx(blocks)
	if err != nil {
		return p.fallback(entities.DocumentCreate, resp.Text, err)
	}

	return Delivery{
		File: &entities.RenderedFile{
			Name:     "document_" + p.now().Format("20060102_150405") + ".docx",
			Data:     data,
			MIMEType: entities.MIMEDocx,
		},
		Caption: p.catalog.Texts.CreatedCaption,
		Charge:  true,
	}
}

// fallback delivers the generated text inline when the file cannot be built.
func (p *DocumentPipeline) fallback(variant entities.DocumentVariant, text string, cause error) Delivery {
	metrics.RenderFallbacksTotal.WithLabelValues(string(variant)).Inc()
	p.logger.Error("document render failed, sending text", "variant", variant, "error", cause)

	header, disclaimer := p.catalog.Texts.EditedFallbackHeader, p.catalog.Texts.EditedDisclaimer
	if variant == entities.DocumentCreate {
		header, disclaimer = p.catalog.Texts.CreatedFallbackHeader, p.catalog.Texts.CreatedDisclaimer
	}
	body := header + "\n\n" + NormalizeText(text) + "\n\n" + p.catalog.Texts.FileFailedNote + "\n\n" + disclaimer
	return Delivery{
		Texts:  ChunkText(body, MaxMessageChars),
		Charge: true,
		Err:    fmt.Errorf("%w: %v", ErrRender, cause),
	}
}
