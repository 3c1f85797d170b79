package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/interfaces"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/metrics"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/prompts"
)

const documentPayloadSeparator = "\n\nДокумент для обработки:\n"

// GatewaySettings are the generation parameters per request kind.
type GatewaySettings struct {
	QuestionModel       string
	QuestionMaxTokens   int
	QuestionTemperature float64
	DocumentModel       string
	DocumentMaxTokens   int
	AnalyzeTemperature  float64
	EditTemperature     float64
	CreateTemperature   float64
}

func DefaultGatewaySettings() GatewaySettings {
	return GatewaySettings{
		QuestionMaxTokens:   2000,
		QuestionTemperature: 0.2,
		DocumentMaxTokens:   3000,
		AnalyzeTemperature:  0.3,
		EditTemperature:     0.7,
		CreateTemperature:   0.7,
	}
}

// RemoteGateway turns user requests into backend calls. It never returns an
// error: a failed call yields an apology in RemoteResponse.Text and the cause
// in RemoteResponse.Err.
type RemoteGateway struct {
	questions interfaces.ChatCompleter
	documents interfaces.ChatCompleter
	catalog   *prompts.Catalog
	settings  GatewaySettings
	logger    *slog.Logger
}

type GatewayOption func(*RemoteGateway)

func WithGatewaySettings(s GatewaySettings) GatewayOption {
	return func(g *RemoteGateway) { g.settings = s }
}

func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *RemoteGateway) { g.logger = l }
}

func NewRemoteGateway(questions, documents interfaces.ChatCompleter, catalog *prompts.Catalog, opts ...GatewayOption) *RemoteGateway {
	if catalog == nil {
		catalog = prompts.Default()
	}
	g := &RemoteGateway{
		questions: questions,
		documents: documents,
		catalog:   catalog,
		settings:  DefaultGatewaySettings(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AskQuestion answers a free-form legal question.
func (g *RemoteGateway) AskQuestion(ctx context.Context, question string) entities.RemoteResponse {
	req := entities.RemoteRequest{
		Model:       g.settings.QuestionModel,
		System:      g.catalog.System.Question,
		Prompt:      question,
		MaxTokens:   g.settings.QuestionMaxTokens,
		Temperature: g.settings.QuestionTemperature,
	}
	return g.call(ctx, "questions", g.questions, req, g.catalog.Apologies.Question)
}

// ProcessDocument runs one document flow. For create the document text is
// empty and instruction carries the user's description.
func (g *RemoteGateway) ProcessDocument(ctx context.Context, variant entities.DocumentVariant, instruction, documentText string) entities.RemoteResponse {
	temperature := g.settings.AnalyzeTemperature
	switch variant {
	case entities.DocumentEdit:
		temperature = g.settings.EditTemperature
	case entities.DocumentCreate:
		temperature = g.settings.CreateTemperature
	}

	payload := instruction
	if documentText != "" {
		payload += documentPayloadSeparator + TruncateRunes(documentText, MaxDocumentChars)
	}

	req := entities.RemoteRequest{
		Model:       g.settings.DocumentModel,
		System:      g.catalog.Directive(variant),
		Prompt:      payload,
		MaxTokens:   g.settings.DocumentMaxTokens,
		Temperature: temperature,
	}
	return g.call(ctx, "documents", g.documents, req, g.catalog.Apologies.Document)
}

func (g *RemoteGateway) call(ctx context.Context, backend string, c interfaces.ChatCompleter, req entities.RemoteRequest, apology string) entities.RemoteResponse {
	start := time.Now()
	text, err := c.Complete(ctx, req)
	metrics.RemoteRequestDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyRemoteAnswer
	}
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(backend, "error").Inc()
		g.logger.Error("remote request failed", "backend", backend, "duration", time.Since(start), "error", err)
		return entities.RemoteResponse{Text: apology, Err: fmt.Errorf("%s backend: %w", backend, err)}
	}

	metrics.RemoteRequestsTotal.WithLabelValues(backend, "ok").Inc()
	return entities.RemoteResponse{Text: strings.TrimSpace(text)}
}
