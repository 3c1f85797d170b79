package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/infrastructure"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/interfaces"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/metrics"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/prompts"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/repository"
)

// ServiceConfig tunes the conversation flow.
type ServiceConfig struct {
	Variant          entities.Variant
	KeepModeOnReject bool
	TypingInterval   time.Duration
}

// MessageService drives the per-user conversation: menu selections, quota
// gates, remote calls and replies.
type MessageService struct {
	mu         sync.RWMutex
	transports map[string]interfaces.Transport

	sessions *infrastructure.SessionManager
	quotas   *repository.QuotaStore
	gateway  *RemoteGateway
	pipeline *DocumentPipeline
	usage    interfaces.UsageLogger
	catalog  *prompts.Catalog
	cfg      ServiceConfig
	now      func() time.Time
	logger   *slog.Logger
}

type ServiceOption func(*MessageService)

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *MessageService) { s.logger = l }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *MessageService) { s.now = now }
}

func NewMessageService(
	sessions *infrastructure.SessionManager,
	quotas *repository.QuotaStore,
	gateway *RemoteGateway,
	pipeline *DocumentPipeline,
	usage interfaces.UsageLogger,
	catalog *prompts.Catalog,
	cfg ServiceConfig,
	opts ...ServiceOption,
) *MessageService {
	if catalog == nil {
		catalog = prompts.Default()
	}
	if cfg.Variant == "" {
		cfg.Variant = entities.VariantEdit
	}
	s := &MessageService{
		transports: make(map[string]interfaces.Transport),
		sessions:   sessions,
		quotas:     quotas,
		gateway:    gateway,
		pipeline:   pipeline,
		usage:      usage,
		catalog:    catalog,
		cfg:        cfg,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTransport routes replies for events of the given platform.
func (s *MessageService) RegisterTransport(platform string, t interfaces.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transports[platform] = t
}

func (s *MessageService) transport(platform string) (interfaces.Transport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transports[platform]
	return t, ok
}

func (s *MessageService) Variant() entities.Variant {
	return s.cfg.Variant
}

// MainMenu is the keyboard offered in idle state.
func (s *MessageService) MainMenu() *entities.Menu {
	m := &entities.Menu{}
	for _, a := range s.cfg.Variant.Actions() {
		m.Buttons = append(m.Buttons, entities.MenuButton{Label: s.catalog.Button(a), Action: a})
	}
	return m
}

func (s *MessageService) backMenu() *entities.Menu {
	return &entities.Menu{Buttons: []entities.MenuButton{{
		Label:  s.catalog.Button(entities.ActionBackToMain),
		Action: entities.ActionBackToMain,
	}}}
}

// turn is the context of one event being handled.
type turn struct {
	ev      entities.Event
	t       interfaces.Transport
	session *infrastructure.UserSession
	logger  *slog.Logger
}

func (tr *turn) mode() entities.Mode {
	return tr.session.State.Mode
}

// HandleEvent processes one inbound event. Events of the same user are
// handled one at a time.
func (s *MessageService) HandleEvent(ctx context.Context, ev entities.Event) error {
	metrics.EventsTotal.WithLabelValues(ev.Platform, string(ev.Kind)).Inc()

	t, ok := s.transport(ev.Platform)
	if !ok {
		return fmt.Errorf("%w: %q", ErrTransportNotFound, ev.Platform)
	}

	session, release := s.sessions.Acquire(ev.UserID)
	defer release()

	tr := &turn{
		ev:      ev,
		t:       t,
		session: session,
		logger:  s.logger.With("event_id", ev.ID, "user_id", ev.UserID, "platform", ev.Platform),
	}

	defer func() {
		if r := recover(); r != nil {
			tr.logger.Error("panic while handling event", "panic", r)
			session.State.Reset()
			s.send(ctx, tr, s.catalog.Texts.GenericError, entities.SendOptions{Menu: s.MainMenu()})
		}
	}()

	tr.logger.Debug("handling event", "kind", ev.Kind, "mode", tr.mode())

	switch ev.Kind {
	case entities.EventCommand:
		s.handleCommand(ctx, tr)
	case entities.EventButton:
		s.handleAction(ctx, tr)
	case entities.EventText:
		s.handleText(ctx, tr)
	case entities.EventFile:
		s.handleFile(ctx, tr)
	default:
		tr.logger.Warn("unknown event kind", "kind", ev.Kind)
	}
	return nil
}

func (s *MessageService) handleCommand(ctx context.Context, tr *turn) {
	switch tr.ev.Command {
	case "start":
		s.audit(tr, "start", "")
		tr.session.State.Reset()
		s.send(ctx, tr, s.catalog.Welcome(s.cfg.Variant), richMenu(s.MainMenu()))
	case "menu":
		tr.session.State.Reset()
		s.send(ctx, tr, s.catalog.Texts.MainMenu, richMenu(s.MainMenu()))
	default:
		tr.session.State.Reset()
		s.send(ctx, tr, s.catalog.Texts.IdleHint, entities.SendOptions{Menu: s.MainMenu()})
	}
}

func (s *MessageService) handleAction(ctx context.Context, tr *turn) {
	action := tr.ev.Action
	if action != entities.ActionBackToMain {
		s.audit(tr, "button_"+string(action), "")
	}
	if !s.cfg.Variant.Supports(action) {
		tr.logger.Warn("action not offered by this variant", "action", action)
		action = entities.ActionBackToMain
	}

	switch action {
	case entities.ActionBackToMain:
		tr.session.State.Reset()
		s.present(ctx, tr, s.catalog.Texts.MainMenu, s.MainMenu())

	case entities.ActionInfo:
		s.present(ctx, tr, s.catalog.Info(s.cfg.Variant, s.quotas.Status(tr.ev.UserID)), s.backMenu())

	case entities.ActionAskQuestion:
		if !s.quotas.CanAsk(tr.ev.UserID) {
			s.questionLimitReached(ctx, tr, true)
			return
		}
		s.enterMode(ctx, tr, entities.ModeAwaitingQuestion, s.quotas.Status(tr.ev.UserID).QuestionsRemaining)

	case entities.ActionAnalyzeDocument, entities.ActionEditDocument, entities.ActionCreateDocument:
		if !s.quotas.CanProcessDocument(tr.ev.UserID) {
			s.documentLimitReached(ctx, tr, true)
			return
		}
		s.enterMode(ctx, tr, modeFor(action), s.quotas.Status(tr.ev.UserID).DocumentsRemaining)
	}
}

func modeFor(a entities.Action) entities.Mode {
	switch a {
	case entities.ActionAskQuestion:
		return entities.ModeAwaitingQuestion
	case entities.ActionAnalyzeDocument:
		return entities.ModeAwaitingAnalyzeUpload
	case entities.ActionEditDocument:
		return entities.ModeAwaitingEditUpload
	case entities.ActionCreateDocument:
		return entities.ModeAwaitingCreateInstructions
	}
	return entities.ModeIdle
}

func (s *MessageService) enterMode(ctx context.Context, tr *turn, mode entities.Mode, remaining int) {
	tr.session.State.Mode = mode
	tr.session.State.PendingPayload = ""
	s.present(ctx, tr, s.catalog.ModePrompt(mode, remaining), s.backMenu())
}

func (s *MessageService) handleText(ctx context.Context, tr *turn) {
	switch tr.mode() {
	case entities.ModeAwaitingQuestion:
		s.askQuestion(ctx, tr)
	case entities.ModeAwaitingCreateInstructions:
		s.createDocument(ctx, tr)
	default:
		tr.session.State.Reset()
		s.send(ctx, tr, s.catalog.Texts.IdleHint, entities.SendOptions{Menu: s.MainMenu()})
	}
}

func (s *MessageService) askQuestion(ctx context.Context, tr *turn) {
	userID := tr.ev.UserID
	if !s.quotas.CanAsk(userID) {
		s.questionLimitReached(ctx, tr, false)
		return
	}
	s.audit(tr, "ask_question", tr.ev.Text)

	resp := RunBusy(ctx, s.busy(tr), tr.t, tr.ev.ChatID, s.catalog.Waiting(tr.mode()), func(ctx context.Context) entities.RemoteResponse {
		return s.gateway.AskQuestion(ctx, tr.ev.Text)
	})

	if resp.OK() {
		s.quotas.IncrementQuestions(ctx, userID)
		answer := NormalizeText(resp.Text) + "\n\n" + s.catalog.Texts.QuestionFooter
		s.sendChunks(ctx, tr, ChunkText(answer, MaxMessageChars))
	} else {
		tr.logger.Warn("question not answered", "error", resp.Err)
		s.send(ctx, tr, resp.Text, entities.SendOptions{})
	}
	s.finish(ctx, tr)
}

func (s *MessageService) createDocument(ctx context.Context, tr *turn) {
	userID := tr.ev.UserID
	description, err := ValidateInstructions(tr.ev.Text)
	if err != nil {
		s.reject(ctx, tr, err)
		return
	}
	if !s.quotas.CanProcessDocument(userID) {
		s.documentLimitReached(ctx, tr, false)
		return
	}
	s.audit(tr, "create_document", description)
	tr.session.State.PendingPayload = description

	d := RunBusy(ctx, s.busy(tr), tr.t, tr.ev.ChatID, s.catalog.Waiting(tr.mode()), func(ctx context.Context) Delivery {
		return s.pipeline.Create(ctx, description)
	})
	s.deliver(ctx, tr, d)
	s.finish(ctx, tr)
}

func (s *MessageService) handleFile(ctx context.Context, tr *turn) {
	mode := tr.mode()
	if !mode.AwaitsFile() || tr.ev.File == nil {
		tr.session.State.Reset()
		s.send(ctx, tr, s.catalog.Texts.FileWithoutMode, entities.SendOptions{Menu: s.MainMenu()})
		return
	}

	userID := tr.ev.UserID
	if !s.quotas.CanProcessDocument(userID) {
		s.documentLimitReached(ctx, tr, false)
		return
	}

	file := tr.ev.File
	ext, err := ValidateUpload(mode, file.Name, file.Size)
	if err != nil {
		s.reject(ctx, tr, err)
		return
	}

	auditAction := "analyze_document_file"
	if mode == entities.ModeAwaitingEditUpload {
		auditAction = "edit_document_file"
	}
	s.audit(tr, auditAction, file.Name)

	d := RunBusy(ctx, s.busy(tr), tr.t, tr.ev.ChatID, s.catalog.Waiting(mode), func(ctx context.Context) Delivery {
		data, err := file.Fetch(ctx)
		if err != nil {
			return Delivery{Texts: []string{s.catalog.Texts.DownloadFailed}, Err: fmt.Errorf("download %q: %w", file.Name, err)}
		}
		text, err := s.pipeline.PrepareText(data, ext)
		if err != nil {
			return Delivery{Err: err}
		}
		if mode == entities.ModeAwaitingEditUpload {
			return s.pipeline.Edit(ctx, file.Name, ext, text)
		}
		return s.pipeline.Analyze(ctx, text)
	})

	if errors.Is(d.Err, ErrUnreadable) || errors.Is(d.Err, ErrTooShort) {
		s.reject(ctx, tr, d.Err)
		return
	}
	s.deliver(ctx, tr, d)
	s.finish(ctx, tr)
}

// deliver sends a flow's outcome and charges the document quota when the
// remote backend answered.
func (s *MessageService) deliver(ctx context.Context, tr *turn, d Delivery) {
	if d.Err != nil {
		tr.logger.Warn("document flow degraded", "error", d.Err)
	}
	if d.Charge {
		s.quotas.IncrementDocuments(ctx, tr.ev.UserID)
	}
	if d.File != nil {
		if err := tr.t.SendFile(ctx, tr.ev.ChatID, *d.File, d.Caption); err != nil {
			tr.logger.Error("send file failed", "file", d.File.Name, "error", err)
			s.send(ctx, tr, s.catalog.Texts.GenericError, entities.SendOptions{})
		}
	}
	s.sendChunks(ctx, tr, d.Texts)
}

// reject explains a validation failure. The awaiting mode is kept only when
// configured.
func (s *MessageService) reject(ctx context.Context, tr *turn, err error) {
	reason := rejectionReason(err)
	metrics.ValidationRejectionsTotal.WithLabelValues(reason).Inc()
	tr.logger.Info("input rejected", "reason", reason, "error", err)

	text := s.rejectionText(err)
	if s.cfg.KeepModeOnReject {
		s.send(ctx, tr, text+"\n\n"+s.catalog.Texts.RetryHint, richMenu(s.backMenu()))
		return
	}
	tr.session.State.Reset()
	s.send(ctx, tr, text, richMenu(s.MainMenu()))
}

func (s *MessageService) rejectionText(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return s.catalog.Texts.FileTooLarge
	case errors.Is(err, ErrUnsupportedFormat):
		return s.catalog.Texts.UnsupportedFormat
	case errors.Is(err, ErrNotEditable):
		return s.catalog.Texts.PDFNotEditable
	case errors.Is(err, ErrUnreadable):
		return s.catalog.Texts.Unreadable
	case errors.Is(err, ErrTooShort):
		return s.catalog.Texts.TooShort
	case errors.Is(err, ErrEmptyInstructions):
		return s.catalog.Texts.EmptyInstructions
	}
	return s.catalog.Texts.GenericError
}

func (s *MessageService) questionLimitReached(ctx context.Context, tr *turn, fromButton bool) {
	metrics.QuotaRejectionsTotal.WithLabelValues("questions").Inc()
	questions, _ := s.quotas.Limits()
	s.limitReached(ctx, tr, fmt.Errorf("%w: questions", ErrQuotaExceeded), s.catalog.QuestionLimit(questions), fromButton)
}

func (s *MessageService) documentLimitReached(ctx context.Context, tr *turn, fromButton bool) {
	metrics.QuotaRejectionsTotal.WithLabelValues("documents").Inc()
	_, documents := s.quotas.Limits()
	s.limitReached(ctx, tr, fmt.Errorf("%w: documents", ErrQuotaExceeded), s.catalog.DocumentLimit(documents), fromButton)
}

func (s *MessageService) limitReached(ctx context.Context, tr *turn, cause error, text string, fromButton bool) {
	tr.logger.Info("daily limit reached", "error", cause)
	tr.session.State.Reset()
	if fromButton {
		s.present(ctx, tr, text, s.MainMenu())
		return
	}
	s.send(ctx, tr, text, richMenu(s.MainMenu()))
}

// finish closes a flow: offer the menu again and go idle.
func (s *MessageService) finish(ctx context.Context, tr *turn) {
	tr.session.State.Reset()
	s.send(ctx, tr, s.catalog.Texts.NextAction, entities.SendOptions{Menu: s.MainMenu()})
}

func (s *MessageService) busy(tr *turn) *BusyIndicator {
	return NewBusyIndicator(tr.t, s.cfg.TypingInterval, tr.logger)
}

// present replaces the message that carried the pressed button, or sends a
// new one when there is nothing to replace.
func (s *MessageService) present(ctx context.Context, tr *turn, text string, menu *entities.Menu) {
	opts := richMenu(menu)
	if !tr.ev.Source.IsZero() {
		err := tr.t.EditText(ctx, tr.ev.Source, text, opts)
		if err == nil {
			return
		}
		tr.logger.Debug("edit failed, sending new message", "error", err)
	}
	s.send(ctx, tr, text, opts)
}

func (s *MessageService) sendChunks(ctx context.Context, tr *turn, chunks []string) {
	for _, c := range chunks {
		s.send(ctx, tr, c, entities.SendOptions{RichText: true, DisablePreview: true})
	}
}

func (s *MessageService) send(ctx context.Context, tr *turn, text string, opts entities.SendOptions) {
	if _, err := tr.t.SendText(ctx, tr.ev.ChatID, text, opts); err != nil {
		tr.logger.Error("send failed", "error", err)
	}
}

func (s *MessageService) audit(tr *turn, action, query string) {
	if s.usage == nil {
		return
	}
	entry := entities.NewUsageLogEntry(s.now(), tr.ev.UserID, tr.ev.Username, action, query)
	if err := s.usage.Append(entry); err != nil {
		tr.logger.Warn("usage log append failed", "action", action, "error", err)
	}
}

func richMenu(m *entities.Menu) entities.SendOptions {
	return entities.SendOptions{Menu: m, RichText: true, DisablePreview: true}
}
