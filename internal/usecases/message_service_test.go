package usecases

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/infrastructure"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/prompts"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser int64 = 42

type harness struct {
	svc       *MessageService
	tr        *fakeTransport
	questions *fakeCompleter
	documents *fakeCompleter
	extractor *fakeExtractor
	renderer  *fakeRenderer
	quotas    *repository.QuotaStore
	snap      *repository.MemorySnapshotter
	sessions  *infrastructure.SessionManager
	usage     *memoryUsageLog
	cat       *prompts.Catalog
}

func newHarness(t *testing.T, cfg ServiceConfig, quotaOpts ...repository.QuotaOption) *harness {
	t.Helper()
	h := &harness{
		tr:        &fakeTransport{},
		questions: &fakeCompleter{reply: "**Да**, можно [1]"},
		documents: &fakeCompleter{reply: "Анализ документа"},
		extractor: &fakeExtractor{text: "Договор поставки товара между сторонами"},
		renderer:  &fakeRenderer{},
		snap:      repository.NewMemorySnapshotter(),
		sessions:  infrastructure.NewSessionManager(time.Hour),
		usage:     &memoryUsageLog{},
		cat:       prompts.Default(),
	}
	h.quotas = repository.NewQuotaStore(h.snap, quotaOpts...)
	gateway := NewRemoteGateway(h.questions, h.documents, h.cat)
	pipeline := NewDocumentPipeline(gateway, h.extractor, h.renderer, h.cat)
	if cfg.TypingInterval == 0 {
		cfg.TypingInterval = 5 * time.Millisecond
	}
	h.svc = NewMessageService(h.sessions, h.quotas, gateway, pipeline, h.usage, h.cat, cfg)
	h.svc.RegisterTransport(entities.PlatformTelegram, h.tr)
	return h
}

func (h *harness) event(kind entities.EventKind) entities.Event {
	return entities.Event{
		ID:       "evt",
		Kind:     kind,
		Platform: entities.PlatformTelegram,
		UserID:   testUser,
		ChatID:   "42",
		Username: "ivan",
	}
}

func (h *harness) handle(t *testing.T, ev entities.Event) {
	t.Helper()
	require.NoError(t, h.svc.HandleEvent(context.Background(), ev))
}

func (h *harness) press(t *testing.T, a entities.Action) {
	ev := h.event(entities.EventButton)
	ev.Action = a
	ev.Source = entities.MessageRef{ChatID: "42", MessageID: "100"}
	h.handle(t, ev)
}

func (h *harness) text(t *testing.T, s string) {
	ev := h.event(entities.EventText)
	ev.Text = s
	h.handle(t, ev)
}

func (h *harness) upload(t *testing.T, name string, size int64, fetched *atomic.Int32) {
	ev := h.event(entities.EventFile)
	ev.File = &entities.FileRef{
		Name: name,
		Size: size,
		Fetch: func(context.Context) ([]byte, error) {
			if fetched != nil {
				fetched.Add(1)
			}
			return []byte("raw"), nil
		},
	}
	h.handle(t, ev)
}

func (h *harness) setMode(m entities.Mode) {
	s, release := h.sessions.Acquire(testUser)
	s.State.Mode = m
	release()
}

func (h *harness) mode(t *testing.T) entities.Mode {
	st, ok := h.sessions.Peek(testUser)
	require.True(t, ok)
	return st.Mode
}

func TestQuestionFlowEndToEnd(t *testing.T) {
	h := newHarness(t, ServiceConfig{})

	start := h.event(entities.EventCommand)
	start.Command = "start"
	h.handle(t, start)
	require.Len(t, h.tr.Sent(), 1)
	assert.Contains(t, h.tr.Sent()[0], "Здравствуйте")

	h.press(t, entities.ActionAskQuestion)
	assert.Equal(t, entities.ModeAwaitingQuestion, h.mode(t))
	edits := 0
	for _, c := range h.tr.Calls() {
		if c.Op == "edit" {
			edits++
			assert.Contains(t, c.Text, "<b>10</b>")
		}
	}
	assert.Equal(t, 1, edits)

	h.text(t, "Можно ли вернуть товар надлежащего качества?")

	placeholder := h.tr.indexOfSend(h.cat.Texts.WaitingQuestion)
	firstTyping := h.tr.indexOf("typing")
	lastTyping := h.tr.lastIndex("typing")
	deleted := h.tr.lastIndex("delete")
	answer := h.tr.indexOfSend("<b>Да</b>, можно")
	next := h.tr.indexOfSend(h.cat.Texts.NextAction)

	require.GreaterOrEqual(t, placeholder, 0)
	assert.Greater(t, firstTyping, placeholder)
	assert.Less(t, firstTyping, deleted, "indicator signalled while the call was in flight")
	assert.Greater(t, deleted, lastTyping, "indicator stopped before cleanup")
	assert.Greater(t, answer, deleted, "reply delivered after indicator stopped")
	assert.Greater(t, next, answer)

	calls := h.tr.Calls()
	assert.Contains(t, calls[answer].Text, h.cat.Texts.QuestionFooter)
	assert.True(t, calls[answer].Opts.RichText)
	assert.NotNil(t, calls[next].Opts.Menu)

	st := h.quotas.Status(testUser)
	assert.Equal(t, 1, st.QuestionsUsed)
	assert.Equal(t, 9, st.QuestionsRemaining)
	assert.Equal(t, 1, h.snap.Saves())
	assert.Equal(t, entities.ModeIdle, h.mode(t))
	assert.Equal(t, []string{"start", "button_ask_question", "ask_question"}, h.usage.Actions())
}

func TestQuestionRemoteFailureIsNotCharged(t *testing.T) {
	h := newHarness(t, ServiceConfig{})
	h.questions.err = errBoom

	h.press(t, entities.ActionAskQuestion)
	h.text(t, "Вопрос про аренду")

	assert.GreaterOrEqual(t, h.tr.indexOfSend(h.cat.Apologies.Question), 0)
	assert.Equal(t, 0, h.quotas.Status(testUser).QuestionsUsed)
	assert.Equal(t, entities.ModeIdle, h.mode(t))
}

func TestQuestionLimitGatesButton(t *testing.T) {
	h := newHarness(t, ServiceConfig{}, repository.WithLimits(1, 10))
	h.quotas.IncrementQuestions(context.Background(), testUser)

	h.press(t, entities.ActionAskQuestion)

	assert.Equal(t, entities.ModeIdle, h.mode(t))
	var limitShown bool
	for _, c := range h.tr.Calls() {
		if strings.Contains(c.Text, "(1 в день)") {
			limitShown = true
		}
	}
	assert.True(t, limitShown)
	assert.Empty(t, h.questions.Requests())
}

func TestQuestionLimitRecheckedOnSubmit(t *testing.T) {
	h := newHarness(t, ServiceConfig{}, repository.WithLimits(1, 10))
	h.press(t, entities.ActionAskQuestion)
	h.quotas.IncrementQuestions(context.Background(), testUser)

	h.text(t, "Вопрос про наследство")

	assert.Empty(t, h.questions.Requests())
	assert.Equal(t, entities.ModeIdle, h.mode(t))
}

func TestDocumentQuotaRejectionSkipsAllWork(t *testing.T) {
	h := newHarness(t, ServiceConfig{}, repository.WithLimits(10, 1))
	h.quotas.IncrementDocuments(context.Background(), testUser)
	h.setMode(entities.ModeAwaitingAnalyzeUpload)
	before := h.quotas.Status(testUser)

	var fetched atomic.Int32
	h.upload(t, "contract.docx", 1024, &fetched)

	assert.Zero(t, fetched.Load())
	assert.Zero(t, h.extractor.Calls())
	assert.Empty(t, h.documents.Requests())
	assert.Equal(t, before, h.quotas.Status(testUser))
	assert.GreaterOrEqual(t, h.tr.indexOfSend("(1 в день)"), 0)
	assert.Equal(t, entities.ModeIdle, h.mode(t))
	assert.Zero(t, h.tr.Count("typing"))
}

func TestEditRejectsPDFBeforeDownload(t *testing.T) {
	h := newHarness(t, ServiceConfig{})
	h.press(t, entities.ActionEditDocument)

	var fetched atomic.Int32
	h.upload(t, "contract.pdf", 1024, &fetched)

	assert.Zero(t, fetched.Load())
	assert.Empty(t, h.documents.Requests())
	assert.GreaterOrEqual(t, h.tr.indexOfSend("PDF файлы нельзя редактировать"), 0)
	assert.Equal(t, entities.ModeIdle, h.mode(t))
	assert.Equal(t, 0, h.quotas.Status(testUser).DocumentsUsed)
}

func TestRejectionKeepsModeWhenConfigured(t *testing.T) {
	h := newHarness(t, ServiceConfig{KeepModeOnReject: true})
	h.press(t, entities.ActionAnalyzeDocument)

	h.upload(t, "photo.jpg", 1024, nil)

	assert.Equal(t, entities.ModeAwaitingAnalyzeUpload, h.mode(t))
	sent := h.tr.Sent()
	last := sent[len(sent)-1]
	assert.Contains(t, last, h.cat.Texts.UnsupportedFormat)
	assert.Contains(t, last, h.cat.Texts.RetryHint)
}

func TestUnreadableDocumentIsRejected(t *testing.T) {
	h := newHarness(t, ServiceConfig{})
	h.extractor.text = "  "
	h.press(t, entities.ActionAnalyzeDocument)

	h.upload(t, "empty.txt", 10, nil)

	assert.GreaterOrEqual(t, h.tr.indexOfSend(h.cat.Texts.TooShort), 0)
	assert.Empty(t, h.documents.Requests())
	assert.Equal(t, 0, h.quotas.Status(testUser).DocumentsUsed)
	assert.Equal(t, entities.ModeIdle, h.mode(t))
	assert.Equal(t, 1, h.tr.Count("delete"), "placeholder cleaned up")
}

func TestAnalyzeFlowCharges(t *testing.T) {
	h := newHarness(t, ServiceConfig{})
	h.press(t, entities.ActionAnalyzeDocument)

	h.upload(t, "contract.pdf", 2048, nil)

	require.Len(t, h.documents.Requests(), 1)
	assert.GreaterOrEqual(t, h.tr.indexOfSend(h.cat.Texts.AnalysisHeader), 0)
	assert.Equal(t, 1, h.quotas.Status(testUser).DocumentsUsed)
	assert.Equal(t, entities.ModeIdle, h.mode(t))
	assert.Contains(t, h.usage.Actions(), "analyze_document_file")
}

func TestEditFlowSendsFile(t *testing.T) {
	h := newHarness(t, ServiceConfig{})
	h.documents.reply = "Исправленный текст договора"
	h.press(t, entities.ActionEditDocument)

	h.upload(t, "claim.txt", 100, nil)

	require.Equal(t, 1, h.tr.Count("file"))
	var file call
	for _, c := range h.tr.Calls() {
		if c.Op == "file" {
			file = c
		}
	}
	assert.Equal(t, "edited_claim.txt", file.File.Name)
	assert.Equal(t, h.cat.Texts.EditedCaption, file.Caption)
	assert.Equal(t, 1, h.quotas.Status(testUser).DocumentsUsed)
}

func TestCreateFlow(t *testing.T) {
	h := newHarness(t, ServiceConfig{Variant: entities.VariantCreate})
	h.documents.reply = "ДОГОВОР АРЕНДЫ\n\nТекст договора"

	h.press(t, entities.ActionCreateDocument)
	require.Equal(t, entities.ModeAwaitingCreateInstructions, h.mode(t))

	h.text(t, "кратко")
	assert.GreaterOrEqual(t, h.tr.indexOfSend(h.cat.Texts.EmptyInstructions), 0)
	assert.Equal(t, entities.ModeIdle, h.mode(t))
	assert.Empty(t, h.documents.Requests())

	h.press(t, entities.ActionCreateDocument)
	h.text(t, "Договор аренды однокомнатной квартиры на год")

	require.Len(t, h.documents.Requests(), 1)
	assert.Equal(t, 1, h.tr.Count("file"))
	assert.Equal(t, 1, h.quotas.Status(testUser).DocumentsUsed)
	assert.Equal(t, entities.ModeIdle, h.mode(t))
}

func TestUnrelatedInputReturnsToIdle(t *testing.T) {
	h := newHarness(t, ServiceConfig{})

	h.text(t, "привет")
	assert.Equal(t, h.cat.Texts.IdleHint, h.tr.Sent()[0])

	h.press(t, entities.ActionAskQuestion)
	h.upload(t, "a.txt", 10, nil)
	assert.Equal(t, entities.ModeIdle, h.mode(t))
	sent := h.tr.Sent()
	assert.Equal(t, h.cat.Texts.FileWithoutMode, sent[len(sent)-1])

	h.press(t, entities.ActionAnalyzeDocument)
	h.text(t, "вот мой документ")
	assert.Equal(t, entities.ModeIdle, h.mode(t))
	assert.Empty(t, h.documents.Requests())
}

func TestBackToMainClearsState(t *testing.T) {
	h := newHarness(t, ServiceConfig{})
	h.press(t, entities.ActionEditDocument)

	h.press(t, entities.ActionBackToMain)

	st, _ := h.sessions.Peek(testUser)
	assert.Equal(t, entities.ModeIdle, st.Mode)
	assert.Empty(t, st.PendingPayload)
}

func TestActionOutsideVariantShowsMainMenu(t *testing.T) {
	h := newHarness(t, ServiceConfig{Variant: entities.VariantEdit})

	h.press(t, entities.ActionCreateDocument)

	assert.Equal(t, entities.ModeIdle, h.mode(t))
	calls := h.tr.Calls()
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	assert.Equal(t, h.cat.Texts.MainMenu, last.Text)
	require.NotNil(t, last.Opts.Menu)
	for _, b := range last.Opts.Menu.Buttons {
		assert.NotEqual(t, entities.ActionCreateDocument, b.Action)
	}
}

func TestInfoShowsUsage(t *testing.T) {
	h := newHarness(t, ServiceConfig{})
	h.quotas.IncrementQuestions(context.Background(), testUser)

	h.press(t, entities.ActionInfo)

	calls := h.tr.Calls()
	last := calls[len(calls)-1]
	assert.Contains(t, last.Text, "Вопросы: 1/10")
	assert.Contains(t, last.Text, "Документы: 0/10")
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(t, ServiceConfig{})
	h.questions.onCall = func() { panic("backend exploded") }
	h.press(t, entities.ActionAskQuestion)

	h.text(t, "Вопрос про трудовой договор")

	sent := h.tr.Sent()
	assert.Equal(t, h.cat.Texts.GenericError, sent[len(sent)-1])
	assert.Equal(t, entities.ModeIdle, h.mode(t))
	assert.Equal(t, 0, h.quotas.Status(testUser).QuestionsUsed)
	n := h.tr.Count("typing")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, h.tr.Count("typing"), "indicator stopped after panic")
}

func TestUnknownPlatform(t *testing.T) {
	h := newHarness(t, ServiceConfig{})
	ev := h.event(entities.EventText)
	ev.Platform = entities.PlatformWhatsApp

	err := h.svc.HandleEvent(context.Background(), ev)

	assert.ErrorIs(t, err, ErrTransportNotFound)
}
