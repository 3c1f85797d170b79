package usecases

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteGateway_AskQuestion(t *testing.T) {
	q := &fakeCompleter{reply: "  Ответ по ст. 10 ГК РФ \n"}
	g := NewRemoteGateway(q, &fakeCompleter{}, nil)

	resp := g.AskQuestion(context.Background(), "Можно ли вернуть товар?")

	require.True(t, resp.OK())
	assert.Equal(t, "Ответ по ст. 10 ГК РФ", resp.Text)
	reqs := q.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, prompts.Default().System.Question, reqs[0].System)
	assert.Equal(t, "Можно ли вернуть товар?", reqs[0].Prompt)
	assert.Equal(t, 2000, reqs[0].MaxTokens)
	assert.InDelta(t, 0.2, reqs[0].Temperature, 1e-9)
}

func TestRemoteGateway_FailureBecomesApology(t *testing.T) {
	tests := []struct {
		name string
		c    *fakeCompleter
	}{
		{"transport error", &fakeCompleter{err: errBoom}},
		{"empty answer", &fakeCompleter{reply: "  \n "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewRemoteGateway(tt.c, tt.c, nil)

			q := g.AskQuestion(context.Background(), "вопрос")
			assert.False(t, q.OK())
			assert.Equal(t, prompts.Default().Apologies.Question, q.Text)

			d := g.ProcessDocument(context.Background(), entities.DocumentAnalyze, "инструкция", "текст")
			assert.False(t, d.OK())
			assert.Equal(t, prompts.Default().Apologies.Document, d.Text)
		})
	}

	g := NewRemoteGateway(&fakeCompleter{reply: ""}, nil, nil)
	assert.ErrorIs(t, g.AskQuestion(context.Background(), "x").Err, ErrEmptyRemoteAnswer)
}

func TestRemoteGateway_ProcessDocumentPayload(t *testing.T) {
	d := &fakeCompleter{reply: "ok"}
	g := NewRemoteGateway(&fakeCompleter{}, d, nil)
	cat := prompts.Default()

	long := strings.Repeat("я", MaxDocumentChars+500)
	g.ProcessDocument(context.Background(), entities.DocumentAnalyze, cat.Instruction(entities.DocumentAnalyze), long)
	g.ProcessDocument(context.Background(), entities.DocumentEdit, cat.Instruction(entities.DocumentEdit), "текст договора")
	g.ProcessDocument(context.Background(), entities.DocumentCreate, "Составь договор аренды", "")

	reqs := d.Requests()
	require.Len(t, reqs, 3)

	analyze := reqs[0]
	assert.Equal(t, cat.System.Analyze, analyze.System)
	assert.InDelta(t, 0.3, analyze.Temperature, 1e-9)
	assert.Equal(t, 3000, analyze.MaxTokens)
	prefix := cat.Instruction(entities.DocumentAnalyze) + "\n\nДокумент для обработки:\n"
	require.True(t, strings.HasPrefix(analyze.Prompt, prefix))
	assert.Equal(t, MaxDocumentChars, utf8.RuneCountInString(strings.TrimPrefix(analyze.Prompt, prefix)))

	edit := reqs[1]
	assert.Equal(t, cat.System.Edit, edit.System)
	assert.InDelta(t, 0.7, edit.Temperature, 1e-9)
	assert.True(t, strings.HasSuffix(edit.Prompt, "\n\nДокумент для обработки:\nтекст договора"))

	create := reqs[2]
	assert.Equal(t, cat.System.Create, create.System)
	assert.Equal(t, "Составь договор аренды", create.Prompt)
}

func TestRemoteGateway_Settings(t *testing.T) {
	q := &fakeCompleter{reply: "ok"}
	s := DefaultGatewaySettings()
	s.QuestionModel = "sonar"
	s.QuestionMaxTokens = 10
	g := NewRemoteGateway(q, q, nil, WithGatewaySettings(s))

	g.AskQuestion(context.Background(), "x")

	req := q.Requests()[0]
	assert.Equal(t, "sonar", req.Model)
	assert.Equal(t, 10, req.MaxTokens)
}
