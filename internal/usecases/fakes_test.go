package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

// call is one recorded transport interaction.
type call struct {
	Op      string // send, edit, delete, file, typing
	ChatID  string
	Text    string
	Opts    entities.SendOptions
	File    entities.RenderedFile
	Ref     entities.MessageRef
	Caption string
}

type fakeTransport struct {
	mu        sync.Mutex
	calls     []call
	nextID    int
	deleteErr error
	fileErr   error
}

func (f *fakeTransport) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeTransport) SendTyping(_ context.Context, chatID string) error {
	f.record(call{Op: "typing", ChatID: chatID})
	return nil
}

func (f *fakeTransport) SendText(_ context.Context, chatID, text string, opts entities.SendOptions) (entities.MessageRef, error) {
	f.mu.Lock()
	f.nextID++
	ref := entities.MessageRef{ChatID: chatID, MessageID: fmt.Sprint(f.nextID)}
	f.calls = append(f.calls, call{Op: "send", ChatID: chatID, Text: text, Opts: opts, Ref: ref})
	f.mu.Unlock()
	return ref, nil
}

func (f *fakeTransport) EditText(_ context.Context, ref entities.MessageRef, text string, opts entities.SendOptions) error {
	f.record(call{Op: "edit", ChatID: ref.ChatID, Text: text, Opts: opts, Ref: ref})
	return nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, ref entities.MessageRef) error {
	f.record(call{Op: "delete", ChatID: ref.ChatID, Ref: ref})
	return f.deleteErr
}

func (f *fakeTransport) SendFile(_ context.Context, chatID string, file entities.RenderedFile, caption string) error {
	if f.fileErr != nil {
		return f.fileErr
	}
	f.record(call{Op: "file", ChatID: chatID, File: file, Caption: caption})
	return nil
}

func (f *fakeTransport) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTransport) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Sent returns the texts of all send calls.
func (f *fakeTransport) Sent() []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Op == "send" {
			out = append(out, c.Text)
		}
	}
	return out
}

func (f *fakeTransport) indexOf(op string) int {
	for i, c := range f.Calls() {
		if c.Op == op {
			return i
		}
	}
	return -1
}

func (f *fakeTransport) lastIndex(op string) int {
	idx := -1
	for i, c := range f.Calls() {
		if c.Op == op {
			idx = i
		}
	}
	return idx
}

func (f *fakeTransport) indexOfSend(substr string) int {
	for i, c := range f.Calls() {
		if c.Op == "send" && strings.Contains(c.Text, substr) {
			return i
		}
	}
	return -1
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []entities.RemoteRequest
	reply    string
	err      error
	onCall   func()
}

func (f *fakeCompleter) Complete(_ context.Context, req entities.RemoteRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.reply, f.err
}

func (f *fakeCompleter) Requests() []entities.RemoteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entities.RemoteRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeExtractor struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRenderer struct {
	blocks [][]entities.DocBlock
	err    error
}

func (f *fakeRenderer) RenderDocx(blocks []entities.DocBlock) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.blocks = append(f.blocks, blocks)
	return []byte("PK-docx"), nil
}

type memoryUsageLog struct {
	mu      sync.Mutex
	entries []entities.UsageLogEntry
}

func (m *memoryUsageLog) Append(e entities.UsageLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryUsageLog) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

var errBoom = errors.New("boom")
