package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/streamforge/chatcore/internal/agent"
	"github.com/streamforge/chatcore/internal/agentregistry"
	"github.com/streamforge/chatcore/internal/config"
	"github.com/streamforge/chatcore/internal/tools"
	"github.com/streamforge/chatcore/pkg/streamevent"
)

type fakeProvider struct{ chunks []*agent.CompletionChunk }

func (f *fakeProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	out := make(chan *agent.CompletionChunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}
func (f *fakeProvider) Name() string        { return "fake" }
func (f *fakeProvider) Models() []agent.Model { return nil }
func (f *fakeProvider) SupportsTools() bool { return true }

func newTestServer(provider agent.LLMProvider) *Server {
	return &Server{
		cfg: &config.Config{
			Server: config.ServerConfig{StreamTimeout: 2 * time.Second},
			Title:  config.TitleConfig{MaxLength: 50, Timeout: 2 * time.Second},
		},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		provider: provider,
		agents:   agentregistry.New(),
		tools:    tools.NewRegistry(),
	}
}

func chatBody(t *testing.T, agentName string, text string) *bytes.Reader {
	t.Helper()
	body := map[string]any{
		"agent": agentName,
		"messages": []map[string]any{
			{"id": "m1", "role": "user", "parts": []map[string]any{{"type": "text", "text": text}}},
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(data)
}

func parseSSEEvents(t *testing.T, body string) []streamevent.Event {
	t.Helper()
	var events []streamevent.Event
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev streamevent.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		events = append(events, ev)
	}
	return events
}

func TestHandleChatHappyPath(t *testing.T) {
	server := newTestServer(&fakeProvider{chunks: []*agent.CompletionChunk{
		{Text: "hi there"},
		{Done: true},
	}})

	req := httptest.NewRequest("POST", "/chat", chatBody(t, "main", "hello"))
	rec := httptest.NewRecorder()
	server.handleChat(rec, req)

	events := parseSSEEvents(t, rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("events = %+v, want 2", events)
	}
	if events[0].Type != streamevent.TypeTextDelta || events[0].TextDelta != "hi there" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Type != streamevent.TypeFinish {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestHandleChatEmptyMessagesIsUnprocessable(t *testing.T) {
	server := newTestServer(&fakeProvider{})
	body, err := json.Marshal(map[string]any{"agent": "main", "messages": []any{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest("POST", "/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.handleChat(rec, req)

	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHandleChatUnknownAgentIsInBandError(t *testing.T) {
	server := newTestServer(&fakeProvider{})
	req := httptest.NewRequest("POST", "/chat", chatBody(t, "does-not-exist", "hi"))
	rec := httptest.NewRecorder()
	server.handleChat(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200 (in-band error, not pre-stream failure)", rec.Code)
	}
	events := parseSSEEvents(t, rec.Body.String())
	if len(events) != 1 || events[0].Type != streamevent.TypeError {
		t.Fatalf("events = %+v, want [error]", events)
	}
	if !strings.Contains(events[0].Error, "unknown agent") {
		t.Errorf("error message = %q", events[0].Error)
	}
}

func TestHandleTitleGenerateReturnsPlainJSON(t *testing.T) {
	server := newTestServer(&fakeProvider{chunks: []*agent.CompletionChunk{
		{Text: "Chat "},
		{Text: "about Go"},
		{Done: true},
	}})

	body, err := json.Marshal(titleRequest{UserMessage: "what's this about?", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest("POST", "/title/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.handleTitleGenerate(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp titleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.UseFallback {
		t.Fatalf("resp = %+v, want useFallback=false", resp)
	}
	if resp.Title != "Chat about Go" {
		t.Errorf("title = %q, want %q", resp.Title, "Chat about Go")
	}
}

func TestHandleTitleGenerateMissingUserMessageFallsBack(t *testing.T) {
	server := newTestServer(&fakeProvider{})

	body, err := json.Marshal(titleRequest{ConversationID: "c1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest("POST", "/title/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.handleTitleGenerate(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp titleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.UseFallback || resp.Title != "" {
		t.Errorf("resp = %+v, want {title: \"\", useFallback: true}", resp)
	}
}

func TestPostProcessTitleTruncatesAtWordBoundary(t *testing.T) {
	got := postProcessTitle(`"A very long conversation about distributed systems design"`, 30)
	if len(got) > 30 {
		t.Errorf("postProcessTitle result too long: %q (%d bytes)", got, len(got))
	}
	if strings.HasPrefix(got, `"`) || strings.HasSuffix(got, `"`) {
		t.Errorf("postProcessTitle left quotes in place: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("postProcessTitle did not truncate with ellipsis: %q", got)
	}
}

func TestPostProcessTitleShortStringPassesThrough(t *testing.T) {
	got := postProcessTitle("  'Short title'  ", 50)
	if got != "Short title" {
		t.Errorf("postProcessTitle = %q, want %q", got, "Short title")
	}
}
