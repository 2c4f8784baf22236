// Package agent implements the ChatAgent: a per-request wrapper around an
// LLMProvider that projects its streamed completion chunks into the
// closed streamevent.Event taxonomy.
package agent

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"github.com/streamforge/chatcore/internal/agent/providers"
	"github.com/streamforge/chatcore/internal/backoff"
	"github.com/streamforge/chatcore/internal/chatmodel"
	"github.com/streamforge/chatcore/pkg/streamevent"
)

// ToolExecutor runs a finalized tool call and returns its result. The
// tools.Registry satisfies this directly.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
}

// ChatAgent is constructed once per request with the resolved model,
// system prompt, and enabled tool subset — either from the default path
// or from an agentregistry.Descriptor override.
type ChatAgent struct {
	Provider     LLMProvider
	Tools        ToolExecutor
	ToolDecls    []ToolDeclaration
	Model        string
	SystemPrompt string
	Streaming    bool

	// MaxConnectAttempts bounds the initial-connection retry loop (§4.8).
	// Zero or negative uses defaultMaxConnectAttempts (3).
	MaxConnectAttempts int
}

// DefaultRetryPolicy is the backoff schedule named in §4.8: base 1s,
// factor 2, capped at 4s. connect applies its Jitter as ±20% around each
// delay; with 3 attempts it waits about 1s and then about 2s between them.
func DefaultRetryPolicy() backoff.BackoffPolicy {
	return backoff.BackoffPolicy{InitialMs: 1000, MaxMs: 4000, Factor: 2, Jitter: 0.2}
}

const defaultMaxConnectAttempts = 3

// Run executes the conversation against the upstream provider and returns
// a channel of projected StreamEvents, terminated by exactly one finish or
// error event. The returned channel is closed after the terminal event.
func (a *ChatAgent) Run(ctx context.Context, messages []chatmodel.LLMMessage) <-chan streamevent.Event {
	out := make(chan streamevent.Event)
	go a.run(ctx, messages, out)
	return out
}

func (a *ChatAgent) run(ctx context.Context, messages []chatmodel.LLMMessage, out chan<- streamevent.Event) {
	defer close(out)

	system := a.SystemPrompt
	for _, m := range messages {
		if m.Kind == chatmodel.LLMSystem && m.Text != "" {
			if system != "" {
				system += "\n"
			}
			system += m.Text
		}
	}

	req := &CompletionRequest{
		Model:     a.Model,
		System:    system,
		Messages:  toCompletionMessages(messages),
		Tools:     a.ToolDecls,
		Stream:    a.Streaming,
	}

	chunks, err := a.connect(ctx, req)
	if err != nil {
		emit(ctx, out, streamevent.ErrorEvent(err.Error()))
		return
	}

	if a.Streaming {
		a.projectStreaming(ctx, chunks, out)
	} else {
		a.projectBuffered(ctx, chunks, out)
	}
}

// connect opens the upstream call, retrying only the initial connection
// per §4.8's policy. Once chunks start flowing there is no further retry.
func (a *ChatAgent) connect(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	maxAttempts := a.MaxConnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxConnectAttempts
	}
	policy := DefaultRetryPolicy()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := a.Provider.Complete(ctx, req)
		if err == nil {
			return chunks, nil
		}
		lastErr = err
		if !providers.IsRetryable(err) || attempt == maxAttempts {
			return nil, lastErr
		}
		base := backoff.ComputeBackoffWithRand(policy, attempt, 0)
		delay := time.Duration(float64(base) * (1 + policy.Jitter*(2*rand.Float64()-1))) // #nosec G404 -- jitter does not require cryptographic randomness
		if err := backoff.SleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// pendingCall buffers an in-progress tool-call's argument fragments.
type pendingCall struct {
	name string
	args strings.Builder
}

// projectStreaming implements §4.3's event projection rules directly over
// the upstream chunk stream.
func (a *ChatAgent) projectStreaming(ctx context.Context, chunks <-chan *CompletionChunk, out chan<- streamevent.Event) {
	pending := map[string]*pendingCall{}

	for chunk := range chunks {
		if ctx.Err() != nil {
			return
		}
		switch {
		case chunk.Error != nil:
			emit(ctx, out, streamevent.ErrorEvent(chunk.Error.Error()))
			return

		case chunk.ToolCallDelta != nil:
			if !a.handleToolCallDelta(ctx, chunk.ToolCallDelta, pending, out) {
				return
			}

		case chunk.Text != "":
			emit(ctx, out, streamevent.TextDeltaEvent(chunk.Text))

		case chunk.Done:
			if len(pending) > 0 {
				// Open Question resolution: an unfinalized tool-call
				// buffer at stream end is a ParseFailure.
				emit(ctx, out, streamevent.ErrorEvent("tool call arguments ended without completing"))
				return
			}
			emit(ctx, out, streamevent.FinishEvent())
			return
		}
	}

	// Provider closed the channel without a Done chunk: the framer's
	// terminal-event guarantee would catch this too, but the agent emits
	// its own diagnostic first.
	emit(ctx, out, streamevent.ErrorEvent("stream ended without terminator"))
}

// handleToolCallDelta accumulates one fragment and, if Final, finalizes
// the call: parse, emit tool-call, execute, emit tool-result. Returns
// false if the stream must terminate (parse failure or tool failure).
func (a *ChatAgent) handleToolCallDelta(ctx context.Context, delta *ToolCallDelta, pending map[string]*pendingCall, out chan<- streamevent.Event) bool {
	call, ok := pending[delta.ID]
	if !ok {
		call = &pendingCall{}
		pending[delta.ID] = call
	}
	if delta.Name != "" {
		call.name = delta.Name
	}
	call.args.WriteString(delta.ArgsFragment)

	if !delta.Final {
		return true
	}
	delete(pending, delta.ID)

	raw := call.args.String()
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	var parsed json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		emit(ctx, out, streamevent.ErrorEvent("tool call arguments are not valid JSON"))
		return false
	}

	emit(ctx, out, streamevent.ToolCallEvent(delta.ID, call.name, parsed))

	if a.Tools == nil {
		return true
	}
	result, err := a.Tools.Execute(ctx, call.name, parsed)
	if err != nil {
		emit(ctx, out, streamevent.ErrorEvent(err.Error()))
		return false
	}
	emit(ctx, out, streamevent.ToolResultEvent(delta.ID, result))
	return true
}

// projectBuffered implements the non-streaming replay mode: drain the
// provider channel fully, then replay as one text-delta, any tool events,
// and a finish.
func (a *ChatAgent) projectBuffered(ctx context.Context, chunks <-chan *CompletionChunk, out chan<- streamevent.Event) {
	var text strings.Builder
	pending := map[string]*pendingCall{}
	type finalizedCall struct {
		id, name string
		args     json.RawMessage
	}
	var finalizedCalls []finalizedCall

	for chunk := range chunks {
		switch {
		case chunk.Error != nil:
			emit(ctx, out, streamevent.ErrorEvent(chunk.Error.Error()))
			return
		case chunk.ToolCallDelta != nil:
			delta := chunk.ToolCallDelta
			call, ok := pending[delta.ID]
			if !ok {
				call = &pendingCall{}
				pending[delta.ID] = call
			}
			if delta.Name != "" {
				call.name = delta.Name
			}
			call.args.WriteString(delta.ArgsFragment)
			if delta.Final {
				delete(pending, delta.ID)
				raw := call.args.String()
				if strings.TrimSpace(raw) == "" {
					raw = "{}"
				}
				var parsed json.RawMessage
				if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
					emit(ctx, out, streamevent.ErrorEvent("tool call arguments are not valid JSON"))
					return
				}
				finalizedCalls = append(finalizedCalls, finalizedCall{id: delta.ID, name: call.name, args: parsed})
			}
		case chunk.Text != "":
			text.WriteString(chunk.Text)
		case chunk.Done:
			if len(pending) > 0 {
				emit(ctx, out, streamevent.ErrorEvent("tool call arguments ended without completing"))
				return
			}
			if text.Len() > 0 {
				emit(ctx, out, streamevent.TextDeltaEvent(text.String()))
			}
			for _, call := range finalizedCalls {
				emit(ctx, out, streamevent.ToolCallEvent(call.id, call.name, call.args))
				if a.Tools == nil {
					continue
				}
				result, err := a.Tools.Execute(ctx, call.name, call.args)
				if err != nil {
					emit(ctx, out, streamevent.ErrorEvent(err.Error()))
					return
				}
				emit(ctx, out, streamevent.ToolResultEvent(call.id, result))
			}
			emit(ctx, out, streamevent.FinishEvent())
			return
		}
	}
	emit(ctx, out, streamevent.ErrorEvent("stream ended without terminator"))
}

// toCompletionMessages flattens chatmodel's LLMMessage entries into the
// provider-facing CompletionMessage list.
func toCompletionMessages(messages []chatmodel.LLMMessage) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Kind {
		case chatmodel.LLMSystem:
			// System text is carried on CompletionRequest.System (run
			// appends it to the agent's SystemPrompt), not as a message
			// entry.
			continue
		case chatmodel.LLMUser:
			out = append(out, CompletionMessage{Role: "user", Content: m.Text})
		case chatmodel.LLMAssistant:
			out = append(out, CompletionMessage{Role: "assistant", Content: m.Text, ToolCalls: m.ToolCalls})
		case chatmodel.LLMTool:
			out = append(out, CompletionMessage{Role: "tool", ToolCallID: m.ToolCallID, ToolResult: m.Result})
		}
	}
	return out
}

// emit delivers ev on out, or abandons it if ctx is already cancelled.
func emit(ctx context.Context, out chan<- streamevent.Event, ev streamevent.Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
