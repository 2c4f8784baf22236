package agent

import (
	"context"
	"encoding/json"

	"github.com/streamforge/chatcore/internal/chatmodel"
)

// LLMProvider is the interface every upstream completion backend
// implements. Implementations must be safe for concurrent use: multiple
// goroutines may call Complete for different requests at once.
type LLMProvider interface {
	// Complete sends a request and returns a channel of streamed chunks.
	// The channel is closed after a chunk with Done true or Error set.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider's identifier (e.g. "anthropic", "openai").
	Name() string

	// Models returns the models this provider exposes.
	Models() []Model

	// SupportsTools reports whether this provider can be sent tool
	// declarations and can emit tool-call chunks.
	SupportsTools() bool
}

// CompletionRequest is a single upstream completion call.
type CompletionRequest struct {
	Model     string              `json:"model"`
	System    string              `json:"system,omitempty"`
	Messages  []CompletionMessage `json:"messages"`
	Tools     []ToolDeclaration   `json:"tools,omitempty"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
	// Stream records whether the ChatAgent is in streaming or
	// collect-then-replay mode (§4.3 non-streaming mode). The Anthropic and
	// OpenAI providers do not read it and always stream; in replay mode the
	// ChatAgent drains their channel itself.
	Stream bool `json:"-"`
}

// CompletionMessage is one entry of the flattened conversation sent
// upstream — directly derived from a chatmodel.LLMMessage.
type CompletionMessage struct {
	Role      string              `json:"role"`
	Content   string              `json:"content,omitempty"`
	ToolCalls []chatmodel.ToolCall `json:"tool_calls,omitempty"`

	// Set when Role == "tool".
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolResult json.RawMessage `json:"tool_result,omitempty"`
}

// ToolDeclaration is what's sent upstream to advertise a callable tool.
type ToolDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// CompletionChunk is one unit of a streamed upstream response, already
// normalized to a provider-agnostic shape. Exactly one of Text,
// ToolCallDelta, or a terminal field (Done/Error) is meaningful per chunk;
// ToolCallDelta fragments accumulate until ToolCallDelta.Final is true.
type CompletionChunk struct {
	Text string `json:"text,omitempty"`

	ToolCallDelta *ToolCallDelta `json:"tool_call_delta,omitempty"`

	Done  bool  `json:"done,omitempty"`
	Error error `json:"-"`
}

// ToolCallDelta is a fragment of an in-progress tool call. ID identifies
// the call across fragments; providers that key later fragments by
// position (OpenAI) carry the call ID announced on the first fragment of
// that position.
// ArgsFragment is appended to the buffered partial JSON for this ID.
// Final marks the fragment that completes the call.
type ToolCallDelta struct {
	ID           string
	Name         string
	ArgsFragment string
	Final        bool
}

// Model describes one model a provider exposes.
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContextSize    int    `json:"context_size"`
	SupportsVision bool   `json:"supports_vision"`
}
