// Package chatmodel defines the client-facing UIMessage model and the flat
// LLMMessage model the upstream provider consumes, plus the conversion
// between them.
package chatmodel

import "encoding/json"

// Role is the author of a UIMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType discriminates a MessagePart.
type PartType string

const (
	PartText           PartType = "text"
	PartToolInvocation PartType = "tool-invocation"
)

// UIMessage is the client-facing, part-oriented message model. Parts must
// be non-empty; the order of parts is the client's rendering order and is
// preserved through conversion.
type UIMessage struct {
	ID    string        `json:"id"`
	Role  Role          `json:"role"`
	Parts []MessagePart `json:"parts"`
}

// MessagePart is a tagged union: text, or a tool invocation from a prior
// turn (optionally already resolved with a Result).
type MessagePart struct {
	Type PartType `json:"type"`

	// Text is set when Type == PartText.
	Text string `json:"text,omitempty"`

	// ToolCallID, ToolName, Args are set when Type == PartToolInvocation.
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`

	// Result is set when the tool invocation is already resolved.
	Result json.RawMessage `json:"result,omitempty"`
}

// LLMEntryKind discriminates an LLMMessage entry.
type LLMEntryKind string

const (
	LLMSystem    LLMEntryKind = "system"
	LLMUser      LLMEntryKind = "user"
	LLMAssistant LLMEntryKind = "assistant"
	LLMTool      LLMEntryKind = "tool"
)

// ToolCall is a finalized, named tool invocation attached to an assistant
// LLMMessage entry.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// LLMMessage is one flat, ordered entry in the message list sent to the
// upstream provider. Exactly the fields matching Kind are meaningful:
// system/user carry Text; assistant carries an optional Text and optional
// ToolCalls; tool carries the ID of the call it resolves and its Result.
type LLMMessage struct {
	Kind LLMEntryKind

	Text      string
	ToolCalls []ToolCall

	ToolCallID string
	ToolName   string
	Result     json.RawMessage
}
