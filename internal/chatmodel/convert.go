package chatmodel

import (
	"fmt"
	"strings"

	"github.com/streamforge/chatcore/internal/apierr"
)

// Convert translates an ordered UIMessage list into the flat LLMMessage
// list the upstream provider consumes, enforcing turn-structure
// invariants along the way.
//
// Algorithm (applied in UIMessage order):
//  1. user/system: concatenate text parts (joined by "\n") into one entry;
//     any non-text part fails with InvalidMessage.
//  2. assistant: scan parts in order, accumulating text and tool
//     invocations into one assistant entry. A tool-invocation with an
//     embedded result immediately emits a following tool entry. A
//     tool-invocation followed by more text starts a new assistant entry,
//     so the relative part order survives as entry order.
//  3. A tool-invocation part inside a user message becomes a tool entry
//     directly (the client supplying a tool result from its UI).
func Convert(messages []UIMessage) ([]LLMMessage, error) {
	seenToolCallIDs := map[string]bool{}
	var out []LLMMessage

	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			return nil, apierr.New(apierr.InvalidMessage, fmt.Sprintf("message %q has no parts", msg.ID))
		}

		switch msg.Role {
		case RoleUser, RoleSystem:
			entries, err := convertUserOrSystem(msg, seenToolCallIDs)
			if err != nil {
				return nil, err
			}
			out = append(out, entries...)
		case RoleAssistant:
			entries, err := convertAssistant(msg, seenToolCallIDs)
			if err != nil {
				return nil, err
			}
			out = append(out, entries...)
		default:
			return nil, apierr.New(apierr.InvalidMessage, fmt.Sprintf("message %q has unknown role %q", msg.ID, msg.Role))
		}
	}

	return out, nil
}

// convertUserOrSystem handles rule 1 and rule 3: plain text concatenation,
// with any tool-invocation part (the client echoing a resolved tool call
// back to the model) becoming its own tool entry.
func convertUserOrSystem(msg UIMessage, seen map[string]bool) ([]LLMMessage, error) {
	var entries []LLMMessage
	var texts []string

	for _, part := range msg.Parts {
		switch part.Type {
		case PartText:
			texts = append(texts, part.Text)
		case PartToolInvocation:
			if msg.Role != RoleUser {
				return nil, apierr.New(apierr.InvalidMessage, fmt.Sprintf("message %q: tool-invocation not allowed in role %q", msg.ID, msg.Role))
			}
			if err := claimToolCallID(seen, part.ToolCallID, msg.ID); err != nil {
				return nil, err
			}
			entries = append(entries, LLMMessage{
				Kind:       LLMTool,
				ToolCallID: part.ToolCallID,
				ToolName:   part.ToolName,
				Result:     part.Result,
			})
		default:
			return nil, apierr.New(apierr.InvalidMessage, fmt.Sprintf("message %q has unknown part type %q", msg.ID, part.Type))
		}
	}

	if len(texts) > 0 {
		kind := LLMUser
		if msg.Role == RoleSystem {
			kind = LLMSystem
		}
		textEntry := LLMMessage{Kind: kind, Text: strings.Join(texts, "\n")}
		entries = append([]LLMMessage{textEntry}, entries...)
	}

	return entries, nil
}

// convertAssistant handles rule 2: combine consecutive text+tool-invocation
// parts into one assistant entry; a tool-invocation with an embedded
// result immediately emits its resolving tool entry; a tool-invocation
// followed by further text starts a new assistant entry.
func convertAssistant(msg UIMessage, seen map[string]bool) ([]LLMMessage, error) {
	var entries []LLMMessage

	var pendingText strings.Builder
	var pendingCalls []ToolCall
	haveAssistantContent := false

	flushAssistant := func() {
		if !haveAssistantContent {
			return
		}
		entries = append(entries, LLMMessage{
			Kind:      LLMAssistant,
			Text:      pendingText.String(),
			ToolCalls: pendingCalls,
		})
		pendingText.Reset()
		pendingCalls = nil
		haveAssistantContent = false
	}

	for _, part := range msg.Parts {
		switch part.Type {
		case PartText:
			if len(pendingCalls) > 0 {
				// A tool-invocation followed by text: split into two
				// assistant entries, preserving relative order.
				flushAssistant()
			}
			pendingText.WriteString(part.Text)
			haveAssistantContent = true
		case PartToolInvocation:
			if err := claimToolCallID(seen, part.ToolCallID, msg.ID); err != nil {
				return nil, err
			}
			pendingCalls = append(pendingCalls, ToolCall{
				ID:   part.ToolCallID,
				Name: part.ToolName,
				Args: part.Args,
			})
			haveAssistantContent = true
			if part.Result != nil {
				flushAssistant()
				entries = append(entries, LLMMessage{
					Kind:       LLMTool,
					ToolCallID: part.ToolCallID,
					ToolName:   part.ToolName,
					Result:     part.Result,
				})
			}
		default:
			return nil, apierr.New(apierr.InvalidMessage, fmt.Sprintf("message %q has unknown part type %q", msg.ID, part.Type))
		}
	}
	flushAssistant()

	return entries, nil
}

func claimToolCallID(seen map[string]bool, id, msgID string) error {
	if id == "" {
		return apierr.New(apierr.InvalidMessage, fmt.Sprintf("message %q: tool-invocation missing toolCallId", msgID))
	}
	if seen[id] {
		return apierr.New(apierr.InvalidMessage, fmt.Sprintf("duplicate toolCallId %q", id))
	}
	seen[id] = true
	return nil
}
