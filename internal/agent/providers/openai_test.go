package providers

import (
	"encoding/json"
	"testing"

	"github.com/streamforge/chatcore/internal/agent"
	"github.com/streamforge/chatcore/internal/chatmodel"
)

func TestNewOpenAIProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestNewOpenAIProviderDefaults(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q", p.Name())
	}
	if !p.SupportsTools() {
		t.Error("SupportsTools() = false, want true")
	}
	if len(p.Models()) == 0 {
		t.Error("Models() returned none")
	}
}

func TestBuildParamsPreservesAssistantToolCalls(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}

	req := &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{
			{
				Role:    "assistant",
				Content: "let me check",
				ToolCalls: []chatmodel.ToolCall{
					{ID: "call-1", Name: "generateChart", Args: json.RawMessage(`{"title":"Q1"}`)},
				},
			},
		},
	}

	params := p.buildParams(req)
	if len(params.Messages) != 1 {
		t.Fatalf("params.Messages = %+v, want 1", params.Messages)
	}
	msg := params.Messages[0]
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("msg.ToolCalls = %+v, want 1 entry", msg.ToolCalls)
	}
	if msg.ToolCalls[0].ID != "call-1" || msg.ToolCalls[0].Function.Name != "generateChart" {
		t.Errorf("msg.ToolCalls[0] = %+v", msg.ToolCalls[0])
	}
}
