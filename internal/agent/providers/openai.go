package providers

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"github.com/streamforge/chatcore/internal/agent"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// OpenAIProvider implements agent.LLMProvider against the Chat Completions
// streaming API, accumulating indexed tool-call argument fragments.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIProvider builds a provider from config. APIKey is required.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = openai.GPT4o
	}

	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: config.DefaultModel,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) SupportsTools() bool { return true }

func (p *OpenAIProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: openai.GPT4o, Name: "GPT-4o", ContextSize: 128000, SupportsVision: true},
		{ID: openai.GPT4oMini, Name: "GPT-4o mini", ContextSize: 128000, SupportsVision: true},
		{ID: openai.O3Mini, Name: "o3-mini", ContextSize: 200000, SupportsVision: false},
	}
}

// Complete opens a streaming chat completion and accumulates indexed
// delta.ToolCalls fragments, emitting a ToolCallDelta per fragment and a
// Final one when the index's call completes (on EOF or a tool_calls
// finish reason, whichever arrives first).
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	params := p.buildParams(req)

	stream, err := p.client.CreateChatCompletionStream(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make(chan *agent.CompletionChunk)

	go func() {
		defer close(out)
		defer stream.Close()

		// pendingNames/pendingIDs remember the name/id announced on the
		// first fragment for a given tool-call index; OpenAI only repeats
		// the id/name on the first fragment of each call.
		pendingNames := map[int]string{}
		pendingIDs := map[int]string{}
		finalized := map[int]bool{}

		flushIndex := func(index int) {
			if finalized[index] || pendingIDs[index] == "" {
				return
			}
			finalized[index] = true
			sendChunk(ctx, out, &agent.CompletionChunk{
				ToolCallDelta: &agent.ToolCallDelta{
					ID:    pendingIDs[index],
					Name:  pendingNames[index],
					Final: true,
				},
			})
		}

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				for index := range pendingIDs {
					flushIndex(index)
				}
				sendChunk(ctx, out, &agent.CompletionChunk{Done: true})
				return
			}
			if err != nil {
				sendChunk(ctx, out, &agent.CompletionChunk{Error: err})
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			delta := choice.Delta

			if delta.Content != "" {
				sendChunk(ctx, out, &agent.CompletionChunk{Text: delta.Content})
			}

			for _, tc := range delta.ToolCalls {
				index := 0
				if tc.Index != nil {
					index = *tc.Index
				}
				if tc.ID != "" {
					pendingIDs[index] = tc.ID
				}
				if tc.Function.Name != "" {
					pendingNames[index] = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					sendChunk(ctx, out, &agent.CompletionChunk{
						ToolCallDelta: &agent.ToolCallDelta{
							ID:           pendingIDs[index],
							Name:         pendingNames[index],
							ArgsFragment: tc.Function.Arguments,
						},
					})
				}
			}

			if choice.FinishReason == openai.FinishReasonToolCalls {
				for index := range pendingIDs {
					flushIndex(index)
				}
			}
		}
	}()

	return out, nil
}

func (p *OpenAIProvider) buildParams(req *agent.CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "tool":
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(m.ToolResult),
				ToolCallID: m.ToolCallID,
			})
		case "assistant":
			msg := openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
			if len(m.ToolCalls) > 0 {
				msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
				for i, tc := range m.ToolCalls {
					msg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Args),
						},
					}
				}
			}
			messages = append(messages, msg)
		default:
			messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		}
	}

	params := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		Stream:    true,
		MaxTokens: req.MaxTokens,
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	return params
}
