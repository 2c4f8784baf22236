// Package providers implements LLMProvider for the upstream completion
// APIs chatcore talks to: Anthropic's Messages API and OpenAI's Chat
// Completions API. Both normalize their native streaming events into
// agent.CompletionChunk before the chat agent ever sees them.
package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/streamforge/chatcore/internal/agent"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AnthropicProvider implements agent.LLMProvider against Anthropic's
// Messages API, streaming content-block deltas as they arrive.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicProvider builds a provider from config. APIKey is required.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) SupportsTools() bool { return true }

func (p *AnthropicProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextSize: 200000, SupportsVision: false},
	}
}

// Complete opens a streaming Messages call and normalizes content-block
// delta events into agent.CompletionChunk on the returned channel. One
// goroutine owns the channel and closes it on completion or error.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	out := make(chan *agent.CompletionChunk)

	go func() {
		defer close(out)

		stream := p.client.Messages.NewStreaming(ctx, params)

		// toolBlockNames/toolBlockIDs map a content-block index to the
		// tool name/id announced in its ContentBlockStart, since deltas
		// only carry the index.
		toolBlockNames := map[int64]string{}
		toolBlockIDs := map[int64]string{}

		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if tu, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					toolBlockNames[variant.Index] = tu.Name
					toolBlockIDs[variant.Index] = tu.ID
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text != "" {
						sendChunk(ctx, out, &agent.CompletionChunk{Text: delta.Text})
					}
				case anthropic.InputJSONDelta:
					sendChunk(ctx, out, &agent.CompletionChunk{
						ToolCallDelta: &agent.ToolCallDelta{
							ID:           toolBlockIDs[variant.Index],
							Name:         toolBlockNames[variant.Index],
							ArgsFragment: delta.PartialJSON,
						},
					})
				}
			case anthropic.ContentBlockStopEvent:
				if name, ok := toolBlockNames[variant.Index]; ok {
					sendChunk(ctx, out, &agent.CompletionChunk{
						ToolCallDelta: &agent.ToolCallDelta{
							ID:    toolBlockIDs[variant.Index],
							Name:  name,
							Final: true,
						},
					})
				}
			case anthropic.MessageStopEvent:
				sendChunk(ctx, out, &agent.CompletionChunk{Done: true})
				return
			}
		}

		if err := stream.Err(); err != nil {
			sendChunk(ctx, out, &agent.CompletionChunk{Error: err})
		}
	}()

	return out, nil
}

func (p *AnthropicProvider) buildParams(req *agent.CompletionRequest) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  make([]anthropic.MessageParam, 0, len(req.Messages)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, toAnthropicMessage(m))
	}
	for _, t := range req.Tools {
		toolParam, err := anthropicToolParam(t)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = append(params.Tools, toolParam)
	}
	return params, nil
}

// anthropicToolParam unmarshals a tool's JSON Schema into Anthropic's
// input-schema shape so the model actually sees the tool's parameters,
// not just its name and description.
func anthropicToolParam(t agent.ToolDeclaration) (anthropic.ToolUnionParam, error) {
	var schema anthropic.ToolInputSchemaParam
	if err := json.Unmarshal(t.Schema, &schema); err != nil {
		return anthropic.ToolUnionParam{}, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
	}
	toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
	if toolParam.OfTool == nil {
		return anthropic.ToolUnionParam{}, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Name)
	}
	toolParam.OfTool.Description = anthropic.String(t.Description)
	return toolParam, nil
}

// toAnthropicMessage translates one flattened conversation entry into an
// Anthropic message param. An assistant turn that issued tool calls emits
// a tool_use block per call alongside any text, so a later tool-result
// turn has a matching block to respond to.
func toAnthropicMessage(m agent.CompletionMessage) anthropic.MessageParam {
	switch m.Role {
	case "tool":
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, string(m.ToolResult), false))
	case "assistant":
		if len(m.ToolCalls) == 0 {
			return anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content))
		}
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
		if m.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			var input any
			if len(tc.Args) > 0 {
				_ = json.Unmarshal(tc.Args, &input)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		return anthropic.NewAssistantMessage(blocks...)
	default:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
	}
}

// sendChunk delivers chunk on out, or abandons it if ctx is already done —
// this is the one point where a cancelled context stops the goroutine from
// blocking forever on an unread channel.
func sendChunk(ctx context.Context, out chan<- *agent.CompletionChunk, chunk *agent.CompletionChunk) {
	select {
	case out <- chunk:
	case <-ctx.Done():
	}
}
