package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/streamforge/chatcore/internal/agent"
	"github.com/streamforge/chatcore/internal/apierr"
	"github.com/streamforge/chatcore/internal/chatmodel"
	"github.com/streamforge/chatcore/internal/sse"
	"github.com/streamforge/chatcore/internal/tools"
	"github.com/streamforge/chatcore/pkg/streamevent"
)

// chatRequest is the wire shape of a /chat request: a message history plus
// optional overrides for the named agent, model, tool whitelist, and
// whether to stream.
type chatRequest struct {
	Agent    string                `json:"agent"`
	Messages []chatmodel.UIMessage `json:"messages"`
	Model    string                `json:"model"`
	Tools    []string              `json:"tools"`
	Stream   *bool                 `json:"stream"`
}

const defaultAgentName = "main"

// handleChat implements the full request→SSE pipeline: decode, validate,
// convert messages, open the event stream, resolve the named agent (an
// unknown name becomes a single in-band error event rather than a
// pre-stream failure, since the client already expects an event stream
// once messages validate), run the chat agent, and frame its events as SSE.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, apierr.New(apierr.InvalidRequest, "malformed JSON body"))
		return
	}
	if len(req.Messages) == 0 {
		writeAPIError(w, apierr.New(apierr.InvalidMessage, "messages must not be empty"))
		return
	}

	llmMessages, err := chatmodel.Convert(req.Messages)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	agentName := req.Agent
	if agentName == "" {
		agentName = defaultAgentName
	}

	streaming := true
	if req.Stream != nil {
		streaming = *req.Stream
	}

	requestID := requestIDFromContext(r.Context())
	framer, err := sse.NewFramer(w, requestID, s.cfg.Server.StreamTimeout, s.logger)
	if err != nil {
		writeAPIError(w, apierr.Wrap(apierr.UpstreamFatal, err, "unable to open event stream"))
		return
	}

	descriptor, lookupErr := s.agents.Lookup(agentName)
	if lookupErr != nil {
		// Scenario 4: an unknown agent name is reported in-band, not as a
		// pre-stream HTTP error, since the response has already committed
		// to event-stream framing by the time routing is resolved. The
		// error is the stream's one terminal event.
		events := make(chan streamevent.Event, 1)
		events <- streamevent.ErrorEvent(lookupErr.Error())
		close(events)
		framer.Run(r.Context(), events)
		return
	}

	// C3: the client sends a whitelist of tool names on the request; an
	// agent with its own fixed tool list keeps it regardless of what the
	// client asks for, but the default agent has none of its own, so the
	// request's whitelist is what actually enables tools there. With
	// neither set, tools are disabled entirely.
	toolNames := descriptor.Tools
	if len(toolNames) == 0 {
		toolNames = req.Tools
	}

	chatAgent := &agent.ChatAgent{
		Provider:     s.provider,
		Tools:        s.tools,
		ToolDecls:    toolDeclarations(s.tools, toolNames),
		Model:        resolveModel(descriptor.Model, req.Model, s.cfg.Upstream.DefaultModel),
		SystemPrompt: descriptor.SystemPrompt,
		Streaming:    streaming,
	}

	framer.Run(r.Context(), chatAgent.Run(r.Context(), llmMessages))
}

// resolveModel picks the effective model: the named agent's fixed model
// wins if set, otherwise the client's requested model, otherwise the
// configured upstream default.
func resolveModel(agentModel, requestModel, fallback string) string {
	if agentModel != "" {
		return agentModel
	}
	if requestModel != "" {
		return requestModel
	}
	return fallback
}

func toolDeclarations(registry *tools.Registry, names []string) []agent.ToolDeclaration {
	descriptors := registry.Subset(names)
	decls := make([]agent.ToolDeclaration, 0, len(descriptors))
	for _, d := range descriptors {
		decls = append(decls, agent.ToolDeclaration{Name: d.Name, Description: d.Description, Schema: d.Schema})
	}
	return decls
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.Wrap(apierr.InvalidRequest, err, "")
	}
	writeJSON(w, apiErr.Kind.Status(), map[string]string{
		"detail": apiErr.Error(),
		"code":   string(apiErr.Kind),
	})
}
