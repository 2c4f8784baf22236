package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/streamforge/chatcore/internal/agent"
	"github.com/streamforge/chatcore/internal/chatmodel"
	"github.com/streamforge/chatcore/pkg/streamevent"
)

// titleRequest is the wire shape of a /title/generate request (spec.md §4.7).
type titleRequest struct {
	UserMessage    string `json:"userMessage"`
	ConversationID string `json:"conversationId"`
}

// titleResponse is the wire shape of a /title/generate response. Errors and
// timeouts degrade gracefully to an empty title rather than an HTTP error.
type titleResponse struct {
	Title       string `json:"title"`
	UseFallback bool   `json:"useFallback"`
}

const defaultTitleMaxLength = 50

// handleTitleGenerate runs a non-streaming single-shot completion over the
// user's message and returns a short, post-processed title. It never
// returns a non-200 status: any decode, agent, or timeout failure degrades
// to {title: "", useFallback: true}.
func (s *Server) handleTitleGenerate(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UserMessage) == "" {
		writeJSON(w, http.StatusOK, titleResponse{UseFallback: true})
		return
	}

	timeout := s.cfg.Title.Timeout
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	messages := []chatmodel.UIMessage{{
		ID:   "title-request",
		Role: chatmodel.RoleUser,
		Parts: []chatmodel.MessagePart{
			{Type: chatmodel.PartText, Text: req.UserMessage},
		},
	}}
	llmMessages, err := chatmodel.Convert(messages)
	if err != nil {
		writeJSON(w, http.StatusOK, titleResponse{UseFallback: true})
		return
	}

	descriptor, _ := s.agents.Lookup(defaultAgentName)
	model := s.cfg.Title.Model
	if model == "" {
		model = resolveModel(descriptor.Model, "", s.cfg.Upstream.DefaultModel)
	}

	chatAgent := &agent.ChatAgent{
		Provider:     s.provider,
		Model:        model,
		SystemPrompt: titleSystemPrompt,
		Streaming:    false,
	}

	raw, ok := collectTitleText(ctx, chatAgent.Run(ctx, llmMessages))
	if !ok {
		writeJSON(w, http.StatusOK, titleResponse{UseFallback: true})
		return
	}

	maxLength := s.cfg.Title.MaxLength
	if maxLength <= 0 {
		maxLength = defaultTitleMaxLength
	}
	writeJSON(w, http.StatusOK, titleResponse{Title: postProcessTitle(raw, maxLength)})
}

const titleSystemPrompt = "Generate a short, descriptive title for this conversation based on the user's message. Respond with only the title, no quotes or punctuation at the end."

// collectTitleText drains the agent's event channel (non-streaming mode
// replays as exactly one text-delta followed by finish/error) and returns
// the generated text, or false if the stream ended in error or without
// ever producing text.
func collectTitleText(ctx context.Context, events <-chan streamevent.Event) (string, bool) {
	var text string
	for {
		select {
		case ev, open := <-events:
			if !open {
				return "", false
			}
			switch ev.Type {
			case streamevent.TypeTextDelta:
				text += ev.TextDelta
			case streamevent.TypeFinish:
				return text, strings.TrimSpace(text) != ""
			case streamevent.TypeError:
				return "", false
			}
		case <-ctx.Done():
			return "", false
		}
	}
}

// postProcessTitle implements spec.md §4.7's title post-processing: strip
// surrounding whitespace and matching outer quotes, then truncate at a word
// boundary if the result exceeds maxLength, appending "...". If no word
// boundary exists in the last 40% of the truncated string, hard-truncate
// instead.
func postProcessTitle(raw string, maxLength int) string {
	title := strings.TrimSpace(raw)
	title = stripOuterQuotes(title)
	title = strings.TrimSpace(title)

	if len(title) <= maxLength {
		return title
	}

	cutoff := maxLength - 3 // room for "..."
	if cutoff <= 0 {
		return title[:maxLength]
	}

	searchFloor := int(float64(cutoff) * 0.6) // last 40% of the truncated string
	if boundary := strings.LastIndexAny(title[:cutoff], " \t\n"); boundary >= searchFloor {
		return strings.TrimRight(title[:boundary], " \t\n") + "..."
	}
	return title[:cutoff] + "..."
}

func stripOuterQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	pairs := [][2]byte{{'"', '"'}, {'\'', '\''}, {'`', '`'}}
	for _, p := range pairs {
		if s[0] == p[0] && s[len(s)-1] == p[1] {
			return s[1 : len(s)-1]
		}
	}
	return s
}
