package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamforge/chatcore/internal/agent"
	"github.com/streamforge/chatcore/internal/agent/providers"
	"github.com/streamforge/chatcore/internal/agentregistry"
	"github.com/streamforge/chatcore/internal/auth"
	"github.com/streamforge/chatcore/internal/config"
	"github.com/streamforge/chatcore/internal/tools"
)

// Server holds the process-wide dependencies the HTTP handlers need: the
// resolved config, the upstream provider, the agent and tool registries,
// and the auth service.
type Server struct {
	cfg         *config.Config
	logger      *slog.Logger
	provider    agent.LLMProvider
	agents      *agentregistry.Registry
	tools       *tools.Registry
	authService *auth.Service
	startTime   time.Time
}

// NewServer wires up an upstream provider from cfg.Upstream and constructs
// the rest of the request-handling dependencies.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	provider, err := newProvider(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	// auth.mode decides which credentials are honored; with mode "off" the
	// service has none and auth.Middleware lets every request through.
	authCfg := auth.Config{TokenExpiry: cfg.Auth.JWTExpiry}
	switch cfg.Auth.Mode {
	case config.AuthJWT:
		authCfg.JWTSecret = cfg.Auth.JWTSecret
	case config.AuthAPIKey:
		authCfg.APIKeys = apiKeyConfigs(cfg.Auth.APIKeys)
	}
	authService := auth.NewService(authCfg)

	return &Server{
		cfg:         cfg,
		logger:      logger,
		provider:    provider,
		agents:      agentregistry.New(),
		tools:       tools.NewRegistry(),
		authService: authService,
		startTime:   time.Now(),
	}, nil
}

func apiKeyConfigs(keys []string) []auth.APIKeyConfig {
	out := make([]auth.APIKeyConfig, 0, len(keys))
	for _, k := range keys {
		out = append(out, auth.APIKeyConfig{Key: k})
	}
	return out
}

func newProvider(cfg config.UpstreamConfig) (agent.LLMProvider, error) {
	switch cfg.Provider {
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
		})
	case "anthropic", "":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", cfg.Provider)
	}
}

// Mux builds the complete HTTP route table with middleware applied.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/health", s.handleHealthz)
	mux.HandleFunc("/health/live", s.handleHealthLive)
	mux.HandleFunc("/health/ready", s.handleHealthReady)
	mux.HandleFunc("/config/schema", s.handleConfigSchema)
	mux.HandleFunc("/models", s.handleModels)

	gated := http.NewServeMux()
	gated.HandleFunc("/chat", s.handleChat)
	gated.HandleFunc("/title/generate", s.handleTitleGenerate)
	authedGated := auth.Middleware(s.authService, s.logger)(gated)
	mux.Handle("/chat", authedGated)
	mux.Handle("/title/generate", authedGated)

	return requestIDMiddleware(loggingMiddleware(s.logger)(mux))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

// handleHealthLive reports whether the process is up. It never checks
// dependencies, so a slow or unreachable upstream provider does not flip
// liveness and trigger an unnecessary restart.
func (s *Server) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleHealthReady reports whether the process can serve traffic: the
// upstream provider must be configured with a model to route to. Readiness
// failing (503) tells a load balancer to stop sending new requests without
// killing the process the way a failed liveness probe would.
func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil || s.cfg.Upstream.DefaultModel == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"reason": "upstream provider not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleConfigSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := config.JSONSchema()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to build config schema")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(schema)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": s.provider.Name(),
		"models":   s.provider.Models(),
	})
}
