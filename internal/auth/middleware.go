package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// Middleware returns an HTTP middleware enforcing JWT/API key auth. When the
// service has neither a JWT secret nor API keys configured, requests pass
// through unauthenticated — this is the auth.mode "off" case.
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service == nil || !service.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			if token := extractBearer(r); token != "" {
				user, err := service.ValidateJWT(token)
				if err != nil {
					logWarn(logger, "jwt validation failed", err)
					writeUnauthorized(w)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
				return
			}

			if apiKey := extractAPIKey(r); apiKey != "" {
				user, err := service.ValidateAPIKey(apiKey)
				if err != nil {
					logWarn(logger, "api key validation failed", err)
					writeUnauthorized(w)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
				return
			}

			writeUnauthorized(w)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	http.Error(w, `{"error":"missing or invalid credentials"}`, http.StatusUnauthorized)
}

func logWarn(logger *slog.Logger, msg string, err error) {
	if logger != nil {
		logger.Warn(msg, "error", err)
	}
}

func extractBearer(r *http.Request) string {
	value := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return strings.TrimSpace(value[len("bearer "):])
	}
	return ""
}

func extractAPIKey(r *http.Request) string {
	for _, header := range []string{"X-Api-Key", "Api-Key"} {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" {
			return value
		}
	}
	return ""
}
