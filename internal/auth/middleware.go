package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/WailSalutem-Health-Care/tenant-service/auth")

// TokenValidator is satisfied by *TokenService.
type TokenValidator interface {
	Validate(token string) (*Principal, error)
}

// MetricsRecorder interface for recording auth metrics
type MetricsRecorder interface {
	RecordAuthFailure(ctx context.Context, reason string)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Middleware validates the bearer token and injects the Principal into the
// request context.
func Middleware(validator TokenValidator) func(http.Handler) http.Handler {
	return MiddlewareWithMetrics(validator, nil)
}

// MiddlewareWithMetrics validates token with metrics recording
func MiddlewareWithMetrics(validator TokenValidator, metrics MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "auth.Middleware",
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			reject := func(reason, code, message string) {
				span.SetStatus(codes.Error, message)
				span.SetAttributes(attribute.String("error.type", reason))
				if metrics != nil {
					metrics.RecordAuthFailure(ctx, reason)
				}
				writeUnauthorized(w, code, message)
			}

			authz := r.Header.Get("Authorization")
			if authz == "" {
				reject("missing_authorization", "missing_authorization", "Authorization header missing")
				return
			}

			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				reject("invalid_header_format", "invalid_authorization_header", "Invalid authorization header")
				return
			}

			pr, err := validator.Validate(parts[1])
			if err != nil {
				log.Ctx(ctx).Debug().Err(err).Msg("token validation failed")
				if errors.Is(err, ErrTokenExpired) {
					reject("token_expired", "token_expired", "Invalid or expired token")
					return
				}
				reject("invalid_token", "token_invalid", "Invalid or expired token")
				return
			}

			span.SetAttributes(
				attribute.String("admin.id", pr.AdminID),
				attribute.String("organization.name", pr.Organization),
			)
			span.SetStatus(codes.Ok, "authentication successful")

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(ctx, pr)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: code, Message: message})
}
