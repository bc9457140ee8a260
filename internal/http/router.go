package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/auth"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

// ServiceName labels request spans.
const ServiceName = "tenant-service"

// MetricsRecorder is satisfied by *telemetry.Metrics.
type MetricsRecorder interface {
	RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64)
	RecordAuthFailure(ctx context.Context, reason string)
}

// Deps are the collaborators the router wires together. Metrics is optional.
type Deps struct {
	Service        organization.ServiceInterface
	Tokens         auth.TokenValidator
	Metrics        MetricsRecorder
	Logger         zerolog.Logger
	AllowedOrigins []string
}

// SetupRouter initializes all routes for the application
func SetupRouter(deps Deps) http.Handler {
	orgHandler := organization.NewHandler(deps.Service)

	var authMiddleware func(http.Handler) http.Handler
	if deps.Metrics != nil {
		authMiddleware = auth.MiddlewareWithMetrics(deps.Tokens, deps.Metrics)
	} else {
		authMiddleware = auth.Middleware(deps.Tokens)
	}

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServiceName))
	r.Use(hlog.NewHandler(deps.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_addr"))
	r.Use(accessLog)
	if deps.Metrics != nil {
		r.Use(requestMetrics(deps.Metrics))
	}

	// Public endpoints
	r.HandleFunc("/", orgHandler.Index).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"tenant-service"}`))
	}).Methods(http.MethodGet)

	// Organization routes
	r.HandleFunc("/org/create", orgHandler.CreateOrganization).Methods(http.MethodPost)
	r.HandleFunc("/org/get", orgHandler.GetOrganization).Methods(http.MethodGet)
	r.HandleFunc("/org/update", orgHandler.UpdateOrganization).Methods(http.MethodPut)

	// Only the organization's admin may delete it
	r.Handle("/org/delete",
		authMiddleware(http.HandlerFunc(orgHandler.DeleteOrganization)),
	).Methods(http.MethodDelete)

	// Admin session
	r.HandleFunc("/admin/login", orgHandler.Login).Methods(http.MethodPost)

	return CORSMiddleware(deps.AllowedOrigins)(r)
}
