package organization

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/auth"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CreateResponse struct {
	Message      string               `json:"message"`
	Organization *CreatedOrganization `json:"organization"`
}

type GetResponse struct {
	Organization *OrganizationResponse `json:"organization"`
}

type UpdateResponse struct {
	Message      string                `json:"message"`
	Organization *OrganizationResponse `json:"organization"`
}

type DeleteResponse struct {
	Message           string `json:"message"`
	DroppedCollection bool   `json:"dropped_collection"`
}

func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	org, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateResponse{
		Message:      "Organization created",
		Organization: org,
	})
}

func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("organization_name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "organization_name is required as query param")
		return
	}

	org, err := h.service.Get(r.Context(), name)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, GetResponse{Organization: org})
}

func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	org, err := h.service.Rename(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrNameConflict) {
			respondError(w, http.StatusBadRequest, "name_conflict", "New organization name already exists")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, UpdateResponse{
		Message:      "Organization updated",
		Organization: org,
	})
}

func (h *Handler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "Invalid token payload")
		return
	}

	var req DeleteOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrganizationName == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "organization_name required")
		return
	}

	dropped, err := h.service.Delete(r.Context(), req.OrganizationName, principal)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DeleteResponse{
		Message:           "Organization deleted",
		DroppedCollection: dropped,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Index answers GET / with the service banner.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Multitenant Organization Service"})
}

// decodeBody treats an empty body as an empty object so missing fields are
// reported as validation errors.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *validationError
	switch {
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, "validation_error", vErr.msg)
	case errors.Is(err, ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, ErrNameConflict):
		respondError(w, http.StatusBadRequest, "name_conflict", "Organization name already exists")
	case errors.Is(err, ErrEmailConflict):
		respondError(w, http.StatusBadRequest, "email_conflict", "Email already registered")
	case errors.Is(err, ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Organization not found")
	case errors.Is(err, ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", "Invalid token payload")
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", "Unauthorized: not an admin of this organization")
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, statusCode int, errorType, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:   errorType,
		Message: message,
	})
}
