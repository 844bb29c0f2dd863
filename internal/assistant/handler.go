package assistant

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
	"github.com/atelier-crm/atelier-crm/internal/shared"
)

// Handler exposes the execution engine over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates the assistant HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes mounts the assistant endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/assistant/execute", h.Execute)
	r.Get("/assistant/tools", h.Tools)
}

type executeRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Execute serves POST /assistant/execute. Domain failures come back HTTP 200
// with success=false; only infrastructure faults surface as 5xx.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	ownerID := shared.OwnerFromContext(r.Context())
	if ownerID == uuid.Nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req executeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if req.Tool == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "tool is required")
		return
	}

	env, err := h.service.Execute(r.Context(), ownerID, req.Tool, req.Args)
	if err != nil {
		h.logger.Error("assistant execute", slog.String("tool", req.Tool), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, env)
}

// Tools serves GET /assistant/tools: the closed catalog the planner binds to.
func (h *Handler) Tools(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"version": CatalogVersion,
		"actions": h.service.Actions(),
	})
}
