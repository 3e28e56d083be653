// Package handler exposes the form engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"entrypass/internal/completion"
	formservice "entrypass/internal/form/service"
	interaction "entrypass/internal/interaction/models"
	"entrypass/internal/persistence"
	"entrypass/internal/platform/metrics"
	"entrypass/internal/platform/middleware"
	"entrypass/internal/transport/http/shared"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// Service is the form engine surface the handler depends on.
type Service interface {
	OpenScreen(ctx context.Context, screen id.ScreenID) (*formservice.OpenResult, error)
	CloseScreen(ctx context.Context, screen id.ScreenID) error
	UpdateField(ctx context.Context, screen id.ScreenID, field, value string, prefill bool) (*formservice.UpdateResult, error)
	FlushScreen(ctx context.Context, screen id.ScreenID) error
	RetrySave(ctx context.Context, screen id.ScreenID, field string) (persistence.SaveState, error)
	InteractionState(ctx context.Context, screen id.ScreenID) (*interaction.State, error)
	TripSummary(ctx context.Context) (completion.MultiSummary, error)
	DestinationSummary(ctx context.Context, dest id.DestinationID) (completion.Metrics, error)
	Switch(ctx context.Context, from, to id.DestinationID) (completion.SwitchResult, error)
	SaveStates(ctx context.Context) []formservice.SaveStatus
}

// Handler handles the form engine endpoints.
type Handler struct {
	logger       *slog.Logger
	form         Service
	metrics      *metrics.Metrics
	validator    middleware.SessionValidator
	adminKeyHash string
}

// New creates a form Handler.
func New(
	form Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	validator middleware.SessionValidator,
	adminKeyHash string,
) *Handler {
	return &Handler{
		logger:       logger,
		form:         form,
		metrics:      m,
		validator:    validator,
		adminKeyHash: adminKeyHash,
	}
}

// Register mounts the form routes on the chi router. Traveler routes carry
// session auth; the admin group is guarded by the admin key instead.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.Latency(h.metrics))

		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			r.Use(middleware.Device)
			r.Use(middleware.RequireAuth(h.validator, h.logger))

			r.Post("/screens/{screenID}/open", h.handleOpenScreen)
			r.Post("/screens/{screenID}/close", h.handleCloseScreen)
			r.Put("/screens/{screenID}/fields/{field}", h.handleUpdateField)
			r.Post("/screens/{screenID}/fields/{field}/retry", h.handleRetrySave)
			r.Post("/screens/{screenID}/flush", h.handleFlushScreen)
			r.Get("/screens/{screenID}/interaction", h.handleInteractionState)

			r.Get("/destinations/summary", h.handleTripSummary)
			r.Get("/destinations/{destinationID}/summary", h.handleDestinationSummary)
			r.Post("/destinations/switch", h.handleSwitch)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdminKey(h.adminKeyHash, h.logger))
			r.Get("/saves", h.handleSaveStates)
		})
	})
}

func (h *Handler) handleOpenScreen(w http.ResponseWriter, r *http.Request) {
	screen := id.ScreenID(chi.URLParam(r, "screenID"))
	res, err := h.form.OpenScreen(r.Context(), screen)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCloseScreen(w http.ResponseWriter, r *http.Request) {
	screen := id.ScreenID(chi.URLParam(r, "screenID"))
	if err := h.form.CloseScreen(r.Context(), screen); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateFieldRequest struct {
	Value   string `json:"value"`
	Prefill bool   `json:"prefill"`
}

func (h *Handler) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	screen := id.ScreenID(chi.URLParam(r, "screenID"))
	field := chi.URLParam(r, "field")

	var req updateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	res, err := h.form.UpdateField(ctx, screen, field, req.Value, req.Prefill)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRetrySave(w http.ResponseWriter, r *http.Request) {
	screen := id.ScreenID(chi.URLParam(r, "screenID"))
	field := chi.URLParam(r, "field")

	state, err := h.form.RetrySave(r.Context(), screen, field)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"save_state": state})
}

func (h *Handler) handleFlushScreen(w http.ResponseWriter, r *http.Request) {
	screen := id.ScreenID(chi.URLParam(r, "screenID"))
	if err := h.form.FlushScreen(r.Context(), screen); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleInteractionState(w http.ResponseWriter, r *http.Request) {
	screen := id.ScreenID(chi.URLParam(r, "screenID"))
	state, err := h.form.InteractionState(r.Context(), screen)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleTripSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.form.TripSummary(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleDestinationSummary(w http.ResponseWriter, r *http.Request) {
	dest := id.DestinationID(chi.URLParam(r, "destinationID"))
	m, err := h.form.DestinationSummary(r.Context(), dest)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, m)
}

type switchRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *Handler) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	res, err := h.form.Switch(r.Context(), id.DestinationID(req.From), id.DestinationID(req.To))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSaveStates(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"saves": h.form.SaveStates(r.Context()),
	})
}
