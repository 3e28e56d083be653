package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"entrypass/internal/platform/middleware"
	"entrypass/internal/token"
	"entrypass/internal/transport/http/shared"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/requestcontext"
)

// DefaultSessionTTL covers one travel-planning sitting with slack for slow
// airport connectivity.
const DefaultSessionTTL = 24 * time.Hour

// SessionHandler mints traveler session tokens. One session scopes one app
// launch; everything else on the API requires the token it returns.
type SessionHandler struct {
	tokens *token.Service
	logger *slog.Logger
	ttl    time.Duration
}

// NewSessionHandler creates a SessionHandler. A non-positive ttl falls back
// to DefaultSessionTTL.
func NewSessionHandler(tokens *token.Service, logger *slog.Logger, ttl time.Duration) *SessionHandler {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionHandler{tokens: tokens, logger: logger, ttl: ttl}
}

// Register mounts the session routes.
func (h *SessionHandler) Register(r chi.Router) {
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Device)
		r.Post("/", h.handleCreateSession)
	})
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *SessionHandler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := id.NewSessionID()
	device := requestcontext.DeviceName(ctx)

	signed, err := h.tokens.GenerateSessionToken(sid, device, h.ttl)
	if err != nil {
		h.logger.ErrorContext(ctx, "session token generation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "create session"))
		return
	}

	h.logger.InfoContext(ctx, "session created",
		"session_id", sid.String(),
		"device", device,
	)
	shared.WriteJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sid.String(),
		Token:     signed,
		ExpiresIn: int64(h.ttl.Seconds()),
	})
}
