package authhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vivektakcode/leave-tracker/internal/domain/auth"
	"github.com/vivektakcode/leave-tracker/internal/domain/core"
	"github.com/vivektakcode/leave-tracker/internal/domain/notify"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/api"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/middleware"
)

const tokenTTL = 12 * time.Hour

type Handler struct {
	Workers    core.Directory
	Dispatcher *notify.Dispatcher
	JWTSecret  string
}

func NewHandler(workers core.Directory, dispatcher *notify.Dispatcher, jwtSecret string) *Handler {
	return &Handler{Workers: workers, Dispatcher: dispatcher, JWTSecret: jwtSecret}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/request-reset", h.handleRequestReset)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	worker, err := h.Workers.GetWorkerByEmail(r.Context(), payload.Email)
	if err != nil {
		// Same response for unknown email and bad password.
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", reqID)
		return
	}
	if err := auth.CheckPassword(worker.PasswordHash, payload.Password); err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", reqID)
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, auth.Claims{WorkerID: worker.ID, Role: worker.Role}, tokenTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_failed", "failed to issue token", reqID)
		return
	}

	api.Success(w, map[string]any{
		"token":  token,
		"worker": worker,
	}, reqID)
}

func (h *Handler) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	worker, err := h.Workers.GetWorkerByEmail(r.Context(), payload.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Do not leak which emails exist.
			api.Success(w, map[string]string{"status": "ok"}, reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "reset_failed", "failed to process reset request", reqID)
		return
	}

	token := uuid.NewString()
	hash, err := auth.HashPassword(token)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "reset_failed", "failed to process reset request", reqID)
		return
	}
	if err := h.Workers.SetResetTokenHash(r.Context(), worker.ID, hash); err != nil {
		api.Fail(w, http.StatusInternalServerError, "reset_failed", "failed to process reset request", reqID)
		return
	}

	h.Dispatcher.Enqueue(notify.PasswordReset{WorkerEmail: worker.Email, Token: token}, 0)
	api.Success(w, map[string]string{"status": "ok"}, reqID)
}
