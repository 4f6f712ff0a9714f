package workershandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vivektakcode/leave-tracker/internal/domain/auth"
	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
	"github.com/vivektakcode/leave-tracker/internal/domain/core"
	"github.com/vivektakcode/leave-tracker/internal/domain/leave"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/api"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/middleware"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/shared"
)

type Handler struct {
	Workers  core.Directory
	Balances balance.Store
	Leave    *leave.Service
}

func NewHandler(workers core.Directory, balances balance.Store, leaveSvc *leave.Service) *Handler {
	return &Handler{Workers: workers, Balances: balances, Leave: leaveSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/workers", func(r chi.Router) {
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/", h.handleCreate)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleApprover)).Get("/", h.handleList)
		r.With(middleware.RequireRole(auth.RoleWorker, auth.RoleApprover, auth.RoleAdmin)).Get("/{workerID}", h.handleGet)
		r.With(middleware.RequireRole(auth.RoleWorker, auth.RoleApprover, auth.RoleAdmin)).Get("/{workerID}/balance", h.handleBalance)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Put("/{workerID}/approver", h.handleReassignApprover)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload struct {
		Name         string  `json:"name"`
		Email        string  `json:"email"`
		Jurisdiction string  `json:"jurisdiction"`
		Role         string  `json:"role"`
		ApproverID   *string `json:"approverId"`
		Password     string  `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	v.Required("email", payload.Email, "email is required")
	v.Required("jurisdiction", payload.Jurisdiction, "jurisdiction is required")
	v.Required("password", payload.Password, "password is required")
	v.Required("role", payload.Role, "role is required")
	v.Enum("role", payload.Role, []string{auth.RoleWorker, auth.RoleApprover, auth.RoleAdmin}, "role must be worker, approver or admin")
	if v.Reject(w, reqID) {
		return
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "worker_create_failed", "failed to create worker", reqID)
		return
	}

	id, err := h.Workers.CreateWorker(r.Context(), core.Worker{
		Name:         payload.Name,
		Email:        payload.Email,
		Jurisdiction: payload.Jurisdiction,
		Role:         payload.Role,
		ApproverID:   payload.ApproverID,
		PasswordHash: hash,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "worker_create_failed", "failed to create worker", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	workers, err := h.Workers.ListWorkers(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "worker_list_failed", "failed to list workers", reqID)
		return
	}
	api.Success(w, workers, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	worker, err := h.Workers.GetWorker(r.Context(), chi.URLParam(r, "workerID"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "worker_not_found", "worker not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "worker_get_failed", "failed to load worker", reqID)
		return
	}
	api.Success(w, worker, reqID)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	workerID := chi.URLParam(r, "workerID")

	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	// Workers only see their own balance; approvers and admins see any.
	if user.Role == auth.RoleWorker && user.WorkerID != workerID {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot view another worker's balance", reqID)
		return
	}

	record, err := h.Balances.Get(r.Context(), workerID)
	if err != nil {
		if errors.Is(err, balance.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "balance_not_found", "balance record not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "balance_get_failed", "failed to load balance", reqID)
		return
	}
	api.Success(w, record, reqID)
}

func (h *Handler) handleReassignApprover(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	workerID := chi.URLParam(r, "workerID")

	var payload struct {
		ApproverID string `json:"approverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("approverId", payload.ApproverID, "approverId is required")
	if v.Reject(w, reqID) {
		return
	}

	err := h.Leave.ReassignApprover(r.Context(), workerID, payload.ApproverID)
	switch {
	case err == nil:
		api.Success(w, map[string]string{"status": "reassigned"}, reqID)
	case errors.Is(err, core.ErrNotFound) || errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "worker_not_found", "worker not found", reqID)
	case errors.Is(err, leave.ErrInvalidApprover):
		api.Fail(w, http.StatusBadRequest, "invalid_approver", "assignee cannot approve leave", reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "reassign_failed", "failed to reassign approver", reqID)
	}
}
