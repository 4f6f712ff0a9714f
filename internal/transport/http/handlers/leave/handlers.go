package leavehandler

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
	Service *leave.Service
	// Store is the read path; writes go through the service.
	Store leave.Store
}

func NewHandler(service *leave.Service, store leave.Store) *Handler {
	return &Handler{Service: service, Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		anyRole := middleware.RequireRole(auth.RoleWorker, auth.RoleApprover, auth.RoleAdmin)
		approvers := middleware.RequireRole(auth.RoleApprover, auth.RoleAdmin)

		r.With(anyRole).Post("/requests", h.handleCreateRequest)
		r.With(anyRole).Get("/requests", h.handleListMine)
		r.With(anyRole).Get("/requests/{requestID}", h.handleGetRequest)
		r.With(anyRole).Post("/requests/{requestID}/cancel", h.handleCancelRequest)
		r.With(approvers).Post("/requests/{requestID}/approve", h.handleApproveRequest)
		r.With(approvers).Post("/requests/{requestID}/reject", h.handleRejectRequest)
		r.With(approvers).Get("/approvals", h.handleListApprovals)
		r.With(anyRole).Get("/calendar", h.handleCalendar)
	})
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		WorkerID      string `json:"workerId"`
		Category      string `json:"category"`
		StartDate     string `json:"startDate"`
		EndDate       string `json:"endDate"`
		HalfDay       bool   `json:"halfDay"`
		Justification string `json:"justification"`
		DocumentRef   string `json:"documentRef"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	// A worker files for themselves; admins may file on behalf of anyone.
	workerID := user.WorkerID
	if payload.WorkerID != "" && payload.WorkerID != user.WorkerID {
		if user.Role != auth.RoleAdmin {
			api.Fail(w, http.StatusForbidden, "forbidden", "cannot file leave for another worker", reqID)
			return
		}
		workerID = payload.WorkerID
	}

	v := shared.NewValidator()
	start, startOK := v.Date("startDate", payload.StartDate)
	end, endOK := v.Date("endDate", payload.EndDate)
	if !startOK || !endOK {
		v.Reject(w, reqID)
		return
	}

	id, err := h.Service.CreateRequest(r.Context(), leave.CreateRequestInput{
		WorkerID:      workerID,
		Category:      balance.Category(payload.Category),
		StartDate:     start,
		EndDate:       end,
		HalfDay:       payload.HalfDay,
		Justification: payload.Justification,
		DocumentRef:   payload.DocumentRef,
	})
	if err != nil {
		var verr *leave.ValidationError
		if errors.As(err, &verr) {
			status := http.StatusBadRequest
			code := "validation_error"
			if verr.Conflict() {
				status = http.StatusConflict
				code = "conflicting_request"
			}
			api.FailWithDetails(w, status, code, "leave request was rejected", map[string]any{"fields": verr.Issues}, reqID)
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "worker_not_found", "worker not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "request_create_failed", "failed to create leave request", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	requests, err := h.Store.ListForWorker(r.Context(), user.WorkerID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "request_list_failed", "failed to list leave requests", reqID)
		return
	}
	api.Success(w, requests, reqID)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	req, err := h.Store.GetRequest(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		if errors.Is(err, leave.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "request_not_found", "leave request not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "request_get_failed", "failed to load leave request", reqID)
		return
	}

	if user.Role == auth.RoleWorker && req.WorkerID != user.WorkerID {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot view another worker's request", reqID)
		return
	}
	api.Success(w, req, reqID)
}

func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	requestID := chi.URLParam(r, "requestID")

	req, err := h.Store.GetRequest(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, leave.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "request_not_found", "leave request not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "request_cancel_failed", "failed to cancel leave request", reqID)
		return
	}
	if req.WorkerID != user.WorkerID && user.Role != auth.RoleAdmin {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot cancel another worker's request", reqID)
		return
	}

	err = h.Service.CancelRequest(r.Context(), requestID)
	switch {
	case err == nil:
		api.Success(w, map[string]string{"status": "cancelled"}, reqID)
	case errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "request_not_found", "leave request not found", reqID)
	case errors.Is(err, leave.ErrNotPending):
		api.Fail(w, http.StatusConflict, "not_pending", "only pending requests can be cancelled", reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "request_cancel_failed", "failed to cancel leave request", reqID)
	}
}

func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionApproved)
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionRejected)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision leave.Decision) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	requestID := chi.URLParam(r, "requestID")

	var payload struct {
		Comments string `json:"comments"`
	}
	// Body is optional for decisions.
	_ = json.NewDecoder(r.Body).Decode(&payload)

	err := h.Service.ProcessRequest(r.Context(), requestID, user.WorkerID, decision, payload.Comments)
	switch {
	case err == nil:
		api.Success(w, map[string]string{"status": string(decision)}, reqID)
	case errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "request_not_found", "leave request not found", reqID)
	case errors.Is(err, leave.ErrNotPending):
		api.Fail(w, http.StatusConflict, "not_pending", "request has already been processed", reqID)
	case errors.Is(err, leave.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "request is assigned to a different approver", reqID)
	case errors.Is(err, balance.ErrInsufficientBalance):
		api.Fail(w, http.StatusConflict, "insufficient_balance", "worker no longer has enough balance", reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "decision_failed", "failed to process decision", reqID)
	}
}

func (h *Handler) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	requests, err := h.Store.ListForApprover(r.Context(), user.WorkerID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "approvals_list_failed", "failed to list approvals", reqID)
		return
	}

	pending := make([]leave.Request, 0, len(requests))
	for _, req := range requests {
		if req.Status == leave.StatusPending {
			pending = append(pending, req)
		}
	}
	api.Success(w, pending, reqID)
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	requests, err := h.Store.ListCalendar(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "calendar_failed", "failed to load leave calendar", reqID)
		return
	}
	api.Success(w, requests, reqID)
}
