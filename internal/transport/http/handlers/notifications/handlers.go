package notificationshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vivektakcode/leave-tracker/internal/domain/auth"
	"github.com/vivektakcode/leave-tracker/internal/domain/notify"
	"github.com/vivektakcode/leave-tracker/internal/platform/jobs"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/api"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/middleware"
)

// Handler exposes the in-memory queue and the sweep triggers to operators.
type Handler struct {
	Dispatcher *notify.Dispatcher
	Jobs       *jobs.Service
}

func NewHandler(dispatcher *notify.Dispatcher, jobsSvc *jobs.Service) *Handler {
	return &Handler{Dispatcher: dispatcher, Jobs: jobsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		admin := middleware.RequireRole(auth.RoleAdmin)
		r.With(admin).Get("/status", h.handleStatus)
		r.With(admin).Post("/clear", h.handleClear)
	})
	r.Route("/jobs", func(r chi.Router) {
		admin := middleware.RequireRole(auth.RoleAdmin)
		r.With(admin).Post("/auto-approval/run", h.handleRunAutoApproval)
		r.With(admin).Post("/reminders/run", h.handleRunReminders)
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Dispatcher.Status(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	h.Dispatcher.Clear()
	api.Success(w, map[string]string{"status": "cleared"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRunAutoApproval(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	summary, err := h.Jobs.RunNow(r.Context(), jobs.JobAutoApproval)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "sweep_failed", "auto-approval sweep failed", reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleRunReminders(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	summary, err := h.Jobs.RunNow(r.Context(), jobs.JobReminders)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "sweep_failed", "reminder sweep failed", reqID)
		return
	}
	api.Success(w, summary, reqID)
}
