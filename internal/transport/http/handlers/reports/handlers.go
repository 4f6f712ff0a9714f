package reportshandler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"

	"github.com/vivektakcode/leave-tracker/internal/domain/auth"
	"github.com/vivektakcode/leave-tracker/internal/domain/leave"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/api"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/middleware"
)

// Handler renders the team leave calendar as a downloadable PDF.
type Handler struct {
	Store leave.Store
}

func NewHandler(store leave.Store) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequireRole(auth.RoleApprover, auth.RoleAdmin)).Get("/calendar.pdf", h.handleCalendarPDF)
	})
}

func (h *Handler) handleCalendarPDF(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	requests, err := h.Store.ListCalendar(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to load leave calendar", reqID)
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Leave Calendar")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(45, 8, "Worker", "1", 0, "", false, 0, "")
	pdf.CellFormat(25, 8, "Category", "1", 0, "", false, 0, "")
	pdf.CellFormat(28, 8, "From", "1", 0, "", false, 0, "")
	pdf.CellFormat(28, 8, "To", "1", 0, "", false, 0, "")
	pdf.CellFormat(18, 8, "Days", "1", 0, "", false, 0, "")
	pdf.CellFormat(25, 8, "Status", "1", 1, "", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, req := range requests {
		pdf.CellFormat(45, 8, req.WorkerID, "1", 0, "", false, 0, "")
		pdf.CellFormat(25, 8, string(req.Category), "1", 0, "", false, 0, "")
		pdf.CellFormat(28, 8, req.StartDate.Format("2006-01-02"), "1", 0, "", false, 0, "")
		pdf.CellFormat(28, 8, req.EndDate.Format("2006-01-02"), "1", 0, "", false, 0, "")
		pdf.CellFormat(18, 8, req.Days.String(), "1", 0, "", false, 0, "")
		pdf.CellFormat(25, 8, string(req.Status), "1", 1, "", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to render calendar pdf", reqID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="leave-calendar.pdf"`)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
