package leave

import (
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("leave request not found")
	ErrNotPending      = errors.New("request is not pending")
	ErrForbidden       = errors.New("approver does not manage this worker")
	ErrInvalidDecision = errors.New("decision must be approved or rejected")
	ErrInvalidApprover = errors.New("worker cannot be assigned as an approver")
)

// Issue codes. Conflict codes get a 409 at the transport layer, everything
// else a 400.
const (
	CodeRequired            = "required"
	CodeDateOrder           = "date_order"
	CodeNonBusinessDay      = "non_business_day"
	CodeHalfDayRange        = "half_day_range"
	CodeUnknownCategory     = "unknown_category"
	CodeInsufficientBalance = "insufficient_balance"
	CodeDocumentRequired    = "document_required"
	CodeNoApprover          = "no_approver"
	CodeOverlappingRequest  = "overlapping_request"
	CodeDuplicateRequest    = "duplicate_request"
)

type Issue struct {
	Field  string `json:"field"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ValidationError carries every violated rule so a caller can present all
// problems at once instead of fixing them one round-trip at a time.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	reasons := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		reasons = append(reasons, issue.Code)
	}
	return "request validation failed: " + strings.Join(reasons, ", ")
}

// Conflict reports whether the violations include a duplicate or overlapping
// request.
func (e *ValidationError) Conflict() bool {
	for _, issue := range e.Issues {
		if issue.Code == CodeOverlappingRequest || issue.Code == CodeDuplicateRequest {
			return true
		}
	}
	return false
}
