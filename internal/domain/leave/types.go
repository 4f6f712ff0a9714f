// Package leave implements the request lifecycle: validation, the
// pending/approved/rejected state machine, cancellation, and the scheduled
// auto-approval and reminder sweeps.
package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Request struct {
	ID            string           `json:"id"`
	WorkerID      string           `json:"workerId"`
	Category      balance.Category `json:"category"`
	StartDate     time.Time        `json:"startDate"`
	EndDate       time.Time        `json:"endDate"`
	HalfDay       bool             `json:"halfDay"`
	Justification string           `json:"justification"`
	DocumentRef   string           `json:"documentRef,omitempty"`
	Days          decimal.Decimal  `json:"days"`
	Status        Status           `json:"status"`

	// Approver fields are cached at creation and rewritten on reassignment.
	ApproverID   string `json:"approverId"`
	ApproverName string `json:"approverName"`

	ProcessedBy *string    `json:"processedBy,omitempty"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	Comments    *string    `json:"comments,omitempty"`

	LastReminderAt *time.Time `json:"lastReminderAt,omitempty"`
	ReminderCount  int        `json:"reminderCount"`

	CreatedAt time.Time `json:"createdAt"`
}

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

type CreateRequestInput struct {
	WorkerID      string
	Category      balance.Category
	StartDate     time.Time
	EndDate       time.Time
	HalfDay       bool
	Justification string
	DocumentRef   string
}
