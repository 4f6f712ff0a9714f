// Package notify is a best-effort in-process delivery pipeline. Jobs live only
// in memory: a restart loses the queue, and callers must never depend on
// delivery for correctness.
package notify

import "time"

type Kind string

const (
	KindRequestCreated  Kind = "request-created"
	KindReminder        Kind = "reminder"
	KindPasswordReset   Kind = "password-reset"
	KindApproverChanged Kind = "approver-changed"
)

// Payload is the tagged union of notification bodies: one concrete struct per
// kind, no untyped bags of fields.
type Payload interface {
	NotificationKind() Kind
	Recipient() string
}

type RequestCreated struct {
	RequestID     string
	WorkerName    string
	ApproverEmail string
	Category      string
	StartDate     string
	EndDate       string
	Days          string
}

func (RequestCreated) NotificationKind() Kind { return KindRequestCreated }
func (p RequestCreated) Recipient() string    { return p.ApproverEmail }

type Reminder struct {
	RequestID     string
	WorkerName    string
	ApproverEmail string
	PendingSince  time.Time
}

func (Reminder) NotificationKind() Kind { return KindReminder }
func (p Reminder) Recipient() string    { return p.ApproverEmail }

type PasswordReset struct {
	WorkerEmail string
	Token       string
}

func (PasswordReset) NotificationKind() Kind { return KindPasswordReset }
func (p PasswordReset) Recipient() string    { return p.WorkerEmail }

type ApproverChanged struct {
	WorkerEmail  string
	ApproverName string
}

func (ApproverChanged) NotificationKind() Kind { return KindApproverChanged }
func (p ApproverChanged) Recipient() string    { return p.WorkerEmail }

type Job struct {
	ID          string
	Kind        Kind
	Payload     Payload
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	NotBefore   time.Time

	// done, when set, fires exactly once on the terminal outcome: nil after a
	// successful send, the last error after the final failed attempt.
	done func(error)

	// generation stamps which Clear epoch the job belongs to.
	generation uint64
}
