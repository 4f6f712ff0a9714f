package leave

import (
	"context"
	"time"

	"github.com/vivektakcode/leave-tracker/internal/domain/core"
)

// Store is the request persistence contract. State transitions are
// conditional updates: an operation that requires pending must fail, not
// clobber, when the row has already left pending.
type Store interface {
	CreateRequest(ctx context.Context, req Request) error
	GetRequest(ctx context.Context, id string) (Request, error)

	// DeletePending removes the request only while it is still pending;
	// returns ErrNotPending otherwise, ErrNotFound if it never existed.
	DeletePending(ctx context.Context, id string) error

	// MarkProcessed moves pending → status and stamps the processing fields,
	// in one conditional update. ErrNotPending when the transition lost a race.
	MarkProcessed(ctx context.Context, id string, status Status, processedBy string, comments *string, at time.Time) error

	// ListActiveForWorker returns the worker's pending and approved requests.
	ListActiveForWorker(ctx context.Context, workerID string) ([]Request, error)

	ListPending(ctx context.Context) ([]Request, error)

	// ListReminderEligible returns pending requests created before cutoff
	// whose last reminder is absent or older than cutoff.
	ListReminderEligible(ctx context.Context, cutoff time.Time) ([]Request, error)

	// RecordReminderSent stamps the reminder bookkeeping and bumps the counter.
	RecordReminderSent(ctx context.Context, id string, at time.Time) error

	// ReassignApprover points the worker at the new approver and rewrites the
	// cached approver fields on all of the worker's pending requests, as one
	// all-or-nothing pass.
	ReassignApprover(ctx context.Context, workerID, approverID, approverName string) error

	ListForWorker(ctx context.Context, workerID string) ([]Request, error)
	ListForApprover(ctx context.Context, approverID string) ([]Request, error)

	// ListCalendar returns pending and approved requests ordered by start date.
	ListCalendar(ctx context.Context) ([]Request, error)
}

// WorkerDirectory is the slice of the worker store the engine needs.
type WorkerDirectory interface {
	GetWorker(ctx context.Context, id string) (core.Worker, error)
}
