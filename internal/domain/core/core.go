// Package core holds the worker directory: who a worker is, which jurisdiction
// their holidays come from, and which approver manages them.
package core

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("worker not found")

type Worker struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Jurisdiction string    `json:"jurisdiction"`
	Role         string    `json:"role"`
	ApproverID   *string   `json:"approverId,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Managed reports whether the worker has an assigned approver.
func (w Worker) Managed() bool {
	return w.ApproverID != nil && *w.ApproverID != ""
}

// Directory is the worker store contract consumed by handlers and the
// lifecycle engine.
type Directory interface {
	// CreateWorker persists the worker and its balance record atomically.
	CreateWorker(ctx context.Context, w Worker) (string, error)
	GetWorker(ctx context.Context, id string) (Worker, error)
	// GetWorkerByEmail includes the password hash, for the login boundary.
	GetWorkerByEmail(ctx context.Context, email string) (Worker, error)
	ListWorkers(ctx context.Context) ([]Worker, error)
	SetResetTokenHash(ctx context.Context, workerID, tokenHash string) error
}
