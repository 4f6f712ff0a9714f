// Package balance is the ledger of remaining leave days per worker. Counters
// are decimal so half days stay exact, and they never go negative: Reserve is
// a single conditional decrement at the storage layer, so at most one of two
// racing approvals can win the last day.
package balance

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryCasual    Category = "casual"
	CategorySick      Category = "sick"
	CategoryPrivilege Category = "privilege"
)

var (
	ErrNotFound            = errors.New("balance record not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownCategory     = errors.New("unknown leave category")
)

// Default allocations granted when a worker is created.
var (
	DefaultCasual    = decimal.NewFromInt(6)
	DefaultSick      = decimal.NewFromInt(6)
	DefaultPrivilege = decimal.NewFromInt(18)
)

type Record struct {
	WorkerID  string          `json:"workerId"`
	Casual    decimal.Decimal `json:"casual"`
	Sick      decimal.Decimal `json:"sick"`
	Privilege decimal.Decimal `json:"privilege"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (r Record) For(category Category) decimal.Decimal {
	switch category {
	case CategoryCasual:
		return r.Casual
	case CategorySick:
		return r.Sick
	case CategoryPrivilege:
		return r.Privilege
	}
	return decimal.Zero
}

func ValidCategory(category Category) bool {
	switch category {
	case CategoryCasual, CategorySick, CategoryPrivilege:
		return true
	}
	return false
}

// Store is the ledger contract. Reserve must check-and-decrement atomically:
// implementations may not read the counter and write it back in two steps.
type Store interface {
	Get(ctx context.Context, workerID string) (Record, error)

	// Initialize creates the record with default allocations. Idempotent.
	Initialize(ctx context.Context, workerID string) error

	// Reserve decrements if the counter covers amount, otherwise returns
	// ErrInsufficientBalance without mutating.
	Reserve(ctx context.Context, workerID string, category Category, amount decimal.Decimal) error

	// Restore increments the counter. Only used to reverse a reservation
	// whose approval stamp lost a race.
	Restore(ctx context.Context, workerID string, category Category, amount decimal.Decimal) error
}
