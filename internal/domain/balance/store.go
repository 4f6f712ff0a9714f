package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres implements Store on top of the balances table.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{DB: db}
}

func column(category Category) (string, bool) {
	switch category {
	case CategoryCasual:
		return "casual_days", true
	case CategorySick:
		return "sick_days", true
	case CategoryPrivilege:
		return "privilege_days", true
	}
	return "", false
}

func (s *Postgres) Get(ctx context.Context, workerID string) (Record, error) {
	var rec Record
	err := s.DB.QueryRow(ctx, `
    SELECT worker_id, casual_days, sick_days, privilege_days, updated_at
    FROM balances
    WHERE worker_id = $1
  `, workerID).Scan(&rec.WorkerID, &rec.Casual, &rec.Sick, &rec.Privilege, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Postgres) Initialize(ctx context.Context, workerID string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO balances (worker_id, casual_days, sick_days, privilege_days)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (worker_id) DO NOTHING
  `, workerID, DefaultCasual, DefaultSick, DefaultPrivilege)
	return err
}

func (s *Postgres) Reserve(ctx context.Context, workerID string, category Category, amount decimal.Decimal) error {
	col, ok := column(category)
	if !ok {
		return ErrUnknownCategory
	}

	// Condition and decrement in one statement; two racing approvals can never
	// both pass the check.
	query := fmt.Sprintf(`
    UPDATE balances
    SET %s = %s - $1, updated_at = now()
    WHERE worker_id = $2 AND %s >= $1
  `, col, col, col)
	tag, err := s.DB.Exec(ctx, query, amount, workerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, workerID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return ErrInsufficientBalance
	}
	return nil
}

func (s *Postgres) Restore(ctx context.Context, workerID string, category Category, amount decimal.Decimal) error {
	col, ok := column(category)
	if !ok {
		return ErrUnknownCategory
	}
	query := fmt.Sprintf(`
    UPDATE balances
    SET %s = %s + $1, updated_at = now()
    WHERE worker_id = $2
  `, col, col)
	tag, err := s.DB.Exec(ctx, query, amount, workerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
