package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateWorker(ctx context.Context, w Worker) (string, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	if err := tx.QueryRow(ctx, `
    INSERT INTO workers (name, email, jurisdiction, role, approver_id, password_hash)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING id
  `, w.Name, w.Email, w.Jurisdiction, w.Role, w.ApproverID, w.PasswordHash).Scan(&id); err != nil {
		return "", err
	}

	if _, err := tx.Exec(ctx, `
    INSERT INTO balances (worker_id, casual_days, sick_days, privilege_days)
    VALUES ($1, $2, $3, $4)
  `, id, balance.DefaultCasual, balance.DefaultSick, balance.DefaultPrivilege); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetWorker(ctx context.Context, id string) (Worker, error) {
	var w Worker
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, email, jurisdiction, role, approver_id, created_at
    FROM workers
    WHERE id = $1
  `, id).Scan(&w.ID, &w.Name, &w.Email, &w.Jurisdiction, &w.Role, &w.ApproverID, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Worker{}, ErrNotFound
	}
	if err != nil {
		return Worker{}, err
	}
	return w, nil
}

func (s *Store) GetWorkerByEmail(ctx context.Context, email string) (Worker, error) {
	var w Worker
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, email, jurisdiction, role, approver_id, password_hash, created_at
    FROM workers
    WHERE email = $1
  `, email).Scan(&w.ID, &w.Name, &w.Email, &w.Jurisdiction, &w.Role, &w.ApproverID, &w.PasswordHash, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Worker{}, ErrNotFound
	}
	if err != nil {
		return Worker{}, err
	}
	return w, nil
}

func (s *Store) ListWorkers(ctx context.Context) ([]Worker, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, email, jurisdiction, role, approver_id, created_at
    FROM workers
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []Worker
	for rows.Next() {
		var w Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.Email, &w.Jurisdiction, &w.Role, &w.ApproverID, &w.CreatedAt); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (s *Store) SetResetTokenHash(ctx context.Context, workerID, tokenHash string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE workers SET reset_token_hash = $1 WHERE id = $2
  `, tokenHash, workerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
