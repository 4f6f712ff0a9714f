package leave

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const requestColumns = `
    id, worker_id, category, start_date, end_date, half_day, justification,
    document_ref, days, status, approver_id, approver_name,
    processed_by, processed_at, comments, last_reminder_at, reminder_count, created_at`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID, &req.WorkerID, &req.Category, &req.StartDate, &req.EndDate, &req.HalfDay,
		&req.Justification, &req.DocumentRef, &req.Days, &req.Status, &req.ApproverID,
		&req.ApproverName, &req.ProcessedBy, &req.ProcessedAt, &req.Comments,
		&req.LastReminderAt, &req.ReminderCount, &req.CreatedAt,
	)
	return req, err
}

func (s *PostgresStore) collect(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req Request) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_requests
      (id, worker_id, category, start_date, end_date, half_day, justification,
       document_ref, days, status, approver_id, approver_name, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
  `, req.ID, req.WorkerID, req.Category, req.StartDate, req.EndDate, req.HalfDay,
		req.Justification, req.DocumentRef, req.Days, req.Status, req.ApproverID,
		req.ApproverName, req.CreatedAt)
	return err
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (Request, error) {
	req, err := scanRequest(s.DB.QueryRow(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests
    WHERE id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

func (s *PostgresStore) DeletePending(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM leave_requests WHERE id = $1 AND status = $2
  `, id, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetRequest(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id string, status Status, processedBy string, comments *string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_requests
    SET status = $1, processed_by = $2, processed_at = $3, comments = $4
    WHERE id = $5 AND status = $6
  `, status, processedBy, at, comments, id, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetRequest(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

func (s *PostgresStore) ListActiveForWorker(ctx context.Context, workerID string) ([]Request, error) {
	return s.collect(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests
    WHERE worker_id = $1 AND status IN ($2, $3)
    ORDER BY start_date
  `, workerID, StatusPending, StatusApproved)
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]Request, error) {
	return s.collect(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests
    WHERE status = $1
    ORDER BY created_at
  `, StatusPending)
}

func (s *PostgresStore) ListReminderEligible(ctx context.Context, cutoff time.Time) ([]Request, error) {
	return s.collect(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests
    WHERE status = $1
      AND created_at < $2
      AND (last_reminder_at IS NULL OR last_reminder_at < $2)
    ORDER BY created_at
  `, StatusPending, cutoff)
}

func (s *PostgresStore) RecordReminderSent(ctx context.Context, id string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_requests
    SET last_reminder_at = $1, reminder_count = reminder_count + 1
    WHERE id = $2
  `, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ReassignApprover(ctx context.Context, workerID, approverID, approverName string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
    UPDATE workers SET approver_id = $1 WHERE id = $2
  `, approverID, workerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
    UPDATE leave_requests
    SET approver_id = $1, approver_name = $2
    WHERE worker_id = $3 AND status = $4
  `, approverID, approverName, workerID, StatusPending); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListForWorker(ctx context.Context, workerID string) ([]Request, error) {
	return s.collect(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests
    WHERE worker_id = $1
    ORDER BY created_at DESC
  `, workerID)
}

func (s *PostgresStore) ListForApprover(ctx context.Context, approverID string) ([]Request, error) {
	return s.collect(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests
    WHERE approver_id = $1
    ORDER BY created_at DESC
  `, approverID)
}

func (s *PostgresStore) ListCalendar(ctx context.Context) ([]Request, error) {
	return s.collect(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests
    WHERE status IN ($1, $2)
    ORDER BY start_date
  `, StatusPending, StatusApproved)
}
