package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vivektakcode/leave-tracker/internal/domain/auth"
	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
	"github.com/vivektakcode/leave-tracker/internal/platform/config"
)

// Seed provisions a minimal working dataset: an admin, one approver reporting
// to the admin, two workers reporting to the approver, and the fixed national
// holidays for the current and next year. Safe to run repeatedly.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	adminID, err := ensureWorker(ctx, pool, workerSeed{
		name:         "Admin",
		email:        cfg.SeedAdminEmail,
		jurisdiction: "IN",
		role:         auth.RoleAdmin,
		password:     cfg.SeedAdminPassword,
	})
	if err != nil {
		return err
	}

	approverID, err := ensureWorker(ctx, pool, workerSeed{
		name:         "Maya Krishnan",
		email:        "maya@example.com",
		jurisdiction: "IN",
		role:         auth.RoleApprover,
		password:     "approver123",
		approverID:   &adminID,
	})
	if err != nil {
		return err
	}

	for _, seed := range []workerSeed{
		{name: "Arjun Rao", email: "arjun@example.com", jurisdiction: "IN", role: auth.RoleWorker, password: "worker123", approverID: &approverID},
		{name: "Priya Nair", email: "priya@example.com", jurisdiction: "IN", role: auth.RoleWorker, password: "worker123", approverID: &approverID},
	} {
		if _, err := ensureWorker(ctx, pool, seed); err != nil {
			return err
		}
	}

	return ensureHolidays(ctx, pool)
}

type workerSeed struct {
	name         string
	email        string
	jurisdiction string
	role         string
	password     string
	approverID   *string
}

func ensureWorker(ctx context.Context, pool *pgxpool.Pool, seed workerSeed) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM workers WHERE email = $1", seed.email).Scan(&id)
	if err == nil {
		return id, nil
	}

	hash, err := auth.HashPassword(seed.password)
	if err != nil {
		return "", err
	}

	err = pool.QueryRow(ctx, `
    INSERT INTO workers (name, email, jurisdiction, role, approver_id, password_hash)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING id
  `, seed.name, seed.email, seed.jurisdiction, seed.role, seed.approverID, hash).Scan(&id)
	if err != nil {
		return "", err
	}

	_, err = pool.Exec(ctx, `
    INSERT INTO balances (worker_id, casual_days, sick_days, privilege_days)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (worker_id) DO NOTHING
  `, id, balance.DefaultCasual, balance.DefaultSick, balance.DefaultPrivilege)
	if err != nil {
		return "", err
	}
	return id, nil
}

func ensureHolidays(ctx context.Context, pool *pgxpool.Pool) error {
	year := time.Now().Year()
	for _, y := range []int{year, year + 1} {
		for _, h := range []struct {
			month time.Month
			day   int
			name  string
		}{
			{time.January, 26, "Republic Day"},
			{time.August, 15, "Independence Day"},
			{time.October, 2, "Gandhi Jayanti"},
		} {
			date := time.Date(y, h.month, h.day, 0, 0, 0, 0, time.UTC)
			_, err := pool.Exec(ctx, `
        INSERT INTO holidays (jurisdiction, date, name)
        VALUES ($1, $2, $3)
        ON CONFLICT (jurisdiction, date) DO NOTHING
      `, "IN", date, h.name)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
