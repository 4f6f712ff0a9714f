package leave

import "github.com/jackc/pgx/v5/pgxpool"

// PostgresStore implements Store on the leave_requests table.
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}
