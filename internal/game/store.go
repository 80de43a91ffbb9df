package game

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the durable ledger: users, transactions, rounds and bets live in
// Postgres and every balance mutation commits together with its records.
type Store struct {
	pool *pgxpool.Pool
	cfg  Config
}

func NewStore(pool *pgxpool.Pool, cfg Config) *Store {
	return &Store{pool: pool, cfg: cfg}
}

func (s *Store) Config() Config {
	return s.cfg
}

// isUniqueViolation reports a Postgres duplicate-key error (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
