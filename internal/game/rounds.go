package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
)

// CurrentRound returns the round still accepting bets, opening the next one
// when none exists. Creation is exactly-once across processes: the rounds
// primary key arbitrates concurrent opens and the loser re-reads.
func (s *Store) CurrentRound(ctx context.Context) (Round, error) {
	for attempt := 0; attempt < 2; attempt++ {
		round, err := s.openRoundAt(ctx, time.Now())
		if err == nil {
			return round, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Round{}, err
		}

		round, err = s.createNextRound(ctx)
		if err == nil {
			return round, nil
		}
		if errors.Is(err, ErrRoundExists) {
			// Another caller opened it first, re-read on next attempt.
			continue
		}
		return Round{}, err
	}
	return Round{}, fmt.Errorf("current round: lost create race twice")
}

func (s *Store) openRoundAt(ctx context.Context, t time.Time) (Round, error) {
	var r Round
	err := s.pool.QueryRow(ctx, `
		SELECT round_number, opened_at, closes_at, result
		FROM rounds
		WHERE result IS NULL AND closes_at > $1
		ORDER BY round_number DESC LIMIT 1`, t,
	).Scan(&r.RoundNumber, &r.OpenedAt, &r.ClosesAt, &r.Result)
	return r, err
}

func (s *Store) createNextRound(ctx context.Context) (Round, error) {
	now := time.Now()

	var last int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(round_number), 0) FROM rounds`,
	).Scan(&last)
	if err != nil {
		return Round{}, fmt.Errorf("last round number: %w", err)
	}

	next := last + 1
	if last == 0 {
		next = s.cfg.RoundStartNumber
	}

	r := Round{
		RoundNumber: next,
		OpenedAt:    now,
		ClosesAt:    now.Add(s.cfg.RoundDuration),
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO rounds (round_number, opened_at, closes_at)
		VALUES ($1, $2, $3)`,
		r.RoundNumber, r.OpenedAt, r.ClosesAt)
	if isUniqueViolation(err) {
		return Round{}, ErrRoundExists
	}
	if err != nil {
		return Round{}, fmt.Errorf("create round %d: %w", r.RoundNumber, err)
	}

	log.Printf("[GAME] Opened round %d, closes at %s", r.RoundNumber, r.ClosesAt.Format(time.RFC3339))
	return r, nil
}

func (s *Store) RoundByNumber(ctx context.Context, roundNumber int64) (Round, error) {
	var r Round
	err := s.pool.QueryRow(ctx, `
		SELECT round_number, opened_at, closes_at, result
		FROM rounds WHERE round_number = $1`, roundNumber,
	).Scan(&r.RoundNumber, &r.OpenedAt, &r.ClosesAt, &r.Result)
	if errors.Is(err, pgx.ErrNoRows) {
		return Round{}, ErrRoundNotFound
	}
	if err != nil {
		return Round{}, fmt.Errorf("round %d: %w", roundNumber, err)
	}
	return r, nil
}

// DueRounds returns rounds past their close time whose result is still
// unset, oldest first. The scheduler settles them; re-listing an already
// settled round is impossible because settlement sets the result.
func (s *Store) DueRounds(ctx context.Context) ([]Round, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT round_number, opened_at, closes_at, result
		FROM rounds
		WHERE result IS NULL AND closes_at <= now()
		ORDER BY round_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("due rounds: %w", err)
	}
	defer rows.Close()

	var due []Round
	for rows.Next() {
		var r Round
		if err := rows.Scan(&r.RoundNumber, &r.OpenedAt, &r.ClosesAt, &r.Result); err != nil {
			return nil, err
		}
		due = append(due, r)
	}
	return due, rows.Err()
}

// RoundHistory lists settled rounds, most recent first.
func (s *Store) RoundHistory(ctx context.Context, limit int) ([]Round, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT round_number, opened_at, closes_at, result
		FROM rounds
		WHERE result IS NOT NULL
		ORDER BY round_number DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("round history: %w", err)
	}
	defer rows.Close()

	var history []Round
	for rows.Next() {
		var r Round
		if err := rows.Scan(&r.RoundNumber, &r.OpenedAt, &r.ClosesAt, &r.Result); err != nil {
			return nil, err
		}
		history = append(history, r)
	}
	return history, rows.Err()
}

// LastResult returns the most recently settled round's color, nil when no
// round has settled yet.
func (s *Store) LastResult(ctx context.Context) (*Color, error) {
	var result Color
	err := s.pool.QueryRow(ctx, `
		SELECT result FROM rounds
		WHERE result IS NOT NULL
		ORDER BY round_number DESC LIMIT 1`,
	).Scan(&result)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last result: %w", err)
	}
	return &result, nil
}
