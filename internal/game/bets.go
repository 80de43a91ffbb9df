package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
)

// PlaceBet validates the wager against the open round and commits the
// balance debit, the bet transaction and the bet row as one unit. A failed
// precondition leaves zero records behind.
//
// Preconditions are checked in order and each maps to a distinct error:
// round open, color valid, stake at or above the floor, balance sufficient.
func (s *Store) PlaceBet(ctx context.Context, userID, roundNumber int64, color Color, stake int64) (Bet, int64, error) {
	round, err := s.RoundByNumber(ctx, roundNumber)
	if err != nil {
		return Bet{}, 0, err
	}
	if !round.Open(time.Now()) {
		return Bet{}, 0, ErrRoundClosed
	}
	if !color.Valid() {
		return Bet{}, 0, ErrInvalidColor
	}
	if stake < s.cfg.MinBet {
		return Bet{}, 0, ErrStakeTooLow
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Bet{}, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := applyDelta(ctx, tx, userID, -stake)
	if err != nil {
		return Bet{}, 0, err
	}

	if _, err := insertTxn(ctx, tx, userID, TxnBet, stake,
		fmt.Sprintf("Bet on %s for round %d", color, roundNumber), TxnCompleted); err != nil {
		return Bet{}, 0, err
	}

	bet, err := insertBet(ctx, tx, userID, roundNumber, color, stake)
	if err != nil {
		return Bet{}, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Bet{}, 0, fmt.Errorf("commit: %w", err)
	}

	log.Printf("[GAME] User %d bet %d on %s for round %d", userID, stake, color, roundNumber)
	return bet, newBalance, nil
}

// insertBet re-checks the round inside the transaction. The early Open
// check races with settlement on another connection; without this guard a
// bet could commit as pending after the round's settlement batch already
// read its pending set, stranding the stake. The conditional insert makes
// the decisive check and the bet row atomic.
func insertBet(ctx context.Context, tx pgx.Tx, userID, roundNumber int64, color Color, stake int64) (Bet, error) {
	var bet Bet
	err := tx.QueryRow(ctx, `
		INSERT INTO bets (user_id, round_number, color, stake)
		SELECT $1, round_number, $3, $4
		FROM rounds
		WHERE round_number = $2 AND result IS NULL AND closes_at > now()
		RETURNING id, user_id, round_number, color, stake, payout, status, placed_at`,
		userID, roundNumber, color, stake,
	).Scan(&bet.ID, &bet.UserID, &bet.RoundNumber, &bet.Color, &bet.Stake,
		&bet.Payout, &bet.Status, &bet.PlacedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bet{}, ErrRoundClosed
	}
	if err != nil {
		return Bet{}, fmt.Errorf("insert bet: %w", err)
	}
	return bet, nil
}

// BetsByUser lists a user's bets, most recent first.
func (s *Store) BetsByUser(ctx context.Context, userID int64, limit int) ([]Bet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, round_number, color, stake, payout, status, placed_at
		FROM bets WHERE user_id = $1
		ORDER BY placed_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("bets by user: %w", err)
	}
	defer rows.Close()

	var bets []Bet
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.ID, &b.UserID, &b.RoundNumber, &b.Color, &b.Stake,
			&b.Payout, &b.Status, &b.PlacedAt); err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// pendingBets returns the still-unsettled bets for a round. Settlement
// re-runs see an empty list for bets it already processed.
func (s *Store) pendingBets(ctx context.Context, roundNumber int64) ([]Bet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, round_number, color, stake, payout, status, placed_at
		FROM bets WHERE round_number = $1 AND status = 'pending'
		ORDER BY id ASC`, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("pending bets: %w", err)
	}
	defer rows.Close()

	var bets []Bet
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.ID, &b.UserID, &b.RoundNumber, &b.Color, &b.Stake,
			&b.Payout, &b.Status, &b.PlacedAt); err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}
