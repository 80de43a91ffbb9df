package game

import (
	"context"
	"fmt"
	"log"
)

// SettleRound assigns the result and pays out every pending bet for the
// round. The result write is the idempotence fence: it only succeeds while
// the result is unset, so a second invocation (or a racing scheduler
// instance) fails with ErrAlreadySettled before touching any balance.
//
// Each bet settles in its own transaction (credit, win record and bet
// update commit together), and only bets still pending are picked up, so
// an interrupted run can be resumed safely with at-most-once payout.
func (s *Store) SettleRound(ctx context.Context, roundNumber int64, result Color) error {
	if !result.Valid() {
		return ErrInvalidColor
	}
	if _, err := s.RoundByNumber(ctx, roundNumber); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE rounds SET result = $2
		WHERE round_number = $1 AND result IS NULL`,
		roundNumber, result)
	if err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadySettled
	}

	return s.settlePendingBets(ctx, roundNumber, result)
}

// ResumeSettlement finishes payouts for a round whose result is already set,
// e.g. after a crash mid-batch. A no-op when nothing is pending.
func (s *Store) ResumeSettlement(ctx context.Context, roundNumber int64) error {
	round, err := s.RoundByNumber(ctx, roundNumber)
	if err != nil {
		return err
	}
	if round.Result == nil {
		return ErrRoundNotFound
	}
	return s.settlePendingBets(ctx, roundNumber, *round.Result)
}

// SweepUnsettled finishes payouts for rounds that have a result but still
// carry pending bets: a run that died mid-batch, or a bet whose transaction
// committed after the settlement batch read its pending set.
func (s *Store) SweepUnsettled(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT b.round_number
		FROM bets b JOIN rounds r ON r.round_number = b.round_number
		WHERE b.status = 'pending' AND r.result IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("find unfinished rounds: %w", err)
	}
	defer rows.Close()

	var unfinished []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return err
		}
		unfinished = append(unfinished, n)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, n := range unfinished {
		log.Printf("[GAME] Resuming settlement of round %d", n)
		if err := s.ResumeSettlement(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) settlePendingBets(ctx context.Context, roundNumber int64, result Color) error {
	bets, err := s.pendingBets(ctx, roundNumber)
	if err != nil {
		return err
	}

	won, lost := 0, 0
	for _, bet := range bets {
		if bet.Color == result {
			if err := s.settleWin(ctx, bet, result); err != nil {
				return fmt.Errorf("settle bet %d: %w", bet.ID, err)
			}
			won++
		} else {
			if err := s.settleLoss(ctx, bet); err != nil {
				return fmt.Errorf("settle bet %d: %w", bet.ID, err)
			}
			lost++
		}
	}

	log.Printf("[GAME] Settled round %d with %s: %d won, %d lost", roundNumber, result, won, lost)
	return nil
}

// settleWin credits the payout, records the win transaction and flips the
// bet to won in one transaction. The pending guard on the bet update makes
// a replay after a partial failure skip bets already paid.
func (s *Store) settleWin(ctx context.Context, bet Bet, result Color) error {
	payout := bet.Stake * result.Multiplier()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE bets SET status = 'won', payout = $2
		WHERE id = $1 AND status = 'pending'`,
		bet.ID, payout)
	if err != nil {
		return fmt.Errorf("mark won: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already settled by an earlier, interrupted run.
		return nil
	}

	if _, err := applyDelta(ctx, tx, bet.UserID, payout); err != nil {
		return err
	}

	if _, err := insertTxn(ctx, tx, bet.UserID, TxnWin, payout,
		fmt.Sprintf("Won from %s bet on round %d", result, bet.RoundNumber), TxnCompleted); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) settleLoss(ctx context.Context, bet Bet) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE bets SET status = 'lost'
		WHERE id = $1 AND status = 'pending'`,
		bet.ID)
	if err != nil {
		return fmt.Errorf("mark lost: %w", err)
	}
	return nil
}
