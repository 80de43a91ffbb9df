package game

import (
	"time"
)

// Color is one of the three outcomes a round can settle on.
type Color string

const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorViolet Color = "violet"
)

// Fixed payout table. Not configurable per round.
var multipliers = map[Color]int64{
	ColorRed:    2,
	ColorGreen:  5,
	ColorViolet: 10,
}

func (c Color) Valid() bool {
	_, ok := multipliers[c]
	return ok
}

// Multiplier returns the payout factor for the color, 0 for invalid colors.
func (c Color) Multiplier() int64 {
	return multipliers[c]
}

type TxnKind string

const (
	TxnDeposit  TxnKind = "deposit"
	TxnWithdraw TxnKind = "withdraw"
	TxnBet      TxnKind = "bet"
	TxnWin      TxnKind = "win"
	TxnRefund   TxnKind = "refund"
)

type TxnStatus string

const (
	TxnPending   TxnStatus = "pending"
	TxnCompleted TxnStatus = "completed"
	TxnRejected  TxnStatus = "rejected"
)

type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
)

type User struct {
	ID          int64     `json:"id"`
	UID         string    `json:"uid"`
	PhoneNumber string    `json:"phone_number"`
	Balance     int64     `json:"balance"`
	CreatedAt   time.Time `json:"created_at"`
}

// Transaction is an append-only record of a balance change. Amounts are in
// minor currency units and always positive; the kind carries the direction.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Kind        TxnKind   `json:"kind"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Status      TxnStatus `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Round is one timed betting cycle. Result stays nil until settlement sets
// it exactly once.
type Round struct {
	RoundNumber int64     `json:"round_number"`
	OpenedAt    time.Time `json:"opened_at"`
	ClosesAt    time.Time `json:"closes_at"`
	Result      *Color    `json:"result,omitempty"`
}

// Open reports whether the round still accepts bets at t. The close time is
// the barrier, not a status flag, so it holds even before settlement runs.
func (r Round) Open(t time.Time) bool {
	return r.Result == nil && r.ClosesAt.After(t)
}

type Bet struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	RoundNumber int64     `json:"round_number"`
	Color       Color     `json:"color"`
	Stake       int64     `json:"stake"`
	Payout      *int64    `json:"payout,omitempty"`
	Status      BetStatus `json:"status"`
	PlacedAt    time.Time `json:"placed_at"`
}

// RoundSnapshot is the client-facing view of the current round. TimeLeft is
// computed from the stored close time, never from client-side timers.
type RoundSnapshot struct {
	RoundNumber int64  `json:"round_number"`
	TimeLeft    int64  `json:"time_left"`
	LastResult  *Color `json:"last_result,omitempty"`
}

func Snapshot(r Round, lastResult *Color, now time.Time) RoundSnapshot {
	left := int64(r.ClosesAt.Sub(now).Seconds())
	if left < 0 {
		left = 0
	}
	return RoundSnapshot{
		RoundNumber: r.RoundNumber,
		TimeLeft:    left,
		LastResult:  lastResult,
	}
}
