package game

import "errors"

// Validation failures. Rejected synchronously with no side effect.
var (
	ErrInvalidColor       = errors.New("invalid color")
	ErrStakeTooLow        = errors.New("stake below minimum bet")
	ErrAmountTooLow       = errors.New("amount below minimum")
	ErrInvalidDestination = errors.New("invalid payout destination")
)

// State conflicts. The caller should refresh state and retry.
var (
	ErrRoundClosed       = errors.New("round is closed")
	ErrRoundNotFound     = errors.New("round not found")
	ErrRoundExists       = errors.New("round already exists")
	ErrAlreadySettled    = errors.New("round already settled")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrUserNotFound      = errors.New("user not found")
	ErrTxnNotFound       = errors.New("transaction not found")
	ErrTxnNotPending     = errors.New("transaction is not pending")
)
