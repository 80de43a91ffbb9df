package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetOrCreateUser maps a verified external identity onto a ledger account,
// creating it with a zero balance on first sight.
func (s *Store) GetOrCreateUser(ctx context.Context, uid, phoneNumber string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (uid, phone_number) VALUES ($1, $2)
		ON CONFLICT (uid) DO UPDATE SET uid = EXCLUDED.uid
		RETURNING id, uid, phone_number, balance, created_at`,
		uid, phoneNumber,
	).Scan(&u.ID, &u.UID, &u.PhoneNumber, &u.Balance, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("get or create user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, userID int64) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, uid, phone_number, balance, created_at
		FROM users WHERE id = $1`, userID,
	).Scan(&u.ID, &u.UID, &u.PhoneNumber, &u.Balance, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("user by id: %w", err)
	}
	return u, nil
}

// UserByUID resolves the external verified identity to the ledger account.
func (s *Store) UserByUID(ctx context.Context, uid string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, uid, phone_number, balance, created_at
		FROM users WHERE uid = $1`, uid,
	).Scan(&u.ID, &u.UID, &u.PhoneNumber, &u.Balance, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("user by uid: %w", err)
	}
	return u, nil
}

// AdjustBalance applies a signed delta to a user balance and records the
// matching completed transaction, both-or-neither. A debit that would push
// the balance negative fails with ErrInsufficientFunds and leaves no trace.
func (s *Store) AdjustBalance(ctx context.Context, userID, delta int64, kind TxnKind, description string) (Transaction, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := applyDelta(ctx, tx, userID, delta)
	if err != nil {
		return Transaction{}, 0, err
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	txn, err := insertTxn(ctx, tx, userID, kind, amount, description, TxnCompleted)
	if err != nil {
		return Transaction{}, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, 0, fmt.Errorf("commit: %w", err)
	}
	return txn, newBalance, nil
}

// RequestWithdrawal debits the amount up front and leaves the transaction
// pending for admin review.
func (s *Store) RequestWithdrawal(ctx context.Context, userID, amount int64, destination string) (Transaction, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := applyDelta(ctx, tx, userID, -amount)
	if err != nil {
		return Transaction{}, 0, err
	}

	txn, err := insertTxn(ctx, tx, userID, TxnWithdraw, amount,
		"Withdrawal to "+destination, TxnPending)
	if err != nil {
		return Transaction{}, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, 0, fmt.Errorf("commit: %w", err)
	}
	return txn, newBalance, nil
}

// ApproveWithdrawal marks a pending withdraw transaction completed. The
// balance was already debited at request time, so nothing else moves.
func (s *Store) ApproveWithdrawal(ctx context.Context, txnID int64) (Transaction, error) {
	var txn Transaction
	err := s.pool.QueryRow(ctx, `
		UPDATE transactions SET status = 'completed'
		WHERE id = $1 AND kind = 'withdraw' AND status = 'pending'
		RETURNING id, user_id, kind, amount, description, status, created_at`,
		txnID,
	).Scan(&txn.ID, &txn.UserID, &txn.Kind, &txn.Amount, &txn.Description, &txn.Status, &txn.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, s.classifyTxnMiss(ctx, txnID)
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("approve withdrawal: %w", err)
	}
	return txn, nil
}

// RejectWithdrawal marks a pending withdraw transaction rejected and puts
// the amount back, with a refund record, in one atomic unit.
func (s *Store) RejectWithdrawal(ctx context.Context, txnID int64) (Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var txn Transaction
	err = tx.QueryRow(ctx, `
		UPDATE transactions SET status = 'rejected'
		WHERE id = $1 AND kind = 'withdraw' AND status = 'pending'
		RETURNING id, user_id, kind, amount, description, status, created_at`,
		txnID,
	).Scan(&txn.ID, &txn.UserID, &txn.Kind, &txn.Amount, &txn.Description, &txn.Status, &txn.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, s.classifyTxnMiss(ctx, txnID)
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("reject withdrawal: %w", err)
	}

	if _, err := applyDelta(ctx, tx, txn.UserID, txn.Amount); err != nil {
		return Transaction{}, err
	}

	if _, err := insertTxn(ctx, tx, txn.UserID, TxnRefund, txn.Amount,
		fmt.Sprintf("Refund for rejected withdrawal #%d", txn.ID), TxnCompleted); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, fmt.Errorf("commit: %w", err)
	}
	return txn, nil
}

// Transactions lists a user's transactions, most recent first.
func (s *Store) Transactions(ctx context.Context, userID int64, limit int) ([]Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, kind, amount, description, status, created_at
		FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return scanTxns(rows)
}

// AllTransactions lists transactions across users, optionally filtered by
// kind and status. Admin surface only.
func (s *Store) AllTransactions(ctx context.Context, kind TxnKind, status TxnStatus, limit int) ([]Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, kind, amount, description, status, created_at
		FROM transactions
		WHERE ($1 = '' OR kind = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC LIMIT $3`,
		string(kind), string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list all transactions: %w", err)
	}
	defer rows.Close()
	return scanTxns(rows)
}

// Users lists all ledger accounts, newest first. Admin surface only.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, uid, phone_number, balance, created_at
		FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.UID, &u.PhoneNumber, &u.Balance, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// classifyTxnMiss distinguishes a missing transaction from one that exists
// but is not an approvable pending withdrawal.
func (s *Store) classifyTxnMiss(ctx context.Context, txnID int64) error {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM transactions WHERE id = $1 AND kind = 'withdraw'`, txnID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTxnNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect transaction: %w", err)
	}
	return ErrTxnNotPending
}

// applyDelta is the single balance mutation point. The balance guard sits
// inside the UPDATE itself so concurrent debits serialize on the row and a
// lost update cannot happen.
func applyDelta(ctx context.Context, tx pgx.Tx, userID, delta int64) (int64, error) {
	var newBalance int64
	err := tx.QueryRow(ctx, `
		UPDATE users SET balance = balance + $1
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance`,
		delta, userID,
	).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the user is missing or the debit would overdraw.
		var exists bool
		if checkErr := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
		).Scan(&exists); checkErr != nil {
			return 0, fmt.Errorf("check user: %w", checkErr)
		}
		if !exists {
			return 0, ErrUserNotFound
		}
		return 0, ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}
	return newBalance, nil
}

func insertTxn(ctx context.Context, tx pgx.Tx, userID int64, kind TxnKind, amount int64, description string, status TxnStatus) (Transaction, error) {
	var txn Transaction
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, kind, amount, description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, kind, amount, description, status, created_at`,
		userID, kind, amount, description, status,
	).Scan(&txn.ID, &txn.UserID, &txn.Kind, &txn.Amount, &txn.Description, &txn.Status, &txn.CreatedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return txn, nil
}

func scanTxns(rows pgx.Rows) ([]Transaction, error) {
	var txns []Transaction
	for rows.Next() {
		var txn Transaction
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.Kind, &txn.Amount,
			&txn.Description, &txn.Status, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
