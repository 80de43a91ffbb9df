package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"colorbet/internal/game"
)

// stubStore records calls and returns canned values; handler tests only
// exercise the HTTP glue, the engine itself is covered in internal/game.
type stubStore struct {
	user      game.User
	round     game.Round
	history   []game.Round
	placeErr  error
	adjustErr error
	calls     []string
}

func (s *stubStore) GetOrCreateUser(ctx context.Context, uid, phone string) (game.User, error) {
	s.calls = append(s.calls, "GetOrCreateUser")
	return s.user, nil
}

func (s *stubStore) UserByUID(ctx context.Context, uid string) (game.User, error) {
	if uid != s.user.UID {
		return game.User{}, game.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubStore) UserByID(ctx context.Context, id int64) (game.User, error) {
	return s.user, nil
}

func (s *stubStore) Users(ctx context.Context) ([]game.User, error) {
	return []game.User{s.user}, nil
}

func (s *stubStore) CurrentRound(ctx context.Context) (game.Round, error) {
	return s.round, nil
}

func (s *stubStore) RoundByNumber(ctx context.Context, n int64) (game.Round, error) {
	if n != s.round.RoundNumber {
		return game.Round{}, game.ErrRoundNotFound
	}
	return s.round, nil
}

func (s *stubStore) LastResult(ctx context.Context) (*game.Color, error) {
	return nil, nil
}

func (s *stubStore) RoundHistory(ctx context.Context, limit int) ([]game.Round, error) {
	return s.history, nil
}

func (s *stubStore) SettleRound(ctx context.Context, n int64, result game.Color) error {
	s.calls = append(s.calls, "SettleRound")
	return nil
}

func (s *stubStore) PlaceBet(ctx context.Context, userID, roundNumber int64, color game.Color, stake int64) (game.Bet, int64, error) {
	s.calls = append(s.calls, "PlaceBet")
	if s.placeErr != nil {
		return game.Bet{}, 0, s.placeErr
	}
	return game.Bet{ID: 7, UserID: userID, RoundNumber: roundNumber, Color: color, Stake: stake}, s.user.Balance - stake, nil
}

func (s *stubStore) BetsByUser(ctx context.Context, userID int64, limit int) ([]game.Bet, error) {
	return nil, nil
}

func (s *stubStore) AdjustBalance(ctx context.Context, userID, delta int64, kind game.TxnKind, desc string) (game.Transaction, int64, error) {
	s.calls = append(s.calls, "AdjustBalance")
	if s.adjustErr != nil {
		return game.Transaction{}, 0, s.adjustErr
	}
	return game.Transaction{ID: 11, UserID: userID, Kind: kind, Amount: delta}, s.user.Balance + delta, nil
}

func (s *stubStore) RequestWithdrawal(ctx context.Context, userID, amount int64, dest string) (game.Transaction, int64, error) {
	s.calls = append(s.calls, "RequestWithdrawal")
	return game.Transaction{ID: 12, UserID: userID, Kind: game.TxnWithdraw, Amount: amount, Status: game.TxnPending}, s.user.Balance - amount, nil
}

func (s *stubStore) ApproveWithdrawal(ctx context.Context, txnID int64) (game.Transaction, error) {
	return game.Transaction{ID: txnID, Status: game.TxnCompleted}, nil
}

func (s *stubStore) RejectWithdrawal(ctx context.Context, txnID int64) (game.Transaction, error) {
	return game.Transaction{ID: txnID, Status: game.TxnRejected}, nil
}

func (s *stubStore) Transactions(ctx context.Context, userID int64, limit int) ([]game.Transaction, error) {
	return nil, nil
}

func (s *stubStore) AllTransactions(ctx context.Context, kind game.TxnKind, status game.TxnStatus, limit int) ([]game.Transaction, error) {
	return nil, nil
}

func (s *stubStore) Config() game.Config {
	return game.Config{MinBet: 10, MinDeposit: 100, MinWithdraw: 100}
}

func newTestServer(store GameStore, autoDraw bool) *FiberServer {
	s := &FiberServer{
		App:   fiber.New(),
		store: store,
		hub:   game.NewHub(),
		verifier: &EnvVerifier{identities: map[string][2]string{
			"demo-token": {"demo-uid", "+911234567890"},
		}},
		cfg: game.Config{
			MinBet:      10,
			MinDeposit:  100,
			MinWithdraw: 100,
			AutoDraw:    autoDraw,
		},
		adminToken: os.Getenv("ADMIN_TOKEN"),
	}

	api := s.App.Group("/api/v1")
	api.Post("/login", s.loginHandler)
	api.Get("/user", s.requireUser, s.getUserHandler)
	api.Get("/game/current", s.currentRoundHandler)
	api.Get("/game/history", s.roundHistoryHandler)
	api.Post("/game/bet", s.requireUser, s.placeBetHandler)
	api.Post("/wallet/deposit", s.requireUser, s.depositHandler)
	api.Post("/wallet/withdraw", s.requireUser, s.withdrawHandler)

	admin := api.Group("/admin", s.requireAdmin)
	admin.Post("/game/result", s.adminForceResultHandler)

	return s
}

func doJSON(t *testing.T, app *fiber.App, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reqBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("perform request: %v", err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var result map[string]any
	json.Unmarshal(data, &result)
	return resp, result
}

func openStub() *stubStore {
	return &stubStore{
		user: game.User{ID: 1, UID: "demo-uid", Balance: 1000},
		round: game.Round{
			RoundNumber: 100000,
			OpenedAt:    time.Now(),
			ClosesAt:    time.Now().Add(time.Minute),
		},
	}
}

func TestLoginHandler(t *testing.T) {
	store := openStub()
	srv := newTestServer(store, true)

	t.Run("valid token creates account", func(t *testing.T) {
		resp, body := doJSON(t, srv.App, "POST", "/api/v1/login", "", `{"token":"demo-token"}`)
		if resp.StatusCode != 200 {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if body["uid"] != "demo-uid" {
			t.Errorf("uid = %v, want demo-uid", body["uid"])
		}
	})

	t.Run("unknown token rejected", func(t *testing.T) {
		resp, _ := doJSON(t, srv.App, "POST", "/api/v1/login", "", `{"token":"bogus"}`)
		if resp.StatusCode != 401 {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("missing token rejected", func(t *testing.T) {
		resp, _ := doJSON(t, srv.App, "POST", "/api/v1/login", "", `{}`)
		if resp.StatusCode != 400 {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(openStub(), true)

	t.Run("no bearer token", func(t *testing.T) {
		resp, _ := doJSON(t, srv.App, "GET", "/api/v1/user", "", "")
		if resp.StatusCode != 401 {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("valid token loads user", func(t *testing.T) {
		resp, body := doJSON(t, srv.App, "GET", "/api/v1/user", "demo-token", "")
		if resp.StatusCode != 200 {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if body["balance"] != float64(1000) {
			t.Errorf("balance = %v, want 1000", body["balance"])
		}
	})
}

func TestPlaceBetHandler(t *testing.T) {
	t.Run("success returns new balance and bet id", func(t *testing.T) {
		store := openStub()
		srv := newTestServer(store, true)

		resp, body := doJSON(t, srv.App, "POST", "/api/v1/game/bet", "demo-token",
			`{"round_number":100000,"color":"red","stake":100}`)
		if resp.StatusCode != 200 {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if body["balance"] != float64(900) {
			t.Errorf("balance = %v, want 900", body["balance"])
		}
		if body["bet_id"] != float64(7) {
			t.Errorf("bet_id = %v, want 7", body["bet_id"])
		}
	})

	t.Run("error statuses follow the taxonomy", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want int
		}{
			{"closed round", game.ErrRoundClosed, 409},
			{"invalid color", game.ErrInvalidColor, 400},
			{"stake too low", game.ErrStakeTooLow, 400},
			{"insufficient balance", game.ErrInsufficientFunds, 409},
			{"unknown round", game.ErrRoundNotFound, 404},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := openStub()
				store.placeErr = tt.err
				srv := newTestServer(store, true)

				resp, _ := doJSON(t, srv.App, "POST", "/api/v1/game/bet", "demo-token",
					`{"round_number":100000,"color":"red","stake":100}`)
				if resp.StatusCode != tt.want {
					t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
				}
			})
		}
	})
}

func TestDepositHandler_FloorCheck(t *testing.T) {
	store := openStub()
	srv := newTestServer(store, true)

	resp, _ := doJSON(t, srv.App, "POST", "/api/v1/wallet/deposit", "demo-token",
		`{"amount":50}`)
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	for _, call := range store.calls {
		if call == "AdjustBalance" {
			t.Error("deposit below floor must not reach the store")
		}
	}
}

func TestWithdrawHandler_Validation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      int
		wantStore bool
	}{
		{"below floor", `{"amount":50,"upi_id":"user@upi"}`, 400, false},
		{"bad destination", `{"amount":500,"upi_id":"no-at-sign"}`, 400, false},
		{"valid", `{"amount":500,"upi_id":"user@upi"}`, 200, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openStub()
			srv := newTestServer(store, true)

			resp, _ := doJSON(t, srv.App, "POST", "/api/v1/wallet/withdraw", "demo-token", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}

			reached := false
			for _, call := range store.calls {
				if call == "RequestWithdrawal" {
					reached = true
				}
			}
			if reached != tt.wantStore {
				t.Errorf("store reached = %v, want %v", reached, tt.wantStore)
			}
		})
	}
}

func TestCurrentRoundHandler(t *testing.T) {
	srv := newTestServer(openStub(), true)

	resp, body := doJSON(t, srv.App, "GET", "/api/v1/game/current", "", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["round_number"] != float64(100000) {
		t.Errorf("round_number = %v, want 100000", body["round_number"])
	}
	timeLeft, ok := body["time_left"].(float64)
	if !ok || timeLeft <= 0 || timeLeft > 60 {
		t.Errorf("time_left = %v, want within (0, 60]", body["time_left"])
	}
}

func TestAdminForceResult(t *testing.T) {
	t.Run("disabled without configured token", func(t *testing.T) {
		os.Unsetenv("ADMIN_TOKEN")
		srv := newTestServer(openStub(), false)
		resp, _ := doJSON(t, srv.App, "POST", "/api/v1/admin/game/result", "anything",
			`{"round_number":100000,"result":"red"}`)
		if resp.StatusCode != 403 {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	os.Setenv("ADMIN_TOKEN", "admin-secret")
	defer os.Unsetenv("ADMIN_TOKEN")

	t.Run("requires admin token", func(t *testing.T) {
		srv := newTestServer(openStub(), false)
		resp, _ := doJSON(t, srv.App, "POST", "/api/v1/admin/game/result", "wrong",
			`{"round_number":100000,"result":"red"}`)
		if resp.StatusCode != 403 {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("refused while auto draw is on", func(t *testing.T) {
		store := openStub()
		srv := newTestServer(store, true)
		resp, _ := doJSON(t, srv.App, "POST", "/api/v1/admin/game/result", "admin-secret",
			`{"round_number":100000,"result":"red"}`)
		if resp.StatusCode != 409 {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
		for _, call := range store.calls {
			if call == "SettleRound" {
				t.Error("settle must not run while auto draw is enabled")
			}
		}
	})

	t.Run("settles when auto draw is off", func(t *testing.T) {
		store := openStub()
		srv := newTestServer(store, false)
		srv.scheduler = nil // announce is skipped without a scheduler

		resp, _ := doJSON(t, srv.App, "POST", "/api/v1/admin/game/result", "admin-secret",
			`{"round_number":100000,"result":"violet"}`)
		if resp.StatusCode != 200 {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("invalid result color", func(t *testing.T) {
		srv := newTestServer(openStub(), false)
		resp, _ := doJSON(t, srv.App, "POST", "/api/v1/admin/game/result", "admin-secret",
			`{"round_number":100000,"result":"blue"}`)
		if resp.StatusCode != 400 {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}
