package server

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"colorbet/internal/game"
)

const defaultListLimit = 20

// statusForErr maps the domain error taxonomy onto HTTP statuses:
// validation 400, missing resources 404, state conflicts 409, the rest 500.
func statusForErr(err error) int {
	switch {
	case errors.Is(err, game.ErrInvalidColor),
		errors.Is(err, game.ErrStakeTooLow),
		errors.Is(err, game.ErrAmountTooLow),
		errors.Is(err, game.ErrInvalidDestination):
		return fiber.StatusBadRequest
	case errors.Is(err, game.ErrRoundNotFound),
		errors.Is(err, game.ErrUserNotFound),
		errors.Is(err, game.ErrTxnNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, game.ErrRoundClosed),
		errors.Is(err, game.ErrAlreadySettled),
		errors.Is(err, game.ErrInsufficientFunds),
		errors.Is(err, game.ErrTxnNotPending):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *FiberServer) errorJSON(c *fiber.Ctx, err error) error {
	status := statusForErr(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("[SERVER] %s %s failed: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "Internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// Auth handlers

func (s *FiberServer) loginHandler(c *fiber.Ctx) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&body); err != nil || body.Token == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Token is required"})
	}

	uid, phone, err := s.verifier.VerifiedUserID(c.Context(), body.Token)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	user, err := s.store.GetOrCreateUser(c.Context(), uid, phone)
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"uid":          user.UID,
		"phone_number": user.PhoneNumber,
		"balance":      user.Balance,
	})
}

func (s *FiberServer) getUserHandler(c *fiber.Ctx) error {
	user := currentUser(c)
	return c.JSON(fiber.Map{
		"uid":          user.UID,
		"phone_number": user.PhoneNumber,
		"balance":      user.Balance,
	})
}

// Game handlers

func (s *FiberServer) currentRoundHandler(c *fiber.Ctx) error {
	if s.cache != nil {
		if snapshot, ok := s.cache.CurrentRound(c.Context()); ok {
			return c.JSON(snapshot)
		}
	}

	round, err := s.store.CurrentRound(c.Context())
	if err != nil {
		return s.errorJSON(c, err)
	}
	lastResult, err := s.store.LastResult(c.Context())
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(game.Snapshot(round, lastResult, time.Now()))
}

func (s *FiberServer) roundHistoryHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}

	if s.cache != nil {
		if rounds, ok := s.cache.RecentResults(c.Context(), limit); ok {
			return c.JSON(rounds)
		}
	}

	history, err := s.store.RoundHistory(c.Context(), limit)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(history)
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var body struct {
		RoundNumber int64  `json:"round_number"`
		Color       string `json:"color"`
		Stake       int64  `json:"stake"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	user := currentUser(c)
	bet, newBalance, err := s.store.PlaceBet(c.Context(), user.ID,
		body.RoundNumber, game.Color(body.Color), body.Stake)
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"balance": newBalance,
		"bet_id":  bet.ID,
	})
}

func (s *FiberServer) myBetsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}

	user := currentUser(c)
	bets, err := s.store.BetsByUser(c.Context(), user.ID, limit)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(bets)
}

// Wallet handlers

func (s *FiberServer) depositHandler(c *fiber.Ctx) error {
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.Amount < s.cfg.MinDeposit {
		return s.errorJSON(c, game.ErrAmountTooLow)
	}

	user := currentUser(c)
	txn, newBalance, err := s.store.AdjustBalance(c.Context(), user.ID,
		body.Amount, game.TxnDeposit, "Deposit via UPI")
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"balance":        newBalance,
		"transaction_id": txn.ID,
	})
}

func (s *FiberServer) withdrawHandler(c *fiber.Ctx) error {
	var body struct {
		Amount int64  `json:"amount"`
		UpiID  string `json:"upi_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.Amount < s.cfg.MinWithdraw {
		return s.errorJSON(c, game.ErrAmountTooLow)
	}
	if !strings.Contains(body.UpiID, "@") {
		return s.errorJSON(c, game.ErrInvalidDestination)
	}

	user := currentUser(c)
	txn, newBalance, err := s.store.RequestWithdrawal(c.Context(), user.ID, body.Amount, body.UpiID)
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"balance":        newBalance,
		"transaction_id": txn.ID,
	})
}

func (s *FiberServer) transactionsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}

	user := currentUser(c)
	txns, err := s.store.Transactions(c.Context(), user.ID, limit)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(txns)
}

// WebSocket handler

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	uid := conn.Query("uid", "anonymous")

	log.Printf("[WS] New connection from user: %s", uid)
	s.hub.RegisterClient(conn, uid)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			s.hub.UnregisterClient(conn)
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}
		var clientMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			continue
		}
		if clientMsg.Type == "ping" {
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			conn.WriteMessage(websocket.TextMessage, pong)
		}
	}
}
