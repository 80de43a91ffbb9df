package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"colorbet/internal/game"
)

func (s *FiberServer) adminListUsersHandler(c *fiber.Ctx) error {
	users, err := s.store.Users(c.Context())
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(users)
}

func (s *FiberServer) adminListTransactionsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	kind := game.TxnKind(c.Query("kind"))
	status := game.TxnStatus(c.Query("status"))

	txns, err := s.store.AllTransactions(c.Context(), kind, status, limit)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(txns)
}

func (s *FiberServer) adminApproveHandler(c *fiber.Ctx) error {
	txnID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	txn, err := s.store.ApproveWithdrawal(c.Context(), txnID)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(txn)
}

func (s *FiberServer) adminRejectHandler(c *fiber.Ctx) error {
	txnID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	txn, err := s.store.RejectWithdrawal(c.Context(), txnID)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(txn)
}

// adminForceResultHandler settles a round with an operator-chosen result.
// Only available when the automatic draw is disabled, so the two result
// sources can never race each other.
func (s *FiberServer) adminForceResultHandler(c *fiber.Ctx) error {
	var body struct {
		RoundNumber int64  `json:"round_number"`
		Result      string `json:"result"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if s.cfg.AutoDraw {
		return c.Status(409).JSON(fiber.Map{"error": "Automatic draw is enabled"})
	}

	result := game.Color(body.Result)
	if !result.Valid() {
		return s.errorJSON(c, game.ErrInvalidColor)
	}

	if err := s.store.SettleRound(c.Context(), body.RoundNumber, result); err != nil {
		return s.errorJSON(c, err)
	}

	if s.scheduler != nil {
		s.scheduler.AnnounceSettled(c.Context(), body.RoundNumber)
	}

	round, err := s.store.RoundByNumber(c.Context(), body.RoundNumber)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(round)
}
