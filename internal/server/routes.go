package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	api.Post("/login", s.loginHandler)
	api.Get("/user", s.requireUser, s.getUserHandler)

	api.Get("/game/current", s.currentRoundHandler)
	api.Get("/game/history", s.roundHistoryHandler)
	api.Post("/game/bet", s.requireUser, s.placeBetHandler)
	api.Get("/game/bets", s.requireUser, s.myBetsHandler)

	api.Post("/wallet/deposit", s.requireUser, s.depositHandler)
	api.Post("/wallet/withdraw", s.requireUser, s.withdrawHandler)
	api.Get("/wallet/transactions", s.requireUser, s.transactionsHandler)

	admin := api.Group("/admin", s.requireAdmin)
	admin.Get("/users", s.adminListUsersHandler)
	admin.Get("/transactions", s.adminListTransactionsHandler)
	admin.Post("/transactions/:id/approve", s.adminApproveHandler)
	admin.Post("/transactions/:id/reject", s.adminRejectHandler)
	admin.Post("/game/result", s.adminForceResultHandler)

	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": s.db.Health(),
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.ClientCount(),
		},
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	return c.JSON(health)
}
