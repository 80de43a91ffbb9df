package server

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"colorbet/internal/cache"
	"colorbet/internal/database"
	"colorbet/internal/game"
)

// GameStore is the slice of the game engine the HTTP layer consumes.
// Implemented by *game.Store; stubbed in handler tests.
type GameStore interface {
	GetOrCreateUser(ctx context.Context, uid, phoneNumber string) (game.User, error)
	UserByUID(ctx context.Context, uid string) (game.User, error)
	UserByID(ctx context.Context, userID int64) (game.User, error)
	Users(ctx context.Context) ([]game.User, error)

	CurrentRound(ctx context.Context) (game.Round, error)
	RoundByNumber(ctx context.Context, roundNumber int64) (game.Round, error)
	LastResult(ctx context.Context) (*game.Color, error)
	RoundHistory(ctx context.Context, limit int) ([]game.Round, error)
	SettleRound(ctx context.Context, roundNumber int64, result game.Color) error

	PlaceBet(ctx context.Context, userID, roundNumber int64, color game.Color, stake int64) (game.Bet, int64, error)
	BetsByUser(ctx context.Context, userID int64, limit int) ([]game.Bet, error)

	AdjustBalance(ctx context.Context, userID, delta int64, kind game.TxnKind, description string) (game.Transaction, int64, error)
	RequestWithdrawal(ctx context.Context, userID, amount int64, destination string) (game.Transaction, int64, error)
	ApproveWithdrawal(ctx context.Context, txnID int64) (game.Transaction, error)
	RejectWithdrawal(ctx context.Context, txnID int64) (game.Transaction, error)
	Transactions(ctx context.Context, userID int64, limit int) ([]game.Transaction, error)
	AllTransactions(ctx context.Context, kind game.TxnKind, status game.TxnStatus, limit int) ([]game.Transaction, error)

	Config() game.Config
}

type FiberServer struct {
	*fiber.App

	db        database.Service
	cache     cache.Service
	store     GameStore
	hub       *game.Hub
	scheduler *game.Scheduler
	verifier  TokenVerifier
	cfg       game.Config

	// adminToken gates the admin surface; empty disables it entirely.
	adminToken string
}

func New() *FiberServer {
	db := database.New()

	cacheService := cache.New()
	if cacheService == nil {
		log.Println("[SERVER] Redis unavailable, serving reads from Postgres only")
	}

	cfg := game.LoadConfig()
	store := game.NewStore(db.Pool(), cfg)
	drawer := game.NewDrawer(cfg.DrawWeights)
	hub := game.NewHub()

	var roundCache game.RoundCache
	if cacheService != nil {
		roundCache = cacheService
	}
	scheduler := game.NewScheduler(store, drawer, hub, roundCache)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "colorbet",
			AppName:       "colorbet",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:         db,
		cache:      cacheService,
		store:      store,
		hub:        hub,
		scheduler:  scheduler,
		verifier:   NewEnvVerifier(),
		cfg:        cfg,
		adminToken: os.Getenv("ADMIN_TOKEN"),
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()
	scheduler.Start()

	log.Println("[SERVER] Round scheduler started")

	return server
}

// Shutdown stops the scheduler and closes connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
