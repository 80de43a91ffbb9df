package game

import (
	"context"
	"errors"
	"log"
	"time"
)

// RoundCache is the read-side cache the scheduler keeps warm. Implemented
// by internal/cache; nil disables caching.
type RoundCache interface {
	SetCurrentRound(ctx context.Context, snapshot RoundSnapshot) error
	PushResult(ctx context.Context, round Round) error
}

// Scheduler is the single logical clock driver: it keeps a round open,
// marks due rounds for closure and hands them to settlement. Running more
// than one instance is safe; the round PK and the result fence turn the
// losers' work into no-ops.
type Scheduler struct {
	store    *Store
	drawer   *Drawer
	hub      *Hub
	cache    RoundCache
	interval time.Duration
	stopChan chan struct{}
}

func NewScheduler(store *Store, drawer *Drawer, hub *Hub, cache RoundCache) *Scheduler {
	return &Scheduler{
		store:    store,
		drawer:   drawer,
		hub:      hub,
		cache:    cache,
		interval: time.Second,
		stopChan: make(chan struct{}),
	}
}

func (sc *Scheduler) Start() {
	go sc.run()
}

func (sc *Scheduler) Stop() {
	close(sc.stopChan)
}

func (sc *Scheduler) run() {
	ctx := context.Background()

	if err := sc.store.SweepUnsettled(ctx); err != nil {
		log.Printf("[GAME] Settlement recovery failed: %v", err)
	}

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sc.tick(ctx); err != nil {
				log.Printf("[GAME] Tick failed: %v", err)
			}
		case <-sc.stopChan:
			log.Println("[GAME] Scheduler stopped")
			return
		}
	}
}

func (sc *Scheduler) tick(ctx context.Context) error {
	if sc.store.cfg.AutoDraw {
		due, err := sc.store.DueRounds(ctx)
		if err != nil {
			return err
		}
		for _, round := range due {
			result := sc.drawer.Draw()
			err := sc.store.SettleRound(ctx, round.RoundNumber, result)
			if errors.Is(err, ErrAlreadySettled) {
				// A concurrent scheduler instance won the fence.
				continue
			}
			if err != nil {
				return err
			}
			sc.announceResult(ctx, round.RoundNumber)
		}
	}

	// Catch bets that committed after their round's settlement batch ran.
	if err := sc.store.SweepUnsettled(ctx); err != nil {
		return err
	}

	round, err := sc.store.CurrentRound(ctx)
	if err != nil {
		return err
	}

	lastResult, err := sc.store.LastResult(ctx)
	if err != nil {
		return err
	}

	snapshot := Snapshot(round, lastResult, time.Now())
	if sc.cache != nil {
		if err := sc.cache.SetCurrentRound(ctx, snapshot); err != nil {
			log.Printf("[GAME] Round snapshot cache write failed: %v", err)
		}
	}
	if sc.hub != nil {
		sc.hub.Broadcast(Event{Type: "round_state", Data: snapshot})
	}
	return nil
}

// announceResult broadcasts a settled round and pushes it onto the cached
// history list. Used by the scheduler and by the admin force-settle path.
func (sc *Scheduler) announceResult(ctx context.Context, roundNumber int64) {
	round, err := sc.store.RoundByNumber(ctx, roundNumber)
	if err != nil {
		log.Printf("[GAME] Announce round %d: %v", roundNumber, err)
		return
	}
	if sc.cache != nil {
		if err := sc.cache.PushResult(ctx, round); err != nil {
			log.Printf("[GAME] Result cache push failed: %v", err)
		}
	}
	if sc.hub != nil {
		sc.hub.Broadcast(Event{Type: "round_settled", Data: round})
	}
}

// AnnounceSettled exposes announceResult for callers outside the tick loop.
func (sc *Scheduler) AnnounceSettled(ctx context.Context, roundNumber int64) {
	sc.announceResult(ctx, roundNumber)
}
