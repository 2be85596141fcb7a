// FILE: engine.go
// Package main – the processor worker: single owner of engine state, driving
// Anchor -> Reconciler(fill detect) -> Reconciler(sync) -> Planner ->
// Placement -> TP match -> persist on every tick (SPEC_FULL §5). Fill
// detection must run against last tick's OpenBuyMap before Sync rebuilds it
// from venue truth, or a fill's evidence (its key already vanished from the
// live snapshot) is erased before it can be classified.
//
// Grounded on step.go's step(ctx, candles) — the single-entry, single-tick
// shape — restructured around the spec's single-owner-worker model instead
// of the teacher's mutex-guarded Trader (see DESIGN.md Open Question 1).

package main

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// OpenBuyEntry is one live resting buy the engine believes exists.
type OpenBuyEntry struct {
	Price   decimal.Decimal
	OrderID string
}

// priceKey is the canonical map key for a price: its fixed-point string with
// 8 decimal places. Two prices are "the same grid level" iff their priceKey
// matches.
func priceKey(d decimal.Decimal) string {
	return d.StringFixed(8)
}

// EngineState is all state the processor worker owns and mutates. Nothing
// outside the processor goroutine ever touches it; that is what lets the
// tick sequence run lock-free (SPEC_FULL §5, §9).
type EngineState struct {
	Bot BotState // persisted subset

	OpenBuyMap map[string]OpenBuyEntry // price-key -> live buy (derived, rebuilt every tick; also drives Placement)

	TPBlocked          map[string]struct{} // entry-price-key -> exists (derived)
	SuppressUntil      map[string]int64    // price-key -> unix seconds until retry allowed (in-memory)
	PendingSubmissions map[string]struct{} // price-key -> submission in flight (in-memory)
	SuspectedFilled    map[string]int64    // order id -> unix seconds first suspected vanished (in-memory, debounce)

	nonce int64
}

func newEngineState(bot BotState) *EngineState {
	st := &EngineState{
		Bot:                bot,
		OpenBuyMap:         map[string]OpenBuyEntry{},
		TPBlocked:          map[string]struct{}{},
		SuppressUntil:      map[string]int64{},
		PendingSubmissions: map[string]struct{}{},
		SuspectedFilled:    map[string]int64{},
	}
	for _, pos := range bot.Positions {
		st.TPBlocked[priceKey(pos.Entry)] = struct{}{}
	}
	for key, orderID := range bot.OpenBuyPriceToID {
		price, err := decimal.NewFromString(key)
		if err != nil {
			continue
		}
		st.OpenBuyMap[key] = OpenBuyEntry{Price: price, OrderID: orderID}
	}
	return st
}

// syncForSave mirrors OpenBuyMap into the persisted BotState before a Save
// call, so Invariant 6's round-trip covers live buys too (SPEC_FULL §3/§8).
func (st *EngineState) syncForSave() {
	persisted := make(map[string]string, len(st.OpenBuyMap))
	for key, entry := range st.OpenBuyMap {
		persisted[key] = entry.OrderID
	}
	st.Bot.OpenBuyPriceToID = persisted
}

func (st *EngineState) nextNonce() int64 {
	st.nonce++
	return st.nonce
}

// Tick is one (bid, ask) observation from the Price Feed.
type Tick struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
	At  time.Time
}

// Engine wires every component together and runs the processor loop.
type Engine struct {
	cfg     Config
	venue   Venue
	store   *StateStore
	journal *Journal
	alerter Alerter

	anchor      *AnchorController
	planner     *GridPlanner
	placement   *PlacementController
	reconciler  *FillReconciler
	tp          *TPLifecycle

	quantizer *Quantizer

	state *EngineState

	ticks chan Tick

	wg       sync.WaitGroup
	haltOnce sync.Once
}

func NewEngine(cfg Config, venue Venue, store *StateStore, journal *Journal, alerter Alerter) (*Engine, error) {
	bot, fresh, err := store.Load()
	if err != nil {
		return nil, err
	}
	if fresh {
		logger.Info().Msg("starting with fresh engine state")
	}
	st := newEngineState(bot)

	filters, err := venue.ExchangeInfo(context.Background(), cfg.Symbol)
	if err != nil {
		return nil, err
	}
	q := NewQuantizer(filters)

	if cfg.AutoFee {
		rate, err := venue.CommissionRate(context.Background(), cfg.Symbol)
		if err != nil {
			logger.Warn().Err(err).Msg("auto_fee: commission rate lookup failed, keeping configured taker_fee")
		} else {
			cfg.TakerFee = rate
		}
	}

	e := &Engine{
		cfg:       cfg,
		venue:     venue,
		store:     store,
		journal:   journal,
		alerter:   alerter,
		anchor:    NewAnchorController(cfg, journal),
		planner:   NewGridPlanner(cfg),
		quantizer: q,
		state:     st,
		ticks:     make(chan Tick, 1000),
	}
	e.placement = NewPlacementController(cfg, venue, q, journal)
	e.reconciler = NewFillReconciler(cfg, venue, journal)
	e.tp = NewTPLifecycle(cfg, venue, q, journal, e.placement)
	return e, nil
}

// Enqueue is called by the Price Feed worker. The queue is bounded at 1000
// and drops the newest tick when full, matching SPEC_FULL §5.
func (e *Engine) Enqueue(t Tick) {
	select {
	case e.ticks <- t:
	default:
		logger.Debug().Msg("tick queue full, dropping newest tick")
	}
}

// Start launches the processor loop on its own goroutine and returns
// immediately; call Wait (or awaitShutdown) to join it.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.run(ctx)
}

// run is the processor loop body. On ctx cancellation it halts the engine
// itself (cancels live buys, persists) before returning, so Halt always runs
// on the same goroutine that owns EngineState — nothing else ever touches it.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	e.tp.EnsureTPsForPositions(ctx, e.state)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownJoinTimeout)
			e.Halt(shutdownCtx)
			cancel()
			return
		case t, ok := <-e.ticks:
			if !ok {
				return
			}
			e.processTick(ctx, t)
		case <-time.After(600 * time.Millisecond):
			// bounded-wait dequeue timeout; loop back to check ctx/halt
		}
	}
}

// Wait blocks until the processor loop has exited.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) processTick(ctx context.Context, t Tick) {
	now := t.At.Unix()
	mid := t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))

	spreadBps := decimal.Zero
	if !t.Bid.IsZero() {
		spreadBps = t.Ask.Sub(t.Bid).Div(t.Bid).Mul(decimal.NewFromInt(10000))
	}
	if spreadBps.GreaterThan(e.cfg.MaxSpreadBps) {
		logger.Debug().Str("spread_bps", spreadBps.String()).Msg("spread too wide, skipping placement/TP this tick")
		return
	}

	e.rollDailySpend()

	// 1. Anchor
	e.anchor.InitIfFresh(e.state, mid)
	reanchored, err := e.anchor.TrailUp(ctx, e.state, e.venue, mid, now)
	if err != nil {
		logger.Error().Err(err).Msg("anchor trail-up failed")
	}

	// 2. Reconciler (fill detect): classify last tick's vanished buys before
	// anything rebuilds OpenBuyMap out from under it.
	fills, err := e.reconciler.DetectVanished(ctx, e.state, now)
	if err != nil {
		logger.Error().Err(err).Msg("fill detection failed")
	}
	for _, f := range fills {
		mtxBuysFilled.Inc()
		e.tp.OnBuyFillConfirmed(ctx, e.state, f.Price, f.Qty, f.OrderID)
	}

	// 3. Reconciler (sync): rebuild OpenBuyMap + TPBlocked from venue truth
	if err := e.reconciler.SyncFromVenue(ctx, e.state, e.cfg.SessionTag); err != nil {
		logger.Error().Err(err).Msg("reconciler sync failed")
		return
	}

	// 4. Planner
	candidates := e.planner.BuildCandidates(e.state.Bot.BasePrice, e.state.TPBlocked)

	// 5. Placement
	if !e.state.Bot.HaltPlacement {
		ignoreRecent := reanchored || len(fills) > 0
		if err := e.placement.Pass(ctx, e.state, candidates, now, ignoreRecent); err != nil {
			logger.Error().Err(err).Msg("placement pass failed")
		}
	}

	// 6. TP match: check each position against current bid
	e.tp.CheckFills(ctx, e.state, t.Bid, now, e.placement, e.planner)

	// 7. persist
	e.state.syncForSave()
	if err := e.store.Save(e.state.Bot); err != nil {
		logger.Error().Err(err).Msg("state save failed")
		e.alerter.Notify("state_save_failed", map[string]string{"err": err.Error()})
	}
	ObserveEngineState(e.state)
	mtxTickQueueDepth.Set(float64(len(e.ticks)))
}

func (e *Engine) rollDailySpend() {
	today := time.Now().Format("2006-01-02")
	if e.state.Bot.SpentDate != today {
		e.state.Bot.SpentDate = today
		e.state.Bot.SpentToday = decimal.Zero
	}
}

// Halt sets halt_placement, cancels all live buys, and persists — used by
// the Shutdown Coordinator. Safe to call more than once.
func (e *Engine) Halt(ctx context.Context) {
	e.haltOnce.Do(func() {
		e.state.Bot.HaltPlacement = true
		for key, entry := range e.state.OpenBuyMap {
			ok, err := e.venue.CancelOrder(ctx, e.cfg.Symbol, entry.OrderID)
			if err != nil {
				e.journal.Log("CANCEL_ERROR", entry.Price, decimal.Zero, decimal.Zero, e.state.Bot.RealizedPnL, err.Error())
				continue
			}
			if ok {
				delete(e.state.OpenBuyMap, key)
				IncCancels("halt")
			}
		}
		e.state.syncForSave()
		if err := e.store.Save(e.state.Bot); err != nil {
			logger.Error().Err(err).Msg("shutdown: state save failed")
		}
	})
}
