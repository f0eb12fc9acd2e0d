package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/conorfennell/memodeck/internal/domain"
)

const (
	MinIntervalSeconds = 1
	MaxIntervalSeconds = 3600
)

var (
	ErrEmptyPool       = errors.New("pool is empty")
	ErrNoCurrentRow    = errors.New("no row is displayed")
	ErrClosed          = errors.New("session is closed")
	ErrNotLoaded       = errors.New("no deck loaded")
	ErrInvalidDeck     = errors.New("deck name must not be empty")
	ErrInvalidInterval = fmt.Errorf("interval must be between %d and %d seconds", MinIntervalSeconds, MaxIntervalSeconds)
)

// EmptyPoolError reports that the pool under Tab has no rows to show.
type EmptyPoolError struct {
	Tab domain.Tab
}

func (e *EmptyPoolError) Error() string {
	return fmt.Sprintf("%s pool is empty", e.Tab)
}

func (e *EmptyPoolError) Is(target error) bool {
	return target == ErrEmptyPool
}

// DeckStore is the durable home of a deck's two pools.
type DeckStore interface {
	Pools(ctx context.Context, name string) (domain.Pools, error)
	SavePools(ctx context.Context, name string, pools domain.Pools) error
}

// PreferenceStore persists the user's policy and interval.
type PreferenceStore interface {
	Preferences(ctx context.Context) (domain.Preferences, error)
	SavePreferences(ctx context.Context, prefs domain.Preferences) error
}

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Displaying
	Paused
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Displaying:
		return "displaying"
	case Paused:
		return "paused"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// EmptyPoolAction is what the engine does after an advance finds the
// active pool empty.
type EmptyPoolAction int

const (
	ActionNone EmptyPoolAction = iota
	ActionSwitchTab
	ActionEnd
)

// EmptyPoolHandler chooses the reaction to an empty pool. It must not call
// back into the engine.
type EmptyPoolHandler func(tab domain.Tab) EmptyPoolAction

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the system clock driving the countdown.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRand sets the random source used by the random policy.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithEmptyPoolHandler installs the empty-pool reaction.
func WithEmptyPoolHandler(h EmptyPoolHandler) Option {
	return func(e *Engine) { e.onEmpty = h }
}

// WithLogger sets the logger used for timer-driven failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver subscribes an observer from the start.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.subscribeLocked(o) }
}

// timerState owns the single live countdown. gen is bumped on every
// cancellation so a tick already waiting for the lock is discarded.
type timerState struct {
	ticker Ticker
	gen    uint64
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	Deck            string
	State           State
	Tab             domain.Tab
	Policy          domain.Policy
	IntervalSeconds int
	Countdown       int
	Current         *domain.Row
	Remaining       int
	Remembered      int
}

// Paused reports whether auto-advance is suspended.
func (s Snapshot) Paused() bool { return s.State == Paused }

// Engine runs one review session over a deck. All operations are
// serialized; the store is re-read on every operation.
type Engine struct {
	decks   DeckStore
	prefs   PreferenceStore
	clock   Clock
	rng     *rand.Rand
	onEmpty EmptyPoolHandler
	logger  *slog.Logger

	mu        sync.Mutex
	observers []subscription
	nextSub   int
	pending   []Event
	tickCtx   context.Context

	deck       string
	state      State
	tab        domain.Tab
	current    *domain.Row
	policy     domain.Policy
	interval   int
	countdown  int
	remaining  int
	remembered int
	timer      timerState
}

// New creates an idle engine. Call Load to start a session.
func New(decks DeckStore, prefs PreferenceStore, opts ...Option) *Engine {
	defaults := domain.DefaultPreferences()
	e := &Engine{
		decks:    decks,
		prefs:    prefs,
		clock:    SystemClock{},
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		logger:   slog.Default(),
		tickCtx:  context.Background(),
		tab:      domain.Learning,
		policy:   defaults.Policy,
		interval: defaults.IntervalSeconds,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers an observer and returns a function removing it.
func (e *Engine) Subscribe(o Observer) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.subscribeLocked(o)
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.observers {
			if s.id == id {
				e.observers = append(e.observers[:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) subscribeLocked(o Observer) int {
	e.nextSub++
	e.observers = append(e.observers, subscription{id: e.nextSub, fn: o})
	return e.nextSub
}

// unlock releases the lock and then delivers the events queued while it
// was held.
func (e *Engine) unlock() {
	events := e.pending
	e.pending = nil
	observers := append([]subscription(nil), e.observers...)
	e.mu.Unlock()

	for _, ev := range events {
		for _, s := range observers {
			s.fn(ev)
		}
	}
}

func (e *Engine) emit(kind EventKind) {
	ev := Event{
		Kind:       kind,
		Deck:       e.deck,
		Tab:        e.tab,
		Countdown:  e.countdown,
		Paused:     e.state == Paused,
		Remaining:  e.remaining,
		Remembered: e.remembered,
	}
	if e.current != nil {
		row := e.current.Clone()
		ev.Row = &row
	}
	e.pending = append(e.pending, ev)
}

func (e *Engine) emitError(err error) {
	e.emit(EventError)
	e.pending[len(e.pending)-1].Err = err
}

// Load starts a session on the named deck: the learning tab is shown, the
// first row is selected and the countdown starts. A deck that does not
// exist behaves as one with empty pools, in which case the returned error
// matches ErrEmptyPool.
func (e *Engine) Load(ctx context.Context, deck string) error {
	if strings.TrimSpace(deck) == "" {
		return ErrInvalidDeck
	}
	prefs, err := e.prefs.Preferences(ctx)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	e.mu.Lock()
	defer e.unlock()
	if e.state == Closed {
		return ErrClosed
	}

	e.stopTimerLocked()
	e.deck = deck
	e.tab = domain.Learning
	e.current = nil
	e.state = Idle
	e.policy = prefs.Policy
	e.interval = prefs.IntervalSeconds
	e.tickCtx = context.WithoutCancel(ctx)

	err = e.advanceLocked(ctx)
	if err != nil && !errors.Is(err, ErrEmptyPool) {
		return err
	}
	e.startTimerLocked()
	return err
}

// Advance selects the next row of the active pool under the current
// policy and resets the countdown. On an empty pool the displayed row is
// left unchanged and an *EmptyPoolError is returned.
func (e *Engine) Advance(ctx context.Context) error {
	e.mu.Lock()
	defer e.unlock()
	if err := e.checkLocked(); err != nil {
		return err
	}
	return e.advanceLocked(ctx)
}

// moveTarget names the pool a mark moves the displayed row into.
type moveTarget int

const (
	toRememberedPool moveTarget = iota
	toRemainingPool
	// awayFromActiveTab resolves against the tab while the lock is held.
	awayFromActiveTab
)

// MarkRemembered moves the displayed row from remaining to remembered and
// advances. A row that is not in remaining leaves both pools untouched.
func (e *Engine) MarkRemembered(ctx context.Context) error {
	return e.move(ctx, toRememberedPool)
}

// MarkNotRemembered moves the displayed row from remembered back to
// remaining and advances.
func (e *Engine) MarkNotRemembered(ctx context.Context) error {
	return e.move(ctx, toRemainingPool)
}

// Mark toggles the displayed row out of the active pool: remembered when
// learning, not remembered when reviewing remembered rows.
func (e *Engine) Mark(ctx context.Context) error {
	return e.move(ctx, awayFromActiveTab)
}

func (e *Engine) move(ctx context.Context, target moveTarget) error {
	e.mu.Lock()
	defer e.unlock()
	if err := e.checkLocked(); err != nil {
		return err
	}
	if e.current == nil {
		return ErrNoCurrentRow
	}
	toRemembered := target == toRememberedPool
	if target == awayFromActiveTab {
		toRemembered = e.tab == domain.Learning
	}

	pools, err := e.decks.Pools(ctx, e.deck)
	if err != nil {
		return fmt.Errorf("failed to read deck %s: %w", e.deck, err)
	}
	from, to := pools.Remaining, pools.Remembered
	if !toRemembered {
		from, to = to, from
	}

	if i := domain.IndexOf(from, e.current.Index); i >= 0 {
		row := from[i]
		from = domain.Without(from, i)
		if domain.IndexOf(to, row.Index) < 0 {
			to = append(to[:len(to):len(to)], row)
		}

		next := domain.Pools{Remaining: from, Remembered: to}
		if !toRemembered {
			next = domain.Pools{Remaining: to, Remembered: from}
		}
		// The store is written before any session state changes, so a
		// failed write leaves the session exactly as it was.
		if err := e.decks.SavePools(ctx, e.deck, next); err != nil {
			return fmt.Errorf("failed to save deck %s: %w", e.deck, err)
		}
		e.setCounts(next)
		e.emit(EventDeckCountChanged)
	}

	return e.advanceLocked(ctx)
}

// SwitchTab makes tab the active pool, selects a row from it and restarts
// the countdown unless paused.
func (e *Engine) SwitchTab(ctx context.Context, tab domain.Tab) error {
	if _, err := domain.ParseTab(string(tab)); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.unlock()
	if err := e.checkLocked(); err != nil {
		return err
	}
	e.tab = tab
	e.emit(EventTabChanged)
	err := e.advanceLocked(ctx)
	e.startTimerLocked()
	return err
}

// SetPolicy stores the selection policy as a preference and restarts the
// countdown. The displayed row is kept.
func (e *Engine) SetPolicy(ctx context.Context, policy domain.Policy) error {
	if policy != domain.Sequential && policy != domain.Random {
		return fmt.Errorf("unknown policy %q", policy)
	}

	e.mu.Lock()
	defer e.unlock()
	if err := e.checkLocked(); err != nil {
		return err
	}
	if err := e.savePreference(ctx, func(p *domain.Preferences) { p.Policy = policy }); err != nil {
		return err
	}
	e.policy = policy
	e.startTimerLocked()
	return nil
}

// SetInterval stores the auto-advance period and restarts the countdown.
// The displayed row is kept.
func (e *Engine) SetInterval(ctx context.Context, seconds int) error {
	if seconds < MinIntervalSeconds || seconds > MaxIntervalSeconds {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, seconds)
	}

	e.mu.Lock()
	defer e.unlock()
	if err := e.checkLocked(); err != nil {
		return err
	}
	if err := e.savePreference(ctx, func(p *domain.Preferences) { p.IntervalSeconds = seconds }); err != nil {
		return err
	}
	e.interval = seconds
	e.countdown = seconds
	e.startTimerLocked()
	return nil
}

func (e *Engine) savePreference(ctx context.Context, set func(*domain.Preferences)) error {
	prefs, err := e.prefs.Preferences(ctx)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	set(&prefs)
	if err := e.prefs.SavePreferences(ctx, prefs); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// TogglePause suspends or resumes auto-advance and reports whether the
// session is now paused. Pausing cancels the countdown before returning.
func (e *Engine) TogglePause() (bool, error) {
	e.mu.Lock()
	defer e.unlock()
	if err := e.checkLocked(); err != nil {
		return false, err
	}

	if e.state == Paused {
		e.state = Displaying
		if e.current == nil {
			e.state = Idle
		}
		e.startTimerLocked()
	} else {
		e.stopTimerLocked()
		e.state = Paused
	}
	e.emit(EventPauseChanged)
	return e.state == Paused, nil
}

// Close ends the session. The countdown is cancelled before Close returns
// and no tick takes effect afterwards. Close is idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.unlock()
	e.closeLocked()
}

func (e *Engine) closeLocked() {
	if e.state == Closed {
		return
	}
	e.stopTimerLocked()
	e.state = Closed
	e.emit(EventClosed)
}

// Snapshot returns a copy of the current session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		Deck:            e.deck,
		State:           e.state,
		Tab:             e.tab,
		Policy:          e.policy,
		IntervalSeconds: e.interval,
		Countdown:       e.countdown,
		Remaining:       e.remaining,
		Remembered:      e.remembered,
	}
	if e.current != nil {
		row := e.current.Clone()
		s.Current = &row
	}
	return s
}

func (e *Engine) checkLocked() error {
	if e.state == Closed {
		return ErrClosed
	}
	if e.deck == "" {
		return ErrNotLoaded
	}
	return nil
}

func (e *Engine) setCounts(p domain.Pools) {
	e.remaining = len(p.Remaining)
	e.remembered = len(p.Remembered)
}

// advanceLocked selects the next row and applies the empty-pool handler
// when there is nothing to show.
func (e *Engine) advanceLocked(ctx context.Context) error {
	err := e.selectLocked(ctx)
	var empty *EmptyPoolError
	if !errors.As(err, &empty) || e.onEmpty == nil {
		return err
	}

	switch e.onEmpty(empty.Tab) {
	case ActionSwitchTab:
		e.tab = e.tab.Other()
		e.emit(EventTabChanged)
		return e.selectLocked(ctx)
	case ActionEnd:
		e.closeLocked()
	}
	return err
}

func (e *Engine) selectLocked(ctx context.Context) error {
	pools, err := e.decks.Pools(ctx, e.deck)
	if err != nil {
		return fmt.Errorf("failed to read deck %s: %w", e.deck, err)
	}
	e.setCounts(pools)

	pool := pools.For(e.tab)
	if len(pool) == 0 {
		e.emit(EventEmptyPool)
		return &EmptyPoolError{Tab: e.tab}
	}

	row := selectNext(pool, e.policy, e.current, e.rng).Clone()
	e.current = &row
	e.countdown = e.interval
	if e.state == Idle {
		e.state = Displaying
	}
	e.emit(EventRowChanged)
	return nil
}

// startTimerLocked replaces any live countdown with a fresh one. Nothing
// is started while paused or closed.
func (e *Engine) startTimerLocked() {
	e.stopTimerLocked()
	if e.state == Paused || e.state == Closed {
		return
	}
	e.countdown = e.interval
	gen := e.timer.gen
	e.timer.ticker = e.clock.Every(time.Second, func() { e.tick(gen) })
}

func (e *Engine) stopTimerLocked() {
	if e.timer.ticker != nil {
		e.timer.ticker.Stop()
		e.timer.ticker = nil
	}
	e.timer.gen++
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.unlock()
	if e.timer.ticker == nil || e.timer.gen != gen {
		return
	}

	e.countdown--
	if e.countdown > 0 {
		e.emit(EventTick)
		return
	}

	err := e.advanceLocked(e.tickCtx)
	e.countdown = e.interval
	if err != nil && !errors.Is(err, ErrEmptyPool) {
		e.logger.Warn("auto-advance failed", "deck", e.deck, "error", err)
		e.emitError(err)
	}
}
