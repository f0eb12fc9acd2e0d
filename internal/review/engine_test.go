package review

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/conorfennell/memodeck/internal/domain"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

// memStore is an in-memory DeckStore and PreferenceStore.
type memStore struct {
	mu       sync.Mutex
	pools    map[string]domain.Pools
	prefs    domain.Preferences
	saveErr  error
	saves    int
	prefSave int
}

func newMemStore() *memStore {
	return &memStore{
		pools: make(map[string]domain.Pools),
		prefs: domain.DefaultPreferences(),
	}
}

func cloneRows(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func (m *memStore) Pools(_ context.Context, name string) (domain.Pools, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pools[name]
	return domain.Pools{Remaining: cloneRows(p.Remaining), Remembered: cloneRows(p.Remembered)}, nil
}

func (m *memStore) SavePools(_ context.Context, name string, p domain.Pools) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.pools[name] = domain.Pools{Remaining: cloneRows(p.Remaining), Remembered: cloneRows(p.Remembered)}
	return nil
}

func (m *memStore) Preferences(context.Context) (domain.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs, nil
}

func (m *memStore) SavePreferences(_ context.Context, p domain.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefSave++
	m.prefs = p
	return nil
}

func (m *memStore) get(name string) domain.Pools {
	p, _ := m.Pools(context.Background(), name)
	return p
}

func indexes(rows []domain.Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Index
	}
	sort.Ints(out)
	return out
}

func rowsWithIndexes(idx ...int) []domain.Row {
	rows := make([]domain.Row, len(idx))
	for i, n := range idx {
		rows[i] = domain.NewRow(n, "0", "front", "1", "back")
	}
	return rows
}

type fixture struct {
	store  *memStore
	clock  *ManualClock
	engine *Engine
	events []Event
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), clock: &ManualClock{}}
	opts = append([]Option{
		WithClock(f.clock),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithObserver(func(ev Event) { f.events = append(f.events, ev) }),
	}, opts...)
	f.engine = New(f.store, f.store, opts...)
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) count(kind EventKind) int {
	n := 0
	for _, ev := range f.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func currentIndex(t *testing.T, e *Engine) int {
	t.Helper()
	s := e.Snapshot()
	if s.Current == nil {
		t.Fatal("Expected a current row, got nil")
	}
	return s.Current.Index
}

func TestGeoScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.pools["geo"] = domain.Pools{Remaining: []domain.Row{
		domain.NewRow(0, "capital", "Paris"),
		domain.NewRow(1, "capital", "Rome"),
	}}

	if err := f.engine.Load(ctx, "geo"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if got := currentIndex(t, f.engine); got != 0 {
		t.Fatalf("Expected current index 0 after load, got %d", got)
	}

	if err := f.engine.MarkRemembered(ctx); err != nil {
		t.Fatalf("MarkRemembered() returned an unexpected error: %v", err)
	}
	p := f.store.get("geo")
	if diff := cmp.Diff([]int{1}, indexes(p.Remaining)); diff != "" {
		t.Errorf("remaining mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0}, indexes(p.Remembered)); diff != "" {
		t.Errorf("remembered mismatch (-want +got):\n%s", diff)
	}
	if got := currentIndex(t, f.engine); got != 1 {
		t.Fatalf("Expected current index 1, got %d", got)
	}

	err := f.engine.MarkRemembered(ctx)
	var empty *EmptyPoolError
	if !errors.As(err, &empty) || empty.Tab != domain.Learning {
		t.Fatalf("Expected EmptyPool(learning) from the final mark, got %v", err)
	}
	p = f.store.get("geo")
	if len(p.Remaining) != 0 {
		t.Errorf("Expected remaining to be empty, got %v", indexes(p.Remaining))
	}
	if diff := cmp.Diff([]int{0, 1}, indexes(p.Remembered)); diff != "" {
		t.Errorf("remembered mismatch (-want +got):\n%s", diff)
	}
	if err := f.engine.Advance(ctx); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("Expected Advance() to signal ErrEmptyPool, got %v", err)
	}
	if value, _ := p.Remembered[0].Value("capital"); value != "Paris" {
		t.Errorf("Expected moved row to keep its fields, got %q", value)
	}
}

func TestSequentialSelection(t *testing.T) {
	pool := rowsWithIndexes(7, 2, 5)
	testCases := []struct {
		name     string
		current  int
		expected int
	}{
		{name: "next higher", current: 2, expected: 5},
		{name: "exact match", current: 4, expected: 5},
		{name: "wrap to minimum", current: 7, expected: 2},
		{name: "beyond all", current: 40, expected: 2},
		{name: "no current row", current: -1, expected: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextSequential(pool, tc.current)
			if got.Index != tc.expected {
				t.Errorf("Expected index %d, got %d", tc.expected, got.Index)
			}
		})
	}
}

func TestSequentialAdvanceThroughEngine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(2, 5, 7)}

	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	var seen []int
	for i := 0; i < 4; i++ {
		seen = append(seen, currentIndex(t, f.engine))
		if err := f.engine.Advance(ctx); err != nil {
			t.Fatalf("Advance() returned an unexpected error: %v", err)
		}
	}
	if diff := cmp.Diff([]int{2, 5, 7, 2}, seen); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRandomPolicyStaysInPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.prefs.Policy = domain.Random
	f.store.pools["d"] = domain.Pools{
		Remaining:  rowsWithIndexes(1, 3, 9),
		Remembered: rowsWithIndexes(4),
	}

	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	hits := map[int]int{}
	for i := 0; i < 300; i++ {
		if err := f.engine.Advance(ctx); err != nil {
			t.Fatalf("Advance() returned an unexpected error: %v", err)
		}
		hits[currentIndex(t, f.engine)]++
	}
	if hits[4] != 0 {
		t.Error("Expected random selection to never leave the active pool")
	}
	for _, idx := range []int{1, 3, 9} {
		if hits[idx] == 0 {
			t.Errorf("Expected index %d to be selected at least once", idx)
		}
	}
}

func TestPartitionInvariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	all := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(all...)}

	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	rng := rand.New(rand.NewPCG(42, 7))
	for step := 0; step < 500; step++ {
		var err error
		switch rng.IntN(5) {
		case 0:
			err = f.engine.Advance(ctx)
		case 1:
			err = f.engine.MarkRemembered(ctx)
		case 2:
			err = f.engine.MarkNotRemembered(ctx)
		case 3:
			err = f.engine.Mark(ctx)
		case 4:
			err = f.engine.SwitchTab(ctx, f.engine.Snapshot().Tab.Other())
		}
		if err != nil && !errors.Is(err, ErrEmptyPool) && !errors.Is(err, ErrNoCurrentRow) {
			t.Fatalf("step %d: unexpected error: %v", step, err)
		}

		p := f.store.get("d")
		seen := map[int]bool{}
		for _, r := range p.Remaining {
			seen[r.Index] = true
		}
		for _, r := range p.Remembered {
			if seen[r.Index] {
				t.Fatalf("step %d: index %d is in both pools", step, r.Index)
			}
			seen[r.Index] = true
		}
		if len(seen) != len(all) || p.Total() != len(all) {
			t.Fatalf("step %d: pools hold %d rows (%d distinct), want %d", step, p.Total(), len(seen), len(all))
		}
	}
}

func TestMarkRememberedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(3)}

	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.engine.MarkRemembered(ctx); !errors.Is(err, ErrEmptyPool) {
			t.Fatalf("mark %d: expected ErrEmptyPool, got %v", i, err)
		}
		if got := currentIndex(t, f.engine); got != 3 {
			t.Fatalf("mark %d: expected current row to stay 3, got %d", i, got)
		}
	}
	p := f.store.get("d")
	if diff := cmp.Diff([]int{3}, indexes(p.Remembered)); diff != "" {
		t.Errorf("remembered mismatch (-want +got):\n%s", diff)
	}
	if f.store.saves != 1 {
		t.Errorf("Expected one store write, got %d", f.store.saves)
	}
}

func TestMarkRememberedOnRememberedTabIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.pools["d"] = domain.Pools{
		Remaining:  rowsWithIndexes(0),
		Remembered: rowsWithIndexes(1),
	}
	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if err := f.engine.SwitchTab(ctx, domain.Remembered); err != nil {
		t.Fatalf("SwitchTab() returned an unexpected error: %v", err)
	}
	if err := f.engine.MarkRemembered(ctx); err != nil {
		t.Fatalf("MarkRemembered() returned an unexpected error: %v", err)
	}
	p := f.store.get("d")
	if diff := cmp.Diff([]int{0}, indexes(p.Remaining)); diff != "" {
		t.Errorf("remaining mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, indexes(p.Remembered)); diff != "" {
		t.Errorf("remembered mismatch (-want +got):\n%s", diff)
	}
	if f.store.saves != 0 {
		t.Errorf("Expected no store writes, got %d", f.store.saves)
	}

	// The long-press gesture on the remembered tab moves the row back.
	if err := f.engine.Mark(ctx); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("Mark() expected ErrEmptyPool, got %v", err)
	}
	p = f.store.get("d")
	if diff := cmp.Diff([]int{0, 1}, indexes(p.Remaining)); diff != "" {
		t.Errorf("remaining mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkWithConcurrentTabSwitches(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	all := []int{0, 1, 2, 3, 4, 5, 6, 7}
	store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(all...)}
	engine := New(store, store, WithClock(&ManualClock{}), WithRand(rand.New(rand.NewPCG(3, 4))),
		WithEmptyPoolHandler(func(domain.Tab) EmptyPoolAction { return ActionSwitchTab }))
	t.Cleanup(engine.Close)
	if err := engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 400)
	for w := 0; w < 2; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				errs <- engine.Mark(ctx)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				errs <- engine.SwitchTab(ctx, engine.Snapshot().Tab.Other())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, ErrEmptyPool) && !errors.Is(err, ErrNoCurrentRow) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	p := store.get("d")
	got := append(indexes(p.Remaining), indexes(p.Remembered)...)
	sort.Ints(got)
	if diff := cmp.Diff(all, got); diff != "" {
		t.Errorf("pools no longer partition the deck (-want +got):\n%s", diff)
	}
	s := engine.Snapshot()
	if s.Remaining != len(p.Remaining) || s.Remembered != len(p.Remembered) {
		t.Errorf("Snapshot counts = %d/%d, store holds %d/%d",
			s.Remaining, s.Remembered, len(p.Remaining), len(p.Remembered))
	}
}

func TestEmptyPoolLeavesCurrentRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.pools["d"] = domain.Pools{Remembered: rowsWithIndexes(1)}

	err := f.engine.Load(ctx, "d")
	var empty *EmptyPoolError
	if !errors.As(err, &empty) || empty.Tab != domain.Learning {
		t.Fatalf("Expected EmptyPool(learning) from Load(), got %v", err)
	}
	if f.engine.Snapshot().Current != nil {
		t.Fatal("Expected no current row")
	}

	if err := f.engine.SwitchTab(ctx, domain.Remembered); err != nil {
		t.Fatalf("SwitchTab() returned an unexpected error: %v", err)
	}
	// Back to learning: the current row stays the remembered one.
	if err := f.engine.SwitchTab(ctx, domain.Learning); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("Expected ErrEmptyPool, got %v", err)
	}
	if err := f.engine.Advance(ctx); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("Expected ErrEmptyPool, got %v", err)
	}
	if got := currentIndex(t, f.engine); got != 1 {
		t.Errorf("Expected current row 1 to be kept, got %d", got)
	}
	if f.count(EventEmptyPool) != 3 {
		t.Errorf("Expected 3 empty pool events, got %d", f.count(EventEmptyPool))
	}
}

func TestMissingDeckIsEmpty(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Load(context.Background(), "ghost"); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("Expected ErrEmptyPool for a missing deck, got %v", err)
	}
	if f.engine.Snapshot().State != Idle {
		t.Errorf("Expected state idle, got %s", f.engine.Snapshot().State)
	}
	if err := f.engine.Load(context.Background(), "  "); !errors.Is(err, ErrInvalidDeck) {
		t.Errorf("Expected ErrInvalidDeck for a blank name, got %v", err)
	}
}

func TestEmptyPoolHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("switch tab", func(t *testing.T) {
		f := newFixture(t, WithEmptyPoolHandler(func(domain.Tab) EmptyPoolAction { return ActionSwitchTab }))
		f.store.pools["d"] = domain.Pools{Remembered: rowsWithIndexes(4)}
		if err := f.engine.Load(ctx, "d"); err != nil {
			t.Fatalf("Load() returned an unexpected error: %v", err)
		}
		s := f.engine.Snapshot()
		if s.Tab != domain.Remembered || s.Current == nil || s.Current.Index != 4 {
			t.Errorf("Expected remembered tab showing row 4, got %+v", s)
		}
	})

	t.Run("end session", func(t *testing.T) {
		f := newFixture(t, WithEmptyPoolHandler(func(domain.Tab) EmptyPoolAction { return ActionEnd }))
		f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(0)}
		if err := f.engine.Load(ctx, "d"); err != nil {
			t.Fatalf("Load() returned an unexpected error: %v", err)
		}
		if err := f.engine.MarkRemembered(ctx); !errors.Is(err, ErrEmptyPool) {
			t.Fatalf("Expected ErrEmptyPool, got %v", err)
		}
		if f.engine.Snapshot().State != Closed {
			t.Errorf("Expected the session to be closed, got %s", f.engine.Snapshot().State)
		}
		if f.clock.Live() != 0 {
			t.Errorf("Expected no live timers, got %d", f.clock.Live())
		}
	})
}

func TestTimerSingleInstance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.prefs.IntervalSeconds = 3
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(0, 1, 2), Remembered: rowsWithIndexes(5)}

	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if err := f.engine.SwitchTab(ctx, domain.Remembered); err != nil {
		t.Fatalf("SwitchTab() returned an unexpected error: %v", err)
	}
	if err := f.engine.SwitchTab(ctx, domain.Learning); err != nil {
		t.Fatalf("SwitchTab() returned an unexpected error: %v", err)
	}
	if err := f.engine.SetPolicy(ctx, domain.Sequential); err != nil {
		t.Fatalf("SetPolicy() returned an unexpected error: %v", err)
	}
	if err := f.engine.SetInterval(ctx, 2); err != nil {
		t.Fatalf("SetInterval() returned an unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := f.engine.TogglePause(); err != nil {
			t.Fatalf("TogglePause() returned an unexpected error: %v", err)
		}
	}
	if f.clock.Live() != 1 {
		t.Fatalf("Expected exactly one live timer, got %d", f.clock.Live())
	}

	before := f.count(EventRowChanged)
	start := currentIndex(t, f.engine)
	f.clock.Tick(1)
	if f.engine.Snapshot().Countdown != 1 {
		t.Errorf("Expected countdown 1 after one tick, got %d", f.engine.Snapshot().Countdown)
	}
	f.clock.Tick(1)
	if got := f.count(EventRowChanged) - before; got != 1 {
		t.Fatalf("Expected exactly one advance after the interval, got %d", got)
	}
	if currentIndex(t, f.engine) == start {
		t.Error("Expected the timer to move to another row")
	}
	if f.engine.Snapshot().Countdown != 2 {
		t.Errorf("Expected countdown reset to 2, got %d", f.engine.Snapshot().Countdown)
	}
}

func TestPauseCancelsTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.prefs.IntervalSeconds = 1
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(0, 1)}
	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	paused, err := f.engine.TogglePause()
	if err != nil || !paused {
		t.Fatalf("TogglePause() = %v, %v; want true, nil", paused, err)
	}
	if f.clock.Live() != 0 {
		t.Fatalf("Expected no live timers while paused, got %d", f.clock.Live())
	}
	f.clock.Tick(5)
	if got := currentIndex(t, f.engine); got != 0 {
		t.Errorf("Expected no auto-advance while paused, got row %d", got)
	}

	// Switching tabs and changing the interval must not resume the countdown.
	if err := f.engine.SetInterval(ctx, 4); err != nil {
		t.Fatalf("SetInterval() returned an unexpected error: %v", err)
	}
	if f.clock.Live() != 0 {
		t.Fatalf("Expected no live timers while paused, got %d", f.clock.Live())
	}
	if s := f.engine.Snapshot(); s.State != Paused || s.Countdown != 4 {
		t.Errorf("Expected paused with countdown 4, got %s/%d", s.State, s.Countdown)
	}

	paused, _ = f.engine.TogglePause()
	if paused || f.clock.Live() != 1 {
		t.Fatalf("Expected resume with one live timer, got paused=%v live=%d", paused, f.clock.Live())
	}
	if f.engine.Snapshot().State != Displaying {
		t.Errorf("Expected state displaying, got %s", f.engine.Snapshot().State)
	}
}

func TestStaleTickIsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.prefs.IntervalSeconds = 1
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(0, 1)}
	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	f.engine.mu.Lock()
	stale := f.engine.timer.gen
	f.engine.mu.Unlock()

	if err := f.engine.SetInterval(ctx, 1); err != nil {
		t.Fatalf("SetInterval() returned an unexpected error: %v", err)
	}
	f.engine.tick(stale)
	if got := currentIndex(t, f.engine); got != 0 {
		t.Errorf("Expected a stale tick to be ignored, got row %d", got)
	}
}

func TestStorageWriteFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(0, 1)}
	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	boom := errors.New("disk full")
	f.store.saveErr = boom
	if err := f.engine.MarkRemembered(ctx); !errors.Is(err, boom) {
		t.Fatalf("Expected the store error, got %v", err)
	}
	s := f.engine.Snapshot()
	if s.Current == nil || s.Current.Index != 0 || s.Remaining != 2 || s.Remembered != 0 {
		t.Errorf("Expected the session to be unchanged, got %+v", s)
	}
	if f.count(EventDeckCountChanged) != 0 {
		t.Error("Expected no deck count event after a failed write")
	}
}

func TestPreferencesArePersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(0, 1, 2)}
	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	if err := f.engine.SetPolicy(ctx, domain.Random); err != nil {
		t.Fatalf("SetPolicy() returned an unexpected error: %v", err)
	}
	if err := f.engine.SetInterval(ctx, 25); err != nil {
		t.Fatalf("SetInterval() returned an unexpected error: %v", err)
	}
	if f.store.prefs.Policy != domain.Random || f.store.prefs.IntervalSeconds != 25 {
		t.Errorf("Expected stored preferences random/25, got %+v", f.store.prefs)
	}
	if got := currentIndex(t, f.engine); got != 0 {
		t.Errorf("Expected the displayed row to be kept, got %d", got)
	}

	if err := f.engine.SetInterval(ctx, 0); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("Expected ErrInvalidInterval, got %v", err)
	}
	if err := f.engine.SetPolicy(ctx, "shuffle"); err == nil {
		t.Error("Expected an unknown policy to be rejected")
	}
	if f.store.prefSave != 2 {
		t.Errorf("Expected two preference writes, got %d", f.store.prefSave)
	}
}

func TestDeckCountChangedEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(0, 1)}
	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	var got []Event
	unsubscribe := f.engine.Subscribe(func(ev Event) {
		if ev.Kind == EventDeckCountChanged {
			got = append(got, ev)
		}
	})
	if err := f.engine.MarkRemembered(ctx); err != nil {
		t.Fatalf("MarkRemembered() returned an unexpected error: %v", err)
	}
	unsubscribe()
	if err := f.engine.MarkRemembered(ctx); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("Expected ErrEmptyPool, got %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("Expected one event before unsubscribing, got %d", len(got))
	}
	if got[0].Deck != "d" || got[0].Remaining != 1 || got[0].Remembered != 1 {
		t.Errorf("Unexpected event %+v", got[0])
	}
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(0)}
	if err := f.engine.Load(ctx, "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	f.engine.Close()
	f.engine.Close()

	if f.clock.Live() != 0 {
		t.Errorf("Expected no live timers after close, got %d", f.clock.Live())
	}
	if f.count(EventClosed) != 1 {
		t.Errorf("Expected one closed event, got %d", f.count(EventClosed))
	}
	for name, op := range map[string]func() error{
		"Advance":   func() error { return f.engine.Advance(ctx) },
		"Mark":      func() error { return f.engine.Mark(ctx) },
		"SwitchTab": func() error { return f.engine.SwitchTab(ctx, domain.Remembered) },
		"Load":      func() error { return f.engine.Load(ctx, "d") },
	} {
		if err := op(); !errors.Is(err, ErrClosed) {
			t.Errorf("%s after close = %v, want ErrClosed", name, err)
		}
	}
}

func TestOperationsBeforeLoad(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Advance(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded, got %v", err)
	}
	if _, err := f.engine.TogglePause(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded, got %v", err)
	}
}

func TestSystemClockStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newMemStore()
	store.prefs.IntervalSeconds = 1
	store.pools["d"] = domain.Pools{Remaining: rowsWithIndexes(0, 1)}

	advanced := make(chan struct{}, 8)
	e := New(store, store, WithObserver(func(ev Event) {
		if ev.Kind == EventRowChanged {
			select {
			case advanced <- struct{}{}:
			default:
			}
		}
	}))
	if err := e.Load(context.Background(), "d"); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	<-advanced // initial selection

	select {
	case <-advanced:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected the system clock to auto-advance within 5s")
	}
	e.Close()

	row := currentIndex(t, e)
	time.Sleep(1500 * time.Millisecond)
	if got := currentIndex(t, e); got != row {
		t.Errorf("Expected no advance after close, row moved from %d to %d", row, got)
	}
}
