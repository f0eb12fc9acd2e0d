package review

import "github.com/conorfennell/memodeck/internal/domain"

// EventKind identifies what changed in a session.
type EventKind int

const (
	EventRowChanged EventKind = iota
	EventTick
	EventEmptyPool
	EventDeckCountChanged
	EventPauseChanged
	EventTabChanged
	EventError
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventRowChanged:
		return "row_changed"
	case EventTick:
		return "tick"
	case EventEmptyPool:
		return "empty_pool"
	case EventDeckCountChanged:
		return "deck_count_changed"
	case EventPauseChanged:
		return "pause_changed"
	case EventTabChanged:
		return "tab_changed"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	}
	return "unknown"
}

// Event is delivered to observers after the engine has released its lock,
// so observers may call back into the engine. Events from one caller arrive
// in order, but events raised by concurrent callers may interleave: the
// counts an event carries can be older than those of an event delivered
// before it. Observers that persist counts should reread the store.
type Event struct {
	Kind       EventKind
	Deck       string
	Tab        domain.Tab
	Row        *domain.Row
	Countdown  int
	Paused     bool
	Remaining  int
	Remembered int
	Err        error
}

// Observer receives session events.
type Observer func(Event)

type subscription struct {
	id int
	fn Observer
}
