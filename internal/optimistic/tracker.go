package optimistic

import (
	"fmt"
	"sync"
	"time"

	"upsell/pkg/clock"

	"github.com/google/uuid"
)

// Kind is the intent of a tentative mutation
type Kind string

const (
	KindAdd    Kind = "add"
	KindRemove Kind = "remove"
	KindPatch  Kind = "patch"
)

// State tags whether an entry in a view can be trusted
type State int

const (
	Confirmed State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "confirmed"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = Pending
	case "confirmed":
		*s = Confirmed
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// Entry is one element of an optimistic view. UpdateID is set only for
// Pending entries.
type Entry[T any] struct {
	Value    T      `json:"value"`
	State    State  `json:"state"`
	UpdateID string `json:"update_id,omitempty"`
}

// Update is a recorded tentative mutation against the entity with TargetID
type Update[T any] struct {
	ID        string
	Kind      Kind
	TargetID  string
	Value     T
	Timestamp time.Time
	Confirmed bool
}

// Tracker records unconfirmed mutations and folds them over confirmed state
type Tracker[T any] struct {
	mu      sync.Mutex
	idOf    func(T) string
	clock   clock.Clock
	grace   time.Duration
	updates []*Update[T]
	purges  map[string]clock.Timer
}

// New creates a tracker. idOf extracts the identity of an entity.
func New[T any](idOf func(T) string, clk clock.Clock, grace time.Duration) *Tracker[T] {
	if clk == nil {
		clk = clock.Real()
	}
	return &Tracker[T]{
		idOf:   idOf,
		clock:  clk,
		grace:  grace,
		purges: make(map[string]clock.Timer),
	}
}

// Apply records a tentative mutation and returns its update id. For
// KindRemove the value is ignored; for KindAdd the target is taken from
// the value when empty.
func (t *Tracker[T]) Apply(kind Kind, targetID string, value T) string {
	if kind == KindAdd && targetID == "" {
		targetID = t.idOf(value)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	u := &Update[T]{
		ID:        uuid.New().String(),
		Kind:      kind,
		TargetID:  targetID,
		Value:     value,
		Timestamp: t.clock.Now(),
	}
	t.updates = append(t.updates, u)
	return u.ID
}

func (t *Tracker[T]) Add(value T) string {
	return t.Apply(KindAdd, "", value)
}

func (t *Tracker[T]) Remove(targetID string) string {
	var zero T
	return t.Apply(KindRemove, targetID, zero)
}

func (t *Tracker[T]) Patch(targetID string, value T) string {
	return t.Apply(KindPatch, targetID, value)
}

// Confirm marks an update confirmed. It stops contributing to the view at
// once and is purged from the tracker after the grace delay.
func (t *Tracker[T]) Confirm(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.findLocked(id)
	if u == nil || u.Confirmed {
		return false
	}
	u.Confirmed = true
	t.purges[id] = t.clock.AfterFunc(t.grace, func() { t.purge(id) })
	return true
}

// Rollback discards an unconfirmed update immediately
func (t *Tracker[T]) Rollback(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, u := range t.updates {
		if u.ID == id && !u.Confirmed {
			t.updates = append(t.updates[:i], t.updates[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Tracker[T]) purge(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.purges, id)
	for i, u := range t.updates {
		if u.ID == id {
			t.updates = append(t.updates[:i], t.updates[i+1:]...)
			return
		}
	}
}

// View folds the unconfirmed updates, oldest first, over confirmed
func (t *Tracker[T]) View(confirmed []T) []Entry[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	view := make([]Entry[T], 0, len(confirmed))
	for _, v := range confirmed {
		view = append(view, Entry[T]{Value: v, State: Confirmed})
	}

	for _, u := range t.updates {
		if u.Confirmed {
			continue
		}
		switch u.Kind {
		case KindAdd:
			view = append(view, Entry[T]{Value: u.Value, State: Pending, UpdateID: u.ID})
		case KindRemove:
			kept := view[:0]
			for _, e := range view {
				if t.idOf(e.Value) != u.TargetID {
					kept = append(kept, e)
				}
			}
			view = kept
		case KindPatch:
			for i := range view {
				if t.idOf(view[i].Value) == u.TargetID {
					view[i] = Entry[T]{Value: u.Value, State: Pending, UpdateID: u.ID}
				}
			}
		}
	}
	return view
}

// Pending returns copies of the unconfirmed updates in application order
func (t *Tracker[T]) Pending() []Update[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Update[T]
	for _, u := range t.updates {
		if !u.Confirmed {
			out = append(out, *u)
		}
	}
	return out
}

func (t *Tracker[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.updates)
}

// HasConflicts reports whether an add and a remove are both pending for
// the same target
func (t *Tracker[T]) HasConflicts() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conflictingTargetsLocked()) > 0
}

// ResolveConflicts keeps only the most recent update for every conflicting
// target and returns the ids of the discarded ones
func (t *Tracker[T]) ResolveConflicts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	targets := t.conflictingTargetsLocked()
	if len(targets) == 0 {
		return nil
	}

	latest := make(map[string]*Update[T])
	for _, u := range t.updates {
		if _, ok := targets[u.TargetID]; ok && !u.Confirmed {
			latest[u.TargetID] = u
		}
	}

	var discarded []string
	kept := t.updates[:0]
	for _, u := range t.updates {
		if _, ok := targets[u.TargetID]; ok && !u.Confirmed && latest[u.TargetID] != u {
			discarded = append(discarded, u.ID)
			continue
		}
		kept = append(kept, u)
	}
	t.updates = kept
	return discarded
}

func (t *Tracker[T]) conflictingTargetsLocked() map[string]struct{} {
	adds := make(map[string]bool)
	removes := make(map[string]bool)
	for _, u := range t.updates {
		if u.Confirmed {
			continue
		}
		switch u.Kind {
		case KindAdd:
			adds[u.TargetID] = true
		case KindRemove:
			removes[u.TargetID] = true
		}
	}

	conflicts := make(map[string]struct{})
	for id := range adds {
		if removes[id] {
			conflicts[id] = struct{}{}
		}
	}
	return conflicts
}

// Clear drops every update and pending purge
func (t *Tracker[T]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.purges {
		timer.Stop()
		delete(t.purges, id)
	}
	t.updates = nil
}

func (t *Tracker[T]) findLocked(id string) *Update[T] {
	for _, u := range t.updates {
		if u.ID == id {
			return u
		}
	}
	return nil
}
