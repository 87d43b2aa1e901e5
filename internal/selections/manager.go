package selections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"upsell/internal/notifications"
	"upsell/internal/shared/constants"
	"upsell/internal/validation"
	"upsell/pkg/cache"
	"upsell/pkg/clock"
	"upsell/pkg/logger"
)

var ErrSessionNotFound = errors.New("selection session not found")

const persistTimeout = 3 * time.Second

// Session is one guest's selection store with its notification center
type Session struct {
	ID            string
	Store         *Store
	Notifications *notifications.Center

	// guarded by Manager.mu
	idle    clock.Timer
	idleGen uint64
}

// sessionState is the persisted form of a session
type sessionState struct {
	Rooms     []SelectedRoom  `json:"rooms"`
	Extras    []SelectedExtra `json:"extras"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ManagerConfig struct {
	Store         StoreConfig
	Notifications notifications.Config
	Limits        validation.Limits
	SessionTTL    time.Duration
	RoomCatalog   map[string]RoomType
	Conflicts     map[string][]string
	Hooks         Hooks
}

// Manager owns one Store per session id. Sessions are rehydrated from the
// snapshot cache on first access and written back after every commit. A
// session left untouched for SessionTTL is dropped from memory; its
// snapshot stays in the cache until Redis expires it.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg        ManagerConfig
	snapshots  cache.Service
	remote     Remote
	validator  *validation.Validator
	normalizer *RoomTypeNormalizer
	conflicts  *ConflictTable
	clock      clock.Clock
	log        *logger.Logger
}

// NewManager builds a manager. A nil snapshots service keeps sessions in
// memory only.
func NewManager(cfg ManagerConfig, snapshots cache.Service, remote Remote, clk clock.Clock, log *logger.Logger) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = constants.TTL_SESSION_DEFAULT
	}
	cfg.Limits = withDefaultLimits(cfg.Limits)
	conflicts := cfg.Conflicts
	if conflicts == nil {
		conflicts = DefaultConflicts
	}

	return &Manager{
		sessions:   make(map[string]*Session),
		cfg:        cfg,
		snapshots:  snapshots,
		remote:     remote,
		validator:  validation.New(cfg.Limits, log),
		normalizer: NewRoomTypeNormalizer(cfg.RoomCatalog, nil),
		conflicts:  NewConflictTable(conflicts),
		clock:      clk,
		log:        log.WithComponent("selection-manager"),
	}
}

// Get returns the session, creating and rehydrating it when needed
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.touchLocked(s)
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	state, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// another request may have created it while we were loading
	if s, ok := m.sessions[id]; ok {
		m.touchLocked(s)
		return s, nil
	}
	s := m.newSession(id)
	if state != nil {
		s.Store.Restore(state.Rooms, state.Extras)
		m.log.DebugWithContext(ctx, "Selection session rehydrated", map[string]interface{}{
			"session_id": id,
			"rooms":      len(state.Rooms),
			"extras":     len(state.Extras),
		})
	}
	m.sessions[id] = s
	m.touchLocked(s)
	return s, nil
}

// touchLocked re-arms the idle eviction timer of s
func (m *Manager) touchLocked(s *Session) {
	if s.idle != nil {
		s.idle.Stop()
	}
	s.idleGen++
	gen := s.idleGen
	s.idle = m.clock.AfterFunc(m.cfg.SessionTTL, func() { m.evict(s, gen) })
}

// evict drops s from memory unless it was touched after the timer was armed
func (m *Manager) evict(s *Session, gen uint64) {
	m.mu.Lock()
	if m.sessions[s.ID] != s || s.idleGen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, s.ID)
	s.idle = nil
	m.mu.Unlock()

	s.Notifications.Close()
	m.log.Debug("Idle selection session evicted", slog.String("session_id", s.ID))
}

// Delete drops a session from memory and from the snapshot cache
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, inMemory := m.sessions[id]
	if inMemory {
		m.stopIdleLocked(s)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	if inMemory {
		s.Notifications.Close()
	}

	if m.snapshots == nil {
		if !inMemory {
			return ErrSessionNotFound
		}
		return nil
	}

	key := constants.BuildSelectionSessionKey(id)
	if !inMemory && !m.snapshots.Exists(ctx, key) {
		return ErrSessionNotFound
	}
	if err := m.snapshots.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}

// Len is the number of in-memory sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session's notification timers
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		m.stopIdleLocked(s)
		s.Notifications.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) stopIdleLocked(s *Session) {
	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}
	s.idleGen++
}

// withDefaultLimits fills every unset cap from DefaultValidationLimits
func withDefaultLimits(l validation.Limits) validation.Limits {
	def := DefaultValidationLimits()
	if l.MaxRooms <= 0 {
		l.MaxRooms = def.MaxRooms
	}
	if l.MaxExtras <= 0 {
		l.MaxExtras = def.MaxExtras
	}
	if l.MaxTotal <= 0 {
		l.MaxTotal = def.MaxTotal
	}
	if l.PriceCeiling <= 0 {
		l.PriceCeiling = def.PriceCeiling
	}
	if len(l.RoomTypes) == 0 {
		l.RoomTypes = def.RoomTypes
	}
	return l
}

func (m *Manager) newSession(id string) *Session {
	center := notifications.NewCenter(m.cfg.Notifications, m.clock, m.log.WithSessionID(id))

	storeCfg := m.cfg.Store
	storeCfg.SessionID = id
	store := NewStore(Options{
		Config:     storeCfg,
		Remote:     m.remote,
		Validator:  m.validator,
		Notifier:   center,
		Normalizer: m.normalizer,
		Conflicts:  m.conflicts,
		Hooks:      m.cfg.Hooks,
		Clock:      m.clock,
		Logger:     m.log,
		OnCommit: func(rooms []SelectedRoom, extras []SelectedExtra) {
			m.persist(id, rooms, extras)
		},
	})

	return &Session{ID: id, Store: store, Notifications: center}
}

func (m *Manager) load(ctx context.Context, id string) (*sessionState, error) {
	if m.snapshots == nil {
		return nil, nil
	}

	var state sessionState
	err := m.snapshots.Get(ctx, constants.BuildSelectionSessionKey(id), &state)
	switch {
	case err == nil:
		return &state, nil
	case errors.Is(err, cache.ErrCacheMiss):
		return nil, nil
	default:
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
}

func (m *Manager) persist(id string, rooms []SelectedRoom, extras []SelectedExtra) {
	if m.snapshots == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	state := sessionState{Rooms: rooms, Extras: extras, UpdatedAt: m.clock.Now()}
	if err := m.snapshots.Set(ctx, constants.BuildSelectionSessionKey(id), state, m.cfg.SessionTTL); err != nil {
		m.log.Error("Failed to persist selection session",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
}
