package notifications

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"upsell/pkg/clock"
	"upsell/pkg/logger"

	"github.com/google/uuid"
)

type Config struct {
	BatchDelay      time.Duration
	MaxVisible      int
	DedupWindow     time.Duration
	MaxGroupSize    int
	DefaultDuration time.Duration
	HistorySize     int
}

func DefaultConfig() Config {
	return Config{
		BatchDelay:      150 * time.Millisecond,
		MaxVisible:      3,
		DedupWindow:     2 * time.Second,
		MaxGroupSize:    5,
		DefaultDuration: 4 * time.Second,
		HistorySize:     50,
	}
}

// Center deduplicates, groups, batches and expires user-facing notifications
type Center struct {
	mu    sync.Mutex
	cfg   Config
	clock clock.Clock
	log   *logger.Logger

	entries    []*Notification
	history    []Notification
	expiry     map[string]clock.Timer
	flushTimer clock.Timer

	metrics       Metrics
	totalViewTime time.Duration
	viewSamples   int
}

func NewCenter(cfg Config, clk clock.Clock, log *logger.Logger) *Center {
	def := DefaultConfig()
	if cfg.MaxVisible <= 0 {
		cfg.MaxVisible = def.MaxVisible
	}
	if cfg.MaxGroupSize <= 0 {
		cfg.MaxGroupSize = def.MaxGroupSize
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Center{
		cfg:    cfg,
		clock:  clk,
		log:    log.WithComponent("notifications"),
		expiry: make(map[string]clock.Timer),
	}
}

// Notify records an event and returns the id of the entry that absorbed it.
// Events sharing type and title within the dedup window collapse into one
// counted entry until the group is full.
func (c *Center) Notify(ev Event) string {
	if ev.Priority == "" {
		ev.Priority = GetDefaultPriority(ev.Type)
	}
	if ev.Duration == 0 {
		ev.Duration = c.cfg.DefaultDuration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.metrics.Received++
	key := groupKey(ev.Type, ev.Title)

	for _, n := range c.entries {
		if n.key() != key {
			continue
		}
		inWindow := now.Sub(n.UpdatedAt) <= c.cfg.DedupWindow
		if inWindow && n.Count < c.cfg.MaxGroupSize {
			n.Count++
			n.Message = ev.Message
			n.UpdatedAt = now
			if ev.Priority.rank() > n.Priority.rank() {
				n.Priority = ev.Priority
			}
			c.metrics.Collapsed++
			if n.Status == NotificationStatusVisible {
				c.armExpiryLocked(n)
			}
			return n.ID
		}
		if !inWindow && n.Status == NotificationStatusQueued {
			// a stale entry that was never shown gives way to the fresh one
			c.closeLocked(n, NotificationStatusSuperseded, now)
			break
		}
	}

	n := &Notification{
		ID:        uuid.New().String(),
		Type:      ev.Type,
		Title:     ev.Title,
		Message:   ev.Message,
		Priority:  ev.Priority,
		Duration:  ev.Duration,
		Count:     1,
		Status:    NotificationStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.entries = append(c.entries, n)
	c.scheduleFlushLocked()
	return n.ID
}

func (c *Center) scheduleFlushLocked() {
	if c.flushTimer != nil {
		return
	}
	c.flushTimer = c.clock.AfterFunc(c.cfg.BatchDelay, c.flush)
}

// flush promotes queued entries into the free visible slots
func (c *Center) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flushTimer = nil
	c.promoteLocked()
}

// Flush runs a pending batch immediately
func (c *Center) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer = nil
	}
	c.promoteLocked()
}

func (c *Center) promoteLocked() {
	visible := 0
	var queued []*Notification
	for _, n := range c.entries {
		switch n.Status {
		case NotificationStatusVisible:
			visible++
		case NotificationStatusQueued:
			queued = append(queued, n)
		}
	}

	sort.SliceStable(queued, func(i, j int) bool {
		return queued[i].Priority.rank() > queued[j].Priority.rank()
	})

	now := c.clock.Now()
	for _, n := range queued {
		if visible >= c.cfg.MaxVisible {
			break
		}
		shown := now
		n.Status = NotificationStatusVisible
		n.ShownAt = &shown
		c.metrics.Shown++
		visible++
		c.armExpiryLocked(n)
	}
}

func (c *Center) armExpiryLocked(n *Notification) {
	if t, ok := c.expiry[n.ID]; ok {
		t.Stop()
		delete(c.expiry, n.ID)
	}
	if n.Duration <= 0 {
		return
	}
	id := n.ID
	c.expiry[id] = c.clock.AfterFunc(n.Duration, func() { c.expire(id) })
}

func (c *Center) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.expiry, id)
	n := c.findLocked(id)
	if n == nil || n.Status != NotificationStatusVisible {
		return
	}
	c.closeLocked(n, NotificationStatusExpired, c.clock.Now())
	c.promoteLocked()
}

// Dismiss closes an entry on user action and frees its slot
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.findLocked(id)
	if n == nil {
		return false
	}
	c.closeLocked(n, NotificationStatusDismissed, c.clock.Now())
	c.promoteLocked()
	return true
}

func (c *Center) DismissAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for len(c.entries) > 0 {
		c.closeLocked(c.entries[0], NotificationStatusDismissed, now)
	}
}

// closeLocked moves n to a terminal status and into history
func (c *Center) closeLocked(n *Notification, status NotificationStatus, now time.Time) {
	if t, ok := c.expiry[n.ID]; ok {
		t.Stop()
		delete(c.expiry, n.ID)
	}

	if n.ShownAt != nil {
		c.totalViewTime += now.Sub(*n.ShownAt)
		c.viewSamples++
	}
	switch {
	case status == NotificationStatusDismissed && n.ShownAt != nil:
		c.metrics.Dismissed++
	case status == NotificationStatusExpired:
		c.metrics.Expired++
	case status == NotificationStatusSuperseded:
		c.metrics.Superseded++
	}

	closed := now
	n.Status = status
	n.ClosedAt = &closed

	for i, e := range c.entries {
		if e == n {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	c.history = append(c.history, *n)
	if over := len(c.history) - c.cfg.HistorySize; over > 0 {
		c.history = append([]Notification(nil), c.history[over:]...)
	}

	c.log.Debug("Notification closed",
		slog.String("notification_id", n.ID),
		slog.String("status", string(status)),
		slog.Int("count", n.Count),
	)
}

// Visible returns the entries currently on screen, highest priority first
func (c *Center) Visible() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Notification
	for _, n := range c.entries {
		if n.Status == NotificationStatusVisible {
			out = append(out, *n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.rank() > out[j].Priority.rank()
	})
	return out
}

// QueuedCount is the "N more queued" figure
func (c *Center) QueuedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, n := range c.entries {
		if n.Status == NotificationStatusQueued {
			count++
		}
	}
	return count
}

// Active returns every non-terminal entry, visible and queued
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, 0, len(c.entries))
	for _, n := range c.entries {
		out = append(out, *n)
	}
	return out
}

func (c *Center) Get(id string) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := c.findLocked(id); n != nil {
		return *n, true
	}
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].ID == id {
			return c.history[i], true
		}
	}
	return Notification{}, false
}

func (c *Center) History() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.history...)
}

func (c *Center) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.metrics
	if c.viewSamples > 0 {
		m.AverageViewTime = c.totalViewTime / time.Duration(c.viewSamples)
	}
	if m.Shown > 0 {
		m.DismissalRate = float64(m.Dismissed) / float64(m.Shown)
	}
	if m.Received > 0 {
		m.GroupingEfficiency = float64(m.Collapsed) / float64(m.Received)
	}
	return m
}

// Close stops every pending timer
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer = nil
	}
	for id, t := range c.expiry {
		t.Stop()
		delete(c.expiry, id)
	}
}

func (c *Center) findLocked(id string) *Notification {
	for _, n := range c.entries {
		if n.ID == id {
			return n
		}
	}
	return nil
}
