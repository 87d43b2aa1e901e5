package opqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"upsell/pkg/clock"
	"upsell/pkg/logger"

	"github.com/google/uuid"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParsePriority converts a priority name, defaulting to medium
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

var (
	ErrSuperseded   = errors.New("Operation superseded")
	ErrQueueCleared = errors.New("Queue cleared")
	ErrCancelled    = errors.New("Operation cancelled")
)

// Func is the side-effecting work of a queued operation
type Func func(ctx context.Context) (any, error)

// Options controls how a single operation is queued and retried.
// MaxRetries of zero means the operation runs exactly once.
type Options struct {
	ID         string
	Priority   Priority
	DedupKey   string
	MaxRetries int
	OnSuccess  func(result any)
	OnError    func(err error)
}

type Config struct {
	ProcessingDelay time.Duration
	BatchSize       int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
}

func DefaultConfig() Config {
	return Config{
		ProcessingDelay: 100 * time.Millisecond,
		BatchSize:       3,
		BaseBackoff:     time.Second,
		MaxBackoff:      10 * time.Second,
	}
}

// Stats counts queue outcomes since creation
type Stats struct {
	Enqueued   int `json:"enqueued"`
	Executed   int `json:"executed"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Retried    int `json:"retried"`
	Superseded int `json:"superseded"`
	Cancelled  int `json:"cancelled"`
}

type job struct {
	id         string
	fn         Func
	opts       Options
	retryCount int
	seq        uint64
	cancelled  bool
	backoff    clock.Timer
}

type callback func()

// Queue runs side-effecting operations in prioritized, deduplicated batches
// with exponential-backoff retry.
type Queue struct {
	mu     sync.Mutex
	cfg    Config
	clock  clock.Clock
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	pending []*job
	active  map[string]*job
	waiting map[string]*job

	timer      clock.Timer
	timerDue   time.Time
	processing bool
	seq        uint64
	latest     map[string]uint64
	stats      Stats
}

func New(cfg Config, clk clock.Clock, log *logger.Logger) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultConfig().BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:     cfg,
		clock:   clk,
		log:     log.WithComponent("opqueue"),
		ctx:     ctx,
		cancel:  cancel,
		active:  make(map[string]*job),
		waiting: make(map[string]*job),
		latest:  make(map[string]uint64),
	}
}

// Enqueue appends an operation and returns its id. When an operation with
// the same id is already running the call is a no-op and returns false.
func (q *Queue) Enqueue(fn Func, opts Options) (string, bool) {
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, running := q.active[opts.ID]; running {
		q.log.Warn("Operation already in flight, ignoring enqueue", slog.String("operation_id", opts.ID))
		return opts.ID, false
	}

	q.seq++
	if opts.DedupKey != "" {
		q.latest[opts.DedupKey] = q.seq
	}
	q.pending = append(q.pending, &job{id: opts.ID, fn: fn, opts: opts, seq: q.seq})
	q.stats.Enqueued++
	q.scheduleLocked(q.delayFor(opts.Priority))
	return opts.ID, true
}

// Cancel removes a queued or backing-off operation, invoking its error
// callback, or detaches a running one so its outcome is ignored.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()

	for i, j := range q.pending {
		if j.id == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.stats.Cancelled++
			q.mu.Unlock()
			fail(j, ErrCancelled)
			return true
		}
	}

	if j, ok := q.waiting[id]; ok {
		delete(q.waiting, id)
		j.backoff.Stop()
		q.stats.Cancelled++
		q.mu.Unlock()
		fail(j, ErrCancelled)
		return true
	}

	if j, ok := q.active[id]; ok {
		j.cancelled = true
		delete(q.active, id)
		q.stats.Cancelled++
		q.mu.Unlock()
		return true
	}

	q.mu.Unlock()
	return false
}

// Clear drains every operation that has not started yet
func (q *Queue) Clear() {
	q.mu.Lock()
	drained := q.pending
	q.pending = nil
	for id, j := range q.waiting {
		j.backoff.Stop()
		drained = append(drained, j)
		delete(q.waiting, id)
	}
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()

	for _, j := range drained {
		fail(j, ErrQueueCleared)
	}
}

// Close clears the queue and cancels the context handed to running operations
func (q *Queue) Close() {
	q.Clear()
	q.cancel()
}

func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.waiting)
}

func (q *Queue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *Queue) delayFor(p Priority) time.Duration {
	if p == PriorityCritical {
		return 0
	}
	return q.cfg.ProcessingDelay
}

// scheduleLocked arms the processing timer. An earlier deadline always wins.
func (q *Queue) scheduleLocked(delay time.Duration) {
	due := q.clock.Now().Add(delay)
	if q.timer != nil {
		if !due.Before(q.timerDue) {
			return
		}
		q.timer.Stop()
	}
	q.timerDue = due
	q.timer = q.clock.AfterFunc(delay, q.process)
}

type outcome struct {
	job    *job
	result any
	err    error
}

func (q *Queue) process() {
	q.mu.Lock()
	q.timer = nil
	if q.processing {
		// the running batch reschedules itself when it settles
		q.mu.Unlock()
		return
	}

	superseded := q.dedupLocked()
	batch := q.takeBatchLocked()
	if len(batch) > 0 {
		q.processing = true
	}
	q.mu.Unlock()

	for _, j := range superseded {
		fail(j, ErrSuperseded)
	}
	if len(batch) == 0 {
		return
	}

	outcomes := q.run(batch)

	q.mu.Lock()
	q.processing = false
	var callbacks []callback
	for _, o := range outcomes {
		if cb := q.settleLocked(o); cb != nil {
			callbacks = append(callbacks, cb)
		}
	}
	if len(q.pending) > 0 {
		q.scheduleLocked(q.delayFor(q.topPriorityLocked()))
	}
	q.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// dedupLocked keeps only the newest operation per dedup key. A retry that
// was overtaken by a later enqueue with the same key is discarded too.
func (q *Queue) dedupLocked() []*job {
	var discarded []*job
	kept := q.pending[:0]
	for _, j := range q.pending {
		if j.opts.DedupKey != "" && j.seq < q.latest[j.opts.DedupKey] {
			discarded = append(discarded, j)
			continue
		}
		kept = append(kept, j)
	}
	q.pending = kept
	q.stats.Superseded += len(discarded)
	return discarded
}

func (q *Queue) takeBatchLocked() []*job {
	sort.SliceStable(q.pending, func(i, k int) bool {
		return q.pending[i].opts.Priority > q.pending[k].opts.Priority
	})

	n := q.cfg.BatchSize
	if n > len(q.pending) {
		n = len(q.pending)
	}
	batch := make([]*job, n)
	copy(batch, q.pending[:n])
	q.pending = append([]*job(nil), q.pending[n:]...)

	for _, j := range batch {
		q.active[j.id] = j
	}
	q.stats.Executed += len(batch)
	return batch
}

func (q *Queue) topPriorityLocked() Priority {
	top := PriorityLow
	for _, j := range q.pending {
		if j.opts.Priority > top {
			top = j.opts.Priority
		}
	}
	return top
}

// run executes the batch concurrently and waits for every job to settle
func (q *Queue) run(batch []*job) []outcome {
	outcomes := make([]outcome, len(batch))
	var wg sync.WaitGroup
	for i, j := range batch {
		wg.Add(1)
		go func(i int, j *job) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = outcome{job: j, err: fmt.Errorf("operation panicked: %v", r)}
				}
			}()
			result, err := j.fn(q.ctx)
			outcomes[i] = outcome{job: j, result: result, err: err}
		}(i, j)
	}
	wg.Wait()
	return outcomes
}

func (q *Queue) settleLocked(o outcome) callback {
	j := o.job
	if q.active[j.id] == j {
		delete(q.active, j.id)
	}
	if j.cancelled {
		return nil
	}

	if o.err == nil {
		q.stats.Succeeded++
		if j.opts.OnSuccess == nil {
			return nil
		}
		result := o.result
		return func() { j.opts.OnSuccess(result) }
	}

	q.log.LogOperationFailed(q.ctx, j.id, "queued", j.retryCount, o.err)

	if j.retryCount < j.opts.MaxRetries {
		delay := q.backoff(j.retryCount)
		q.waiting[j.id] = j
		q.stats.Retried++
		j.backoff = q.clock.AfterFunc(delay, func() { q.requeue(j) })
		return nil
	}

	q.stats.Failed++
	err := o.err
	return func() { fail(j, err) }
}

func (q *Queue) backoff(retryCount int) time.Duration {
	delay := q.cfg.BaseBackoff << uint(retryCount)
	if delay > q.cfg.MaxBackoff || delay <= 0 {
		delay = q.cfg.MaxBackoff
	}
	return delay
}

// requeue puts a failed operation back at the head of the queue
func (q *Queue) requeue(j *job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.waiting[j.id] != j {
		return
	}
	delete(q.waiting, j.id)
	j.retryCount++
	q.pending = append([]*job{j}, q.pending...)
	q.scheduleLocked(q.delayFor(j.opts.Priority))
}

func fail(j *job, err error) {
	if j.opts.OnError != nil {
		j.opts.OnError(err)
	}
}
