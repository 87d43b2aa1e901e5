package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"upsell/internal/opqueue"
	"upsell/internal/selections"
	"upsell/internal/shared/constants"
	"upsell/pkg/cache"
	"upsell/pkg/clock"
	"upsell/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrEmptySelection = errors.New("nothing to submit")
)

// Service queues confirmed selections and persists them as orders. It
// satisfies selections.Submitter.
type Service interface {
	Submit(ctx context.Context, sub selections.Submission) (string, error)
	Status(ctx context.Context, submissionID string) (*Submission, error)
	GetOrder(ctx context.Context, submissionID string) (*Order, error)
}

type ServiceConfig struct {
	MaxRetries   int
	StatusTTL    time.Duration
	PlaceTimeout time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxRetries:   3,
		StatusTTL:    constants.TTL_SUBMISSION,
		PlaceTimeout: 10 * time.Second,
	}
}

// service implements the Service interface
type service struct {
	repo      Repository
	publisher Publisher
	queue     *opqueue.Queue
	statuses  cache.Service
	cfg       ServiceConfig
	clock     clock.Clock
	log       *logger.Logger

	mu          sync.Mutex
	submissions map[string]*Submission
}

// NewService wires the order pipeline. statuses may be nil, in which case
// submission status lives only in memory.
func NewService(repo Repository, publisher Publisher, queue *opqueue.Queue, statuses cache.Service, cfg ServiceConfig, clk clock.Clock, log *logger.Logger) Service {
	if publisher == nil {
		publisher = NewNoopPublisher()
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = constants.TTL_SUBMISSION
	}
	if cfg.PlaceTimeout <= 0 {
		cfg.PlaceTimeout = DefaultServiceConfig().PlaceTimeout
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{
		repo:        repo,
		publisher:   publisher,
		queue:       queue,
		statuses:    statuses,
		cfg:         cfg,
		clock:       clk,
		log:         log.WithComponent("orders"),
		submissions: make(map[string]*Submission),
	}
}

// Submit enqueues the selection. A newer submit for the same session
// supersedes one that has not run yet.
func (s *service) Submit(ctx context.Context, sub selections.Submission) (string, error) {
	if strings.TrimSpace(sub.SessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}
	if len(sub.Rooms) == 0 && len(sub.Extras) == 0 {
		return "", ErrEmptySelection
	}

	id := uuid.New().String()
	now := s.clock.Now()
	s.record(ctx, &Submission{
		ID:        id,
		SessionID: sub.SessionID,
		Status:    StatusQueued,
		Total:     sub.Total,
		CreatedAt: now,
		UpdatedAt: now,
	})

	s.queue.Enqueue(func(qctx context.Context) (any, error) {
		return s.place(qctx, id, sub)
	}, opqueue.Options{
		ID:         id,
		Priority:   opqueue.PriorityHigh,
		DedupKey:   "order:" + sub.SessionID,
		MaxRetries: s.cfg.MaxRetries,
		OnSuccess: func(result any) {
			order := result.(*Order)
			s.settle(id, StatusSucceeded, order.ID.String(), nil)
			s.log.LogOrderSubmitted(context.Background(), order.ID.String(), order.SessionID, order.Agent, order.Total)
		},
		OnError: func(err error) {
			if errors.Is(err, opqueue.ErrSuperseded) {
				s.settle(id, StatusSuperseded, "", err)
				return
			}
			s.settle(id, StatusFailed, "", err)
			s.log.Error("Order submission failed",
				slog.String("submission_id", id),
				slog.String("session_id", sub.SessionID),
				slog.String("error", err.Error()),
			)
		},
	})
	return id, nil
}

// place persists the order once and publishes it. On retry an order that
// was already written is reused.
func (s *service) place(ctx context.Context, submissionID string, sub selections.Submission) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PlaceTimeout)
	defer cancel()

	order, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, fmt.Errorf("failed to look up order: %w", err)
		}
		order = newOrder(submissionID, sub, s.clock.Now())
		if err := s.repo.Create(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
	}

	if err := s.publisher.PublishOrderSubmitted(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Status(ctx context.Context, submissionID string) (*Submission, error) {
	s.mu.Lock()
	if sub, ok := s.submissions[submissionID]; ok {
		out := *sub
		s.mu.Unlock()
		return &out, nil
	}
	s.mu.Unlock()

	if s.statuses == nil {
		return nil, ErrOrderNotFound
	}
	var sub Submission
	if err := s.statuses.Get(ctx, constants.BuildSubmissionKey(submissionID), &sub); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	return &sub, nil
}

func (s *service) GetOrder(ctx context.Context, submissionID string) (*Order, error) {
	return s.repo.GetBySubmissionID(ctx, submissionID)
}

func (s *service) settle(id string, status Status, orderID string, err error) {
	s.mu.Lock()
	sub, ok := s.submissions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	updated := *sub
	s.mu.Unlock()

	updated.Status = status
	updated.OrderID = orderID
	updated.UpdatedAt = s.clock.Now()
	if err != nil {
		updated.Error = err.Error()
	}
	s.record(context.Background(), &updated)
}

func (s *service) record(ctx context.Context, sub *Submission) {
	s.mu.Lock()
	s.submissions[sub.ID] = sub
	s.mu.Unlock()

	if s.statuses == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.statuses.Set(ctx, constants.BuildSubmissionKey(sub.ID), *sub, s.cfg.StatusTTL); err != nil {
		s.log.Warn("Failed to store submission status",
			slog.String("submission_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}
}

func newOrder(submissionID string, sub selections.Submission, now time.Time) *Order {
	order := &Order{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		SessionID:    sub.SessionID,
		Agent:        sub.Agent,
		Total:        sub.Total,
		Status:       OrderStatusPlaced,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, r := range sub.Rooms {
		name := r.Name
		if name == "" {
			name = string(r.RoomType)
		}
		order.Lines = append(order.Lines, OrderLine{
			ID:             uuid.New(),
			OrderID:        order.ID,
			Kind:           LineKindRoom,
			ItemID:         r.ID,
			Name:           name,
			RoomType:       string(r.RoomType),
			Price:          r.Price,
			Customizations: r.CustomizationTotal,
			Units:          1,
			Nights:         r.Nights,
			CreatedAt:      now,
		})
	}
	for _, e := range sub.Extras {
		order.Lines = append(order.Lines, OrderLine{
			ID:         uuid.New(),
			OrderID:    order.ID,
			Kind:       LineKindExtra,
			ItemID:     e.ID,
			Name:       e.Name,
			Price:      e.Price,
			Units:      max(e.Units, 1),
			Commission: e.Commission,
			CreatedAt:  now,
		})
	}
	return order
}
