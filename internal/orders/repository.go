package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetBySubmissionID(ctx context.Context, submissionID string) (*Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]Order, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create inserts the order and its lines in one transaction
func (r *repository) Create(ctx context.Context, order *Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) GetBySubmissionID(ctx context.Context, submissionID string) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).Preload("Lines").Where("submission_id = ?", submissionID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListBySession(ctx context.Context, sessionID string) ([]Order, error) {
	var orders []Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}
