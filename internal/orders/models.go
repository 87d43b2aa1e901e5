package orders

import (
	"time"

	"github.com/google/uuid"
)

type LineKind string

const (
	LineKindRoom  LineKind = "room"
	LineKindExtra LineKind = "extra"
)

// Order is a persisted, submitted selection
type Order struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SubmissionID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"submission_id"`
	SessionID    string    `gorm:"type:varchar(128);index;not null" json:"session_id"`
	Agent        string    `gorm:"type:varchar(100)" json:"agent,omitempty"`
	Total        float64   `gorm:"not null" json:"total"`
	Status       string    `gorm:"type:varchar(20);check:status IN ('PLACED', 'CANCELLED');default:'PLACED'" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relationships
	Lines []OrderLine `json:"lines,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;"`
}

// OrderLine is one room or extra of an order
type OrderLine struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderID        uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`
	Kind           LineKind  `gorm:"type:varchar(10);check:kind IN ('room', 'extra');not null" json:"kind"`
	ItemID         string    `gorm:"type:varchar(128);not null" json:"item_id"`
	Name           string    `gorm:"type:varchar(255)" json:"name"`
	RoomType       string    `gorm:"type:varchar(50)" json:"room_type,omitempty"`
	Price          float64   `gorm:"not null" json:"price"`
	Customizations float64   `gorm:"default:0" json:"customizations"`
	Units          int       `gorm:"default:1" json:"units"`
	Nights         int       `gorm:"default:0" json:"nights,omitempty"`
	Commission     float64   `gorm:"default:0" json:"commission"`
	CreatedAt      time.Time `json:"created_at"`
}

const OrderStatusPlaced = "PLACED"

func (Order) TableName() string {
	return "orders"
}

func (OrderLine) TableName() string {
	return "order_lines"
}

// Status tracks a queued submission until its order is persisted
type Status string

const (
	StatusQueued     Status = "queued"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusSuperseded Status = "superseded"
)

// Submission is the pollable state of one submit request
type Submission struct {
	ID        string    `json:"submission_id"`
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	OrderID   string    `json:"order_id,omitempty"`
	Total     float64   `json:"total"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderSubmittedEvent is the payload of the order.submitted message
type OrderSubmittedEvent struct {
	EventType    string      `json:"event_type"`
	OrderID      string      `json:"order_id"`
	SubmissionID string      `json:"submission_id"`
	SessionID    string      `json:"session_id"`
	Agent        string      `json:"agent,omitempty"`
	Total        float64     `json:"total"`
	Lines        []OrderLine `json:"lines"`
	SubmittedAt  time.Time   `json:"submitted_at"`
}

const EventTypeOrderSubmitted = "order.submitted"
