package notifications

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeError   NotificationType = "error"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeInfo    NotificationType = "info"
)

type NotificationPriority string

const (
	NotificationPriorityLow      NotificationPriority = "low"
	NotificationPriorityMedium   NotificationPriority = "medium"
	NotificationPriorityHigh     NotificationPriority = "high"
	NotificationPriorityCritical NotificationPriority = "critical"
)

func (p NotificationPriority) rank() int {
	switch p {
	case NotificationPriorityCritical:
		return 3
	case NotificationPriorityHigh:
		return 2
	case NotificationPriorityLow:
		return 0
	default:
		return 1
	}
}

// NotificationStatus follows queued -> visible -> dismissed|expired|superseded
type NotificationStatus string

const (
	NotificationStatusQueued     NotificationStatus = "queued"
	NotificationStatusVisible    NotificationStatus = "visible"
	NotificationStatusDismissed  NotificationStatus = "dismissed"
	NotificationStatusExpired    NotificationStatus = "expired"
	NotificationStatusSuperseded NotificationStatus = "superseded"
)

func (s NotificationStatus) Terminal() bool {
	return s == NotificationStatusDismissed || s == NotificationStatusExpired || s == NotificationStatusSuperseded
}

// Event is an incoming request to show feedback
type Event struct {
	Type     NotificationType
	Title    string
	Message  string
	Priority NotificationPriority
	// Duration of zero uses the center default, negative never expires
	Duration time.Duration
}

// Notification is an entry that absorbed one or more events
type Notification struct {
	ID        string               `json:"id"`
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  NotificationPriority `json:"priority"`
	Duration  time.Duration        `json:"duration"`
	Count     int                  `json:"count"`
	Status    NotificationStatus   `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	ShownAt   *time.Time           `json:"shown_at,omitempty"`
	ClosedAt  *time.Time           `json:"closed_at,omitempty"`
}

// DisplayTitle renders the title with the group count, e.g. "Room added (3)"
func (n Notification) DisplayTitle() string {
	if n.Count > 1 {
		return fmt.Sprintf("%s (%d)", n.Title, n.Count)
	}
	return n.Title
}

func (n Notification) key() string {
	return groupKey(n.Type, n.Title)
}

func groupKey(t NotificationType, title string) string {
	return string(t) + "|" + title
}

// Metrics are kept for tuning batching and grouping
type Metrics struct {
	Received           int           `json:"received"`
	Shown              int           `json:"shown"`
	Dismissed          int           `json:"dismissed"`
	Expired            int           `json:"expired"`
	Superseded         int           `json:"superseded"`
	Collapsed          int           `json:"collapsed"`
	AverageViewTime    time.Duration `json:"average_view_time"`
	DismissalRate      float64       `json:"dismissal_rate"`
	GroupingEfficiency float64       `json:"grouping_efficiency"`
}

type EventBuilder struct {
	event Event
}

func NewEventBuilder(t NotificationType, title string) *EventBuilder {
	return &EventBuilder{event: Event{Type: t, Title: title, Priority: GetDefaultPriority(t)}}
}

func (b *EventBuilder) WithMessage(msg string) *EventBuilder {
	b.event.Message = msg
	return b
}

func (b *EventBuilder) WithPriority(p NotificationPriority) *EventBuilder {
	b.event.Priority = p
	return b
}

func (b *EventBuilder) WithDuration(d time.Duration) *EventBuilder {
	b.event.Duration = d
	return b
}

func (b *EventBuilder) Build() Event {
	return b.event
}

// GetDefaultPriority ranks failures above confirmations
func GetDefaultPriority(t NotificationType) NotificationPriority {
	switch t {
	case NotificationTypeError:
		return NotificationPriorityHigh
	case NotificationTypeWarning:
		return NotificationPriorityMedium
	case NotificationTypeInfo:
		return NotificationPriorityLow
	default:
		return NotificationPriorityMedium
	}
}
