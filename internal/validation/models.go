package validation

import "time"

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Subject selects the rule set a payload is checked against
type Subject string

const (
	SubjectRoom          Subject = "room"
	SubjectCustomization Subject = "customization"
	SubjectOffer         Subject = "offer"
	SubjectBusiness      Subject = "business"
)

// Rule IDs referenced outside the package
const (
	RuleMaxRooms  = "max-rooms"
	RuleMaxExtras = "max-extras"
	RuleMaxTotal  = "max-total"
)

// Context carries the reservation facts rules are evaluated against
type Context struct {
	Now      time.Time
	CheckIn  time.Time
	CheckOut time.Time
}

// Rule is a single declarative check. Check returns true when data passes.
type Rule struct {
	ID       string
	Subject  Subject
	Check    func(data any, ctx Context) bool
	Message  string
	Severity Severity
}

type Issue struct {
	RuleID   string   `json:"rule_id"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result separates blocking errors from advisory warnings
type Result struct {
	IsValid  bool    `json:"is_valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// HasRule reports whether any blocking error was produced by the rule
func (r Result) HasRule(id string) bool {
	for _, e := range r.Errors {
		if e.RuleID == id {
			return true
		}
	}
	return false
}

// Limits are the business caps enforced by the default rule set
type Limits struct {
	MaxRooms     int
	MaxExtras    int
	MaxTotal     float64
	PriceCeiling float64
	RoomTypes    []string
}

func DefaultLimits() Limits {
	return Limits{
		MaxRooms:     5,
		MaxExtras:    10,
		MaxTotal:     50000,
		PriceCeiling: 10000,
	}
}

// RoomInput is the room payload validated before a selection is committed
type RoomInput struct {
	RoomType           string  `validate:"required"`
	Price              float64 `validate:"gte=0"`
	CustomizationTotal float64 `validate:"gte=0"`
}

type CustomizationInput struct {
	Key   string  `validate:"required"`
	Label string  `validate:"required"`
	Price float64 `validate:"gte=0"`
}

type OfferInput struct {
	Name  string  `validate:"required"`
	Price float64 `validate:"gte=0"`
	Units int     `validate:"gte=1"`
}

// BusinessInput describes the selection as it would be after the change
type BusinessInput struct {
	RoomCount  int
	ExtraCount int
	Total      float64
}
