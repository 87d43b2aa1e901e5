package validation

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"upsell/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// GenericRuleMessage is surfaced when a rule cannot be evaluated
const GenericRuleMessage = "Unable to validate selection"

// Validator runs the rule set registered for a subject
type Validator struct {
	mu     sync.RWMutex
	rules  map[Subject][]Rule
	fields *validator.Validate
	log    *logger.Logger
}

// New creates a validator loaded with the default rules for limits
func New(limits Limits, log *logger.Logger) *Validator {
	if log == nil {
		log = logger.GetDefault()
	}
	v := &Validator{
		rules:  make(map[Subject][]Rule),
		fields: validator.New(),
		log:    log.WithComponent("validation"),
	}
	for _, r := range v.defaultRules(limits) {
		v.AddRule(r)
	}
	return v
}

// AddRule registers a rule for its subject
func (v *Validator) AddRule(r Rule) {
	if r.Severity == "" {
		r.Severity = SeverityError
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules[r.Subject] = append(v.rules[r.Subject], r)
}

// Rules returns the rules registered for subject
func (v *Validator) Rules(subject Subject) []Rule {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Rule(nil), v.rules[subject]...)
}

// Validate runs every rule for subject. A rule that panics counts as a
// failed check and yields GenericRuleMessage.
func (v *Validator) Validate(subject Subject, data any, ctx Context) Result {
	if ctx.Now.IsZero() {
		ctx.Now = time.Now()
	}

	result := Result{IsValid: true}
	for _, rule := range v.Rules(subject) {
		passed, err := v.run(rule, data, ctx)
		if passed {
			continue
		}

		issue := Issue{RuleID: rule.ID, Message: rule.Message, Severity: rule.Severity}
		if err != nil {
			issue.Message = GenericRuleMessage
			issue.Severity = SeverityError
		}
		if issue.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, issue)
			continue
		}
		result.Errors = append(result.Errors, issue)
		result.IsValid = false
	}
	return result
}

func (v *Validator) run(rule Rule, data any, ctx Context) (passed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.ID, r)
			passed = false
			v.log.Error("Validation rule failed",
				slog.String("rule_id", rule.ID),
				slog.String("subject", string(rule.Subject)),
				slog.String("error", err.Error()),
			)
		}
	}()
	return rule.Check(data, ctx), nil
}

func (v *Validator) structOK(data any) bool {
	return v.fields.Struct(data) == nil
}

func (v *Validator) defaultRules(limits Limits) []Rule {
	roomTypes := make(map[string]struct{}, len(limits.RoomTypes))
	for _, t := range limits.RoomTypes {
		roomTypes[strings.ToUpper(t)] = struct{}{}
	}

	return []Rule{
		{
			ID:      "room-required-fields",
			Subject: SubjectRoom,
			Check:   func(data any, _ Context) bool { return v.structOK(data.(RoomInput)) },
			Message: "Room type is required and prices cannot be negative",
		},
		{
			ID:      "room-type-valid",
			Subject: SubjectRoom,
			Check: func(data any, _ Context) bool {
				if len(roomTypes) == 0 {
					return true
				}
				_, ok := roomTypes[strings.ToUpper(data.(RoomInput).RoomType)]
				return ok
			},
			Message: "Unknown room type",
		},
		{
			ID:      "room-dates",
			Subject: SubjectRoom,
			Check: func(_ any, ctx Context) bool {
				if ctx.CheckIn.IsZero() || ctx.CheckOut.IsZero() {
					return true
				}
				today := truncateDay(ctx.Now)
				return !truncateDay(ctx.CheckIn).Before(today) && ctx.CheckOut.After(ctx.CheckIn)
			},
			Message: "Check-in must not be in the past and check-out must follow check-in",
		},
		{
			ID:      "room-price-ceiling",
			Subject: SubjectRoom,
			Check: func(data any, _ Context) bool {
				return limits.PriceCeiling <= 0 || data.(RoomInput).Price <= limits.PriceCeiling
			},
			Message:  fmt.Sprintf("Room price exceeds %.2f, please double-check", limits.PriceCeiling),
			Severity: SeverityWarning,
		},
		{
			ID:      "customization-required-fields",
			Subject: SubjectCustomization,
			Check:   func(data any, _ Context) bool { return v.structOK(data.(CustomizationInput)) },
			Message: "Customization needs a key, a label and a non-negative price",
		},
		{
			ID:      "offer-required-fields",
			Subject: SubjectOffer,
			Check:   func(data any, _ Context) bool { return v.structOK(data.(OfferInput)) },
			Message: "Offer needs a name, a non-negative price and at least one unit",
		},
		{
			ID:      RuleMaxRooms,
			Subject: SubjectBusiness,
			Check:   func(data any, _ Context) bool { return data.(BusinessInput).RoomCount <= limits.MaxRooms },
			Message: fmt.Sprintf("At most %d rooms per reservation", limits.MaxRooms),
		},
		{
			ID:      RuleMaxExtras,
			Subject: SubjectBusiness,
			Check:   func(data any, _ Context) bool { return data.(BusinessInput).ExtraCount <= limits.MaxExtras },
			Message: fmt.Sprintf("At most %d extras per reservation", limits.MaxExtras),
		},
		{
			ID:      RuleMaxTotal,
			Subject: SubjectBusiness,
			Check: func(data any, _ Context) bool {
				return limits.MaxTotal <= 0 || data.(BusinessInput).Total <= limits.MaxTotal
			},
			Message: fmt.Sprintf("Reservation total cannot exceed %.2f", limits.MaxTotal),
		},
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
