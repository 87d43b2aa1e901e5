package validation

import (
	"testing"
	"time"

	"upsell/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	limits := DefaultLimits()
	limits.RoomTypes = []string{"DELUXE", "SUITE"}
	return New(limits, logger.NewDiscard())
}

func TestValidate_Room(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name     string
		room     RoomInput
		ctx      Context
		valid    bool
		ruleID   string
		warnings int
	}{
		{
			name:  "valid room",
			room:  RoomInput{RoomType: "DELUXE", Price: 120},
			ctx:   Context{Now: today, CheckIn: today, CheckOut: today.AddDate(0, 0, 2)},
			valid: true,
		},
		{
			name:   "negative price",
			room:   RoomInput{RoomType: "DELUXE", Price: -1},
			ctx:    Context{Now: today},
			ruleID: "room-required-fields",
		},
		{
			name:   "unknown type",
			room:   RoomInput{RoomType: "PENTHOUSE", Price: 10},
			ctx:    Context{Now: today},
			ruleID: "room-type-valid",
		},
		{
			name:   "check-in in the past",
			room:   RoomInput{RoomType: "SUITE", Price: 10},
			ctx:    Context{Now: today, CheckIn: today.AddDate(0, 0, -1), CheckOut: today.AddDate(0, 0, 1)},
			ruleID: "room-dates",
		},
		{
			name:   "check-out before check-in",
			room:   RoomInput{RoomType: "SUITE", Price: 10},
			ctx:    Context{Now: today, CheckIn: today.AddDate(0, 0, 3), CheckOut: today.AddDate(0, 0, 3)},
			ruleID: "room-dates",
		},
		{
			name:     "price above ceiling only warns",
			room:     RoomInput{RoomType: "SUITE", Price: 25000},
			ctx:      Context{Now: today},
			valid:    true,
			warnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(SubjectRoom, tt.room, tt.ctx)
			assert.Equal(t, tt.valid, result.IsValid)
			assert.Len(t, result.Warnings, tt.warnings)
			if tt.ruleID != "" {
				assert.True(t, result.HasRule(tt.ruleID), "expected %s in %+v", tt.ruleID, result.Errors)
			}
		})
	}
}

func TestValidate_BusinessQuotas(t *testing.T) {
	v := newTestValidator()

	result := v.Validate(SubjectBusiness, BusinessInput{RoomCount: 6, ExtraCount: 11, Total: 10}, Context{Now: today})

	assert.False(t, result.IsValid)
	assert.True(t, result.HasRule(RuleMaxRooms))
	assert.True(t, result.HasRule(RuleMaxExtras))
	assert.False(t, result.HasRule(RuleMaxTotal))

	result = v.Validate(SubjectBusiness, BusinessInput{RoomCount: 5, ExtraCount: 10, Total: 50000}, Context{Now: today})
	assert.True(t, result.IsValid)
}

func TestValidate_OfferAndCustomization(t *testing.T) {
	v := newTestValidator()

	assert.True(t, v.Validate(SubjectOffer, OfferInput{Name: "Spa", Price: 40, Units: 1}, Context{}).IsValid)
	assert.False(t, v.Validate(SubjectOffer, OfferInput{Price: 40, Units: 1}, Context{}).IsValid)
	assert.False(t, v.Validate(SubjectOffer, OfferInput{Name: "Spa", Price: 40}, Context{}).IsValid)

	assert.True(t, v.Validate(SubjectCustomization, CustomizationInput{Key: "view", Label: "Sea view", Price: 15}, Context{}).IsValid)
	assert.False(t, v.Validate(SubjectCustomization, CustomizationInput{Key: "view"}, Context{}).IsValid)
}

func TestValidate_PanickingRuleFailsClosed(t *testing.T) {
	v := newTestValidator()
	v.AddRule(Rule{
		ID:      "broken",
		Subject: SubjectOffer,
		Check: func(data any, _ Context) bool {
			var m map[string]int
			m["boom"]++
			return true
		},
		Message:  "never shown",
		Severity: SeverityWarning,
	})

	result := v.Validate(SubjectOffer, OfferInput{Name: "Spa", Price: 40, Units: 1}, Context{})

	assert.False(t, result.IsValid)
	require.True(t, result.HasRule("broken"))
	assert.Equal(t, GenericRuleMessage, result.Errors[0].Message)
	assert.Empty(t, result.Warnings)
}

func TestValidate_WrongPayloadTypeFailsClosed(t *testing.T) {
	v := newTestValidator()

	result := v.Validate(SubjectRoom, "not a room", Context{Now: today})

	assert.False(t, result.IsValid)
	for _, issue := range result.Errors {
		if issue.RuleID != "room-dates" {
			assert.Equal(t, GenericRuleMessage, issue.Message)
		}
	}
}
