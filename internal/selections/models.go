package selections

import (
	"fmt"
	"sort"
	"time"

	"upsell/internal/optimistic"
)

// RoomType is the closed set of canonical room categories, lowest tier first
type RoomType string

const (
	RoomTypeDeluxe            RoomType = "DELUXE"
	RoomTypeDeluxeSilver      RoomType = "DELUXE_SILVER"
	RoomTypeDeluxeGold        RoomType = "DELUXE_GOLD"
	RoomTypeJuniorSuite       RoomType = "JUNIOR_SUITE"
	RoomTypeSuite             RoomType = "SUITE"
	RoomTypeRockSuite         RoomType = "ROCK_SUITE"
	RoomTypeRockSuitePlatinum RoomType = "ROCK_SUITE_PLATINUM"
	RoomTypeRockSuiteDiamond  RoomType = "ROCK_SUITE_DIAMOND"
)

// AllRoomTypes lists every canonical type
func AllRoomTypes() []RoomType {
	return []RoomType{
		RoomTypeDeluxe, RoomTypeDeluxeSilver, RoomTypeDeluxeGold, RoomTypeJuniorSuite,
		RoomTypeSuite, RoomTypeRockSuite, RoomTypeRockSuitePlatinum, RoomTypeRockSuiteDiamond,
	}
}

// Scenario classifies how a room selection is presented
type Scenario string

const (
	ScenarioUpgradeOnly           Scenario = "upgrade_only"
	ScenarioChooseRoomOnly        Scenario = "choose_room_only"
	ScenarioChooseRoomUpgrade     Scenario = "choose_room_upgrade"
	ScenarioAttributeSelection    Scenario = "attribute_selection"
	ScenarioUpgradeWithAttributes Scenario = "upgrade_with_attributes"
)

// deriveScenario is the only way a scenario is assigned
func deriveScenario(upgrade, hasKey, hasCustomizations bool) Scenario {
	switch {
	case upgrade && hasCustomizations:
		return ScenarioUpgradeWithAttributes
	case upgrade && hasKey:
		return ScenarioChooseRoomUpgrade
	case upgrade:
		return ScenarioUpgradeOnly
	case hasCustomizations:
		return ScenarioAttributeSelection
	default:
		return ScenarioChooseRoomOnly
	}
}

type RoomStatus string

const (
	RoomStatusPendingHotel RoomStatus = "pending_hotel"
	RoomStatusConfirmed    RoomStatus = "confirmed"
)

// Customization is a priced room add-on such as bed type or view
type Customization struct {
	Key   string  `json:"key" binding:"required"`
	Label string  `json:"label" binding:"required"`
	Price float64 `json:"price" binding:"gte=0"`
}

// SelectedRoom is one chosen room line item
type SelectedRoom struct {
	ID                 string                   `json:"id"`
	Name               string                   `json:"name,omitempty"`
	RoomType           RoomType                 `json:"room_type"`
	OriginalRoomType   RoomType                 `json:"original_room_type,omitempty"`
	Upgrade            bool                     `json:"is_upgrade"`
	Price              float64                  `json:"price"`
	Nights             int                      `json:"nights"`
	CheckIn            time.Time                `json:"check_in,omitempty"`
	CheckOut           time.Time                `json:"check_out,omitempty"`
	Scenario           Scenario                 `json:"selection_scenario"`
	Attributes         []string                 `json:"attributes"`
	Alternatives       []string                 `json:"alternatives,omitempty"`
	RoomNumber         string                   `json:"room_number,omitempty"`
	HasKey             bool                     `json:"has_key"`
	Customizations     map[string]Customization `json:"customizations,omitempty"`
	CustomizationTotal float64                  `json:"customization_total"`
	Status             RoomStatus               `json:"status"`
}

// IsUpgrade reports whether the room was picked over an already selected
// room of another type than the reservation's original one
func (r SelectedRoom) IsUpgrade() bool {
	return r.Upgrade
}

// CustomizationLabels returns labels ordered by customization key
func (r SelectedRoom) CustomizationLabels() []string {
	keys := make([]string, 0, len(r.Customizations))
	for k := range r.Customizations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	labels := make([]string, 0, len(keys))
	for _, k := range keys {
		labels = append(labels, r.Customizations[k].Label)
	}
	return labels
}

func (r SelectedRoom) clone() SelectedRoom {
	out := r
	out.Attributes = append([]string(nil), r.Attributes...)
	out.Alternatives = append([]string(nil), r.Alternatives...)
	if r.Customizations != nil {
		out.Customizations = make(map[string]Customization, len(r.Customizations))
		for k, v := range r.Customizations {
			out.Customizations[k] = v
		}
	}
	return out
}

type ExtraType string

const (
	ExtraTypeService  ExtraType = "service"
	ExtraTypeAmenity  ExtraType = "amenity"
	ExtraTypeTransfer ExtraType = "transfer"
)

// SelectedExtra is one chosen ancillary service
type SelectedExtra struct {
	ID           string      `json:"id"`
	OfferID      string      `json:"offer_id,omitempty"`
	Name         string      `json:"name"`
	Price        float64     `json:"price"`
	Units        int         `json:"units"`
	Type         ExtraType   `json:"type"`
	ServiceDates []time.Time `json:"service_dates,omitempty"`
	Agent        string      `json:"agent,omitempty"`
	Commission   float64     `json:"commission"`
}

func (e SelectedExtra) clone() SelectedExtra {
	out := e
	out.ServiceDates = append([]time.Time(nil), e.ServiceDates...)
	return out
}

// RoomOption is a room catalog entry offered to the guest
type RoomOption struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	RoomType     string   `json:"room_type" binding:"required"`
	Price        float64  `json:"price" binding:"gte=0"`
	Amenities    []string `json:"amenities"`
	Images       []string `json:"images,omitempty"`
	RoomNumber   string   `json:"room_number,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// OfferOption is an extra-service catalog entry
type OfferOption struct {
	ID            string      `json:"id"`
	Name          string      `json:"name" binding:"required"`
	Price         float64     `json:"price"`
	Type          ExtraType   `json:"type"`
	Quantity      int         `json:"quantity"`
	SelectedDate  *time.Time  `json:"selected_date,omitempty"`
	SelectedDates []time.Time `json:"selected_dates,omitempty"`
}

// ReservationInfo is the hosting reservation the selection belongs to
type ReservationInfo struct {
	CheckIn          time.Time `json:"check_in"`
	CheckOut         time.Time `json:"check_out"`
	Agent            string    `json:"agent,omitempty"`
	RoomNumber       string    `json:"room_number,omitempty"`
	OriginalRoomType string    `json:"original_room_type,omitempty"`
}

// Nights is the stay length, never less than one
func (r ReservationInfo) Nights() int {
	return nightsBetween(r.CheckIn, r.CheckOut)
}

func nightsBetween(checkIn, checkOut time.Time) int {
	if checkIn.IsZero() || checkOut.IsZero() {
		return 1
	}
	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights < 1 {
		return 1
	}
	return nights
}

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeDuplicate     ErrorType = "duplicate"
	ErrorTypeQuotaExceeded ErrorType = "quota_exceeded"
)

// SelectionError is a typed, dismissible failure
type SelectionError struct {
	ID          string    `json:"id"`
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Recoverable bool      `json:"recoverable"`
}

func (e SelectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type OperationType string

const (
	OperationAddRoom                  OperationType = "add_room"
	OperationAddRoomFromCustomization OperationType = "add_room_from_customization"
	OperationRemoveRoom               OperationType = "remove_room"
	OperationUpdateRoomCustomizations OperationType = "update_room_customizations"
	OperationAddExtra                 OperationType = "add_extra"
	OperationRemoveExtra              OperationType = "remove_extra"
)

type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusSuccess   OperationStatus = "success"
	OperationStatusError     OperationStatus = "error"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// AsyncOperation is the transient record of an in-flight mutation
type AsyncOperation struct {
	ID         string          `json:"id"`
	Type       OperationType   `json:"type"`
	Status     OperationStatus `json:"status"`
	Data       any             `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
}

// Operation is a mutation request. It is the unit of batch execution and
// what a failed operation keeps for a manual retry.
type Operation struct {
	Type           OperationType   `json:"type" binding:"required"`
	Room           *RoomOption     `json:"room,omitempty"`
	Reservation    ReservationInfo `json:"reservation"`
	Customizations []Customization `json:"customizations,omitempty"`
	RoomID         string          `json:"room_id,omitempty"`
	Total          float64         `json:"total,omitempty"`
	Offer          *OfferOption    `json:"offer,omitempty"`
	Agent          string          `json:"agent,omitempty"`
	ExtraID        string          `json:"extra_id,omitempty"`
}

// Result is what every mutation returns
type Result struct {
	Success     bool             `json:"success"`
	OperationID string           `json:"operation_id,omitempty"`
	Errors      []SelectionError `json:"errors,omitempty"`
}

// BatchResult collects the outcome of every sub-operation
type BatchResult struct {
	Success bool             `json:"success"`
	Results []Result         `json:"results"`
	Errors  []SelectionError `json:"errors,omitempty"`
}

type ItemCounts struct {
	Rooms          int `json:"rooms"`
	Extras         int `json:"extras"`
	Customizations int `json:"customizations"`
	Total          int `json:"total"`
}

// Snapshot is the reader view of a store, with optimistic entries tagged
type Snapshot struct {
	Rooms             []optimistic.Entry[SelectedRoom]  `json:"rooms"`
	Extras            []optimistic.Entry[SelectedExtra] `json:"extras"`
	PendingOperations []AsyncOperation                  `json:"pending_operations"`
	Errors            []SelectionError                  `json:"errors"`
	IsLoading         bool                              `json:"is_loading"`
}

// Submission is a confirmed selection handed to order persistence
type Submission struct {
	SessionID string          `json:"session_id"`
	Agent     string          `json:"agent"`
	Rooms     []SelectedRoom  `json:"rooms"`
	Extras    []SelectedExtra `json:"extras"`
	Total     float64         `json:"total"`
}
