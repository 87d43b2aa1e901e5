package selections

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"upsell/internal/notifications"
	"upsell/internal/optimistic"
	"upsell/internal/smartcache"
	"upsell/internal/validation"
	"upsell/pkg/clock"
	"upsell/pkg/logger"

	"github.com/google/uuid"
)

const (
	cacheKeyTotalPrice = "total_price"
	cacheKeyItemCounts = "item_counts"

	maxUpgradeAmenities = 3
)

// Notifier receives user-facing feedback
type Notifier interface {
	Notify(ev notifications.Event) string
}

type discardNotifier struct{}

func (discardNotifier) Notify(notifications.Event) string { return "" }

// Hooks fire when a mutation is invoked, before the remote confirms it
type Hooks struct {
	OnRoomSelectionChange     func(room SelectedRoom)
	OnRoomCustomizationChange func(roomID string, customizations []Customization, total float64)
	OnSpecialOfferBooked      func(extra SelectedExtra)
}

type StoreConfig struct {
	SessionID         string
	OperationTTL      time.Duration
	MaxManualAttempts int
	OptimisticGrace   time.Duration
	CacheTTL          time.Duration
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		OperationTTL:      5 * time.Second,
		MaxManualAttempts: 3,
		OptimisticGrace:   time.Second,
		CacheTTL:          30 * time.Second,
	}
}

type Options struct {
	Config     StoreConfig
	Remote     Remote
	Validator  *validation.Validator
	Notifier   Notifier
	Normalizer *RoomTypeNormalizer
	Conflicts  *ConflictTable
	Hooks      Hooks
	Clock      clock.Clock
	Logger     *logger.Logger
	// OnCommit receives the confirmed state after every successful change
	OnCommit func(rooms []SelectedRoom, extras []SelectedExtra)
}

type failedOperation struct {
	op       Operation
	attempts int
}

// change is an optimistic mutation waiting for the remote
type change struct {
	op           Operation
	data         any
	itemID       string
	roomUpdates  []string
	extraUpdates []string
	commit       func()
	tags         []smartcache.Tag
	success      notifications.Event
}

// Store is the single source of truth for one guest's selection. Mutations
// are serialized; readers see confirmed state plus tagged optimistic entries.
type Store struct {
	opMu sync.Mutex
	mu   sync.RWMutex

	rooms      []SelectedRoom
	extras     []SelectedExtra
	operations map[string]*AsyncOperation
	failed     map[string]*failedOperation
	errors     []SelectionError

	roomUpdates  *optimistic.Tracker[SelectedRoom]
	extraUpdates *optimistic.Tracker[SelectedExtra]
	cache        *smartcache.Cache

	cfg        StoreConfig
	remote     Remote
	validator  *validation.Validator
	notifier   Notifier
	normalizer *RoomTypeNormalizer
	conflicts  *ConflictTable
	hooks      Hooks
	clock      clock.Clock
	log        *logger.Logger
	onCommit   func(rooms []SelectedRoom, extras []SelectedExtra)
}

func NewStore(opts Options) *Store {
	cfg := opts.Config
	def := DefaultStoreConfig()
	if cfg.OperationTTL <= 0 {
		cfg.OperationTTL = def.OperationTTL
	}
	if cfg.MaxManualAttempts <= 0 {
		cfg.MaxManualAttempts = def.MaxManualAttempts
	}
	if cfg.OptimisticGrace <= 0 {
		cfg.OptimisticGrace = def.OptimisticGrace
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetDefault()
	}
	log = log.WithComponent("selections")
	if cfg.SessionID != "" {
		log = log.WithSessionID(cfg.SessionID)
	}

	s := &Store{
		operations: make(map[string]*AsyncOperation),
		failed:     make(map[string]*failedOperation),
		roomUpdates: optimistic.New(func(r SelectedRoom) string { return r.ID },
			clk, cfg.OptimisticGrace),
		extraUpdates: optimistic.New(func(e SelectedExtra) string { return e.ID },
			clk, cfg.OptimisticGrace),
		cache:      smartcache.New(clk, smartcache.DefaultGraph(), cfg.CacheTTL),
		cfg:        cfg,
		remote:     opts.Remote,
		validator:  opts.Validator,
		notifier:   opts.Notifier,
		normalizer: opts.Normalizer,
		conflicts:  opts.Conflicts,
		hooks:      opts.Hooks,
		clock:      clk,
		log:        log,
		onCommit:   opts.OnCommit,
	}
	if s.remote == nil {
		s.remote = NewSimulatedRemote(0, 0)
	}
	if s.validator == nil {
		s.validator = validation.New(DefaultValidationLimits(), log)
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	if s.normalizer == nil {
		s.normalizer = NewRoomTypeNormalizer(nil, nil)
	}
	if s.conflicts == nil {
		s.conflicts = NewConflictTable(DefaultConflicts)
	}
	return s
}

// DefaultValidationLimits are the stock business caps with the canonical room types
func DefaultValidationLimits() validation.Limits {
	limits := validation.DefaultLimits()
	for _, t := range AllRoomTypes() {
		limits.RoomTypes = append(limits.RoomTypes, string(t))
	}
	return limits
}

// Mutations

// AddRoom selects a room. An upgrade over a customized room merges the
// customizations into the new room; anything else replaces the selection.
func (s *Store) AddRoom(ctx context.Context, room RoomOption, res ReservationInfo) Result {
	return s.run(ctx, Operation{Type: OperationAddRoom, Room: &room, Reservation: res}, 0)
}

// AddRoomFromCustomization builds a selection from customization picks alone
func (s *Store) AddRoomFromCustomization(ctx context.Context, customizations []Customization, res ReservationInfo) Result {
	return s.run(ctx, Operation{
		Type:           OperationAddRoomFromCustomization,
		Customizations: customizations,
		Reservation:    res,
	}, 0)
}

func (s *Store) RemoveRoom(ctx context.Context, roomID string) Result {
	return s.run(ctx, Operation{Type: OperationRemoveRoom, RoomID: roomID}, 0)
}

// UpdateRoomCustomizations replaces the customization set and total of a room
func (s *Store) UpdateRoomCustomizations(ctx context.Context, roomID string, customizations []Customization, total float64) Result {
	return s.run(ctx, Operation{
		Type:           OperationUpdateRoomCustomizations,
		RoomID:         roomID,
		Customizations: customizations,
		Total:          total,
	}, 0)
}

func (s *Store) AddExtra(ctx context.Context, offer OfferOption, agent string) Result {
	return s.run(ctx, Operation{Type: OperationAddExtra, Offer: &offer, Agent: agent}, 0)
}

func (s *Store) RemoveExtra(ctx context.Context, extraID string) Result {
	return s.run(ctx, Operation{Type: OperationRemoveExtra, ExtraID: extraID}, 0)
}

// ExecuteBatchOperations runs ops one after another and succeeds only when
// every one of them does
func (s *Store) ExecuteBatchOperations(ctx context.Context, ops []Operation) BatchResult {
	out := BatchResult{Success: true, Results: make([]Result, 0, len(ops))}
	for _, op := range ops {
		r := s.run(ctx, op, 0)
		out.Results = append(out.Results, r)
		if !r.Success {
			out.Success = false
			out.Errors = append(out.Errors, r.Errors...)
		}
	}
	return out
}

// RetryFailedOperation re-invokes a failed mutation. An operation gets at
// most MaxManualAttempts attempts in total.
func (s *Store) RetryFailedOperation(ctx context.Context, operationID string) Result {
	s.mu.Lock()
	f, ok := s.failed[operationID]
	if !ok {
		s.mu.Unlock()
		return s.reject(s.newError(ErrorTypeValidation, fmt.Sprintf("No failed operation %s", operationID), false))
	}
	delete(s.failed, operationID)
	if f.attempts >= s.cfg.MaxManualAttempts {
		s.mu.Unlock()
		msg := fmt.Sprintf("Operation failed after %d attempts", f.attempts)
		return s.reject(s.newError(ErrorTypeNetwork, msg, false))
	}
	s.mu.Unlock()

	return s.run(ctx, f.op, f.attempts)
}

func (s *Store) run(ctx context.Context, op Operation, attempts int) Result {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	switch op.Type {
	case OperationAddRoom:
		if op.Room != nil {
			return s.addRoom(ctx, op, attempts)
		}
	case OperationAddRoomFromCustomization:
		return s.addRoomFromCustomization(ctx, op, attempts)
	case OperationRemoveRoom:
		return s.removeRoom(ctx, op, attempts)
	case OperationUpdateRoomCustomizations:
		return s.updateRoomCustomizations(ctx, op, attempts)
	case OperationAddExtra:
		if op.Offer != nil {
			return s.addExtra(ctx, op, attempts)
		}
	case OperationRemoveExtra:
		return s.removeExtra(ctx, op, attempts)
	}
	return s.reject(s.newError(ErrorTypeValidation, fmt.Sprintf("Malformed %q operation", op.Type), false))
}

func (s *Store) addRoom(ctx context.Context, op Operation, attempts int) Result {
	option, res := *op.Room, op.Reservation
	existing, extras := s.currentRoom()

	roomType := s.normalizer.Normalize(firstNonEmpty(option.RoomType, option.Name))
	// a blank original type never matches, so any pick over a room upgrades it
	var original RoomType
	if strings.TrimSpace(res.OriginalRoomType) != "" {
		original = s.normalizer.Normalize(res.OriginalRoomType)
	}
	isUpgrade := existing != nil && roomType != original
	roomNumber := firstNonEmpty(res.RoomNumber, option.RoomNumber)

	room := SelectedRoom{
		ID:           uuid.New().String(),
		Name:         option.Name,
		RoomType:     roomType,
		Upgrade:      isUpgrade,
		Price:        option.Price,
		Nights:       res.Nights(),
		CheckIn:      res.CheckIn,
		CheckOut:     res.CheckOut,
		Alternatives: append([]string(nil), option.Alternatives...),
		RoomNumber:   roomNumber,
		HasKey:       roomNumber != "",
		Status:       RoomStatusConfirmed,
	}
	if isUpgrade {
		room.OriginalRoomType = original
		if original == "" {
			room.OriginalRoomType = existing.RoomType
		}
	}

	merged := isUpgrade && len(existing.Customizations) > 0
	if merged {
		room.Customizations = existing.Customizations
		room.CustomizationTotal = existing.CustomizationTotal
		room.Attributes = mergeAttributes(existing.CustomizationLabels(), option.Amenities, maxUpgradeAmenities)
	} else {
		room.Attributes = mergeAttributes(nil, option.Amenities, maxUpgradeAmenities)
	}
	if isUpgrade {
		room.Status = RoomStatusPendingHotel
	}
	room.Scenario = deriveScenario(isUpgrade, room.HasKey, len(room.Customizations) > 0)

	if errs := s.checkRoom(room, res, extras); len(errs) > 0 {
		return s.reject(errs...)
	}
	if s.hooks.OnRoomSelectionChange != nil {
		s.hooks.OnRoomSelectionChange(room.clone())
	}

	title := "Room added"
	if merged {
		title = "Room upgraded"
	}
	return s.execute(ctx, change{
		op:          op,
		data:        room,
		itemID:      room.ID,
		roomUpdates: s.replaceRoomOptimistically(existing, room),
		commit:      func() { s.rooms = []SelectedRoom{room} },
		tags:        []smartcache.Tag{smartcache.TagRooms},
		success:     successEvent(title, roomLabel(room)),
	}, attempts)
}

func (s *Store) addRoomFromCustomization(ctx context.Context, op Operation, attempts int) Result {
	if len(op.Customizations) == 0 {
		return s.reject(s.newError(ErrorTypeValidation, "At least one customization is required", true))
	}
	res := op.Reservation
	existing, extras := s.currentRoom()
	picked := customizationSet(op.Customizations)

	var room SelectedRoom
	var updates []string
	if existing != nil && existing.IsUpgrade() {
		room = existing.clone()
		if room.Customizations == nil {
			room.Customizations = make(map[string]Customization, len(picked))
		}
		for k, v := range picked {
			room.Customizations[k] = v
		}
		room.CustomizationTotal = customizationTotal(room.Customizations)
		room.Attributes = mergeAttributes(room.CustomizationLabels(), amenityAttributes(*existing), -1)
		room.Scenario = deriveScenario(true, room.HasKey, true)
	} else {
		roomNumber := res.RoomNumber
		room = SelectedRoom{
			ID:                 uuid.New().String(),
			RoomType:           s.normalizer.Normalize(res.OriginalRoomType),
			Nights:             res.Nights(),
			CheckIn:            res.CheckIn,
			CheckOut:           res.CheckOut,
			RoomNumber:         roomNumber,
			HasKey:             roomNumber != "",
			Customizations:     picked,
			CustomizationTotal: customizationTotal(picked),
			Status:             RoomStatusConfirmed,
		}
		room.Attributes = room.CustomizationLabels()
		room.Scenario = deriveScenario(false, room.HasKey, true)
	}

	if errs := s.checkRoom(room, res, extras); len(errs) > 0 {
		return s.reject(errs...)
	}
	if s.hooks.OnRoomCustomizationChange != nil {
		s.hooks.OnRoomCustomizationChange(room.ID, append([]Customization(nil), op.Customizations...), room.CustomizationTotal)
	}

	if existing != nil && existing.IsUpgrade() {
		s.mu.Lock()
		updates = []string{s.roomUpdates.Patch(room.ID, room)}
		s.mu.Unlock()
	} else {
		updates = s.replaceRoomOptimistically(existing, room)
	}

	return s.execute(ctx, change{
		op:          op,
		data:        room,
		itemID:      room.ID,
		roomUpdates: updates,
		commit:      func() { s.rooms = []SelectedRoom{room} },
		tags:        []smartcache.Tag{smartcache.TagRooms, smartcache.TagCustomizations},
		success:     successEvent("Customizations added", strings.Join(room.Attributes, ", ")),
	}, attempts)
}

func (s *Store) removeRoom(ctx context.Context, op Operation, attempts int) Result {
	s.mu.RLock()
	_, found := findRoom(s.rooms, op.RoomID)
	s.mu.RUnlock()
	if !found {
		return s.reject(s.newError(ErrorTypeValidation, fmt.Sprintf("Room %s not found", op.RoomID), false))
	}

	s.mu.Lock()
	update := s.roomUpdates.Remove(op.RoomID)
	s.mu.Unlock()

	return s.execute(ctx, change{
		op:          op,
		data:        op.RoomID,
		itemID:      op.RoomID,
		roomUpdates: []string{update},
		commit:      func() { s.rooms = withoutRoom(s.rooms, op.RoomID) },
		tags:        []smartcache.Tag{smartcache.TagRooms},
		success:     successEvent("Room removed", ""),
	}, attempts)
}

func (s *Store) updateRoomCustomizations(ctx context.Context, op Operation, attempts int) Result {
	s.mu.RLock()
	existing, found := findRoom(s.rooms, op.RoomID)
	extras := cloneExtras(s.extras)
	s.mu.RUnlock()
	if !found {
		return s.reject(s.newError(ErrorTypeValidation, fmt.Sprintf("Room %s not found", op.RoomID), false))
	}

	room := existing.clone()
	room.Customizations = customizationSet(op.Customizations)
	room.CustomizationTotal = roundCents(op.Total)
	room.Attributes = mergeAttributes(room.CustomizationLabels(), amenityAttributes(existing), -1)
	room.Scenario = deriveScenario(room.IsUpgrade(), room.HasKey, len(room.Customizations) > 0)

	// stored stays are not re-checked against today's date
	if errs := s.checkRoom(room, ReservationInfo{}, extras); len(errs) > 0 {
		return s.reject(errs...)
	}
	if s.hooks.OnRoomCustomizationChange != nil {
		s.hooks.OnRoomCustomizationChange(room.ID, append([]Customization(nil), op.Customizations...), room.CustomizationTotal)
	}

	s.mu.Lock()
	update := s.roomUpdates.Patch(room.ID, room)
	s.mu.Unlock()

	return s.execute(ctx, change{
		op:          op,
		data:        room,
		itemID:      room.ID,
		roomUpdates: []string{update},
		commit:      func() { s.rooms = replaceRoom(s.rooms, room) },
		tags:        []smartcache.Tag{smartcache.TagCustomizations},
		success:     successEvent("Customizations updated", strings.Join(room.Attributes, ", ")),
	}, attempts)
}

func (s *Store) addExtra(ctx context.Context, op Operation, attempts int) Result {
	offer := *op.Offer
	name := strings.TrimSpace(offer.Name)
	units := offer.Quantity
	if units < 1 {
		units = 1
	}

	vctx := validation.Context{Now: s.clock.Now()}
	if errs := s.issues(s.validator.Validate(validation.SubjectOffer,
		validation.OfferInput{Name: name, Price: offer.Price, Units: units}, vctx)); len(errs) > 0 {
		return s.reject(errs...)
	}

	s.mu.RLock()
	rooms := cloneRooms(s.rooms)
	extras := cloneExtras(s.extras)
	s.mu.RUnlock()

	names := make([]string, 0, len(extras))
	for _, e := range extras {
		if strings.EqualFold(e.Name, name) {
			return s.reject(s.newError(ErrorTypeDuplicate, fmt.Sprintf("%s is already selected", name), false))
		}
		names = append(names, e.Name)
	}
	if other, clash := s.conflicts.Conflict(name, names); clash {
		return s.reject(s.newError(ErrorTypeConflict, fmt.Sprintf("%s cannot be combined with %s", name, other), true))
	}

	extraType := offer.Type
	if extraType == "" {
		extraType = ExtraTypeService
	}
	extra := SelectedExtra{
		ID:           uuid.New().String(),
		OfferID:      offer.ID,
		Name:         name,
		Price:        offer.Price,
		Units:        units,
		Type:         extraType,
		ServiceDates: serviceDates(offer),
		Agent:        strings.TrimSpace(op.Agent),
		Commission:   Commission(offer.Price, op.Agent),
	}

	projected := append(extras, extra)
	if errs := s.issues(s.validator.Validate(validation.SubjectBusiness, validation.BusinessInput{
		RoomCount:  len(rooms),
		ExtraCount: len(projected),
		Total:      CalculateSmartTotal(rooms, projected),
	}, vctx)); len(errs) > 0 {
		return s.reject(errs...)
	}
	if s.hooks.OnSpecialOfferBooked != nil {
		s.hooks.OnSpecialOfferBooked(extra.clone())
	}

	s.mu.Lock()
	update := s.extraUpdates.Add(extra)
	s.mu.Unlock()

	return s.execute(ctx, change{
		op:           op,
		data:         extra,
		itemID:       extra.ID,
		extraUpdates: []string{update},
		commit:       func() { s.extras = append(cloneExtras(s.extras), extra) },
		tags:         []smartcache.Tag{smartcache.TagExtras},
		success:      successEvent("Extra added", extra.Name),
	}, attempts)
}

func (s *Store) removeExtra(ctx context.Context, op Operation, attempts int) Result {
	s.mu.RLock()
	found := false
	for _, e := range s.extras {
		if e.ID == op.ExtraID {
			found = true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return s.reject(s.newError(ErrorTypeValidation, fmt.Sprintf("Extra %s not found", op.ExtraID), false))
	}

	s.mu.Lock()
	update := s.extraUpdates.Remove(op.ExtraID)
	s.mu.Unlock()

	return s.execute(ctx, change{
		op:           op,
		data:         op.ExtraID,
		itemID:       op.ExtraID,
		extraUpdates: []string{update},
		commit:       func() { s.extras = withoutExtra(s.extras, op.ExtraID) },
		tags:         []smartcache.Tag{smartcache.TagExtras},
		success:      successEvent("Extra removed", ""),
	}, attempts)
}

// execute confirms an optimistic change with the remote. On failure the
// tentative updates are discarded so confirmed state is left untouched.
func (s *Store) execute(ctx context.Context, c change, attempts int) Result {
	op := &AsyncOperation{
		ID:         uuid.New().String(),
		Type:       c.op.Type,
		Status:     OperationStatusPending,
		Data:       c.data,
		Timestamp:  s.clock.Now(),
		RetryCount: attempts,
	}
	s.mu.Lock()
	s.operations[op.ID] = op
	s.mu.Unlock()

	err := s.remote.Call(ctx, *op)

	s.mu.Lock()
	if err != nil {
		for _, id := range c.roomUpdates {
			s.roomUpdates.Rollback(id)
		}
		for _, id := range c.extraUpdates {
			s.extraUpdates.Rollback(id)
		}
		op.Status = OperationStatusError
		s.failed[op.ID] = &failedOperation{op: c.op, attempts: attempts + 1}
		s.scheduleRemovalLocked(op.ID)
		s.mu.Unlock()

		s.log.LogOperationFailed(ctx, op.ID, string(op.Type), attempts, err)
		recoverable := attempts+1 < s.cfg.MaxManualAttempts
		selErr := s.newError(ErrorTypeNetwork, fmt.Sprintf("Could not save %s: %v", strings.ReplaceAll(string(op.Type), "_", " "), err), recoverable)
		r := s.reject(selErr)
		r.OperationID = op.ID
		return r
	}

	c.commit()
	for _, id := range c.roomUpdates {
		s.roomUpdates.Confirm(id)
	}
	for _, id := range c.extraUpdates {
		s.extraUpdates.Confirm(id)
	}
	s.cache.Invalidate(c.tags...)
	op.Status = OperationStatusSuccess
	s.scheduleRemovalLocked(op.ID)
	rooms, extras := cloneRooms(s.rooms), cloneExtras(s.extras)
	s.mu.Unlock()

	s.log.LogSelectionChanged(ctx, s.cfg.SessionID, string(op.Type), c.itemID)
	s.notifier.Notify(c.success)
	if s.onCommit != nil {
		s.onCommit(rooms, extras)
	}
	return Result{Success: true, OperationID: op.ID}
}

func (s *Store) scheduleRemovalLocked(id string) {
	s.clock.AfterFunc(s.cfg.OperationTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.operations, id)
	})
}

func (s *Store) replaceRoomOptimistically(existing *SelectedRoom, room SelectedRoom) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updates []string
	if existing != nil {
		updates = append(updates, s.roomUpdates.Remove(existing.ID))
	}
	return append(updates, s.roomUpdates.Add(room))
}

func (s *Store) currentRoom() (*SelectedRoom, []SelectedExtra) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	extras := cloneExtras(s.extras)
	if len(s.rooms) == 0 {
		return nil, extras
	}
	room := s.rooms[0].clone()
	return &room, extras
}

// checkRoom runs the room, customization and business rules for a room
// that would become the sole selection
func (s *Store) checkRoom(room SelectedRoom, res ReservationInfo, extras []SelectedExtra) []SelectionError {
	vctx := validation.Context{Now: s.clock.Now(), CheckIn: res.CheckIn, CheckOut: res.CheckOut}

	var errs []SelectionError
	errs = append(errs, s.issues(s.validator.Validate(validation.SubjectRoom, validation.RoomInput{
		RoomType:           string(room.RoomType),
		Price:              room.Price,
		CustomizationTotal: room.CustomizationTotal,
	}, vctx))...)

	for _, c := range sortedCustomizations(room.Customizations) {
		errs = append(errs, s.issues(s.validator.Validate(validation.SubjectCustomization,
			validation.CustomizationInput{Key: c.Key, Label: c.Label, Price: c.Price}, vctx))...)
	}

	errs = append(errs, s.issues(s.validator.Validate(validation.SubjectBusiness, validation.BusinessInput{
		RoomCount:  1,
		ExtraCount: len(extras),
		Total:      CalculateSmartTotal([]SelectedRoom{room}, extras),
	}, vctx))...)
	return errs
}

// issues converts blocking rule failures into selection errors
func (s *Store) issues(r validation.Result) []SelectionError {
	var errs []SelectionError
	for _, issue := range r.Errors {
		t := ErrorTypeValidation
		switch issue.RuleID {
		case validation.RuleMaxRooms, validation.RuleMaxExtras, validation.RuleMaxTotal:
			t = ErrorTypeQuotaExceeded
		}
		errs = append(errs, s.newError(t, issue.Message, true))
	}
	return errs
}

func (s *Store) newError(t ErrorType, msg string, recoverable bool) SelectionError {
	return SelectionError{
		ID:          uuid.New().String(),
		Type:        t,
		Message:     msg,
		Timestamp:   s.clock.Now(),
		Recoverable: recoverable,
	}
}

// reject records errors and raises a notification for them
func (s *Store) reject(errs ...SelectionError) Result {
	s.mu.Lock()
	s.errors = append(s.errors, errs...)
	s.mu.Unlock()

	evType := notifications.NotificationTypeWarning
	title := "Selection not updated"
	for _, e := range errs {
		if e.Type == ErrorTypeNetwork {
			evType = notifications.NotificationTypeError
			title = "Could not save selection"
		}
	}
	if len(errs) > 0 {
		s.notifier.Notify(notifications.NewEventBuilder(evType, title).WithMessage(errs[0].Message).Build())
	}
	return Result{Success: false, Errors: errs}
}

// Resets

func (s *Store) ClearAllSelections() {
	s.clear(true, true)
}

func (s *Store) ClearRooms() {
	s.clear(true, false)
}

func (s *Store) ClearExtras() {
	s.clear(false, true)
}

// clear waits for an in-flight mutation so its commit cannot land afterwards
func (s *Store) clear(rooms, extras bool) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if rooms {
		s.rooms = nil
		s.roomUpdates.Clear()
	}
	if extras {
		s.extras = nil
		s.extraUpdates.Clear()
	}
	s.cache.Clear()
	r, e := cloneRooms(s.rooms), cloneExtras(s.extras)
	s.mu.Unlock()

	if s.onCommit != nil {
		s.onCommit(r, e)
	}
}

// Restore replaces confirmed state, used when a session is rehydrated
func (s *Store) Restore(rooms []SelectedRoom, extras []SelectedExtra) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms = cloneRooms(rooms)
	s.extras = cloneExtras(extras)
	s.cache.Clear()
}

// Errors

func (s *Store) Errors() []SelectionError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SelectionError(nil), s.errors...)
}

func (s *Store) ClearError(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.errors {
		if e.ID == id {
			s.errors = append(s.errors[:i], s.errors[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = nil
}

// Readers

// Confirmed returns copies of the confirmed rooms and extras
func (s *Store) Confirmed() ([]SelectedRoom, []SelectedExtra) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRooms(s.rooms), cloneExtras(s.extras)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Rooms:             s.roomUpdates.View(cloneRooms(s.rooms)),
		Extras:            s.extraUpdates.View(cloneExtras(s.extras)),
		PendingOperations: s.operationsLocked(),
		Errors:            append([]SelectionError(nil), s.errors...),
	}
	for _, op := range snap.PendingOperations {
		if op.Status == OperationStatusPending {
			snap.IsLoading = true
			break
		}
	}
	return snap
}

// PendingOperations lists operation records not yet auto-removed, oldest first
func (s *Store) PendingOperations() []AsyncOperation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operationsLocked()
}

func (s *Store) operationsLocked() []AsyncOperation {
	ops := make([]AsyncOperation, 0, len(s.operations))
	for _, op := range s.operations {
		ops = append(ops, *op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Timestamp.Before(ops[j].Timestamp)
	})
	return ops
}

// GetTotalPrice is memoized until rooms, customizations or extras change
func (s *Store) GetTotalPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return smartcache.GetOrCompute(s.cache, cacheKeyTotalPrice, []smartcache.Tag{smartcache.TagTotals}, 0,
		func() float64 { return CalculateSmartTotal(s.rooms, s.extras) })
}

func (s *Store) GetItemCounts() ItemCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return smartcache.GetOrCompute(s.cache, cacheKeyItemCounts, []smartcache.Tag{smartcache.TagCounts}, 0,
		func() ItemCounts {
			c := ItemCounts{Rooms: len(s.rooms), Extras: len(s.extras)}
			for _, r := range s.rooms {
				c.Customizations += len(r.Customizations)
			}
			c.Total = c.Rooms + c.Extras
			return c
		})
}

func (s *Store) CacheStats() smartcache.Stats {
	return s.cache.Stats()
}

// IsRoomSelected accepts a canonical type or any catalog name for it
func (s *Store) IsRoomSelected(roomType string) bool {
	want := s.normalizer.Normalize(roomType)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rooms {
		if r.RoomType == want {
			return true
		}
	}
	return false
}

func (s *Store) IsExtraSelected(name string) bool {
	name = strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.extras {
		if strings.EqualFold(e.Name, name) {
			return true
		}
	}
	return false
}

// ValidateSelections reports structurally invalid confirmed items
func (s *Store) ValidateSelections() []SelectionError {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []SelectionError
	for _, r := range s.rooms {
		if r.RoomType == "" {
			errs = append(errs, s.newError(ErrorTypeValidation, fmt.Sprintf("Room %s has no room type", r.ID), true))
		}
		if r.Price == 0 && len(r.Customizations) == 0 {
			errs = append(errs, s.newError(ErrorTypeValidation, fmt.Sprintf("Room %s has no value", r.ID), true))
		}
	}
	for _, e := range s.extras {
		if strings.TrimSpace(e.Name) == "" {
			errs = append(errs, s.newError(ErrorTypeValidation, fmt.Sprintf("Extra %s has no name", e.ID), true))
		}
		if e.Price <= 0 {
			errs = append(errs, s.newError(ErrorTypeValidation, fmt.Sprintf("%s must have a positive price", e.Name), true))
		}
	}
	return errs
}

// helpers

func successEvent(title, msg string) notifications.Event {
	return notifications.NewEventBuilder(notifications.NotificationTypeSuccess, title).WithMessage(msg).Build()
}

func roomLabel(r SelectedRoom) string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.RoomType)
}

// mergeAttributes keeps base in order and appends up to limit new labels
// from extra. A negative limit appends all of them.
func mergeAttributes(base, extra []string, limit int) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, a := range base {
		if _, ok := seen[a]; ok || a == "" {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	added := 0
	for _, a := range extra {
		if limit >= 0 && added >= limit {
			break
		}
		if _, ok := seen[a]; ok || a == "" {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
		added++
	}
	return out
}

// amenityAttributes are the attributes that do not come from customizations
func amenityAttributes(r SelectedRoom) []string {
	fromCustomizations := make(map[string]struct{}, len(r.Customizations))
	for _, c := range r.Customizations {
		fromCustomizations[c.Label] = struct{}{}
	}
	var out []string
	for _, a := range r.Attributes {
		if _, ok := fromCustomizations[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// customizationSet keys customizations uniquely, the last one winning
func customizationSet(list []Customization) map[string]Customization {
	set := make(map[string]Customization, len(list))
	for _, c := range list {
		c.Key = strings.TrimSpace(c.Key)
		set[c.Key] = c
	}
	return set
}

func sortedCustomizations(set map[string]Customization) []Customization {
	out := make([]Customization, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func serviceDates(o OfferOption) []time.Time {
	if len(o.SelectedDates) > 0 {
		return append([]time.Time(nil), o.SelectedDates...)
	}
	if o.SelectedDate != nil {
		return []time.Time{*o.SelectedDate}
	}
	return nil
}

func findRoom(rooms []SelectedRoom, id string) (SelectedRoom, bool) {
	for _, r := range rooms {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return SelectedRoom{}, false
}

func withoutRoom(rooms []SelectedRoom, id string) []SelectedRoom {
	out := make([]SelectedRoom, 0, len(rooms))
	for _, r := range rooms {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func replaceRoom(rooms []SelectedRoom, room SelectedRoom) []SelectedRoom {
	out := make([]SelectedRoom, 0, len(rooms))
	for _, r := range rooms {
		if r.ID == room.ID {
			r = room
		}
		out = append(out, r)
	}
	return out
}

func withoutExtra(extras []SelectedExtra, id string) []SelectedExtra {
	out := make([]SelectedExtra, 0, len(extras))
	for _, e := range extras {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func cloneRooms(rooms []SelectedRoom) []SelectedRoom {
	if rooms == nil {
		return nil
	}
	out := make([]SelectedRoom, len(rooms))
	for i, r := range rooms {
		out[i] = r.clone()
	}
	return out
}

func cloneExtras(extras []SelectedExtra) []SelectedExtra {
	if extras == nil {
		return nil
	}
	out := make([]SelectedExtra, len(extras))
	for i, e := range extras {
		out[i] = e.clone()
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
