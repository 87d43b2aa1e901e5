package selections

import (
	"context"
	"sync"
	"testing"
	"time"

	"upsell/internal/notifications"
	"upsell/internal/optimistic"
	"upsell/internal/validation"
	"upsell/pkg/clock"
	"upsell/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Call(ctx context.Context, op AsyncOperation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Notify(ev notifications.Event) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return ""
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Title)
	}
	return out
}

var testNow = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestStore(remote Remote, mutate func(*Options)) (*Store, *clock.Fake, *recordingNotifier) {
	clk := clock.NewFake(testNow)
	notifier := &recordingNotifier{}
	opts := Options{
		Config:   StoreConfig{SessionID: "sess-1"},
		Remote:   remote,
		Notifier: notifier,
		Clock:    clk,
		Logger:   logger.NewDiscard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewStore(opts), clk, notifier
}

func okRemote() *mockRemote {
	m := &mockRemote{}
	m.On("Call", mock.Anything, mock.Anything).Return(nil)
	return m
}

func failingRemote() *mockRemote {
	m := &mockRemote{}
	m.On("Call", mock.Anything, mock.Anything).Return(ErrRemoteUnavailable)
	return m
}

func stay() ReservationInfo {
	return ReservationInfo{
		CheckIn:  time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 6, 13, 15, 0, 0, 0, time.UTC),
	}
}

func upgradeStay() ReservationInfo {
	res := stay()
	res.OriginalRoomType = "Deluxe King"
	return res
}

func TestAddRoom_CommitsNormalizedRoom(t *testing.T) {
	remote := okRemote()
	s, _, notifier := newTestStore(remote, nil)

	r := s.AddRoom(context.Background(), RoomOption{
		Name:      "Rock Suite Diamond King",
		RoomType:  "Rock Suite Diamond King",
		Price:     900,
		Amenities: []string{"Terrace", "Jacuzzi", "Butler", "Minibar"},
	}, stay())

	require.True(t, r.Success, r.Errors)
	rooms, _ := s.Confirmed()
	require.Len(t, rooms, 1)
	assert.Equal(t, RoomTypeRockSuiteDiamond, rooms[0].RoomType)
	assert.Equal(t, 3, rooms[0].Nights)
	assert.Equal(t, ScenarioChooseRoomOnly, rooms[0].Scenario)
	assert.Equal(t, RoomStatusConfirmed, rooms[0].Status)
	assert.Equal(t, []string{"Terrace", "Jacuzzi", "Butler"}, rooms[0].Attributes)
	assert.Equal(t, []string{"Room added"}, notifier.titles())
	remote.AssertNumberOfCalls(t, "Call", 1)
}

func TestAddRoom_ReplacesPreviousRoom(t *testing.T) {
	s, _, _ := newTestStore(okRemote(), nil)
	ctx := context.Background()

	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Junior Suite", Price: 300}, stay()).Success)
	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Suite", Price: 400}, stay()).Success)

	rooms, _ := s.Confirmed()
	require.Len(t, rooms, 1)
	assert.Equal(t, RoomTypeSuite, rooms[0].RoomType)
	assert.True(t, s.IsRoomSelected("SUITE"))
	assert.False(t, s.IsRoomSelected("Junior Suite"))

	snap := s.Snapshot()
	assert.Len(t, snap.Rooms, 1)
}

func TestAddRoom_UpgradeKeepsCustomizations(t *testing.T) {
	s, _, notifier := newTestStore(okRemote(), nil)
	ctx := context.Background()

	require.True(t, s.AddRoomFromCustomization(ctx, []Customization{
		{Key: "view", Label: "Sea view", Price: 40},
		{Key: "floor", Label: "High floor", Price: 25},
	}, stay()).Success)

	r := s.AddRoom(ctx, RoomOption{
		Name:      "Deluxe Gold Ocean",
		RoomType:  "Deluxe Gold",
		Price:     500,
		Amenities: []string{"Balcony", "Sea view", "Bathtub", "Espresso"},
	}, upgradeStay())
	require.True(t, r.Success, r.Errors)

	rooms, _ := s.Confirmed()
	require.Len(t, rooms, 1)
	room := rooms[0]
	assert.Equal(t, RoomTypeDeluxeGold, room.RoomType)
	assert.Equal(t, RoomTypeDeluxe, room.OriginalRoomType)
	assert.True(t, room.IsUpgrade())
	assert.Equal(t, RoomStatusPendingHotel, room.Status)
	assert.Equal(t, ScenarioUpgradeWithAttributes, room.Scenario)
	assert.Len(t, room.Customizations, 2)
	assert.InDelta(t, 65.0, room.CustomizationTotal, 1e-9)
	assert.Equal(t, []string{"High floor", "Sea view", "Balcony", "Bathtub", "Espresso"}, room.Attributes)
	assert.InDelta(t, 565.0, s.GetTotalPrice(), 1e-9)
	assert.Contains(t, notifier.titles(), "Room upgraded")
}

func TestAddRoom_UpgradeRule(t *testing.T) {
	customized := func(t *testing.T, s *Store) {
		require.True(t, s.AddRoomFromCustomization(context.Background(), []Customization{
			{Key: "view", Label: "Sea view", Price: 40},
		}, stay()).Success)
	}

	tests := []struct {
		name           string
		before         func(t *testing.T, s *Store)
		option         RoomOption
		res            ReservationInfo
		upgrade        bool
		original       RoomType
		scenario       Scenario
		status         RoomStatus
		customizations int
		attributes     []string
		total          float64
	}{
		{
			name:     "first pick of another type",
			option:   RoomOption{RoomType: "Suite", Price: 300},
			res:      upgradeStay(),
			scenario: ScenarioChooseRoomOnly,
			status:   RoomStatusConfirmed,
			total:    300,
		},
		{
			name:       "pick matching the original type",
			before:     customized,
			option:     RoomOption{RoomType: "Deluxe King", Price: 250, Amenities: []string{"Balcony"}},
			res:        upgradeStay(),
			scenario:   ScenarioChooseRoomOnly,
			status:     RoomStatusConfirmed,
			attributes: []string{"Balcony"},
			total:      250,
		},
		{
			name:           "blank original over a customized room",
			before:         customized,
			option:         RoomOption{RoomType: "Suite", Price: 300, Amenities: []string{"Balcony"}},
			res:            stay(),
			upgrade:        true,
			original:       RoomTypeDeluxe,
			scenario:       ScenarioUpgradeWithAttributes,
			status:         RoomStatusPendingHotel,
			customizations: 1,
			attributes:     []string{"Sea view", "Balcony"},
			total:          340,
		},
		{
			name:   "upgrade over a plain room replaces it",
			before: func(t *testing.T, s *Store) {
				require.True(t, s.AddRoom(context.Background(), RoomOption{RoomType: "Deluxe", Price: 200}, upgradeStay()).Success)
			},
			option:   RoomOption{RoomType: "Suite", Price: 300},
			res:      upgradeStay(),
			upgrade:  true,
			original: RoomTypeDeluxe,
			scenario: ScenarioUpgradeOnly,
			status:   RoomStatusPendingHotel,
			total:    300,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestStore(okRemote(), nil)
			if tt.before != nil {
				tt.before(t, s)
			}

			r := s.AddRoom(context.Background(), tt.option, tt.res)
			require.True(t, r.Success, r.Errors)

			rooms, _ := s.Confirmed()
			require.Len(t, rooms, 1)
			room := rooms[0]
			assert.Equal(t, tt.upgrade, room.IsUpgrade())
			assert.Equal(t, tt.original, room.OriginalRoomType)
			assert.Equal(t, tt.scenario, room.Scenario)
			assert.Equal(t, tt.status, room.Status)
			assert.Len(t, room.Customizations, tt.customizations)
			if tt.attributes == nil {
				assert.Empty(t, room.Attributes)
			} else {
				assert.Equal(t, tt.attributes, room.Attributes)
			}
			assert.InDelta(t, tt.total, s.GetTotalPrice(), 1e-9)
		})
	}
}

func TestAddRoomFromCustomization_WithoutUpgrade(t *testing.T) {
	s, _, _ := newTestStore(okRemote(), nil)
	res := stay()
	res.OriginalRoomType = "Junior Suite Garden"
	res.RoomNumber = "1204"

	r := s.AddRoomFromCustomization(context.Background(), []Customization{
		{Key: "pillow", Label: "Memory foam pillow", Price: 10},
	}, res)
	require.True(t, r.Success, r.Errors)

	rooms, _ := s.Confirmed()
	require.Len(t, rooms, 1)
	assert.Equal(t, RoomTypeJuniorSuite, rooms[0].RoomType)
	assert.Zero(t, rooms[0].Price)
	assert.True(t, rooms[0].HasKey)
	assert.Equal(t, ScenarioAttributeSelection, rooms[0].Scenario)
	assert.Equal(t, []string{"Memory foam pillow"}, rooms[0].Attributes)
}

func TestAddRoomFromCustomization_MergesIntoUpgrade(t *testing.T) {
	s, _, _ := newTestStore(okRemote(), nil)
	ctx := context.Background()

	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Deluxe", Price: 200}, upgradeStay()).Success)
	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Suite", Price: 700, Amenities: []string{"Lounge access"}}, upgradeStay()).Success)
	before, _ := s.Confirmed()
	require.True(t, before[0].IsUpgrade())

	r := s.AddRoomFromCustomization(ctx, []Customization{{Key: "view", Label: "Sea view", Price: 40}}, upgradeStay())
	require.True(t, r.Success, r.Errors)

	rooms, _ := s.Confirmed()
	require.Len(t, rooms, 1)
	assert.Equal(t, before[0].ID, rooms[0].ID, "merge keeps the room")
	assert.Equal(t, RoomTypeSuite, rooms[0].RoomType)
	assert.Equal(t, ScenarioUpgradeWithAttributes, rooms[0].Scenario)
	assert.Equal(t, []string{"Sea view", "Lounge access"}, rooms[0].Attributes)
}

func TestAddRoomFromCustomization_RequiresPicks(t *testing.T) {
	remote := okRemote()
	s, _, _ := newTestStore(remote, nil)

	r := s.AddRoomFromCustomization(context.Background(), nil, stay())
	assert.False(t, r.Success)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, ErrorTypeValidation, r.Errors[0].Type)
	remote.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRemoteFailure_RollsBack(t *testing.T) {
	remote := &mockRemote{}
	remote.On("Call", mock.Anything, mock.Anything).Return(nil).Once()
	remote.On("Call", mock.Anything, mock.Anything).Return(ErrRemoteUnavailable)
	s, _, notifier := newTestStore(remote, nil)
	ctx := context.Background()

	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Deluxe", Price: 200}, stay()).Success)
	total := s.GetTotalPrice()
	before, _ := s.Confirmed()

	r := s.AddRoom(ctx, RoomOption{RoomType: "Suite", Price: 800}, stay())
	assert.False(t, r.Success)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, ErrorTypeNetwork, r.Errors[0].Type)
	assert.True(t, r.Errors[0].Recoverable)
	assert.NotEmpty(t, r.OperationID)

	after, _ := s.Confirmed()
	assert.Equal(t, before, after)
	assert.Equal(t, total, s.GetTotalPrice())

	snap := s.Snapshot()
	require.Len(t, snap.Rooms, 1)
	assert.Equal(t, optimistic.Confirmed, snap.Rooms[0].State)
	assert.Equal(t, before[0].ID, snap.Rooms[0].Value.ID)
	assert.Len(t, snap.Errors, 1)
	assert.Equal(t, "Could not save selection", notifier.titles()[len(notifier.titles())-1])
}

func TestSnapshot_ShowsPendingWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	remote := RemoteFunc(func(ctx context.Context, op AsyncOperation) error {
		close(started)
		<-release
		return nil
	})
	s, _, _ := newTestStore(remote, nil)

	done := make(chan Result)
	go func() {
		done <- s.AddExtra(context.Background(), OfferOption{Name: "Airport Transfer", Price: 60}, "")
	}()
	<-started

	snap := s.Snapshot()
	require.Len(t, snap.Extras, 1)
	assert.Equal(t, optimistic.Pending, snap.Extras[0].State)
	assert.True(t, snap.IsLoading)
	_, extras := s.Confirmed()
	assert.Empty(t, extras)

	close(release)
	require.True(t, (<-done).Success)

	snap = s.Snapshot()
	require.Len(t, snap.Extras, 1)
	assert.Equal(t, optimistic.Confirmed, snap.Extras[0].State)
	assert.False(t, snap.IsLoading)
}

func TestOperationRecordsExpire(t *testing.T) {
	s, clk, _ := newTestStore(okRemote(), nil)

	r := s.AddExtra(context.Background(), OfferOption{Name: "Breakfast", Price: 25}, "")
	require.True(t, r.Success)

	ops := s.PendingOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, OperationStatusSuccess, ops[0].Status)
	assert.Equal(t, r.OperationID, ops[0].ID)

	clk.Advance(4 * time.Second)
	assert.Len(t, s.PendingOperations(), 1)
	clk.Advance(time.Second)
	assert.Empty(t, s.PendingOperations())
}

func TestAddExtra_DuplicateAndConflict(t *testing.T) {
	remote := okRemote()
	s, _, _ := newTestStore(remote, nil)
	ctx := context.Background()

	require.True(t, s.AddExtra(ctx, OfferOption{Name: "Early Check-in", Price: 30}, "").Success)

	dup := s.AddExtra(ctx, OfferOption{Name: "Early Check-in", Price: 30}, "")
	assert.False(t, dup.Success)
	require.Len(t, dup.Errors, 1)
	assert.Equal(t, ErrorTypeDuplicate, dup.Errors[0].Type)

	caseDup := s.AddExtra(ctx, OfferOption{Name: "early CHECK-IN", Price: 30}, "")
	assert.False(t, caseDup.Success)
	require.Len(t, caseDup.Errors, 1)
	assert.Equal(t, ErrorTypeDuplicate, caseDup.Errors[0].Type)
	assert.True(t, s.IsExtraSelected("EARLY check-in"))

	clash := s.AddExtra(ctx, OfferOption{Name: "late check-out", Price: 30}, "")
	assert.False(t, clash.Success)
	require.Len(t, clash.Errors, 1)
	assert.Equal(t, ErrorTypeConflict, clash.Errors[0].Type)
	assert.Contains(t, clash.Errors[0].Message, "Early Check-in")

	_, extras := s.Confirmed()
	assert.Len(t, extras, 1)
	remote.AssertNumberOfCalls(t, "Call", 1)
}

func TestAddExtra_Commission(t *testing.T) {
	s, _, _ := newTestStore(okRemote(), nil)
	ctx := context.Background()

	require.True(t, s.AddExtra(ctx, OfferOption{Name: "Spa Day", Price: 120}, "Maria").Success)
	require.True(t, s.AddExtra(ctx, OfferOption{Name: "Dinner", Price: 80}, "Online").Success)

	_, extras := s.Confirmed()
	require.Len(t, extras, 2)
	assert.InDelta(t, 12.0, extras[0].Commission, 1e-9)
	assert.Equal(t, "Maria", extras[0].Agent)
	assert.Zero(t, extras[1].Commission)
	assert.True(t, s.IsExtraSelected("Dinner"))
}

func TestAddExtra_QuotaExceeded(t *testing.T) {
	limits := DefaultValidationLimits()
	limits.MaxExtras = 1
	s, _, _ := newTestStore(okRemote(), func(o *Options) {
		o.Validator = validation.New(limits, logger.NewDiscard())
	})
	ctx := context.Background()

	require.True(t, s.AddExtra(ctx, OfferOption{Name: "Parking", Price: 15}, "").Success)
	r := s.AddExtra(ctx, OfferOption{Name: "Breakfast", Price: 25}, "")

	assert.False(t, r.Success)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, ErrorTypeQuotaExceeded, r.Errors[0].Type)
}

func TestAddRoom_RejectsPastCheckIn(t *testing.T) {
	remote := okRemote()
	s, _, notifier := newTestStore(remote, nil)

	res := ReservationInfo{
		CheckIn:  testNow.AddDate(0, 0, -2),
		CheckOut: testNow.AddDate(0, 0, 1),
	}
	r := s.AddRoom(context.Background(), RoomOption{RoomType: "Deluxe", Price: 200}, res)

	assert.False(t, r.Success)
	assert.Equal(t, ErrorTypeValidation, r.Errors[0].Type)
	assert.Equal(t, []string{"Selection not updated"}, notifier.titles())
	remote.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRetryFailedOperation_BoundedAttempts(t *testing.T) {
	remote := failingRemote()
	s, _, _ := newTestStore(remote, nil)
	ctx := context.Background()

	r := s.AddExtra(ctx, OfferOption{Name: "Breakfast", Price: 25}, "")
	require.False(t, r.Success)
	assert.True(t, r.Errors[0].Recoverable)

	r2 := s.RetryFailedOperation(ctx, r.OperationID)
	require.False(t, r2.Success)
	assert.NotEqual(t, r.OperationID, r2.OperationID)
	assert.True(t, r2.Errors[0].Recoverable)

	r3 := s.RetryFailedOperation(ctx, r2.OperationID)
	require.False(t, r3.Success)
	assert.False(t, r3.Errors[0].Recoverable, "third attempt is the last")

	r4 := s.RetryFailedOperation(ctx, r3.OperationID)
	require.False(t, r4.Success)
	assert.Equal(t, ErrorTypeNetwork, r4.Errors[0].Type)
	assert.Contains(t, r4.Errors[0].Message, "3 attempts")

	unknown := s.RetryFailedOperation(ctx, r.OperationID)
	assert.Equal(t, ErrorTypeValidation, unknown.Errors[0].Type)

	remote.AssertNumberOfCalls(t, "Call", 3)
	var last *AsyncOperation
	for _, op := range s.PendingOperations() {
		if op.ID == r3.OperationID {
			last = &op
		}
	}
	require.NotNil(t, last)
	assert.Equal(t, 2, last.RetryCount)
	assert.Equal(t, OperationStatusError, last.Status)
}

func TestRetryFailedOperation_SucceedsAfterRecovery(t *testing.T) {
	remote := &mockRemote{}
	remote.On("Call", mock.Anything, mock.Anything).Return(ErrRemoteUnavailable).Once()
	remote.On("Call", mock.Anything, mock.Anything).Return(nil)
	s, _, _ := newTestStore(remote, nil)
	ctx := context.Background()

	r := s.AddRoom(ctx, RoomOption{RoomType: "Deluxe Silver", Price: 250}, stay())
	require.False(t, r.Success)

	require.True(t, s.RetryFailedOperation(ctx, r.OperationID).Success)
	assert.True(t, s.IsRoomSelected("DELUXE_SILVER"))
}

func TestUpdateRoomCustomizations(t *testing.T) {
	s, _, _ := newTestStore(okRemote(), nil)
	ctx := context.Background()

	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Deluxe", Price: 200, Amenities: []string{"Wifi"}}, stay()).Success)
	rooms, _ := s.Confirmed()
	id := rooms[0].ID

	r := s.UpdateRoomCustomizations(ctx, id, []Customization{
		{Key: "bed", Label: "King bed", Price: 20},
		{Key: "view", Label: "City view", Price: 15},
	}, 35)
	require.True(t, r.Success, r.Errors)

	rooms, _ = s.Confirmed()
	assert.Equal(t, id, rooms[0].ID)
	assert.InDelta(t, 35.0, rooms[0].CustomizationTotal, 1e-9)
	assert.Equal(t, ScenarioAttributeSelection, rooms[0].Scenario)
	assert.Equal(t, []string{"King bed", "City view", "Wifi"}, rooms[0].Attributes)
	assert.Equal(t, 2, s.GetItemCounts().Customizations)

	// replacing with a smaller set drops the old labels
	require.True(t, s.UpdateRoomCustomizations(ctx, id, []Customization{{Key: "bed", Label: "King bed", Price: 20}}, 20).Success)
	rooms, _ = s.Confirmed()
	assert.Equal(t, []string{"King bed", "Wifi"}, rooms[0].Attributes)
	assert.InDelta(t, 220.0, s.GetTotalPrice(), 1e-9)
}

func TestRemove_NotFound(t *testing.T) {
	remote := okRemote()
	s, _, _ := newTestStore(remote, nil)

	r := s.RemoveRoom(context.Background(), "missing")
	assert.False(t, r.Success)
	assert.Equal(t, ErrorTypeValidation, r.Errors[0].Type)
	assert.False(t, r.Errors[0].Recoverable)

	r = s.RemoveExtra(context.Background(), "missing")
	assert.False(t, r.Success)
	remote.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRemoveRoomAndExtra(t *testing.T) {
	s, _, _ := newTestStore(okRemote(), nil)
	ctx := context.Background()

	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Deluxe", Price: 200}, stay()).Success)
	require.True(t, s.AddExtra(ctx, OfferOption{Name: "Parking", Price: 15}, "").Success)
	rooms, extras := s.Confirmed()

	require.True(t, s.RemoveExtra(ctx, extras[0].ID).Success)
	require.True(t, s.RemoveRoom(ctx, rooms[0].ID).Success)

	rooms, extras = s.Confirmed()
	assert.Empty(t, rooms)
	assert.Empty(t, extras)
	assert.Equal(t, ItemCounts{}, s.GetItemCounts())
}

func TestGetTotalPrice_MemoizedUntilChange(t *testing.T) {
	s, _, _ := newTestStore(okRemote(), nil)
	ctx := context.Background()

	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Deluxe", Price: 200}, stay()).Success)
	assert.InDelta(t, 200.0, s.GetTotalPrice(), 1e-9)
	assert.InDelta(t, 200.0, s.GetTotalPrice(), 1e-9)
	assert.Equal(t, 1, s.CacheStats().Hits)

	for _, name := range []string{"Parking", "Breakfast", "Spa Day"} {
		require.True(t, s.AddExtra(ctx, OfferOption{Name: name, Price: 20}, "").Success)
	}
	// 200 + 60 * 0.95
	assert.InDelta(t, 257.0, s.GetTotalPrice(), 1e-9)
}

func TestHooksFireBeforeRemote(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	remote := RemoteFunc(func(ctx context.Context, op AsyncOperation) error {
		record("remote:" + string(op.Type))
		return nil
	})
	s, _, _ := newTestStore(remote, func(o *Options) {
		o.Hooks = Hooks{
			OnRoomSelectionChange: func(SelectedRoom) { record("room") },
			OnRoomCustomizationChange: func(_ string, c []Customization, total float64) {
				record("customization")
			},
			OnSpecialOfferBooked: func(e SelectedExtra) { record("offer:" + e.Name) },
		}
	})
	ctx := context.Background()

	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Deluxe", Price: 200}, stay()).Success)
	require.True(t, s.AddExtra(ctx, OfferOption{Name: "Parking", Price: 15}, "").Success)
	// rejected before the hook
	require.False(t, s.AddExtra(ctx, OfferOption{Name: "Parking", Price: 15}, "").Success)

	assert.Equal(t, []string{"room", "remote:add_room", "offer:Parking", "remote:add_extra"}, order)
}

func TestExecuteBatchOperations(t *testing.T) {
	s, _, _ := newTestStore(okRemote(), nil)

	res := s.ExecuteBatchOperations(context.Background(), []Operation{
		{Type: OperationAddRoom, Room: &RoomOption{RoomType: "Suite", Price: 400}, Reservation: stay()},
		{Type: OperationAddExtra, Offer: &OfferOption{Name: "Breakfast", Price: 25}},
		{Type: OperationAddExtra, Offer: &OfferOption{Name: "Breakfast", Price: 25}},
		{Type: OperationAddExtra},
	})

	assert.False(t, res.Success)
	require.Len(t, res.Results, 4)
	assert.True(t, res.Results[0].Success)
	assert.True(t, res.Results[1].Success)
	assert.Equal(t, ErrorTypeDuplicate, res.Results[2].Errors[0].Type)
	assert.Equal(t, ErrorTypeValidation, res.Results[3].Errors[0].Type)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, ItemCounts{Rooms: 1, Extras: 1, Total: 2}, s.GetItemCounts())
}

func TestClearSelectionsAndErrors(t *testing.T) {
	var commits int
	s, _, _ := newTestStore(okRemote(), func(o *Options) {
		o.OnCommit = func([]SelectedRoom, []SelectedExtra) { commits++ }
	})
	ctx := context.Background()

	require.True(t, s.AddRoom(ctx, RoomOption{RoomType: "Deluxe", Price: 200}, stay()).Success)
	require.True(t, s.AddExtra(ctx, OfferOption{Name: "Parking", Price: 15}, "").Success)
	require.False(t, s.RemoveRoom(ctx, "missing").Success)
	assert.InDelta(t, 215.0, s.GetTotalPrice(), 1e-9)

	s.ClearExtras()
	rooms, extras := s.Confirmed()
	assert.Len(t, rooms, 1)
	assert.Empty(t, extras)
	assert.InDelta(t, 200.0, s.GetTotalPrice(), 1e-9)

	s.ClearAllSelections()
	rooms, _ = s.Confirmed()
	assert.Empty(t, rooms)
	assert.Equal(t, 4, commits)

	errs := s.Errors()
	require.Len(t, errs, 1)
	assert.True(t, s.ClearError(errs[0].ID))
	assert.False(t, s.ClearError(errs[0].ID))
	assert.Empty(t, s.Errors())
}

func TestValidateSelections(t *testing.T) {
	s, _, _ := newTestStore(okRemote(), nil)
	s.Restore([]SelectedRoom{{ID: "r1", RoomType: RoomTypeDeluxe}}, []SelectedExtra{{ID: "e1", Name: "Gift", Price: 0}})

	errs := s.ValidateSelections()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, "r1")
	assert.Contains(t, errs[1].Message, "positive price")
}

func TestClear_WaitsForInFlightMutation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	remote := RemoteFunc(func(ctx context.Context, op AsyncOperation) error {
		close(started)
		<-release
		return nil
	})

	var mu sync.Mutex
	var lastRooms []SelectedRoom
	commits := 0
	s, _, _ := newTestStore(remote, func(o *Options) {
		o.OnCommit = func(rooms []SelectedRoom, _ []SelectedExtra) {
			mu.Lock()
			defer mu.Unlock()
			lastRooms = rooms
			commits++
		}
	})

	done := make(chan Result)
	go func() {
		done <- s.AddRoom(context.Background(), RoomOption{RoomType: "Suite", Price: 400}, stay())
	}()
	<-started

	cleared := make(chan struct{})
	go func() {
		s.ClearAllSelections()
		close(cleared)
	}()

	select {
	case <-cleared:
		t.Fatal("clear returned while a mutation was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.True(t, (<-done).Success)
	<-cleared

	rooms, _ := s.Confirmed()
	assert.Empty(t, rooms)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, commits)
	assert.Empty(t, lastRooms)
}
