package selections

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"upsell/internal/shared/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, sub Submission) (string, error) {
	args := m.Called(ctx, sub)
	return args.String(0), args.Error(1)
}

type apiResponse struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     json.RawMessage `json:"errors"`
}

func newTestRouter(submitter Submitter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupSelectionRoutes(r.Group("/api/v1"), NewController(newTestManager(nil), submitter),
		func(c *gin.Context) { c.Set(middleware.AgentContextKey, "Maria") })
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var res apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w.Code, res
}

func TestController_RoomAndExtraFlow(t *testing.T) {
	r := newTestRouter(&mockSubmitter{})
	base := "/api/v1/selections/guest-1"

	code, res := do(t, r, http.MethodPost, base+"/rooms", AddRoomRequest{
		Room:        RoomOption{Name: "Junior Suite", RoomType: "Junior Suite", Price: 320},
		Reservation: stay(),
	})
	require.Equal(t, http.StatusCreated, code, res.Message)
	var added MutationResponse
	require.NoError(t, json.Unmarshal(res.Data, &added))
	assert.True(t, added.Result.Success)
	require.Len(t, added.Session.Rooms, 1)
	assert.Equal(t, RoomTypeJuniorSuite, added.Session.Rooms[0].Value.RoomType)

	code, res = do(t, r, http.MethodPost, base+"/extras", AddExtraRequest{Offer: OfferOption{Name: "Spa Day", Price: 100}})
	require.Equal(t, http.StatusCreated, code, res.Message)

	code, res = do(t, r, http.MethodPost, base+"/extras", AddExtraRequest{Offer: OfferOption{Name: "Spa Day", Price: 100}})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", res.Status)

	code, res = do(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	var session SessionResponse
	require.NoError(t, json.Unmarshal(res.Data, &session))
	assert.InDelta(t, 420.0, session.TotalPrice, 1e-9)
	assert.Equal(t, 2, session.ItemCounts.Total)
	require.Len(t, session.Extras, 1)
	assert.InDelta(t, 10.0, session.Extras[0].Value.Commission, 1e-9, "agent from context earns commission")
	assert.Len(t, session.Errors, 1)
}

func TestController_Errors(t *testing.T) {
	r := newTestRouter(&mockSubmitter{})
	base := "/api/v1/selections/guest-2"

	code, _ := do(t, r, http.MethodPost, base+"/rooms", map[string]any{"room": map[string]any{"price": 100}})
	assert.Equal(t, http.StatusBadRequest, code, "room_type is required")

	code, _ = do(t, r, http.MethodDelete, base+"/rooms/missing", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = do(t, r, http.MethodPost, base+"/rooms/customizations", AddRoomFromCustomizationRequest{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodDelete, base+"/errors/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodPost, base+"/operations/unknown/retry", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestController_Submit(t *testing.T) {
	submitter := &mockSubmitter{}
	submitter.On("Submit", mock.Anything, mock.MatchedBy(func(sub Submission) bool {
		return sub.SessionID == "guest-3" && sub.Agent == "Maria" && len(sub.Extras) == 1 && sub.Total == 25
	})).Return("sub-123", nil)
	r := newTestRouter(submitter)
	base := "/api/v1/selections/guest-3"

	code, _ := do(t, r, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code, "empty selection")

	code, res := do(t, r, http.MethodPost, base+"/extras", AddExtraRequest{Offer: OfferOption{Name: "Breakfast", Price: 25}})
	require.Equal(t, http.StatusCreated, code, res.Message)

	code, res = do(t, r, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusAccepted, code, res.Message)
	var sub SubmitResponse
	require.NoError(t, json.Unmarshal(res.Data, &sub))
	assert.Equal(t, "sub-123", sub.SubmissionID)
	submitter.AssertExpectations(t)
}

func TestController_BatchAndNotifications(t *testing.T) {
	r := newTestRouter(&mockSubmitter{})
	base := "/api/v1/selections/guest-4"

	code, res := do(t, r, http.MethodPost, base+"/batch", BatchRequest{Operations: []Operation{
		{Type: OperationAddExtra, Offer: &OfferOption{Name: "Parking", Price: 15}},
		{Type: OperationAddExtra, Offer: &OfferOption{Name: "Breakfast", Price: 25}},
	}})
	require.Equal(t, http.StatusOK, code, res.Message)
	var batch BatchResponse
	require.NoError(t, json.Unmarshal(res.Data, &batch))
	assert.True(t, batch.Result.Success)
	assert.Len(t, batch.Session.Extras, 2)

	code, res = do(t, r, http.MethodGet, base+"/notifications", nil)
	require.Equal(t, http.StatusOK, code)
	var notes NotificationsResponse
	require.NoError(t, json.Unmarshal(res.Data, &notes))
	assert.Equal(t, 2, notes.Metrics.Received)

	code, _ = do(t, r, http.MethodPost, base+"/notifications/unknown/dismiss", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
