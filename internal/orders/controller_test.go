package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"upsell/internal/selections"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Submit(ctx context.Context, sub selections.Submission) (string, error) {
	args := m.Called(ctx, sub)
	return args.String(0), args.Error(1)
}

func (m *mockService) Status(ctx context.Context, submissionID string) (*Submission, error) {
	args := m.Called(ctx, submissionID)
	sub, _ := args.Get(0).(*Submission)
	return sub, args.Error(1)
}

func (m *mockService) GetOrder(ctx context.Context, submissionID string) (*Order, error) {
	args := m.Called(ctx, submissionID)
	order, _ := args.Get(0).(*Order)
	return order, args.Error(1)
}

func getSubmission(svc Service, id string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupOrderRoutes(r.Group("/api/v1"), NewController(svc))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/submissions/"+id, nil))
	return w
}

func TestGetSubmission(t *testing.T) {
	orderID := uuid.New()
	svc := &mockService{}
	svc.On("Status", mock.Anything, "queued-1").Return(&Submission{ID: "queued-1", Status: StatusQueued}, nil)
	svc.On("Status", mock.Anything, "done-1").Return(&Submission{ID: "done-1", Status: StatusSucceeded, OrderID: orderID.String()}, nil)
	svc.On("GetOrder", mock.Anything, "done-1").Return(&Order{ID: orderID, SubmissionID: "done-1", Total: 445}, nil)
	svc.On("Status", mock.Anything, "missing").Return(nil, ErrOrderNotFound)
	svc.On("Status", mock.Anything, "broken").Return(nil, errors.New("redis down"))

	tests := []struct {
		name      string
		id        string
		wantCode  int
		wantState Status
		wantOrder bool
	}{
		{name: "queued", id: "queued-1", wantCode: http.StatusOK, wantState: StatusQueued},
		{name: "succeeded includes order", id: "done-1", wantCode: http.StatusOK, wantState: StatusSucceeded, wantOrder: true},
		{name: "unknown", id: "missing", wantCode: http.StatusNotFound},
		{name: "store error", id: "broken", wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := getSubmission(svc, tt.id)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var res struct {
				Data SubmissionResponse `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			assert.Equal(t, tt.wantState, res.Data.Status)
			if tt.wantOrder {
				require.NotNil(t, res.Data.Order)
				assert.Equal(t, orderID, res.Data.Order.ID)
			} else {
				assert.Nil(t, res.Data.Order)
			}
		})
	}
}
