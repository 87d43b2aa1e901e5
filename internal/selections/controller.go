package selections

import (
	"context"
	"errors"
	"net/http"

	"upsell/internal/shared/middleware"
	"upsell/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

// Submitter hands a confirmed selection to order persistence and returns
// a submission id that can be polled
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (string, error)
}

type Controller interface {
	// Session state
	GetSession(c *gin.Context)
	ClearSession(c *gin.Context)
	ValidateSession(c *gin.Context)

	// Rooms
	AddRoom(c *gin.Context)
	AddRoomFromCustomization(c *gin.Context)
	UpdateRoomCustomizations(c *gin.Context)
	RemoveRoom(c *gin.Context)
	ClearRooms(c *gin.Context)

	// Extras
	AddExtra(c *gin.Context)
	RemoveExtra(c *gin.Context)
	ClearExtras(c *gin.Context)

	// Operations and errors
	ExecuteBatch(c *gin.Context)
	RetryOperation(c *gin.Context)
	DismissError(c *gin.Context)

	// Notifications
	GetNotifications(c *gin.Context)
	DismissNotification(c *gin.Context)

	Submit(c *gin.Context)
}

type controller struct {
	sessions  *Manager
	submitter Submitter
}

func NewController(sessions *Manager, submitter Submitter) Controller {
	return &controller{sessions: sessions, submitter: submitter}
}

func (ctrl *controller) session(c *gin.Context) (*Session, bool) {
	s, err := ctrl.sessions.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid session ID", nil, nil)
			return nil, false
		}
		response.RespondJSON(c, "error", http.StatusServiceUnavailable, "Failed to load session", nil, err.Error())
		return nil, false
	}
	return s, true
}

// respondResult writes a mutation outcome with the session view
func respondResult(c *gin.Context, s *Session, r Result, successCode int, message string) {
	body := MutationResponse{Result: r, Session: newSessionResponse(s)}
	if r.Success {
		response.RespondJSON(c, "success", successCode, message, body, nil)
		return
	}
	code, msg := failureStatus(r.Errors)
	response.RespondJSON(c, "error", code, msg, body, r.Errors)
}

func failureStatus(errs []SelectionError) (int, string) {
	if len(errs) == 0 {
		return http.StatusInternalServerError, "Operation failed"
	}
	switch errs[0].Type {
	case ErrorTypeConflict, ErrorTypeDuplicate:
		return http.StatusConflict, errs[0].Message
	case ErrorTypeNetwork:
		return http.StatusBadGateway, errs[0].Message
	default:
		return http.StatusUnprocessableEntity, errs[0].Message
	}
}

// Session state

func (ctrl *controller) GetSession(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Session retrieved successfully", newSessionResponse(s), nil)
}

func (ctrl *controller) ClearSession(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	s.Store.ClearAllSelections()
	response.RespondJSON(c, "success", http.StatusOK, "All selections cleared", newSessionResponse(s), nil)
}

func (ctrl *controller) ValidateSession(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	errs := s.Store.ValidateSelections()
	response.RespondJSON(c, "success", http.StatusOK, "Selections validated",
		ValidationResponse{IsValid: len(errs) == 0, Errors: errs}, nil)
}

// Rooms

func (ctrl *controller) AddRoom(c *gin.Context) {
	var req AddRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	if req.Reservation.Agent == "" {
		req.Reservation.Agent = middleware.Agent(c)
	}

	r := s.Store.AddRoom(c.Request.Context(), req.Room, req.Reservation)
	respondResult(c, s, r, http.StatusCreated, "Room selected successfully")
}

func (ctrl *controller) AddRoomFromCustomization(c *gin.Context) {
	var req AddRoomFromCustomizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	s, ok := ctrl.session(c)
	if !ok {
		return
	}

	r := s.Store.AddRoomFromCustomization(c.Request.Context(), req.Customizations, req.Reservation)
	respondResult(c, s, r, http.StatusCreated, "Customizations applied successfully")
}

func (ctrl *controller) UpdateRoomCustomizations(c *gin.Context) {
	var req UpdateCustomizationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	s, ok := ctrl.session(c)
	if !ok {
		return
	}

	r := s.Store.UpdateRoomCustomizations(c.Request.Context(), c.Param("roomId"), req.Customizations, req.Total)
	respondResult(c, s, r, http.StatusOK, "Customizations updated successfully")
}

func (ctrl *controller) RemoveRoom(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	r := s.Store.RemoveRoom(c.Request.Context(), c.Param("roomId"))
	respondResult(c, s, r, http.StatusOK, "Room removed successfully")
}

func (ctrl *controller) ClearRooms(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	s.Store.ClearRooms()
	response.RespondJSON(c, "success", http.StatusOK, "Rooms cleared", newSessionResponse(s), nil)
}

// Extras

func (ctrl *controller) AddExtra(c *gin.Context) {
	var req AddExtraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	s, ok := ctrl.session(c)
	if !ok {
		return
	}

	r := s.Store.AddExtra(c.Request.Context(), req.Offer, middleware.Agent(c))
	respondResult(c, s, r, http.StatusCreated, "Extra selected successfully")
}

func (ctrl *controller) RemoveExtra(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	r := s.Store.RemoveExtra(c.Request.Context(), c.Param("extraId"))
	respondResult(c, s, r, http.StatusOK, "Extra removed successfully")
}

func (ctrl *controller) ClearExtras(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	s.Store.ClearExtras()
	response.RespondJSON(c, "success", http.StatusOK, "Extras cleared", newSessionResponse(s), nil)
}

// Operations and errors

func (ctrl *controller) ExecuteBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	s, ok := ctrl.session(c)
	if !ok {
		return
	}

	agent := middleware.Agent(c)
	for i := range req.Operations {
		if req.Operations[i].Type == OperationAddExtra && req.Operations[i].Agent == "" {
			req.Operations[i].Agent = agent
		}
	}

	res := s.Store.ExecuteBatchOperations(c.Request.Context(), req.Operations)
	body := BatchResponse{Result: res, Session: newSessionResponse(s)}
	if !res.Success {
		code, _ := failureStatus(res.Errors)
		response.RespondJSON(c, "error", code, "Some operations failed", body, res.Errors)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Batch executed successfully", body, nil)
}

func (ctrl *controller) RetryOperation(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	r := s.Store.RetryFailedOperation(c.Request.Context(), c.Param("operationId"))
	respondResult(c, s, r, http.StatusOK, "Operation retried successfully")
}

func (ctrl *controller) DismissError(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	if !s.Store.ClearError(c.Param("errorId")) {
		response.RespondJSON(c, "error", http.StatusNotFound, "Error not found", nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Error dismissed", nil, nil)
}

// Notifications

func (ctrl *controller) GetNotifications(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Notifications retrieved successfully", NotificationsResponse{
		Visible:    s.Notifications.Visible(),
		MoreQueued: s.Notifications.QueuedCount(),
		History:    s.Notifications.History(),
		Metrics:    s.Notifications.Metrics(),
	}, nil)
}

func (ctrl *controller) DismissNotification(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}
	if !s.Notifications.Dismiss(c.Param("notificationId")) {
		response.RespondJSON(c, "error", http.StatusNotFound, "Notification not found", nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Notification dismissed", nil, nil)
}

// Submit queues the confirmed selection as an order
func (ctrl *controller) Submit(c *gin.Context) {
	s, ok := ctrl.session(c)
	if !ok {
		return
	}

	rooms, extras := s.Store.Confirmed()
	if len(rooms) == 0 && len(extras) == 0 {
		response.RespondJSON(c, "error", http.StatusUnprocessableEntity, "Nothing to submit", nil, nil)
		return
	}
	if errs := s.Store.ValidateSelections(); len(errs) > 0 {
		response.RespondJSON(c, "error", http.StatusUnprocessableEntity, "Selections are not valid", nil, errs)
		return
	}

	sub := Submission{
		SessionID: s.ID,
		Agent:     middleware.Agent(c),
		Rooms:     rooms,
		Extras:    extras,
		Total:     s.Store.GetTotalPrice(),
	}
	id, err := ctrl.submitter.Submit(c.Request.Context(), sub)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to submit selections", nil, err.Error())
		return
	}
	response.RespondJSON(c, "success", http.StatusAccepted, "Selections submitted",
		SubmitResponse{SubmissionID: id, Total: sub.Total}, nil)
}
