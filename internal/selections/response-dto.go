package selections

import (
	"upsell/internal/notifications"
	"upsell/internal/optimistic"
)

// SessionResponse is the full reader view of a session
type SessionResponse struct {
	SessionID     string                            `json:"session_id"`
	Rooms         []optimistic.Entry[SelectedRoom]  `json:"rooms"`
	Extras        []optimistic.Entry[SelectedExtra] `json:"extras"`
	Pending       []AsyncOperation                  `json:"pending_operations"`
	Errors        []SelectionError                  `json:"errors"`
	IsLoading     bool                              `json:"is_loading"`
	TotalPrice    float64                           `json:"total_price"`
	ItemCounts    ItemCounts                        `json:"item_counts"`
	Notifications []notifications.Notification      `json:"notifications"`
	MoreQueued    int                               `json:"more_queued"`
}

// MutationResponse reports a mutation outcome with the resulting view
type MutationResponse struct {
	Result  Result          `json:"result"`
	Session SessionResponse `json:"session"`
}

type BatchResponse struct {
	Result  BatchResult     `json:"result"`
	Session SessionResponse `json:"session"`
}

type ValidationResponse struct {
	IsValid bool             `json:"is_valid"`
	Errors  []SelectionError `json:"errors"`
}

type NotificationsResponse struct {
	Visible    []notifications.Notification `json:"visible"`
	MoreQueued int                          `json:"more_queued"`
	History    []notifications.Notification `json:"history"`
	Metrics    notifications.Metrics        `json:"metrics"`
}

type SubmitResponse struct {
	SubmissionID string  `json:"submission_id"`
	Total        float64 `json:"total"`
}

func newSessionResponse(s *Session) SessionResponse {
	snap := s.Store.Snapshot()
	return SessionResponse{
		SessionID:     s.ID,
		Rooms:         snap.Rooms,
		Extras:        snap.Extras,
		Pending:       snap.PendingOperations,
		Errors:        snap.Errors,
		IsLoading:     snap.IsLoading,
		TotalPrice:    s.Store.GetTotalPrice(),
		ItemCounts:    s.Store.GetItemCounts(),
		Notifications: s.Notifications.Visible(),
		MoreQueued:    s.Notifications.QueuedCount(),
	}
}
