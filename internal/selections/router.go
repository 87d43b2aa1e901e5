package selections

import (
	"github.com/gin-gonic/gin"
)

// SetupSelectionRoutes mounts the per-session selection API
func SetupSelectionRoutes(rg *gin.RouterGroup, controller Controller, middlewares ...gin.HandlerFunc) {
	sessions := rg.Group("/selections/:sessionId")
	sessions.Use(middlewares...)
	{
		sessions.GET("", controller.GetSession)
		sessions.DELETE("", controller.ClearSession)
		sessions.GET("/validate", controller.ValidateSession)

		sessions.POST("/rooms", controller.AddRoom)
		sessions.POST("/rooms/customizations", controller.AddRoomFromCustomization)
		sessions.PUT("/rooms/:roomId/customizations", controller.UpdateRoomCustomizations)
		sessions.DELETE("/rooms/:roomId", controller.RemoveRoom)
		sessions.DELETE("/rooms", controller.ClearRooms)

		sessions.POST("/extras", controller.AddExtra)
		sessions.DELETE("/extras/:extraId", controller.RemoveExtra)
		sessions.DELETE("/extras", controller.ClearExtras)

		sessions.POST("/batch", controller.ExecuteBatch)
		sessions.POST("/operations/:operationId/retry", controller.RetryOperation)
		sessions.DELETE("/errors/:errorId", controller.DismissError)

		sessions.GET("/notifications", controller.GetNotifications)
		sessions.POST("/notifications/:notificationId/dismiss", controller.DismissNotification)

		sessions.POST("/submit", controller.Submit)
	}
}

// Route definitions for reference:
//
// SESSION
// GET    /api/v1/selections/:sessionId                              - Rooms, extras, totals, counts, visible notifications
// DELETE /api/v1/selections/:sessionId                              - Clear all selections
// GET    /api/v1/selections/:sessionId/validate                     - Sanity pass over confirmed items
//
// ROOMS
// POST   /api/v1/selections/:sessionId/rooms                        - Select or upgrade a room
// Request body: { "room": { "room_type": "Deluxe Gold", "price": 420, "amenities": ["Balcony"] }, "reservation": { "check_in": "...", "check_out": "...", "original_room_type": "Deluxe" } }
// POST   /api/v1/selections/:sessionId/rooms/customizations         - Select a room from customization picks
// PUT    /api/v1/selections/:sessionId/rooms/:roomId/customizations - Replace a room's customizations
// DELETE /api/v1/selections/:sessionId/rooms/:roomId                - Remove a room
// DELETE /api/v1/selections/:sessionId/rooms                        - Clear rooms
//
// EXTRAS
// POST   /api/v1/selections/:sessionId/extras                       - Book an extra (agent from bearer token)
// DELETE /api/v1/selections/:sessionId/extras/:extraId              - Remove an extra
// DELETE /api/v1/selections/:sessionId/extras                       - Clear extras
//
// OPERATIONS
// POST   /api/v1/selections/:sessionId/batch                        - Run several mutations in order
// POST   /api/v1/selections/:sessionId/operations/:operationId/retry - Retry a failed mutation (3 attempts max)
// DELETE /api/v1/selections/:sessionId/errors/:errorId              - Dismiss an error
//
// NOTIFICATIONS
// GET    /api/v1/selections/:sessionId/notifications                - Visible, queued count, history, metrics
// POST   /api/v1/selections/:sessionId/notifications/:notificationId/dismiss
//
// SUBMIT
// POST   /api/v1/selections/:sessionId/submit                       - Queue the confirmed selection as an order
