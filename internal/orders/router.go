package orders

import (
	"github.com/gin-gonic/gin"
)

func SetupOrderRoutes(rg *gin.RouterGroup, controller Controller, middlewares ...gin.HandlerFunc) {
	orders := rg.Group("/orders")
	orders.Use(middlewares...)
	{
		orders.GET("/submissions/:submissionId", controller.GetSubmission)
	}
}

// Route definitions for reference:
//
// GET /api/v1/orders/submissions/:submissionId - Poll a submission (queued, succeeded, failed, superseded)
