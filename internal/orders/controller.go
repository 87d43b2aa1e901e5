package orders

import (
	"errors"
	"net/http"

	"upsell/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller interface {
	GetSubmission(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) GetSubmission(c *gin.Context) {
	id := c.Param("submissionId")
	if id == "" {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Submission ID is required", nil, nil)
		return
	}

	sub, err := ctrl.service.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			response.RespondJSON(c, "error", http.StatusNotFound, "Submission not found", nil, nil)
			return
		}
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to get submission", nil, err.Error())
		return
	}

	res := SubmissionResponse{Submission: *sub}
	if sub.Status == StatusSucceeded {
		order, err := ctrl.service.GetOrder(c.Request.Context(), id)
		if err != nil && !errors.Is(err, ErrOrderNotFound) {
			response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to get order", nil, err.Error())
			return
		}
		res.Order = order
	}
	response.RespondJSON(c, "success", http.StatusOK, "Submission retrieved successfully", res, nil)
}
