package handler

import (
	"errors"
	"net/http"

	"drayage-tms/internal/logger"
	appErrors "drayage-tms/pkg/errors"
	"drayage-tms/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statusFor maps an AppError code to the HTTP status of its response.
func statusFor(code string) int {
	switch code {
	case appErrors.CodeNotFound:
		return http.StatusNotFound
	case appErrors.CodeValidation:
		return http.StatusBadRequest
	case appErrors.CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case appErrors.CodeConflict, appErrors.CodeInconsistentParent:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	var appErr *appErrors.AppError
	if !errors.As(err, &appErr) {
		logger.Error("Unhandled error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		utils.ErrorResponseWithCode(c, http.StatusInternalServerError, appErrors.CodeInternal, "Internal server error")
		return
	}

	status := statusFor(appErr.Code)
	message := appErr.Error()
	if status == http.StatusInternalServerError {
		message = appErr.Message
	}
	_ = c.Error(err)
	utils.ErrorResponseWithCode(c, status, appErr.Code, message)
}

// parseID reads the :id path parameter; label names it in the error.
func parseID(c *gin.Context, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponseWithCode(c, http.StatusBadRequest, appErrors.CodeValidation, "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}
