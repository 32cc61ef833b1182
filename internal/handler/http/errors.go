package http

import (
	"errors"
	"net/http"

	"collaborative-whiteboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HandleServiceError 将服务层错误映射为 HTTP 状态码
func HandleServiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidRoomID) {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	} else if errors.Is(err, service.ErrRoomCodeFailed) {
		ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
	} else {
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
