package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aninnda/BikeShare-System-sub002/internal/apperr"
	"github.com/aninnda/BikeShare-System-sub002/internal/middleware"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError maps domain failures to their status and code. Anything else
// is logged and hidden behind a generic 500.
func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		middleware.GetLogger(c).ErrorContext(c.Request.Context(), "request failed", "error", err)
		c.JSON(status, errorResponse{Code: "INTERNAL", Message: "internal error"})
		return
	}
	c.JSON(status, errorResponse{Code: apperr.CodeOf(err), Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: err.Error()})
}
