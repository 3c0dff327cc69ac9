package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aninnda/BikeShare-System-sub002/bms"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{bms.ErrBikeNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", station.ErrFull), http.StatusConflict},
		{bms.ErrInvalidID.Withf("id must not be empty"), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestWriteError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(c, errors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") || !strings.Contains(w.Body.String(), `"code":"INTERNAL"`) {
		t.Errorf("expected generic body, got %s", w.Body.String())
	}
}
