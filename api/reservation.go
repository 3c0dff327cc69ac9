package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aninnda/BikeShare-System-sub002/internal/middleware"
)

// maxReservationTTL caps client-supplied hold times.
const maxReservationTTL = 24 * time.Hour

type reservationRequest struct {
	// TTLSeconds overrides the configured hold time.
	TTLSeconds *int `json:"ttlSeconds"`
}

func (a *API) createReservationHandler(c *gin.Context) {
	ctx, end := startSpan(c, "createReservationHandler")
	defer end()

	var req reservationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	ttl := a.opts.ReservationTTL
	if req.TTLSeconds != nil {
		limit := int(maxReservationTTL / time.Second)
		if secs := *req.TTLSeconds; secs > limit || secs < -limit {
			badRequest(c, fmt.Errorf("ttlSeconds must be at most %d", limit))
			return
		}
		ttl = time.Duration(*req.TTLSeconds) * time.Second
	}

	userID, _ := middleware.GetUserID(c)
	r, err := a.m.CreateReservation(ctx, userID, c.Param("id"), ttl)
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.GetLogger(c).InfoContext(ctx, "bike reserved",
		"reservation_id", r.ID, "bike_id", r.BikeID, "expires_at", r.ExpiresAt)
	c.JSON(http.StatusCreated, r)
}

func (a *API) currentReservationHandler(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	r, err := a.m.ActiveReservation(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
