package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aninnda/BikeShare-System-sub002/bms"
	"github.com/aninnda/BikeShare-System-sub002/internal/middleware"
	"github.com/aninnda/BikeShare-System-sub002/rental"
)

type rentalResponse struct {
	ID             uuid.UUID     `json:"id"`
	UserID         string        `json:"userId"`
	BikeID         string        `json:"bikeId"`
	StartStationID string        `json:"startStationId"`
	EndStationID   *string       `json:"endStationId,omitempty"`
	StartTime      time.Time     `json:"startTime"`
	EndTime        *time.Time    `json:"endTime,omitempty"`
	Minutes        *int64        `json:"minutes,omitempty"`
	Cost           *int64        `json:"cost,omitempty"`
	Status         rental.Status `json:"status"`
}

func toRentalResponse(r rental.Rental) rentalResponse {
	resp := rentalResponse{
		ID:             r.ID,
		UserID:         r.UserID,
		BikeID:         r.BikeID,
		StartStationID: r.StartStationID,
		StartTime:      r.StartTime,
		Status:         r.Status,
	}
	if r.EndStationID.Valid {
		resp.EndStationID = &r.EndStationID.String
	}
	if r.EndTime.Valid {
		resp.EndTime = &r.EndTime.Time
		minutes := r.Minutes()
		resp.Minutes = &minutes
	}
	if r.Cost.Valid {
		resp.Cost = &r.Cost.Int64
	}
	return resp
}

type rentRequest struct {
	StationID string `json:"stationId"`
	BikeID    string `json:"bikeId"`
}

func (a *API) startRentalHandler(c *gin.Context) {
	ctx, end := startSpan(c, "startRentalHandler")
	defer end()

	logger := middleware.GetLogger(c)

	var req rentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := middleware.GetUserID(c)
	r, err := a.m.RentBike(ctx, userID, req.StationID, req.BikeID)
	if err != nil {
		writeError(c, err)
		return
	}

	logger.InfoContext(ctx, "rental started", "rental_id", r.ID, "bike_id", r.BikeID, "station_id", r.StartStationID)
	c.JSON(http.StatusCreated, toRentalResponse(r))
}

type returnRequest struct {
	BikeID    string `json:"bikeId"`
	StationID string `json:"stationId"`
}

func (a *API) returnRentalHandler(c *gin.Context) {
	ctx, end := startSpan(c, "returnRentalHandler")
	defer end()

	logger := middleware.GetLogger(c)

	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := middleware.GetUserID(c)
	r, err := a.m.ReturnBike(ctx, userID, req.BikeID, req.StationID)
	if err != nil {
		writeError(c, err)
		return
	}

	logger.InfoContext(ctx, "rental completed", "rental_id", r.ID, "minutes", r.Minutes(), "cost", r.Cost.Int64)

	if a.opts.Invoicer != nil {
		a.billing.Add(1)
		go func() {
			defer a.billing.Done()
			// The request context is cancelled once the response is written.
			if _, err := a.opts.Invoicer.Invoice(context.WithoutCancel(ctx), r); err != nil {
				logger.Error("Failed to invoice rental", "rental_id", r.ID, "error", err)
			}
		}()
	}

	c.JSON(http.StatusOK, toRentalResponse(r))
}

// RentalState mirrors the app's ride banner: a rider either has a rental
// in progress or not.
type RentalState struct {
	InProgress bool            `json:"inProgress"`
	Rental     *rentalResponse `json:"rental,omitempty"`
}

func (a *API) currentRentalHandler(c *gin.Context) {
	ctx, end := startSpan(c, "currentRentalHandler")
	defer end()

	userID, _ := middleware.GetUserID(c)
	r, err := a.m.ActiveRental(ctx, userID)
	if err != nil {
		if errors.Is(err, bms.ErrRentalNotFound) {
			c.JSON(http.StatusOK, RentalState{InProgress: false})
			return
		}
		writeError(c, err)
		return
	}

	resp := toRentalResponse(r)
	c.JSON(http.StatusOK, RentalState{InProgress: true, Rental: &resp})
}

// rentalsHandler lists the caller's rentals. Operators may pass ?user= to
// look at another rider, or leave it empty to see everyone's.
func (a *API) rentalsHandler(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	userID := id.UserID
	if id.Role != middleware.RoleRider {
		if u, ok := c.GetQuery("user"); ok {
			userID = u
		}
	}

	rentals := a.m.Rentals(c.Request.Context(), userID)
	resp := make([]rentalResponse, 0, len(rentals))
	for _, r := range rentals {
		resp = append(resp, toRentalResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) rentalHandler(c *gin.Context) {
	rentalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	r, err := a.m.Rental(c.Request.Context(), rentalID)
	if err != nil {
		writeError(c, err)
		return
	}

	id, _ := middleware.GetIdentity(c)
	if id.Role == middleware.RoleRider && r.UserID != id.UserID {
		writeError(c, bms.ErrRentalNotFound)
		return
	}
	c.JSON(http.StatusOK, toRentalResponse(r))
}
