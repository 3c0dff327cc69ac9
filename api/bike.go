package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/bms"
	"github.com/aninnda/BikeShare-System-sub002/internal/middleware"
)

type bikeResponse struct {
	ID           string      `json:"id"`
	Type         bike.Type   `json:"type"`
	Status       bike.Status `json:"status"`
	BatteryLevel *int        `json:"batteryLevel,omitempty"`
	// StationID is empty while the bike is out on a trip.
	StationID string `json:"stationId,omitempty"`
}

func toBikeResponse(b bms.BikeState) bikeResponse {
	return bikeResponse{
		ID:           b.ID,
		Type:         b.Type,
		Status:       b.Status(),
		BatteryLevel: b.BatteryLevel,
		StationID:    b.StationID,
	}
}

func (a *API) bikesHandler(c *gin.Context) {
	bikes := a.m.Bikes(c.Request.Context())
	resp := make([]bikeResponse, 0, len(bikes))
	for _, b := range bikes {
		resp = append(resp, toBikeResponse(b))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) bikeHandler(c *gin.Context) {
	b, err := a.m.Bike(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBikeResponse(b))
}

type addBikeRequest struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	BatteryLevel *int   `json:"batteryLevel"`
}

func (a *API) addBikeHandler(c *gin.Context) {
	ctx, end := startSpan(c, "addBikeHandler")
	defer end()

	var req addBikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	typ := bike.Standard
	if req.Type != "" {
		t, err := bike.ParseType(req.Type)
		if err != nil {
			writeError(c, err)
			return
		}
		typ = t
	}

	b, err := a.m.AddBike(ctx, c.Param("id"), bms.BikeSpec{ID: req.ID, Type: typ, BatteryLevel: req.BatteryLevel})
	if err != nil {
		writeError(c, err)
		return
	}

	middleware.GetLogger(c).InfoContext(ctx, "bike added", "bike_id", b.ID, "station_id", b.StationID)
	c.JSON(http.StatusCreated, toBikeResponse(b))
}

func (a *API) removeBikeHandler(c *gin.Context) {
	ctx, end := startSpan(c, "removeBikeHandler")
	defer end()

	if err := a.m.RemoveBike(ctx, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type maintenanceRequest struct {
	Maintenance *bool `json:"maintenance"`
}

func (a *API) maintenanceHandler(c *gin.Context) {
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Maintenance == nil {
		badRequest(c, errors.New("maintenance is required"))
		return
	}

	b, err := a.m.SetMaintenance(c.Request.Context(), c.Param("id"), *req.Maintenance)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBikeResponse(b))
}

type batteryRequest struct {
	Level *int `json:"level"`
}

func (a *API) batteryHandler(c *gin.Context) {
	var req batteryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Level == nil {
		badRequest(c, errors.New("level is required"))
		return
	}

	b, err := a.m.UpdateBattery(c.Request.Context(), c.Param("id"), *req.Level)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBikeResponse(b))
}
