package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"

	"github.com/aninnda/BikeShare-System-sub002/internal/middleware"
	"github.com/aninnda/BikeShare-System-sub002/reservation"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

func startSpan(c *gin.Context, name string) (context.Context, func()) {
	ctx, span := otel.GetTracerProvider().Tracer("api").Start(c.Request.Context(), name)
	return ctx, func() { span.End() }
}

type stationResponse struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	Address        string                    `json:"address"`
	OpeningHours   string                    `json:"opening_hours"`
	Lat            float64                   `json:"latitude"`
	Lng            float64                   `json:"longitude"`
	Type           station.Type              `json:"type"`
	Capacity       int                       `json:"capacity"`
	BikesDocked    int                       `json:"bikesDocked"`
	BikesAvailable int                       `json:"bikesAvailable"`
	FreeDocks      int                       `json:"freeDocks"`
	Full           bool                      `json:"full"`
	BikeIDs        []string                  `json:"bikeIds"`
	Reservations   []reservation.Reservation `json:"reservations"`
	Rebalancing    station.Rebalancing       `json:"rebalancing"`
}

func toStationResponse(s station.Snapshot) stationResponse {
	resp := stationResponse{
		ID:             s.ID,
		Name:           s.Name,
		Address:        s.Address,
		OpeningHours:   s.OpeningHours,
		Type:           s.Type,
		Lat:            s.Location.P.X,
		Lng:            s.Location.P.Y,
		Capacity:       s.Capacity,
		BikesDocked:    len(s.BikeIDs),
		BikesAvailable: s.BikesAvailable,
		FreeDocks:      s.Capacity - len(s.BikeIDs),
		Full:           s.IsFull(),
		BikeIDs:        s.BikeIDs,
		Reservations:   s.Reservations,
		Rebalancing:    s.Rebalancing,
	}
	if resp.Reservations == nil {
		resp.Reservations = []reservation.Reservation{}
	}
	return resp
}

func (a *API) stationsHandler(c *gin.Context) {
	ctx, end := startSpan(c, "stationsHandler")
	defer end()

	stations := a.m.Stations(ctx)
	resp := make([]stationResponse, 0, len(stations))
	for _, s := range stations {
		resp = append(resp, toStationResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) stationHandler(c *gin.Context) {
	s, err := a.m.Station(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStationResponse(s))
}

func (a *API) stationRebalancingHandler(c *gin.Context) {
	r, err := a.m.Rebalancing(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// rebalancingAlertsHandler lists only the stations that need bikes,
// critical ones first.
func (a *API) rebalancingAlertsHandler(c *gin.Context) {
	alerts := a.m.RebalancingAlerts(c.Request.Context())
	if alerts == nil {
		alerts = []station.Rebalancing{}
	}
	c.JSON(http.StatusOK, alerts)
}

type addStationRequest struct {
	ID           string  `json:"id"`
	Capacity     int     `json:"capacity"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	OpeningHours string  `json:"opening_hours"`
	Type         string  `json:"type"`
	Lat          float64 `json:"latitude"`
	Lng          float64 `json:"longitude"`
}

func (a *API) addStationHandler(c *gin.Context) {
	ctx, end := startSpan(c, "addStationHandler")
	defer end()

	logger := middleware.GetLogger(c)

	var req addStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	typ, err := station.ParseType(req.Type)
	if err != nil {
		badRequest(c, err)
		return
	}

	s, err := a.m.AddStation(ctx, req.ID, req.Capacity, station.Metadata{
		Name:         req.Name,
		Address:      req.Address,
		OpeningHours: req.OpeningHours,
		Location:     pgtype.Point{P: pgtype.Vec2{X: req.Lat, Y: req.Lng}, Valid: true},
		Type:         typ,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	logger.InfoContext(ctx, "station added", "station_id", s.ID, "capacity", s.Capacity)
	c.JSON(http.StatusCreated, toStationResponse(s))
}
