package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aninnda/BikeShare-System-sub002/api"
	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/bms"
	"github.com/aninnda/BikeShare-System-sub002/customer"
	"github.com/aninnda/BikeShare-System-sub002/internal/auth0"
	"github.com/aninnda/BikeShare-System-sub002/internal/middleware"
	"github.com/aninnda/BikeShare-System-sub002/rental"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

const (
	testRate = 15
	testTTL  = 15 * time.Minute
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeInvoicer struct {
	mu       sync.Mutex
	invoiced []rental.Rental
}

func (f *fakeInvoicer) Invoice(_ context.Context, r rental.Rental) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoiced = append(f.invoiced, r)
	return fmt.Sprintf("in_%d", len(f.invoiced)), nil
}

func (f *fakeInvoicer) Invoiced() []rental.Rental {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rental.Rental(nil), f.invoiced...)
}

type TestServer struct {
	API       *api.API
	Router    *gin.Engine
	Manager   *bms.Manager
	Clock     *fakeClock
	Invoicer  *fakeInvoicer
	Customers *customer.FakeRepository
	Auth0     *auth0.FakeClient
	Registry  *prometheus.Registry
}

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()

	m := bms.New(bms.Config{
		RatePerMinute: testRate,
		Clock:         clock.Now,
		Logger:        logger,
		Metrics:       bms.NewMetrics(reg),
	})

	ts := &TestServer{
		Manager:   m,
		Clock:     clock,
		Invoicer:  &fakeInvoicer{},
		Customers: customer.NewFakeRepository(),
		Auth0:     auth0.NewFakeClient(),
		Registry:  reg,
	}
	ts.API = api.New(m, api.Options{
		Logger:          logger,
		Registry:        reg,
		Auth:            gin.HandlersChain{middleware.HeaderIdentity()},
		MetricsUsername: "prom",
		MetricsPassword: "secret",
		ReservationTTL:  testTTL,
		Invoicer:        ts.Invoicer,
		Customers:       ts.Customers,
		Auth0:           ts.Auth0,
	})
	ts.Router = ts.API.Router()
	t.Cleanup(ts.API.Wait)

	return ts
}

func rider(id string) map[string]string {
	return map[string]string{"X-User-ID": id, "X-User-Role": "rider"}
}

func operator() map[string]string {
	return map[string]string{"X-User-ID": "ops-1", "X-User-Role": "operator"}
}

func (ts *TestServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	return w
}

// Helper methods for making requests
func (ts *TestServer) GET(path string, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodGet, path, nil, headers)
}

func (ts *TestServer) POST(path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, path, body, headers)
}

func (ts *TestServer) PUT(path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPut, path, body, headers)
}

func (ts *TestServer) DELETE(path string, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodDelete, path, nil, headers)
}

// CreateTestStation adds a station with n standard bikes named <id>-B1..n.
func (ts *TestServer) CreateTestStation(t *testing.T, id string, capacity, n int) {
	t.Helper()
	ctx := context.Background()
	if _, err := ts.Manager.AddStation(ctx, id, capacity, station.Metadata{Name: "Station " + id}); err != nil {
		t.Fatalf("failed to create test station: %v", err)
	}
	for i := 1; i <= n; i++ {
		ts.CreateTestBike(t, id, fmt.Sprintf("%s-B%d", id, i))
	}
}

func (ts *TestServer) CreateTestBike(t *testing.T, stationID, bikeID string) {
	t.Helper()
	if _, err := ts.Manager.AddBike(context.Background(), stationID, bms.BikeSpec{ID: bikeID, Type: bike.Standard}); err != nil {
		t.Fatalf("failed to create test bike: %v", err)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
		return
	}
	resp := decode[map[string]string](t, w)
	if resp["code"] != code {
		t.Errorf("expected code %s, got %s", code, resp["code"])
	}
}
