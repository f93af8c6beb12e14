package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"ccdash/internal/boundaries"
	"ccdash/internal/core"
	"ccdash/internal/metrics"
	"ccdash/internal/services"
)

type stubBoundaries struct{ err error }

func (b stubBoundaries) Get(context.Context) (*geojson.FeatureCollection, error) {
	if b.err != nil {
		return nil, b.err
	}
	fc := geojson.NewFeatureCollection()
	for _, id := range []string{"CA", "NY"} {
		f := geojson.NewFeature(orb.Polygon{{{-100, 40}, {-99, 40}, {-99, 39}, {-100, 39}, {-100, 40}}})
		f.ID = id
		fc.Append(f)
	}
	return fc, nil
}

func testDashboard(b services.BoundarySource) *services.DashboardService {
	ts := func(s string) core.Timestamp {
		t, _ := time.Parse(time.DateTime, s)
		return core.Timestamp{Time: t, Valid: true}
	}
	rows := []core.Transaction{
		{Amount: 12.5, Gender: "F", Age: 34, State: "NY", MerchLat: 40.7, MerchLong: -74.0, Category: "grocery_pos", IsFraud: true, Time: ts("2020-06-01 10:15:00")},
		{Amount: 220, Gender: "M", Age: 52, State: "CA", MerchLat: 34.0, MerchLong: -118.2, Category: "shopping_net", Time: ts("2020-06-02 23:40:00")},
		{Amount: 48, Gender: "F", Age: 19, State: "CA", MerchLat: 37.7, MerchLong: -122.4, Category: "gas_transport", Time: ts("2020-06-03 08:05:00")},
	}
	columns := append([]string{}, core.RequiredColumns...)
	columns = append(columns, core.ColMerchLat, core.ColMerchLong, core.ColCategory, core.ColFraud, core.ColTimestamp)
	return services.NewDashboardService(core.NewDataset(rows, columns), b, services.DefaultDashboardConfig())
}

func newTestServer(t *testing.T, b services.BoundarySource, opts ...Option) *Server {
	t.Helper()
	srv := NewServer(":0", testDashboard(b), opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func get(srv *Server, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, stubBoundaries{})

	rr := get(srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{
		PageTitle, "Dataset Info", "Filters",
		"Total Transactions", "Total Amount", "Average Transaction Amount", "Average Age",
		"HeatMap", "Merchants Map", "Fraud Choropleth", "Proportional Circles", "Facts",
		`value="F" checked`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Error("security and trace headers must be set")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := get(srv, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
}

func TestIndexRejectsBadFilter(t *testing.T) {
	srv := newTestServer(t, stubBoundaries{})
	rr := get(srv, "/?age_min=60&age_max=20")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `class="error"`) {
		t.Fatalf("expected an HTML error fragment: %s", rr.Body.String())
	}
}

func TestKPITilesPartial(t *testing.T) {
	srv := newTestServer(t, stubBoundaries{})

	rr := get(srv, "/ui/kpis?gender=&gender=F", "HX-Request", "true")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Total Transactions") || !strings.Contains(rr.Body.String(), "$30.25") {
		t.Fatalf("unexpected tiles: %s", rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"filters:applied"`) || !strings.Contains(trigger, `"rows":2`) {
		t.Fatalf("HX-Trigger = %s", trigger)
	}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
}

func TestAPIKPIs(t *testing.T) {
	srv := newTestServer(t, stubBoundaries{})

	tests := []struct {
		name  string
		query string
		count int
	}{
		{"default", "", 3},
		{"women", "gender=F", 2},
		{"explicit empty gender", "gender=", 0},
		{"state", "state=CA", 2},
		{"empty state means all", "state=", 3},
		{"amount range", "amount_min=10&amount_max=50", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(srv, "/api/kpis?"+tt.query)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			var v core.KPIView
			decode(t, rr, &v)
			if v.Raw.Count != tt.count {
				t.Fatalf("count = %d, want %d", v.Raw.Count, tt.count)
			}
			if rr.Header().Get("Cache-Control") != "no-store" {
				t.Error("API responses must not be cached by clients")
			}
		})
	}
}

func TestAPIErrors(t *testing.T) {
	srv := newTestServer(t, stubBoundaries{err: fmt.Errorf("%w: upstream 503", boundaries.ErrUnavailable)})

	tests := []struct {
		target string
		status int
	}{
		{"/api/kpis?amount_min=abc", http.StatusBadRequest},
		{"/api/markers?zoom=40", http.StatusBadRequest},
		{"/api/facts?top_n=x", http.StatusBadRequest},
		{"/api/choropleth", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := get(srv, tt.target)
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d; body=%s", rr.Code, tt.status, rr.Body.String())
			}
			var body struct {
				Error     string `json:"error"`
				RequestID string `json:"request_id"`
			}
			decode(t, rr, &body)
			if body.Error == "" || body.RequestID != rr.Header().Get("X-Request-ID") {
				t.Fatalf("error body = %+v", body)
			}
		})
	}
}

func TestAPIDashboard(t *testing.T) {
	srv := newTestServer(t, stubBoundaries{err: boundaries.ErrUnavailable})

	rr := get(srv, "/api/dashboard?state=CA&top_n=12&zoom=6")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var snap struct {
		FilterKey       string         `json:"filter_key"`
		Rows            int            `json:"rows"`
		Choropleth      map[string]any `json:"choropleth"`
		ChoroplethError string         `json:"choropleth_error"`
		Facts           struct {
			TopN int `json:"top_n"`
		} `json:"facts"`
		Markers struct {
			Zoom int `json:"zoom"`
		} `json:"markers"`
	}
	decode(t, rr, &snap)
	if snap.Rows != 2 || !strings.Contains(snap.FilterKey, "s=[CA]") {
		t.Errorf("rows = %d, key = %q", snap.Rows, snap.FilterKey)
	}
	if snap.Choropleth != nil || snap.ChoroplethError == "" {
		t.Errorf("choropleth failure must be reported inside the snapshot")
	}
	if snap.Facts.TopN != 10 || snap.Markers.Zoom != 6 {
		t.Errorf("top_n = %d, zoom = %d", snap.Facts.TopN, snap.Markers.Zoom)
	}
}

func TestAPILayers(t *testing.T) {
	srv := newTestServer(t, stubBoundaries{})

	for _, path := range []string{"/api/filters", "/api/heatmap", "/api/heatmap/weighted", "/api/markers", "/api/choropleth", "/api/circles", "/api/facts"} {
		t.Run(path, func(t *testing.T) {
			rr := get(srv, path)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			var v map[string]any
			decode(t, rr, &v)
		})
	}
}

func TestStaticAndMetrics(t *testing.T) {
	srv := newTestServer(t, stubBoundaries{}, WithMetrics(metrics.NewCollector()))

	rr := get(srv, "/static/app.js")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Fatalf("static status=%d cache=%q", rr.Code, rr.Header().Get("Cache-Control"))
	}

	get(srv, "/api/kpis")
	rr = get(srv, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	for _, want := range []string{
		`ccdash_http_requests_total{route="/api/kpis",status="200"} 1`,
		`ccdash_dataset_rows 3`,
		`ccdash_cache_lookups_total{cache="kpis",result="miss"} 1`,
	} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	m := metrics.NewCollector()
	srv := newTestServer(t, stubBoundaries{}, WithRateLimit(1), WithMetrics(m))

	if rr := get(srv, "/api/filters"); rr.Code != http.StatusOK {
		t.Fatalf("first request status=%d", rr.Code)
	}
	rr := get(srv, "/api/filters")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("second request status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Rate limit exceeded") {
		t.Fatalf("body = %s", rr.Body.String())
	}

	if rr := get(srv, "/ui/kpis", "HX-Request", "true"); rr.Code != http.StatusTooManyRequests || !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Fatalf("HTMX rejection status=%d trigger=%q", rr.Code, rr.Header().Get("HX-Trigger"))
	}
	if rr := get(srv, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("health checks are not limited, got %d", rr.Code)
	}
}

func TestAPICancellation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		cancelled  bool
		wantStatus int
	}{
		{
			name:       "client gave up while boundaries were loading",
			err:        fmt.Errorf("%w: %w", boundaries.ErrUnavailable, context.Canceled),
			cancelled:  true,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "upstream fetch timed out",
			err:        fmt.Errorf("%w: %w", boundaries.ErrUnavailable, context.DeadlineExceeded),
			wantStatus: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, stubBoundaries{err: tt.err})
			req := httptest.NewRequest(http.MethodGet, "/api/choropleth", nil)
			if tt.cancelled {
				ctx, cancel := context.WithCancel(req.Context())
				cancel()
				req = req.WithContext(ctx)
			}
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d; body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}
