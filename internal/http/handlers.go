package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"ccdash/internal/boundaries"
	"ccdash/internal/core"
	"ccdash/internal/log"
	"ccdash/internal/middleware/trace"
	"ccdash/internal/services"
)

// PageTitle heads the dashboard page.
const PageTitle = "Credit Card Transactions Dashboard"

// DatasetDescription is the sidebar "Dataset Info" text.
const DatasetDescription = "This dataset contains credit card transactions, including information on amounts, times, customers, merchants, and fraudulent transactions."

type tab struct {
	ID    string
	Label string
}

var tabs = []tab{
	{"heatmap", "HeatMap"},
	{"markers", "Merchants Map"},
	{"choropleth", "Fraud Choropleth"},
	{"circles", "Proportional Circles"},
	{"facts", "Facts"},
}

type option struct {
	Value    string
	Selected bool
}

type pageData struct {
	Title       string
	Description string
	Rows        int
	Columns     []string
	FraudCount  int
	Genders     []option
	States      []option
	Options     services.FilterOptions
	Filter      core.Filter
	KPIs        core.KPIView
	Tabs        []tab
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once templates are parsed and a dataset is
// loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.dashboard == nil || s.dashboard.Dataset() == nil {
		checks["dataset"] = "not_loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["dataset"] = map[string]any{"rows": s.dashboard.Dataset().Len(), "status": "ok"}
		caches := make(map[string]int)
		for name, st := range s.dashboard.CacheStats() {
			caches[name] = st.Size
		}
		checks["cache"] = caches
	}

	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}

	NewResponse().Status(httpStatus).BodyJSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentHTTP)

	if s.templates == nil {
		logger.ErrorContext(ctx, "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	f, err := ParseFilter(r.URL.Query(), s.dashboard.DefaultFilter())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	kpis, err := s.dashboard.KPIs(ctx, f)
	if err != nil {
		logger.ErrorContext(ctx, "KPI computation failed", log.FieldError, err)
		InternalServerError("Failed to compute KPIs").Write(w)
		return
	}

	ds := s.dashboard.Dataset()
	opts := s.dashboard.Options()
	data := pageData{
		Title:       PageTitle,
		Description: DatasetDescription,
		Rows:        ds.Len(),
		Columns:     ds.Columns(),
		FraudCount:  ds.FraudCount(),
		Genders:     options(opts.Genders, f.Genders, true),
		States:      options(opts.States, f.States, false),
		Options:     opts,
		Filter:      f,
		KPIs:        kpis.View(),
		Tabs:        tabs,
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "page.html", data); err != nil {
		logger.ErrorContext(ctx, "Page template execution failed", log.FieldError, err, "template", "page.html")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	NewResponse().BodyHTML(buf.String()).Write(w)
}

// options marks the selected values. A nil selection means every value
// when allByDefault is set.
func options(values, selected []string, allByDefault bool) []option {
	chosen := make(map[string]bool, len(selected))
	for _, v := range selected {
		chosen[v] = true
	}
	out := make([]option, len(values))
	for i, v := range values {
		out[i] = option{Value: v, Selected: chosen[v] || (selected == nil && allByDefault)}
	}
	return out
}

// handleKPITiles renders the KPI tiles partial for HTMX.
func (s *Server) handleKPITiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := ParseFilter(r.URL.Query(), s.dashboard.DefaultFilter())
	if err != nil {
		BadRequestError(err.Error()).TriggerErrorNotification(err.Error()).Write(w)
		return
	}
	kpis, err := s.dashboard.KPIs(ctx, f)
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentHTTP).ErrorContext(ctx, "KPI computation failed", log.FieldError, err)
		InternalServerError("Failed to compute KPIs").Write(w)
		return
	}
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "kpi_tiles", kpis.View()); err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentTemplate).ErrorContext(ctx, "Template execution error", log.FieldError, err, "template", "kpi_tiles")
		InternalServerError("Failed to render KPIs").Write(w)
		return
	}
	NewResponse().
		BodyHTML(buf.String()).
		TriggerFiltersApplied(f.Key(), kpis.TotalTransactions).
		Write(w)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	JSON(s.dashboard.Options()).Write(w)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(ctx context.Context, f core.Filter, _ ViewParams) (any, error) {
		k, err := s.dashboard.KPIs(ctx, f)
		if err != nil {
			return nil, err
		}
		return k.View(), nil
	})
}

// The heatmaps cover the whole dataset and ignore the filter.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	density, _ := s.dashboard.Heatmaps()
	JSON(density).Write(w)
}

func (s *Server) handleWeightedHeatmap(w http.ResponseWriter, r *http.Request) {
	_, weighted := s.dashboard.Heatmaps()
	JSON(weighted).Write(w)
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(ctx context.Context, f core.Filter, p ViewParams) (any, error) {
		return s.dashboard.Markers(ctx, f, p.Zoom)
	})
}

func (s *Server) handleChoropleth(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(ctx context.Context, f core.Filter, _ ViewParams) (any, error) {
		return s.dashboard.Choropleth(ctx, f)
	})
}

func (s *Server) handleCircles(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(ctx context.Context, f core.Filter, _ ViewParams) (any, error) {
		return s.dashboard.Circles(ctx, f)
	})
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(ctx context.Context, f core.Filter, p ViewParams) (any, error) {
		return s.dashboard.Facts(ctx, f, p.TopN)
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(ctx context.Context, f core.Filter, p ViewParams) (any, error) {
		return s.dashboard.Snapshot(ctx, f, services.SnapshotParams{
			Zoom:      p.Zoom,
			TopN:      p.TopN,
			RequestID: trace.FromRequest(r),
		})
	})
}

// serveFiltered parses the filter and view parameters, runs compute and
// writes its result as JSON.
func (s *Server) serveFiltered(w http.ResponseWriter, r *http.Request, compute func(context.Context, core.Filter, ViewParams) (any, error)) {
	query := r.URL.Query()
	f, err := ParseFilter(query, s.dashboard.DefaultFilter())
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	p, err := ParseViewParams(query)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	v, err := compute(r.Context(), f, p)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	JSON(v).Write(w)
}

// writeAPIError maps err onto a status code: 400 for bad parameters, 503
// when the request was abandoned, 502 when the boundaries cannot be
// fetched, 500 otherwise. A cancelled request wins over the cause it
// interrupted.
func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	requestID := trace.FromRequest(r)
	logger := log.FromContext(ctx).WithComponent(log.ComponentHTTP)

	var perr *ParamError
	switch {
	case errors.As(err, &perr):
		JSONError(http.StatusBadRequest, perr.Error(), requestID).Write(w)
	case ctx.Err() != nil:
		JSONError(http.StatusServiceUnavailable, "request cancelled", requestID).Write(w)
	case errors.Is(err, boundaries.ErrUnavailable):
		// Includes the upstream fetch timing out.
		logger.WarnContext(ctx, "State boundaries unavailable", log.FieldError, err)
		JSONError(http.StatusBadGateway, "state boundaries are unavailable", requestID).Write(w)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		JSONError(http.StatusServiceUnavailable, "request cancelled", requestID).Write(w)
	default:
		logger.ErrorContext(ctx, "API request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
		JSONError(http.StatusInternalServerError, "internal error", requestID).Write(w)
	}
}
