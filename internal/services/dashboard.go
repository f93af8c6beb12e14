package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"ccdash/internal/amqp"
	"ccdash/internal/cache"
	"ccdash/internal/charts"
	"ccdash/internal/core"
	"ccdash/internal/geo"
	"ccdash/internal/log"
	"ccdash/internal/metrics"
)

// Cache names, also used as metric labels.
const (
	CacheKPIs       = "kpis"
	CacheMarkers    = "markers"
	CacheChoropleth = "choropleth"
	CacheCircles    = "circles"
	CacheFacts      = "facts"
)

// BoundarySource provides the state outlines for the choropleth.
type BoundarySource interface {
	Get(ctx context.Context) (*geojson.FeatureCollection, error)
}

// Publisher sends dashboard snapshot events.
type Publisher interface {
	PublishSnapshot(ctx context.Context, msg *amqp.SnapshotMessage) error
}

// DashboardConfig tunes the result caches.
type DashboardConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{CacheSize: 256, CacheTTL: 10 * time.Minute}
}

// FilterOptions are the sidebar controls and their domains.
type FilterOptions struct {
	Genders []string   `json:"genders"`
	States  []string   `json:"states"`
	Amount  core.Range `json:"amount"`
	Age     core.Range `json:"age"`
	TopN    TopNRange  `json:"top_n"`
	Rows    int        `json:"rows"`
}

// TopNRange is the domain of the top-N states slider.
type TopNRange struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Step    int `json:"step"`
	Default int `json:"default"`
}

// SnapshotParams carries the per-tab controls that are not part of the
// filter.
type SnapshotParams struct {
	Zoom      int
	TopN      int
	RequestID string
}

// Snapshot is every tab computed for one filter.
type Snapshot struct {
	FilterKey       string          `json:"filter_key"`
	Rows            int             `json:"rows"`
	KPIs            core.KPIView    `json:"kpis"`
	Heatmap         geo.Heatmap     `json:"heatmap"`
	WeightedHeatmap geo.Heatmap     `json:"weighted_heatmap"`
	Markers         geo.Markers     `json:"markers"`
	Choropleth      *geo.Choropleth `json:"choropleth"`
	ChoroplethError string          `json:"choropleth_error,omitempty"`
	Circles         geo.Circles     `json:"circles"`
	Facts           charts.Facts    `json:"facts"`
}

// DashboardService computes every dashboard payload from the immutable
// dataset. Results are cached per canonical filter key.
type DashboardService struct {
	ds         *core.Dataset
	boundaries BoundarySource
	publisher  Publisher
	metrics    *metrics.Collector
	logger     *log.Logger

	heatOnce sync.Once
	density  geo.Heatmap
	weighted geo.Heatmap

	kpis       *cache.LRUCache[core.KPIs]
	markers    *cache.LRUCache[geo.Markers]
	choropleth *cache.LRUCache[geo.Choropleth]
	circles    *cache.LRUCache[geo.Circles]
	facts      *cache.LRUCache[charts.Facts]
}

// Option configures a DashboardService.
type Option func(*DashboardService)

// WithPublisher enables snapshot events.
func WithPublisher(p Publisher) Option {
	return func(s *DashboardService) { s.publisher = p }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *DashboardService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *DashboardService) { s.logger = l }
}

func NewDashboardService(ds *core.Dataset, boundaries BoundarySource, cfg DashboardConfig, opts ...Option) *DashboardService {
	if cfg.CacheSize < 1 || cfg.CacheTTL <= 0 {
		cfg = DefaultDashboardConfig()
	}
	s := &DashboardService{
		ds:         ds,
		boundaries: boundaries,
		logger:     log.FromContext(context.Background()).WithComponent(log.ComponentDashboard),
		kpis:       cache.NewLRUCache[core.KPIs](cfg.CacheSize, cfg.CacheTTL),
		markers:    cache.NewLRUCache[geo.Markers](cfg.CacheSize, cfg.CacheTTL),
		choropleth: cache.NewLRUCache[geo.Choropleth](cfg.CacheSize, cfg.CacheTTL),
		circles:    cache.NewLRUCache[geo.Circles](cfg.CacheSize, cfg.CacheTTL),
		facts:      cache.NewLRUCache[charts.Facts](cfg.CacheSize, cfg.CacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SetDatasetRows(ds.Len())
	return s
}

// Dataset returns the loaded dataset.
func (s *DashboardService) Dataset() *core.Dataset {
	return s.ds
}

// RegisterCaches adds every result cache to m for periodic cleanup.
func (s *DashboardService) RegisterCaches(m *cache.Manager) {
	m.Register(CacheKPIs, s.kpis)
	m.Register(CacheMarkers, s.markers)
	m.Register(CacheChoropleth, s.choropleth)
	m.Register(CacheCircles, s.circles)
	m.Register(CacheFacts, s.facts)
}

// CacheStats returns the counters of every result cache.
func (s *DashboardService) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		CacheKPIs:       s.kpis.Stats(),
		CacheMarkers:    s.markers.Stats(),
		CacheChoropleth: s.choropleth.Stats(),
		CacheCircles:    s.circles.Stats(),
		CacheFacts:      s.facts.Stats(),
	}
}

// Options returns the sidebar option lists and slider bounds.
func (s *DashboardService) Options() FilterOptions {
	return FilterOptions{
		Genders: s.ds.Genders(),
		States:  s.ds.States(),
		Amount:  s.ds.AmountBounds(),
		Age:     s.ds.AgeBounds(),
		TopN: TopNRange{
			Min:     charts.MinTopN,
			Max:     charts.MaxTopN,
			Step:    charts.TopNStep,
			Default: charts.DefaultTopN,
		},
		Rows: s.ds.Len(),
	}
}

// DefaultFilter is the selection the sidebar starts with.
func (s *DashboardService) DefaultFilter() core.Filter {
	return core.DefaultFilter(s.ds)
}

func cached[T any](s *DashboardService, name string, c *cache.LRUCache[T], key string, compute func() (T, error)) (T, error) {
	v, hit, err := c.GetOrCompute(key, compute)
	s.metrics.CacheLookup(name, hit)
	return v, err
}

// Filtered returns the rows selected by f. The selection is recomputed on
// every call; only the payloads derived from it are cached.
func (s *DashboardService) Filtered(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := s.ds.Filter(f)
	s.metrics.ObserveFiltered(len(rows))
	s.logger.DebugContext(ctx, "Filter applied",
		log.NewFields().WithSelection(f.Key(), len(rows)).WithOperation(log.OpFilter).ToSlice()...)
	return rows, nil
}

// KPIs returns the four tiles for f.
func (s *DashboardService) KPIs(ctx context.Context, f core.Filter) (core.KPIs, error) {
	return cached(s, CacheKPIs, s.kpis, f.Key(), func() (core.KPIs, error) {
		rows, err := s.Filtered(ctx, f)
		if err != nil {
			return core.KPIs{}, err
		}
		return core.ComputeKPIs(rows), nil
	})
}

// Heatmaps returns the density and weighted heatmaps. Both cover the
// whole dataset and ignore the filter, so they are computed once.
func (s *DashboardService) Heatmaps() (density, weighted geo.Heatmap) {
	s.heatOnce.Do(func() {
		s.density = geo.DensityHeatmap(s.ds)
		s.weighted = geo.WeightedHeatmap(s.ds)
	})
	return s.density, s.weighted
}

// Markers returns the merchant pins for f, clustered for zoom when it is
// positive.
func (s *DashboardService) Markers(ctx context.Context, f core.Filter, zoom int) (geo.Markers, error) {
	key := f.Key() + "|z=" + strconv.Itoa(zoom)
	return cached(s, CacheMarkers, s.markers, key, func() (geo.Markers, error) {
		rows, err := s.Filtered(ctx, f)
		if err != nil {
			return geo.Markers{}, err
		}
		return geo.MerchantMarkers(s.ds, rows, zoom), nil
	})
}

// Choropleth returns the per-state shading for f. It fails when the
// boundaries cannot be fetched.
func (s *DashboardService) Choropleth(ctx context.Context, f core.Filter) (geo.Choropleth, error) {
	return cached(s, CacheChoropleth, s.choropleth, f.Key(), func() (geo.Choropleth, error) {
		fc, err := s.boundaries.Get(ctx)
		if err != nil {
			return geo.Choropleth{}, fmt.Errorf("choropleth: %w", err)
		}
		rows, err := s.Filtered(ctx, f)
		if err != nil {
			return geo.Choropleth{}, err
		}
		return geo.BuildChoropleth(rows, fc), nil
	})
}

// Circles returns the proportional circle layer for f.
func (s *DashboardService) Circles(ctx context.Context, f core.Filter) (geo.Circles, error) {
	return cached(s, CacheCircles, s.circles, f.Key(), func() (geo.Circles, error) {
		rows, err := s.Filtered(ctx, f)
		if err != nil {
			return geo.Circles{}, err
		}
		c, err := geo.ProportionalCircles(s.ds, rows)
		if err != nil {
			return geo.Circles{}, fmt.Errorf("proportional circles: %w", err)
		}
		return c, nil
	})
}

// Facts returns the descriptive statistics charts for f.
func (s *DashboardService) Facts(ctx context.Context, f core.Filter, topN int) (charts.Facts, error) {
	topN = charts.ClampTopN(topN)
	key := f.Key() + "|n=" + strconv.Itoa(topN)
	return cached(s, CacheFacts, s.facts, key, func() (charts.Facts, error) {
		rows, err := s.Filtered(ctx, f)
		if err != nil {
			return charts.Facts{}, err
		}
		return charts.BuildFacts(s.ds, rows, topN), nil
	})
}

// Snapshot computes every tab for f concurrently. A choropleth failure is
// reported in the snapshot instead of failing it. When a publisher is
// configured the KPIs are announced as a snapshot event; publish errors
// are logged only.
func (s *DashboardService) Snapshot(ctx context.Context, f core.Filter, p SnapshotParams) (Snapshot, error) {
	rows, err := s.Filtered(ctx, f)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{FilterKey: f.Key(), Rows: len(rows)}
	var kpis core.KPIs
	snap.Heatmap, snap.WeightedHeatmap = s.Heatmaps()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		kpis, err = s.KPIs(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		snap.Markers, err = s.Markers(gctx, f, p.Zoom)
		return err
	})
	g.Go(func() error {
		c, err := s.Choropleth(gctx, f)
		if err != nil {
			s.logger.WarnContext(ctx, "Choropleth unavailable", log.FieldError, err)
			snap.ChoroplethError = err.Error()
			return nil
		}
		snap.Choropleth = &c
		return nil
	})
	g.Go(func() (err error) {
		snap.Circles, err = s.Circles(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		snap.Facts, err = s.Facts(gctx, f, p.TopN)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.KPIs = kpis.View()

	s.publish(ctx, f, kpis, p.RequestID)
	return snap, nil
}

func (s *DashboardService) publish(ctx context.Context, f core.Filter, k core.KPIs, requestID string) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewSnapshotMessage(requestID, f, k)
	err := s.publisher.PublishSnapshot(ctx, msg)
	s.metrics.EventPublished(err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish snapshot event",
			log.FieldError, err, "id", msg.ID, log.FieldFilterKey, msg.FilterKey)
	}
}
