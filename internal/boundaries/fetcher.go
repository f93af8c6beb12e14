// Package boundaries fetches the US-state boundary GeoJSON used by the
// choropleth. The document is fetched once per process, deduplicated
// across concurrent callers, and optionally persisted in SQLite so a
// restart does not need the network.
package boundaries

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/singleflight"

	"ccdash/internal/log"
	"ccdash/internal/metrics"
	"ccdash/internal/storage"
)

const maxBodyBytes = 32 << 20

// ErrUnavailable wraps every failure to obtain the boundaries.
var ErrUnavailable = errors.New("state boundaries unavailable")

// Store persists fetched documents.
type Store interface {
	GetBoundary(ctx context.Context, url string) (storage.Boundary, error)
	PutBoundary(ctx context.Context, b storage.Boundary) error
}

type Fetcher struct {
	url     string
	timeout time.Duration
	client  *http.Client
	store   Store
	metrics *metrics.Collector
	logger  *log.Logger

	group singleflight.Group

	mu     sync.RWMutex
	cached *geojson.FeatureCollection
}

type Option func(*Fetcher)

// WithStore enables SQLite persistence.
func WithStore(s Store) Option {
	return func(f *Fetcher) { f.store = s }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(f *Fetcher) { f.metrics = m }
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New returns a fetcher for url. timeout bounds a single network fetch.
func New(url string, timeout time.Duration, opts ...Option) *Fetcher {
	f := &Fetcher{
		url:     url,
		timeout: timeout,
		client:  NewHTTPClient(),
		logger:  log.FromContext(context.Background()).WithComponent(log.ComponentBoundaries),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewHTTPClient returns a pooled client with transport-level timeouts.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// URL returns the document location.
func (f *Fetcher) URL() string {
	return f.url
}

// Loaded reports whether the boundaries are held in memory.
func (f *Fetcher) Loaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cached != nil
}

// Get returns the boundary collection. Callers must not modify it.
func (f *Fetcher) Get(ctx context.Context) (*geojson.FeatureCollection, error) {
	f.mu.RLock()
	fc := f.cached
	f.mu.RUnlock()
	if fc != nil {
		f.metrics.BoundaryFetch(metrics.BoundaryMemory)
		return fc, nil
	}

	ch := f.group.DoChan(f.url, func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		return f.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*geojson.FeatureCollection), nil
	}
}

func (f *Fetcher) load(ctx context.Context) (*geojson.FeatureCollection, error) {
	if f.store != nil {
		b, err := f.store.GetBoundary(ctx, f.url)
		switch {
		case err == nil:
			fc, perr := parse(b.Body)
			if perr == nil {
				f.metrics.BoundaryFetch(metrics.BoundarySQLite)
				f.logger.InfoContext(ctx, "Loaded state boundaries from store",
					log.FieldURL, f.url, "fetched_at", b.FetchedAt, "features", len(fc.Features))
				return f.remember(fc), nil
			}
			f.logger.WarnContext(ctx, "Stored boundaries are invalid, refetching", log.FieldError, perr)
		case !errors.Is(err, storage.ErrNotFound):
			f.logger.WarnContext(ctx, "Boundary store lookup failed", log.FieldError, err)
		}
	}

	body, etag, err := f.download(ctx)
	if err != nil {
		f.metrics.BoundaryFetch(metrics.BoundaryError)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	fc, err := parse(body)
	if err != nil {
		f.metrics.BoundaryFetch(metrics.BoundaryError)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	f.metrics.BoundaryFetch(metrics.BoundaryNetwork)
	f.logger.InfoContext(ctx, "Fetched state boundaries", log.FieldURL, f.url, "features", len(fc.Features))

	if f.store != nil {
		err := f.store.PutBoundary(ctx, storage.Boundary{URL: f.url, Body: body, ETag: etag, FetchedAt: time.Now().UTC()})
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to persist boundaries", log.FieldError, err)
		}
	}
	return f.remember(fc), nil
}

func (f *Fetcher) remember(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached = fc
	return fc
}

func (f *Fetcher) download(ctx context.Context) ([]byte, string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %s", f.url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return body, resp.Header.Get("ETag"), nil
}

func parse(body []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, errors.New("geojson has no features")
	}
	return fc, nil
}
