// Package devices polls field device endpoints for liveness and caches the
// last known status in Redis. It is a reporting boundary only; nothing here
// feeds authorization.
package devices

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	statusKeyPrefix = "device:status:"
	statusTTL       = 24 * time.Hour
	probeTimeout    = 5 * time.Second
)

// Status is the last observed health of one device endpoint.
type Status struct {
	Endpoint  string    `json:"endpoint"`
	Healthy   bool      `json:"healthy"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
	Detail    string    `json:"detail,omitempty"`
}

// Poller probes device endpoints and caches results.
type Poller struct {
	endpoints []string
	client    *http.Client
	cache     *redis.Client
	logger    *slog.Logger
	flight    singleflight.Group
}

// NewPoller constructs a Poller over the configured endpoints.
func NewPoller(endpoints []string, cache *redis.Client, logger *slog.Logger) *Poller {
	return &Poller{
		endpoints: endpoints,
		client:    &http.Client{Timeout: probeTimeout},
		cache:     cache,
		logger:    logger,
	}
}

// PollAll probes every endpoint concurrently and stores the outcomes. A
// failed probe is a recorded unhealthy status, not an error.
func (p *Poller) PollAll(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for _, endpoint := range p.endpoints {
		group.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			status := p.probe(ctx, endpoint)
			if err := p.store(ctx, status); err != nil {
				return err
			}
			return nil
		})
	}
	return group.Wait()
}

func (p *Poller) probe(ctx context.Context, endpoint string) Status {
	status := Status{Endpoint: endpoint, CheckedAt: time.Now().UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	status.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		status.Detail = resp.Status
		return status
	}
	status.Healthy = true
	return status
}

func (p *Poller) store(ctx context.Context, status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if err := p.cache.Set(ctx, statusKeyPrefix+status.Endpoint, payload, statusTTL).Err(); err != nil {
		if p.logger != nil {
			p.logger.Warn("store device status", slog.Any("error", err), slog.String("endpoint", status.Endpoint))
		}
		return err
	}
	return nil
}

// Statuses returns the cached status for every configured endpoint.
// Concurrent callers share one Redis round trip.
func (p *Poller) Statuses(ctx context.Context) ([]Status, error) {
	result, err, _ := p.flight.Do("statuses", func() (any, error) {
		return p.loadStatuses(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Status), nil
}

func (p *Poller) loadStatuses(ctx context.Context) ([]Status, error) {
	statuses := make([]Status, 0, len(p.endpoints))
	for _, endpoint := range p.endpoints {
		raw, err := p.cache.Get(ctx, statusKeyPrefix+endpoint).Bytes()
		if err != nil {
			if err == redis.Nil {
				// Never probed yet.
				statuses = append(statuses, Status{Endpoint: endpoint, Detail: "no data"})
				continue
			}
			return nil, err
		}
		var status Status
		if err := json.Unmarshal(raw, &status); err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
