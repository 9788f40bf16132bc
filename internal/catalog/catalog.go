// Package catalog lists models across providers, degrading to each
// provider's static catalog whenever the live listing is unavailable.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nulzo/edge-gateway/internal/httpclient"
	"github.com/nulzo/edge-gateway/internal/metrics"
	"github.com/nulzo/edge-gateway/internal/provider"
	"github.com/nulzo/edge-gateway/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownProvider = errors.New("unknown provider")

const (
	reasonNoCredential = "no_credential"
	reasonUpstream     = "upstream_error"
	reasonEmpty        = "empty"
)

// live listing shape shared by OpenAI-compatible and Anthropic model endpoints
type upstreamList struct {
	Data []upstreamModel `json:"data"`
}

type upstreamModel struct {
	ID        string `json:"id"`
	Created   int64  `json:"created"`
	CreatedAt string `json:"created_at"`
	OwnedBy   string `json:"owned_by"`
}

type Aggregator struct {
	registry *provider.Registry
	creds    provider.Credentials
	client   httpclient.HTTPClient
	log      *zap.Logger
	now      func() time.Time
}

func NewAggregator(registry *provider.Registry, creds provider.Credentials, client httpclient.HTTPClient, log *zap.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		creds:    creds,
		client:   client,
		log:      log,
		now:      time.Now,
	}
}

// List returns the models of one provider; an empty name means the primary.
// Only an unregistered name is an error.
func (a *Aggregator) List(ctx context.Context, name string) ([]api.Model, error) {
	d := a.registry.Primary()
	if name != "" {
		var ok bool
		if d, ok = a.registry.Get(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
	}
	return a.Models(ctx, d), nil
}

// ListAll queries every provider concurrently and concatenates the results
// in registry order.
func (a *Aggregator) ListAll(ctx context.Context) []api.Model {
	descriptors := a.registry.All()
	results := make([][]api.Model, len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range descriptors {
		g.Go(func() error {
			results[i] = a.Models(gctx, d)
			return nil
		})
	}
	_ = g.Wait() // Models never fails

	var all []api.Model
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// Models lists d live when a credential exists and falls back to the static
// catalog otherwise. It never fails.
func (a *Aggregator) Models(ctx context.Context, d provider.Descriptor) []api.Model {
	key, ok := a.creds.Lookup(d.Name)
	if !ok {
		a.fallback(d, reasonNoCredential, nil)
		return a.Static(d)
	}

	models, err := a.live(ctx, d, key)
	if err != nil {
		a.fallback(d, reasonUpstream, err)
		return a.Static(d)
	}
	if len(models) == 0 {
		a.fallback(d, reasonEmpty, nil)
		return a.Static(d)
	}
	return models
}

// Static renders the provider's built-in catalog.
func (a *Aggregator) Static(d provider.Descriptor) []api.Model {
	created := a.now().Unix()
	models := make([]api.Model, 0, len(d.StaticModelCatalog))
	for _, id := range d.StaticModelCatalog {
		models = append(models, api.Model{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: d.Name,
		})
	}
	return models
}

func (a *Aggregator) live(ctx context.Context, d provider.Descriptor, key string) ([]api.Model, error) {
	start := time.Now()

	var list upstreamList
	err := httpclient.SendRequest(ctx, a.client, http.MethodGet, d.ModelsEndpoint(), d.Headers(key), nil, &list)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := metrics.OutcomeNetwork
		if _, ok := httpclient.AsUpstream(err); ok {
			outcome = metrics.OutcomeUpstream
		}
		metrics.RecordUpstream(d.Name, metrics.KindModels, outcome, elapsed)
		return nil, err
	}
	metrics.RecordUpstream(d.Name, metrics.KindModels, metrics.OutcomeOK, elapsed)

	models := make([]api.Model, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID == "" {
			continue
		}
		models = append(models, normalize(m, d.Name))
	}
	return models, nil
}

func normalize(m upstreamModel, owner string) api.Model {
	created := m.Created
	if created == 0 && m.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
			created = t.Unix()
		}
	}
	if m.OwnedBy != "" {
		owner = m.OwnedBy
	}
	return api.Model{
		ID:      m.ID,
		Object:  "model",
		Created: created,
		OwnedBy: owner,
	}
}

func (a *Aggregator) fallback(d provider.Descriptor, reason string, err error) {
	metrics.CatalogFallbacksTotal.WithLabelValues(d.Name, reason).Inc()

	fields := []zap.Field{
		zap.String("provider", d.Name),
		zap.String("reason", reason),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		a.log.Warn("Live model listing failed, serving static catalog", fields...)
		return
	}
	a.log.Debug("Serving static model catalog", fields...)
}
