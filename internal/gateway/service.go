package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/edge-gateway/internal/catalog"
	"github.com/nulzo/edge-gateway/internal/httpclient"
	"github.com/nulzo/edge-gateway/internal/metrics"
	"github.com/nulzo/edge-gateway/internal/provider"
	"github.com/nulzo/edge-gateway/internal/router"
	"github.com/nulzo/edge-gateway/pkg/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/nulzo/edge-gateway/internal/gateway"

// AllProviders is the /v1/models provider hint that requests aggregation.
const AllProviders = "all"

// Service defines the business logic for routing requests.
type Service interface {
	// Chat serves /v1/chat/completions; override is the optional x-provider hint.
	Chat(ctx context.Context, req *api.ChatRequest, override string) (*Reply, error)
	// Responses serves /v1/responses for either body shape.
	Responses(ctx context.Context, body api.ResponsesBody, override string) (*Reply, error)
	// ListModels never fails for a registered provider.
	ListModels(ctx context.Context, q api.ModelQuery) (api.ModelList, error)
}

// Reply is either a complete JSON body or an open stream.
type Reply struct {
	Provider string
	Body     []byte
	Stream   *Stream
}

type service struct {
	logger  *zap.Logger
	router  *router.Router
	catalog *catalog.Aggregator
	creds   provider.Credentials
	client  httpclient.HTTPClient
	tracer  trace.Tracer
}

func NewService(logger *zap.Logger, r *router.Router, c *catalog.Aggregator, creds provider.Credentials, client httpclient.HTTPClient) Service {
	return &service{
		logger:  logger,
		router:  r,
		catalog: c,
		creds:   creds,
		client:  client,
		tracer:  otel.Tracer(tracerName),
	}
}

func (s *service) Chat(ctx context.Context, req *api.ChatRequest, override string) (*Reply, error) {
	d, err := s.resolve(req.Model, override)
	if err != nil {
		return nil, err
	}
	return s.forward(ctx, planChat(d, req, api.ShapeChat))
}

func (s *service) Responses(ctx context.Context, body api.ResponsesBody, override string) (*Reply, error) {
	if body.Chat == nil && body.Responses == nil {
		return nil, api.BadRequest("Request body is required")
	}
	d, err := s.resolve(body.Model(), override)
	if err != nil {
		return nil, err
	}
	return s.forward(ctx, planResponses(d, body))
}

func (s *service) ListModels(ctx context.Context, q api.ModelQuery) (api.ModelList, error) {
	if q.Aggregate || strings.EqualFold(strings.TrimSpace(q.Provider), AllProviders) {
		return api.NewModelList(s.catalog.ListAll(ctx)), nil
	}

	models, err := s.catalog.List(ctx, strings.TrimSpace(q.Provider))
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownProvider) {
			return api.ModelList{}, api.UnsupportedProvider(q.Provider)
		}
		return api.ModelList{}, api.InternalError(err)
	}
	return api.NewModelList(models), nil
}

// resolve validates the model, routes it and checks the provider credential.
func (s *service) resolve(model, override string) (provider.Descriptor, error) {
	if strings.TrimSpace(model) == "" {
		return provider.Descriptor{}, api.ModelRequired()
	}

	res, err := s.router.Resolve(model, override)
	if err != nil {
		switch {
		case errors.Is(err, router.ErrUnsupportedProvider):
			return provider.Descriptor{}, api.UnsupportedProvider(strings.TrimSpace(override))
		case errors.Is(err, router.ErrUnknownModel):
			return provider.Descriptor{}, api.BadRequest(fmt.Sprintf("Unknown model: %s", model))
		default:
			return provider.Descriptor{}, api.InternalError(err)
		}
	}

	s.logger.Debug("Routed request",
		zap.String("model", model),
		zap.String("provider", res.Provider.Name),
		zap.String("reason", res.Reason),
	)

	if _, ok := s.creds.Lookup(res.Provider.Name); !ok {
		return provider.Descriptor{}, api.ConfigurationError(res.Provider.DisplayName, res.Provider.CredentialEnv)
	}
	return res.Provider, nil
}

// forward sends u upstream and turns the answer into a Reply. Upstream
// non-2xx answers come back as *httpclient.UpstreamError so they can be
// relayed verbatim.
func (s *service) forward(ctx context.Context, u Upstream) (*Reply, error) {
	key, _ := s.creds.Lookup(u.Provider.Name)
	headers := u.Provider.Headers(key)
	if u.Stream {
		headers["Accept"] = "text/event-stream"
	}

	ctx, span := s.tracer.Start(ctx, "upstream.forward", trace.WithAttributes(
		attribute.String("gateway.provider", u.Provider.Name),
		attribute.String("gateway.protocol", u.Kind.String()),
		attribute.String("gateway.model", u.Model),
		attribute.Bool("gateway.stream", u.Stream),
	))
	defer span.End()

	start := time.Now()
	resp, err := httpclient.Send(ctx, s.client, http.MethodPost, u.Endpoint, headers, u.Body)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if ue, ok := httpclient.AsUpstream(err); ok {
			metrics.RecordUpstream(u.Provider.Name, u.Kind.String(), metrics.OutcomeUpstream, elapsed)
			s.logger.Warn("Upstream returned an error",
				zap.String("provider", u.Provider.Name),
				zap.Int("status", ue.StatusCode),
			)
			return nil, ue
		}

		metrics.RecordUpstream(u.Provider.Name, u.Kind.String(), metrics.OutcomeNetwork, elapsed)
		return nil, api.UpstreamFailure(u.Provider.Name, err)
	}

	if u.Stream {
		metrics.RecordUpstream(u.Provider.Name, u.Kind.String(), metrics.OutcomeOK, elapsed)
		return &Reply{
			Provider: u.Provider.Name,
			Stream:   NewStream(u, resp.Body, s.logger),
		}, nil
	}

	data, err := readBody(resp)
	if err != nil {
		metrics.RecordUpstream(u.Provider.Name, u.Kind.String(), metrics.OutcomeNetwork, elapsed)
		span.RecordError(err)
		return nil, api.UpstreamFailure(u.Provider.Name, err)
	}

	out, err := u.Render(data)
	if err != nil {
		metrics.RecordUpstream(u.Provider.Name, u.Kind.String(), metrics.OutcomeDecode, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return nil, api.InternalError(err)
	}

	metrics.RecordUpstream(u.Provider.Name, u.Kind.String(), metrics.OutcomeOK, elapsed)
	return &Reply{Provider: u.Provider.Name, Body: out}, nil
}
