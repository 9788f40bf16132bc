package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/nulzo/edge-gateway/internal/metrics"
	"github.com/nulzo/edge-gateway/internal/relay"
	"go.uber.org/zap"
)

// Stream is an open upstream event stream waiting to be relayed.
type Stream struct {
	upstream Upstream
	body     io.ReadCloser
	logger   *zap.Logger
	once     sync.Once
}

func NewStream(u Upstream, body io.ReadCloser, logger *zap.Logger) *Stream {
	return &Stream{upstream: u, body: body, logger: logger}
}

// Relay pipes the stream to w and releases the upstream connection. It
// returns once upstream ends, the client goes away or ctx is cancelled.
func (s *Stream) Relay(ctx context.Context, w io.Writer) error {
	name := s.upstream.Provider.Name
	kind := s.upstream.Kind.String()

	metrics.ActiveStreams.WithLabelValues(name).Inc()
	defer metrics.ActiveStreams.WithLabelValues(name).Dec()
	defer func() {
		_ = s.Close()
	}()

	stats, err := relay.Pipe(ctx, w, s.body, s.upstream.Transcoder())
	metrics.StreamFramesTotal.WithLabelValues(name, kind).Add(float64(stats.Frames))

	if err != nil {
		if errors.Is(err, relay.ErrClientGone) || errors.Is(err, context.Canceled) {
			s.logger.Info("Stream closed by client",
				zap.String("provider", name),
				zap.Int("frames", stats.Frames),
			)
			return nil
		}
		s.logger.Warn("Stream relay failed",
			zap.String("provider", name),
			zap.Int("frames", stats.Frames),
			zap.Error(err),
		)
		return err
	}

	s.logger.Debug("Stream finished",
		zap.String("provider", name),
		zap.Int("frames", stats.Frames),
		zap.Int64("bytes", stats.Bytes),
	)
	return nil
}

// Close releases the upstream connection. Safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.body.Close()
	})
	return err
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}
