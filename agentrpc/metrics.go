package agentrpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics counts Agents RPCs.
type Metrics struct {
	requests   *prometheus.CounterVec
	rejections *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the RPC metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentseed_rpc_requests_total",
			Help: "Agents RPCs by method and status code",
		}, []string{"method", "code"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentseed_rpc_rejections_total",
			Help: "Operations rejected by a component, by method and error kind",
		}, []string{"method", "kind"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentseed_rpc_duration_seconds",
			Help:    "Agents RPC latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
		}, []string{"method"}),
	}
}

// UnaryInterceptor records every call on m.
func (m *Metrics) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		method := info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]
		start := time.Now()
		resp, err := handler(ctx, req)
		m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(method, status.Code(err).String()).Inc()
		var ks *kindStatus
		if errors.As(err, &ks) {
			m.rejections.WithLabelValues(method, string(ks.kind)).Inc()
		}
		return resp, err
	}
}
