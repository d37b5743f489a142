// Package metrics records MCP call outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thellimist/repoctx/internal/mcp"
)

// Label constants.
const (
	Method  = "method"
	Outcome = "outcome"
)

// Outcome values.
const (
	OutcomeOK            = "ok"
	OutcomeTransport     = "transport_error"
	OutcomeProtocol      = "protocol_error"
	OutcomeParse         = "parse_error"
	OutcomeMismatchedID  = "mismatched_id"
	OutcomeCanceled      = "canceled"
	OutcomeUnknownFailed = "error"
)

// Recorder implements mcp.Observer.
type Recorder struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ mcp.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repoctx_mcp_calls_total",
				Help: "Total number of MCP calls by method and outcome",
			},
			[]string{Method, Outcome},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "repoctx_mcp_call_duration_seconds",
				Help:    "Duration of MCP calls by method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{Method},
		),
	}

	for _, c := range []prometheus.Collector{r.calls, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveCall records one call.
func (r *Recorder) ObserveCall(method string, elapsed time.Duration, err error) {
	r.calls.WithLabelValues(method, Classify(err)).Inc()
	r.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Classify maps a client error to an outcome label.
func Classify(err error) string {
	var (
		transportErr *mcp.TransportError
		protocolErr  *mcp.ProtocolError
		parseErr     *mcp.ParseError
		mismatchErr  *mcp.MismatchedIDError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.As(err, &protocolErr):
		return OutcomeProtocol
	case errors.As(err, &mismatchErr):
		return OutcomeMismatchedID
	case errors.As(err, &parseErr):
		return OutcomeParse
	case errors.As(err, &transportErr):
		return OutcomeTransport
	default:
		return OutcomeUnknownFailed
	}
}
