package spin

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirkobrombin/go-spin/v1/metrics"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-spin/v1/spin")

const (
	defaultName = "spin"
	tryLabel    = "try"
)

// Option configures the observability of a Mutex or TryMutex. A lock built
// without options carries no observer and pays only for the atomic flag.
type Option func(*config)

type config struct {
	name     string
	reg      prometheus.Registerer
	tracing  bool
	slowWait time.Duration
}

// WithName sets the name reported in metrics, spans and logs.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithMetrics enables Prometheus metrics collection using the provided
// registerer. Each lock registers its own collectors labelled with its name,
// so two locks sharing a registry need distinct names.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.reg = reg
	}
}

// WithTracing opens an OpenTelemetry span around each blocking acquisition.
func WithTracing() Option {
	return func(c *config) {
		c.tracing = true
	}
}

// WithSlowWait logs a warning whenever a blocking acquisition waits longer
// than d. A zero or negative duration disables the warning.
func WithSlowWait(d time.Duration) Option {
	return func(c *config) {
		c.slowWait = d
	}
}

type observer struct {
	name     string
	metrics  *metrics.Lock
	tracing  bool
	slowWait time.Duration
}

func newObserver(opts []Option) *observer {
	if len(opts) == 0 {
		return nil
	}
	c := config{name: defaultName}
	for _, opt := range opts {
		opt(&c)
	}
	o := &observer{name: c.name, tracing: c.tracing, slowWait: c.slowWait}
	if c.reg != nil {
		o.metrics = metrics.NewLock(c.reg, c.name)
	}
	return o
}

// begin starts timing a blocking acquisition.
func (o *observer) begin(method string) (trace.Span, time.Time) {
	var span trace.Span
	if o.tracing {
		_, span = tracer.Start(context.Background(), method,
			trace.WithAttributes(attribute.String("spin.lock", o.name)))
	}
	return span, time.Now()
}

// acquired records a blocking acquisition that took attempts test-and-sets.
func (o *observer) acquired(s Strategy, attempts int, span trace.Span, start time.Time) {
	wait := time.Since(start)
	if o.metrics != nil {
		label := s.String()
		o.metrics.Acquired.WithLabelValues(label).Inc()
		if attempts > 1 {
			o.metrics.Contended.WithLabelValues(label).Add(float64(attempts - 1))
		}
		o.metrics.Wait.WithLabelValues(label).Observe(wait.Seconds())
		o.metrics.Held.Set(1)
	}
	if span != nil {
		span.SetAttributes(
			attribute.Int("spin.attempts", attempts),
			attribute.Int64("spin.wait_ms", wait.Milliseconds()),
		)
		span.End()
	}
	if o.slowWait > 0 && wait > o.slowWait {
		slog.Warn("spin: slow acquisition", "lock", o.name, "strategy", s.String(), "attempts", attempts, "wait", wait)
	}
}

func (o *observer) tryAcquired() {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.Acquired.WithLabelValues(tryLabel).Inc()
	o.metrics.Held.Set(1)
}

func (o *observer) tryFailed() {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.TryFailed.Inc()
}

func (o *observer) released() {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.Held.Set(0)
}
