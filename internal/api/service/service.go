package service

import (
	"context"
	"ctchen222/item-registry/internal/api/repository"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("api.service")
	meter  = otel.Meter("api.service")
)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a service.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// storeErr passes infrastructure failures through and tags anything else
// the repositories did not expect as unavailable too.
func storeErr(err error) error {
	if errors.Is(err, repository.ErrUnavailable) {
		return err
	}
	return oops.Code("STORE_UNEXPECTED").Wrap(errors.Join(ErrStoreUnavailable, err))
}

// counter returns an Int64Counter or a no-op one when the meter refuses it.
func counter(name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		slog.Warn("Failed to create counter", "metric", name, "error", err)
	}
	return c
}

func addOutcome(ctx context.Context, c metric.Int64Counter, outcome string) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
