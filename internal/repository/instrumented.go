package repository

import (
	"context"
	"errors"
	"time"

	"natours/api/internal/apperr"
	"natours/api/internal/metrics"
	"natours/api/internal/query"
	"natours/api/internal/resource"
)

type instrumented struct {
	inner    Repository
	resource string
	m        *metrics.Metrics
}

// WithMetrics records call counts and latencies for inner.
func WithMetrics(resourceName string, m *metrics.Metrics, inner Repository) Repository {
	if m == nil {
		return inner
	}
	return &instrumented{inner: inner, resource: resourceName, m: m}
}

func (r *instrumented) observe(op string, start time.Time, err error) {
	r.m.StoreDuration.WithLabelValues(r.resource, op).Observe(time.Since(start).Seconds())
	r.m.StoreOperations.WithLabelValues(r.resource, op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (r *instrumented) Find(ctx context.Context, q FindQuery) (out []resource.Record, err error) {
	defer func(start time.Time) { r.observe("find", start, err) }(time.Now())
	return r.inner.Find(ctx, q)
}

func (r *instrumented) Count(ctx context.Context, f query.Filter) (n int64, err error) {
	defer func(start time.Time) { r.observe("count", start, err) }(time.Now())
	return r.inner.Count(ctx, f)
}

func (r *instrumented) FindByID(ctx context.Context, id string, p query.Projection) (rec resource.Record, err error) {
	defer func(start time.Time) { r.observe("find_by_id", start, err) }(time.Now())
	return r.inner.FindByID(ctx, id, p)
}

func (r *instrumented) Create(ctx context.Context, in resource.Record) (rec resource.Record, err error) {
	defer func(start time.Time) { r.observe("create", start, err) }(time.Now())
	return r.inner.Create(ctx, in)
}

func (r *instrumented) UpdateByID(ctx context.Context, id string, changes resource.Record) (rec resource.Record, err error) {
	defer func(start time.Time) { r.observe("update", start, err) }(time.Now())
	return r.inner.UpdateByID(ctx, id, changes)
}

func (r *instrumented) DeleteByID(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { r.observe("delete", start, err) }(time.Now())
	return r.inner.DeleteByID(ctx, id)
}

func (r *instrumented) FindOneAndUpdate(ctx context.Context, f query.Filter, changes resource.Record) (rec resource.Record, err error) {
	defer func(start time.Time) { r.observe("find_one_and_update", start, err) }(time.Now())
	return r.inner.FindOneAndUpdate(ctx, f, changes)
}
