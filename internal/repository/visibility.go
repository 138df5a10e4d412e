package repository

import (
	"context"

	"natours/api/internal/access"
	"natours/api/internal/apperr"
	"natours/api/internal/query"
	"natours/api/internal/resource"
)

type visible struct {
	inner Repository
	rules query.Filter
}

// WithVisibility hides soft-deleted and marked records from every call made
// through the returned repository, unless access.SeesHidden holds for the
// call's context. Descriptors with neither marker get inner back.
func WithVisibility(desc *resource.Descriptor, inner Repository) Repository {
	var rules query.Filter
	if desc.SoftDelete {
		rules = append(rules, query.Condition{Field: resource.ActiveField, Op: query.Ne, Value: false})
	}
	if desc.HiddenMarker != "" {
		rules = append(rules, query.Condition{Field: desc.HiddenMarker, Op: query.Ne, Value: true})
	}
	if len(rules) == 0 {
		return inner
	}
	return &visible{inner: inner, rules: rules}
}

func (v *visible) scope(ctx context.Context, f query.Filter) query.Filter {
	if access.SeesHidden(ctx) {
		return f
	}
	return f.And(v.rules...)
}

func byID(id string) query.Filter {
	return query.Filter{{Field: resource.IDField, Op: query.Eq, Value: id}}
}

func (v *visible) Find(ctx context.Context, q FindQuery) ([]resource.Record, error) {
	q.Filter = v.scope(ctx, q.Filter)
	return v.inner.Find(ctx, q)
}

func (v *visible) Count(ctx context.Context, f query.Filter) (int64, error) {
	return v.inner.Count(ctx, v.scope(ctx, f))
}

func (v *visible) FindByID(ctx context.Context, id string, p query.Projection) (resource.Record, error) {
	if access.SeesHidden(ctx) {
		return v.inner.FindByID(ctx, id, p)
	}
	recs, err := v.inner.Find(ctx, FindQuery{Filter: v.scope(ctx, byID(id)), Projection: p, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.ErrNotFound
	}
	return recs[0], nil
}

func (v *visible) Create(ctx context.Context, rec resource.Record) (resource.Record, error) {
	return v.inner.Create(ctx, rec)
}

func (v *visible) UpdateByID(ctx context.Context, id string, changes resource.Record) (resource.Record, error) {
	if access.SeesHidden(ctx) {
		return v.inner.UpdateByID(ctx, id, changes)
	}
	return v.inner.FindOneAndUpdate(ctx, v.scope(ctx, byID(id)), changes)
}

func (v *visible) DeleteByID(ctx context.Context, id string) error {
	if !access.SeesHidden(ctx) {
		n, err := v.inner.Count(ctx, v.scope(ctx, byID(id)))
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.ErrNotFound
		}
	}
	return v.inner.DeleteByID(ctx, id)
}

func (v *visible) FindOneAndUpdate(ctx context.Context, f query.Filter, changes resource.Record) (resource.Record, error) {
	return v.inner.FindOneAndUpdate(ctx, v.scope(ctx, f), changes)
}
