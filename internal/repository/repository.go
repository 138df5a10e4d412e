// Package repository stores resource records. Every binding satisfies
// Repository; the visibility and metrics stages wrap any of them.
package repository

import (
	"context"

	"natours/api/internal/query"
	"natours/api/internal/resource"
)

type FindQuery struct {
	Filter     query.Filter
	Sort       []query.SortField
	Projection query.Projection
	Skip       int
	// Limit <= 0 means no limit.
	Limit int
}

// Repository is the storage contract the core depends on. Missing records
// yield apperr.ErrNotFound, unique violations apperr.ErrConflict and
// timeouts or lost connections apperr.ErrUnavailable.
type Repository interface {
	Find(ctx context.Context, q FindQuery) ([]resource.Record, error)
	Count(ctx context.Context, f query.Filter) (int64, error)
	FindByID(ctx context.Context, id string, p query.Projection) (resource.Record, error)
	Create(ctx context.Context, rec resource.Record) (resource.Record, error)
	// UpdateByID applies changes and returns the updated record. A nil
	// value removes the field.
	UpdateByID(ctx context.Context, id string, changes resource.Record) (resource.Record, error)
	DeleteByID(ctx context.Context, id string) error
	// FindOneAndUpdate atomically applies changes to the first record
	// matching f and returns it after the update.
	FindOneAndUpdate(ctx context.Context, f query.Filter, changes resource.Record) (resource.Record, error)
}

// splitChanges separates assignments from removals.
func splitChanges(changes resource.Record) (set resource.Record, unset []string) {
	set = make(resource.Record, len(changes))
	for k, v := range changes {
		if k == resource.IDField {
			continue
		}
		if v == nil {
			unset = append(unset, k)
			continue
		}
		set[k] = v
	}
	return set, unset
}

// project applies p to rec in place of a store-side projection. The id is
// always kept.
func project(rec resource.Record, p query.Projection) resource.Record {
	switch {
	case p.IsInclude():
		out := resource.Record{resource.IDField: rec[resource.IDField]}
		for _, f := range p.Include {
			if v, ok := rec[f]; ok {
				out[f] = v
			}
		}
		return out
	case len(p.Exclude) > 0:
		out := rec.Clone()
		for _, f := range p.Exclude {
			if f != resource.IDField {
				delete(out, f)
			}
		}
		return out
	default:
		return rec.Clone()
	}
}
