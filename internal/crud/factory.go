// Package crud provides the list, read, create, update and delete
// operations shared by every resource type. Operations know nothing about
// HTTP; they return records or apperr failures.
package crud

import (
	"context"
	"fmt"
	"net/url"

	"natours/api/internal/access"
	"natours/api/internal/ids"
	"natours/api/internal/query"
	"natours/api/internal/repository"
	"natours/api/internal/resource"
)

type related struct {
	desc *resource.Descriptor
	repo repository.Repository
}

type Factory struct {
	desc    *resource.Descriptor
	repo    repository.Repository
	related map[string]related
	newID   func() string
}

type Option func(*Factory)

// WithRelated registers the repository used to resolve includes that point
// at desc.
func WithRelated(desc *resource.Descriptor, repo repository.Repository) Option {
	return func(f *Factory) {
		f.related[desc.Name] = related{desc: desc, repo: repo}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(f *Factory) {
		f.newID = gen
	}
}

func New(desc *resource.Descriptor, repo repository.Repository, opts ...Option) *Factory {
	f := &Factory{
		desc:    desc,
		repo:    repo,
		related: make(map[string]related),
		newID:   ids.New,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Descriptor() *resource.Descriptor { return f.desc }

type Page struct {
	Items []resource.Record
	// Total counts every record matching the filter, ignoring pagination.
	Total int64
	Plan  query.Plan
}

func (f *Factory) List(ctx context.Context, params url.Values) (Page, error) {
	plan, err := query.Translate(params, f.desc)
	if err != nil {
		return Page{}, err
	}
	recs, err := f.repo.Find(ctx, repository.FindQuery{
		Filter:     plan.Filter,
		Sort:       plan.Sort,
		Projection: plan.Projection,
		Skip:       plan.Page.Skip,
		Limit:      plan.Page.Limit,
	})
	if err != nil {
		return Page{}, fmt.Errorf("list %s: %w", f.desc.Name, err)
	}
	total, err := f.repo.Count(ctx, plan.Filter)
	if err != nil {
		return Page{}, fmt.Errorf("count %s: %w", f.desc.Name, err)
	}
	items := make([]resource.Record, 0, len(recs))
	for _, rec := range recs {
		items = append(items, f.desc.Sanitize(rec, plan.Projection.Include...))
	}
	return Page{Items: items, Total: total, Plan: plan}, nil
}

func (f *Factory) ReadOne(ctx context.Context, id string) (resource.Record, error) {
	rec, err := f.repo.FindByID(ctx, id, query.Exclusion(f.desc.HiddenByDefault()...))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", f.desc.Name, id, err)
	}
	for _, inc := range f.desc.Includes {
		if err := f.include(ctx, rec, inc); err != nil {
			return nil, err
		}
	}
	return f.desc.Sanitize(rec), nil
}

// include replaces the id list in rec[inc.Field] with the referenced
// records, keeping the stored order and skipping ids that no longer
// resolve.
func (f *Factory) include(ctx context.Context, rec resource.Record, inc resource.Include) error {
	rel, ok := f.related[inc.Resource]
	if !ok {
		return nil
	}
	refs := referenceIDs(rec[inc.Field])
	if len(refs) == 0 {
		return nil
	}
	operands := make([]any, len(refs))
	for i, id := range refs {
		operands[i] = id
	}
	exclude := append(rel.desc.HiddenByDefault(), inc.Exclude...)
	found, err := rel.repo.Find(ctx, repository.FindQuery{
		Filter:     query.Filter{{Field: resource.IDField, Op: query.Eq, Value: operands}},
		Projection: query.Exclusion(exclude...),
	})
	if err != nil {
		return fmt.Errorf("include %s: %w", inc.Field, err)
	}
	byID := make(map[string]resource.Record, len(found))
	for _, r := range found {
		byID[r.ID()] = r
	}
	resolved := make([]resource.Record, 0, len(refs))
	for _, id := range refs {
		if r, ok := byID[id]; ok {
			out := rel.desc.Sanitize(r)
			for _, ex := range inc.Exclude {
				delete(out, ex)
			}
			resolved = append(resolved, out)
		}
	}
	rec[inc.Field] = resolved
	return nil
}

func referenceIDs(v any) []string {
	switch refs := v.(type) {
	case []string:
		return refs
	case []any:
		out := make([]string, 0, len(refs))
		for _, r := range refs {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (f *Factory) Create(ctx context.Context, body resource.Record) (resource.Record, error) {
	caller, _ := access.CallerFromContext(ctx)
	writable, err := access.WritableFields(f.desc, caller, body)
	if err != nil {
		return nil, err
	}
	rec, err := f.desc.Validate(writable, nil, resource.Create)
	if err != nil {
		return nil, err
	}
	if f.desc.Normalize != nil {
		f.desc.Normalize(rec)
	}
	rec[resource.IDField] = f.newID()

	created, err := f.repo.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", f.desc.Name, err)
	}
	return f.desc.Sanitize(created), nil
}

// Update applies the caller-writable part of body to the record and returns
// its new state.
func (f *Factory) Update(ctx context.Context, id string, body resource.Record) (resource.Record, error) {
	caller, _ := access.CallerFromContext(ctx)
	current, err := f.repo.FindByID(ctx, id, query.Projection{})
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", f.desc.Name, id, err)
	}
	if err := access.CheckOwnership(f.desc, caller, current); err != nil {
		return nil, err
	}
	writable, err := access.WritableFields(f.desc, caller, body)
	if err != nil {
		return nil, err
	}
	changes, err := f.desc.Validate(writable, current, resource.Update)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return f.desc.Sanitize(current), nil
	}
	if f.desc.Normalize != nil {
		f.desc.Normalize(changes)
	}
	updated, err := f.repo.UpdateByID(ctx, id, changes)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", f.desc.Name, id, err)
	}
	return f.desc.Sanitize(updated), nil
}

// DeleteOne soft-deletes when the descriptor says so, otherwise removes
// the record.
func (f *Factory) DeleteOne(ctx context.Context, id string) error {
	caller, _ := access.CallerFromContext(ctx)
	current, err := f.repo.FindByID(ctx, id, query.Projection{})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", f.desc.Name, id, err)
	}
	if err := access.CheckOwnership(f.desc, caller, current); err != nil {
		return err
	}
	if f.desc.SoftDelete {
		_, err = f.repo.UpdateByID(ctx, id, resource.Record{resource.ActiveField: false})
	} else {
		err = f.repo.DeleteByID(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", f.desc.Name, id, err)
	}
	return nil
}
