package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"natours/api/internal/apperr"
	"natours/api/internal/models"
	"natours/api/internal/query"
	"natours/api/internal/resource"
)

var ErrAccountNotFound = fmt.Errorf("account %w", apperr.ErrNotFound)

// AccountRepository gives the auth flows typed access to account records
// stored behind a generic Repository.
type AccountRepository struct {
	store Repository
}

func NewAccountRepository(store Repository) *AccountRepository {
	return &AccountRepository{store: store}
}

// Store exposes the underlying repository for flows that need raw records.
func (r *AccountRepository) Store() Repository {
	return r.store
}

func (r *AccountRepository) Create(ctx context.Context, rec resource.Record) (models.Account, error) {
	created, err := r.store.Create(ctx, rec)
	if err != nil {
		return models.Account{}, err
	}
	return models.DecodeAccount(created)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	recs, err := r.store.Find(ctx, FindQuery{
		Filter: query.Filter{{Field: models.AccountEmail, Op: query.Eq, Value: strings.ToLower(strings.TrimSpace(email))}},
		Limit:  1,
	})
	if err != nil {
		return models.Account{}, err
	}
	if len(recs) == 0 {
		return models.Account{}, ErrAccountNotFound
	}
	return models.DecodeAccount(recs[0])
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	rec, err := r.store.FindByID(ctx, id, query.Projection{})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return models.DecodeAccount(rec)
}

func (r *AccountRepository) Update(ctx context.Context, id string, changes resource.Record) (models.Account, error) {
	rec, err := r.store.UpdateByID(ctx, id, changes)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return models.DecodeAccount(rec)
}

// UpdateWhere applies changes to the first account matching f.
func (r *AccountRepository) UpdateWhere(ctx context.Context, f query.Filter, changes resource.Record) (models.Account, error) {
	rec, err := r.store.FindOneAndUpdate(ctx, f, changes)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return models.DecodeAccount(rec)
}

// FindWhere returns every account matching f.
func (r *AccountRepository) FindWhere(ctx context.Context, f query.Filter) ([]models.Account, error) {
	recs, err := r.store.Find(ctx, FindQuery{Filter: f})
	if err != nil {
		return nil, err
	}
	out := make([]models.Account, 0, len(recs))
	for _, rec := range recs {
		acc, err := models.DecodeAccount(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}
