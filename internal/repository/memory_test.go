package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natours/api/internal/access"
	"natours/api/internal/apperr"
	"natours/api/internal/models"
	"natours/api/internal/query"
	"natours/api/internal/repository"
	"natours/api/internal/resource"
)

func seedTours(t *testing.T, repo repository.Repository) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, tour := range []resource.Record{
		{"id": "t1", "name": "The Forest Hiker", "price": 397.0, "guides": []string{"g1", "g2"}},
		{"id": "t2", "name": "The Sea Explorer", "price": 497.0, "guides": []string{"g2"}},
		{"id": "t3", "name": "The Snow Adventurer", "price": 997.0, "secretTour": true},
		{"id": "t4", "name": "The City Wanderer", "price": 1197.0},
	} {
		tour["createdAt"] = base.Add(time.Duration(i) * time.Hour)
		_, err := repo.Create(context.Background(), tour)
		require.NoError(t, err)
	}
}

func ids(recs []resource.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}

func TestMemory_FindFiltersSortsAndPages(t *testing.T) {
	repo := repository.NewMemory(models.TourDescriptor)
	seedTours(t, repo)
	ctx := context.Background()

	recs, err := repo.Find(ctx, repository.FindQuery{
		Filter: query.Filter{{Field: "price", Op: query.Gte, Value: 400.0}},
		Sort:   []query.SortField{{Field: "price", Desc: true}},
		Skip:   1,
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t2"}, ids(recs))

	n, err := repo.Count(ctx, query.Filter{{Field: "price", Op: query.Gte, Value: 400.0}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	recs, err = repo.Find(ctx, repository.FindQuery{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemory_ListFieldsMatchByElement(t *testing.T) {
	repo := repository.NewMemory(models.TourDescriptor)
	seedTours(t, repo)

	recs, err := repo.Find(context.Background(), repository.FindQuery{
		Filter: query.Filter{{Field: "guides", Op: query.Eq, Value: "g2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids(recs))

	recs, err = repo.Find(context.Background(), repository.FindQuery{
		Filter: query.Filter{{Field: "id", Op: query.Eq, Value: []any{"t4", "t1"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t4"}, ids(recs))
}

func TestMemory_Projection(t *testing.T) {
	repo := repository.NewMemory(models.TourDescriptor)
	seedTours(t, repo)
	ctx := context.Background()

	rec, err := repo.FindByID(ctx, "t1", query.Projection{Include: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, resource.Record{"id": "t1", "name": "The Forest Hiker"}, rec)

	rec, err = repo.FindByID(ctx, "t1", query.Exclusion("createdAt", "guides"))
	require.NoError(t, err)
	assert.NotContains(t, rec, "createdAt")
	assert.Contains(t, rec, "price")
}

func TestMemory_UniqueAndMissing(t *testing.T) {
	repo := repository.NewMemory(models.TourDescriptor)
	seedTours(t, repo)
	ctx := context.Background()

	_, err := repo.Create(ctx, resource.Record{"id": "t9", "name": "The Sea Explorer"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = repo.UpdateByID(ctx, "t2", resource.Record{"name": "The Forest Hiker"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = repo.FindByID(ctx, "nope", query.Projection{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteByID(ctx, "nope"), apperr.ErrNotFound)
}

func TestMemory_UpdateRemovesNilFields(t *testing.T) {
	repo := repository.NewMemory(models.TourDescriptor)
	seedTours(t, repo)

	rec, err := repo.UpdateByID(context.Background(), "t1", resource.Record{"price": 10.0, "guides": nil})
	require.NoError(t, err)
	assert.Equal(t, 10.0, rec["price"])
	assert.NotContains(t, rec, "guides")
}

func TestMemory_ReturnedRecordsAreCopies(t *testing.T) {
	repo := repository.NewMemory(models.TourDescriptor)
	seedTours(t, repo)
	ctx := context.Background()

	rec, err := repo.FindByID(ctx, "t1", query.Projection{})
	require.NoError(t, err)
	rec["guides"].([]string)[0] = "mutated"

	again, err := repo.FindByID(ctx, "t1", query.Projection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, again["guides"])
}

func TestVisibility_HidesMarkedRecords(t *testing.T) {
	inner := repository.NewMemory(models.TourDescriptor)
	seedTours(t, inner)
	repo := repository.WithVisibility(models.TourDescriptor, inner)
	ctx := context.Background()

	recs, err := repo.Find(ctx, repository.FindQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t4"}, ids(recs))

	n, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	_, err = repo.FindByID(ctx, "t3", query.Projection{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = repo.UpdateByID(ctx, "t3", resource.Record{"price": 1.0})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteByID(ctx, "t3"), apperr.ErrNotFound)

	// A non-elevated caller asking for hidden records is ignored.
	guide := access.WithHiddenRecords(access.ContextWithCaller(ctx, access.Caller{ID: "g1", Role: models.RoleLeadGuide}))
	n, err = repo.Count(guide, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	admin := access.WithHiddenRecords(access.ContextWithCaller(ctx, access.Caller{ID: "a1", Role: models.RoleAdmin}))
	rec, err := repo.FindByID(admin, "t3", query.Projection{})
	require.NoError(t, err)
	assert.Equal(t, true, rec["secretTour"])
	n, err = repo.Count(admin, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestVisibility_SoftDeletedAccounts(t *testing.T) {
	inner := repository.NewMemory(models.AccountDescriptor)
	repo := repository.WithVisibility(models.AccountDescriptor, inner)
	ctx := context.Background()

	for _, rec := range []resource.Record{
		{"id": "u1", "email": "a@example.com", "active": true},
		{"id": "u2", "email": "b@example.com", "active": false},
		{"id": "u3", "email": "c@example.com"},
	} {
		_, err := inner.Create(ctx, rec)
		require.NoError(t, err)
	}

	recs, err := repo.Find(ctx, repository.FindQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, ids(recs))

	_, err = repo.FindOneAndUpdate(ctx, query.Filter{{Field: "email", Op: query.Eq, Value: "b@example.com"}}, resource.Record{"name": "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWithVisibility_NoRulesReturnsInner(t *testing.T) {
	d := resource.MustNew(resource.Descriptor{Name: "plain", Fields: []resource.Field{{Name: "a"}}})
	inner := repository.NewMemory(d)
	assert.Same(t, inner, repository.WithVisibility(d, inner))
}
