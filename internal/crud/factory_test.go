package crud_test

import (
	"context"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natours/api/internal/access"
	"natours/api/internal/apperr"
	"natours/api/internal/crud"
	"natours/api/internal/models"
	"natours/api/internal/repository"
	"natours/api/internal/resource"
)

type fixture struct {
	tours *crud.Factory
	users *crud.Factory
	store *repository.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	userStore := repository.NewMemory(models.AccountDescriptor)
	users := repository.WithVisibility(models.AccountDescriptor, userStore)
	tours := repository.WithVisibility(models.TourDescriptor, repository.NewMemory(models.TourDescriptor))

	n := 0
	seq := func() string {
		n++
		return "id" + strconv.Itoa(n)
	}
	return fixture{
		tours: crud.New(models.TourDescriptor, tours,
			crud.WithRelated(models.AccountDescriptor, users), crud.WithIDGenerator(seq)),
		users: crud.New(models.AccountDescriptor, users, crud.WithIDGenerator(seq)),
		store: userStore,
	}
}

func as(role models.Role, id string) context.Context {
	return access.ContextWithCaller(context.Background(), access.Caller{ID: id, Role: role})
}

func tourBody(name string, price float64) resource.Record {
	return resource.Record{
		"name":         name,
		"duration":     5,
		"maxGroupSize": 25,
		"difficulty":   "easy",
		"price":        price,
		"summary":      "Breathtaking hike",
		"imageCover":   "tour-1-cover.jpg",
	}
}

func TestFactory_CreateNormalizesAndSanitizes(t *testing.T) {
	f := newFixture(t)

	rec, err := f.tours.Create(as(models.RoleLeadGuide, "lg"), tourBody("The Forest Hiker", 397))
	require.NoError(t, err)

	assert.Equal(t, "id1", rec.ID())
	assert.Equal(t, "the-forest-hiker", rec["slug"])
	assert.Equal(t, 4.5, rec["ratingsAverage"])
	assert.NotContains(t, rec, "createdAt")
	assert.Equal(t, false, rec["secretTour"])
}

func TestFactory_CreateDropsPrivilegedFieldsForNonAdmins(t *testing.T) {
	f := newFixture(t)

	body := tourBody("The Snow Adventurer", 997)
	body["secretTour"] = true
	rec, err := f.tours.Create(as(models.RoleLeadGuide, "lg"), body)
	require.NoError(t, err)
	assert.Equal(t, false, rec["secretTour"])

	body = tourBody("The Secret Explorer", 997)
	body["secretTour"] = true
	rec, err = f.tours.Create(as(models.RoleAdmin, "a"), body)
	require.NoError(t, err)
	assert.Equal(t, true, rec["secretTour"])
}

func TestFactory_CreateValidation(t *testing.T) {
	f := newFixture(t)

	body := tourBody("Short", 100)
	_, err := f.tours.Create(as(models.RoleAdmin, "a"), body)
	assert.True(t, apperr.IsValidation(err))

	body = tourBody("The Forest Hiker", 100)
	body["priceDiscount"] = 150
	_, err = f.tours.Create(as(models.RoleAdmin, "a"), body)
	assert.True(t, apperr.IsValidation(err))

	_, err = f.tours.Create(as(models.RoleAdmin, "a"), tourBody("The Forest Hiker", 100))
	require.NoError(t, err)
	_, err = f.tours.Create(as(models.RoleAdmin, "a"), tourBody("The Forest Hiker", 200))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestFactory_ListPagesAndCounts(t *testing.T) {
	f := newFixture(t)
	admin := as(models.RoleAdmin, "a")
	for i, price := range []float64{397, 497, 997, 1197, 1497, 2997} {
		_, err := f.tours.Create(admin, tourBody("The Grand Tour No "+strconv.Itoa(i), price))
		require.NoError(t, err)
	}

	page, err := f.tours.List(context.Background(), url.Values{
		"price[gte]": {"500"},
		"sort":       {"-price"},
		"limit":      {"2"},
		"page":       {"2"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 1197.0, page.Items[0]["price"])
	assert.Equal(t, 997.0, page.Items[1]["price"])

	_, err = f.tours.List(context.Background(), url.Values{"color": {"red"}})
	assert.True(t, apperr.IsValidation(err))
}

func TestFactory_ReadOneResolvesGuides(t *testing.T) {
	f := newFixture(t)
	admin := as(models.RoleAdmin, "a")

	for _, rec := range []resource.Record{
		{"id": "g1", "name": "Guide One", "email": "g1@example.com", "role": "guide", "password": "hash"},
		{"id": "g2", "name": "Guide Two", "email": "g2@example.com", "role": "lead-guide", "active": false},
	} {
		_, err := f.store.Create(context.Background(), rec)
		require.NoError(t, err)
	}

	body := tourBody("The Forest Hiker", 397)
	body["guides"] = []any{"g2", "g1", "missing"}
	created, err := f.tours.Create(admin, body)
	require.NoError(t, err)

	rec, err := f.tours.ReadOne(context.Background(), created.ID())
	require.NoError(t, err)

	guides, ok := rec["guides"].([]resource.Record)
	require.True(t, ok)
	// The inactive guide and the dangling id are skipped.
	require.Len(t, guides, 1)
	assert.Equal(t, "g1", guides[0].ID())
	assert.NotContains(t, guides[0], "password")
	assert.NotContains(t, guides[0], "passwordChangedAt")
}

func TestFactory_UpdateOwnership(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(context.Background(), resource.Record{"id": "u1", "name": "Jonas", "email": "j@example.com", "role": "user"})
	require.NoError(t, err)

	_, err = f.users.Update(as(models.RoleGuide, "u2"), "u1", resource.Record{"name": "Hacker"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	rec, err := f.users.Update(as(models.RoleUser, "u1"), "u1", resource.Record{"name": "Jonas S", "role": "admin"})
	require.NoError(t, err)
	assert.Equal(t, "Jonas S", rec["name"])
	assert.Equal(t, "user", rec["role"])

	rec, err = f.users.Update(as(models.RoleAdmin, "a"), "u1", resource.Record{"role": "guide"})
	require.NoError(t, err)
	assert.Equal(t, "guide", rec["role"])

	_, err = f.users.Update(as(models.RoleUser, "u1"), "u1", resource.Record{"password": "newpass123"})
	assert.True(t, apperr.IsValidation(err))
}

func TestFactory_UpdateWithNothingWritableReturnsCurrent(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(context.Background(), resource.Record{"id": "u1", "name": "Jonas", "email": "j@example.com"})
	require.NoError(t, err)

	rec, err := f.users.Update(as(models.RoleUser, "u1"), "u1", resource.Record{"role": "admin"})
	require.NoError(t, err)
	assert.Equal(t, "Jonas", rec["name"])
	assert.NotContains(t, rec, "role")
}

func TestFactory_SoftDeleteHidesRecord(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(context.Background(), resource.Record{"id": "u1", "name": "Jonas", "email": "j@example.com"})
	require.NoError(t, err)

	require.NoError(t, f.users.DeleteOne(as(models.RoleUser, "u1"), "u1"))

	_, err = f.users.ReadOne(context.Background(), "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	page, err := f.users.List(context.Background(), url.Values{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	// The record still exists and elevated callers can ask for it.
	admin := access.WithHiddenRecords(as(models.RoleAdmin, "a"))
	rec, err := f.users.ReadOne(admin, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Jonas", rec["name"])

	assert.ErrorIs(t, f.users.DeleteOne(as(models.RoleUser, "u1"), "u1"), apperr.ErrNotFound)
}

func TestFactory_HardDeleteForTours(t *testing.T) {
	f := newFixture(t)
	admin := as(models.RoleAdmin, "a")
	created, err := f.tours.Create(admin, tourBody("The Forest Hiker", 397))
	require.NoError(t, err)

	require.NoError(t, f.tours.DeleteOne(admin, created.ID()))
	_, err = f.tours.ReadOne(access.WithHiddenRecords(admin), created.ID())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
