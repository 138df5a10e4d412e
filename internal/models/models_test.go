package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natours/api/internal/models"
	"natours/api/internal/resource"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "the-forest-hiker", models.Slugify("The Forest Hiker"))
	assert.Equal(t, "sea-explorer-2", models.Slugify("  Sea   Explorer #2! "))
}

func TestTourNormalize(t *testing.T) {
	rec := resource.Record{"name": "The Park Camper", "ratingsAverage": 4.6666}
	models.TourDescriptor.Normalize(rec)
	assert.Equal(t, "the-park-camper", rec["slug"])
	assert.Equal(t, 4.7, rec["ratingsAverage"])
}

func TestTourDurationWeeks(t *testing.T) {
	out := models.TourDescriptor.Sanitize(resource.Record{"id": "t1", "duration": 14.0, "secretTour": true})
	assert.Equal(t, 2.0, out["durationWeeks"])

	out = models.TourDescriptor.Sanitize(resource.Record{"id": "t1", "duration": 5.0})
	assert.InDelta(t, 0.714, out["durationWeeks"], 0.001)

	// Projections without duration get no derived field.
	out = models.TourDescriptor.Sanitize(resource.Record{"id": "t1", "name": "The Forest Hiker"})
	assert.NotContains(t, out, "durationWeeks")
}

func TestDecodeAccount(t *testing.T) {
	changed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	acc, err := models.DecodeAccount(resource.Record{
		"id":                "u1",
		"name":              "Jonas",
		"email":             "jonas@example.com",
		"role":              "lead-guide",
		"password":          "$2a$12$hash",
		"passwordChangedAt": changed,
		"active":            false,
	})
	require.NoError(t, err)

	assert.Equal(t, "u1", acc.ID)
	assert.Equal(t, models.RoleLeadGuide, acc.Role)
	assert.Equal(t, "$2a$12$hash", acc.PasswordHash)
	require.NotNil(t, acc.PasswordChangedAt)
	assert.True(t, changed.Equal(*acc.PasswordChangedAt))
	assert.False(t, acc.IsActive())
	assert.Nil(t, acc.PasswordResetExpires)
}

func TestRole(t *testing.T) {
	assert.True(t, models.RoleAdmin.Elevated())
	assert.False(t, models.RoleLeadGuide.Elevated())
	assert.True(t, models.RoleGuide.Valid())
	assert.False(t, models.Role("root").Valid())
}
