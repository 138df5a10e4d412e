package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natours/api/internal/access"
	"natours/api/internal/apperr"
	"natours/api/internal/models"
	"natours/api/internal/resource"
)

func TestWritableFields(t *testing.T) {
	body := resource.Record{
		"id":        "forged",
		"name":      "Jonas",
		"role":      "admin",
		"active":    false,
		"createdAt": "2020-01-01",
		"color":     "red",
	}

	testCases := []struct {
		name     string
		caller   access.Caller
		expected resource.Record
	}{
		{
			name:     "regular user loses privilege fields",
			caller:   access.Caller{ID: "u1", Role: models.RoleUser},
			expected: resource.Record{"name": "Jonas", "color": "red"},
		},
		{
			name:     "admin keeps admin-only fields",
			caller:   access.Caller{ID: "a1", Role: models.RoleAdmin},
			expected: resource.Record{"name": "Jonas", "role": "admin", "active": false, "color": "red"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := access.WritableFields(models.AccountDescriptor, tc.caller, body)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestWritableFields_RejectsSecrets(t *testing.T) {
	_, err := access.WritableFields(models.AccountDescriptor,
		access.Caller{ID: "a1", Role: models.RoleAdmin},
		resource.Record{"password": "newpass123"})
	assert.True(t, apperr.IsValidation(err))
}

func TestCheckOwnership(t *testing.T) {
	rec := resource.Record{"id": "u1"}

	assert.NoError(t, access.CheckOwnership(models.AccountDescriptor, access.Caller{ID: "u1", Role: models.RoleUser}, rec))
	assert.NoError(t, access.CheckOwnership(models.AccountDescriptor, access.Caller{ID: "a1", Role: models.RoleAdmin}, rec))
	assert.ErrorIs(t, access.CheckOwnership(models.AccountDescriptor, access.Caller{ID: "u2", Role: models.RoleGuide}, rec), apperr.ErrForbidden)
	assert.NoError(t, access.CheckOwnership(models.TourDescriptor, access.Caller{ID: "u2"}, resource.Record{"id": "t1"}))
}

func TestSeesHidden(t *testing.T) {
	ctx := context.Background()
	assert.False(t, access.SeesHidden(access.WithHiddenRecords(ctx)))

	user := access.ContextWithCaller(ctx, access.Caller{ID: "u1", Role: models.RoleLeadGuide})
	assert.False(t, access.SeesHidden(access.WithHiddenRecords(user)))

	admin := access.ContextWithCaller(ctx, access.Caller{ID: "a1", Role: models.RoleAdmin})
	assert.False(t, access.SeesHidden(admin))
	assert.True(t, access.SeesHidden(access.WithHiddenRecords(admin)))
}
