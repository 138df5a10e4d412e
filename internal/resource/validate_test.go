package resource_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natours/api/internal/apperr"
	"natours/api/internal/resource"
)

var testDescriptor = resource.MustNew(resource.Descriptor{
	Name: "things",
	Fields: []resource.Field{
		{Name: "title", Type: resource.String, Required: true, Trim: true, Rules: "min=3,max=10"},
		{Name: "kind", Type: resource.String, Lower: true, Default: "plain", Rules: "oneof=plain fancy"},
		{Name: "price", Type: resource.Number, Required: true, Rules: "gte=0"},
		{Name: "discount", Type: resource.Number, LessThan: "price"},
		{Name: "count", Type: resource.Integer},
		{Name: "tags", Type: resource.StringList},
		{Name: "when", Type: resource.Time},
		{Name: "active", Type: resource.Bool, Default: true},
	},
	SoftDelete: true,
})

func TestValidate_CreateAppliesDefaults(t *testing.T) {
	out, err := testDescriptor.Validate(resource.Record{
		"title": "  Boat  ",
		"price": "12.5",
		"count": 3.0,
		"tags":  []any{"a", "b"},
		"when":  "2024-03-01",
	}, nil, resource.Create)
	require.NoError(t, err)

	assert.Equal(t, "Boat", out["title"])
	assert.Equal(t, 12.5, out["price"])
	assert.Equal(t, int64(3), out["count"])
	assert.Equal(t, []string{"a", "b"}, out["tags"])
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), out["when"])
	assert.Equal(t, "plain", out["kind"])
	assert.Equal(t, true, out["active"])
}

func TestValidate_Failures(t *testing.T) {
	testCases := []struct {
		name  string
		body  resource.Record
		field string
	}{
		{name: "missing required", body: resource.Record{"price": 1.0}, field: "title"},
		{name: "too short", body: resource.Record{"title": "ab", "price": 1.0}, field: "title"},
		{name: "wrong type", body: resource.Record{"title": "Boat", "price": "free"}, field: "price"},
		{name: "operator document", body: resource.Record{"title": map[string]any{"$gt": ""}, "price": 1.0}, field: "title"},
		{name: "not in set", body: resource.Record{"title": "Boat", "price": 1.0, "kind": "weird"}, field: "kind"},
		{name: "fractional integer", body: resource.Record{"title": "Boat", "price": 1.0, "count": 1.5}, field: "count"},
		{name: "integer above int64", body: resource.Record{"title": "Boat", "price": 1.0, "count": 1e300}, field: "count"},
		{name: "integer below int64", body: resource.Record{"title": "Boat", "price": 1.0, "count": "-1e19"}, field: "count"},
		{name: "unknown field", body: resource.Record{"title": "Boat", "price": 1.0, "color": "red"}, field: "color"},
		{name: "cross field", body: resource.Record{"title": "Boat", "price": 10.0, "discount": 10.0}, field: "discount"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := testDescriptor.Validate(tc.body, nil, resource.Create)
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestCoerce_IntegerBounds(t *testing.T) {
	field := resource.Field{Name: "count", Type: resource.Integer}

	v, err := resource.Coerce(field, -9.223372036854775808e18)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v)

	_, err = resource.Coerce(field, 9.223372036854775808e18)
	assert.Error(t, err)
}

func TestValidate_UpdateChecksAgainstStoredState(t *testing.T) {
	current := resource.Record{"title": "Boat", "price": 100.0}

	_, err := testDescriptor.Validate(resource.Record{"discount": 150.0}, current, resource.Update)
	assert.True(t, apperr.IsValidation(err))

	out, err := testDescriptor.Validate(resource.Record{"discount": 50.0}, current, resource.Update)
	require.NoError(t, err)
	assert.Equal(t, resource.Record{"discount": 50.0}, out)
}

func TestValidate_UpdateDoesNotApplyDefaults(t *testing.T) {
	out, err := testDescriptor.Validate(resource.Record{"price": 3}, nil, resource.Update)
	require.NoError(t, err)
	assert.Equal(t, resource.Record{"price": 3.0}, out)
}

func TestNew_RejectsMalformedDescriptors(t *testing.T) {
	testCases := []struct {
		name string
		desc resource.Descriptor
	}{
		{name: "no name", desc: resource.Descriptor{}},
		{name: "id field", desc: resource.Descriptor{Name: "x", Fields: []resource.Field{{Name: "id"}}}},
		{name: "duplicate", desc: resource.Descriptor{Name: "x", Fields: []resource.Field{{Name: "a"}, {Name: "a"}}}},
		{name: "soft delete without active", desc: resource.Descriptor{Name: "x", SoftDelete: true}},
		{name: "unsortable default", desc: resource.Descriptor{Name: "x", DefaultSort: "a", Fields: []resource.Field{{Name: "a"}}}},
		{name: "limits", desc: resource.Descriptor{Name: "x", DefaultLimit: 50, MaxLimit: 10}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resource.New(tc.desc)
			assert.Error(t, err)
		})
	}
}

func TestSanitize(t *testing.T) {
	d := resource.MustNew(resource.Descriptor{
		Name: "accounts",
		Fields: []resource.Field{
			{Name: "name", Type: resource.String},
			{Name: "password", Type: resource.String, Secret: true},
			{Name: "changedAt", Type: resource.Time, Internal: true},
		},
	})
	rec := resource.Record{"id": "1", "name": "n", "password": "h", "changedAt": time.Now(), "stray": 1}

	assert.Equal(t, resource.Record{"id": "1", "name": "n"}, d.Sanitize(rec))

	selected := d.Sanitize(rec, "changedAt", "password")
	assert.Contains(t, selected, "changedAt")
	assert.NotContains(t, selected, "password")
	assert.Equal(t, []string{"password", "changedAt"}, d.HiddenByDefault())
}

func TestRestore(t *testing.T) {
	rec := testDescriptor.Restore(resource.Record{
		"count": 4.0,
		"tags":  []any{"x"},
		"when":  "2024-03-01T10:00:00Z",
		"title": "Boat",
	})
	assert.Equal(t, int64(4), rec["count"])
	assert.Equal(t, []string{"x"}, rec["tags"])
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rec["when"])
}
