package query

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"natours/api/internal/apperr"
	"natours/api/internal/resource"
)

const (
	paramPage   = "page"
	paramSort   = "sort"
	paramLimit  = "limit"
	paramFields = "fields"
)

var reserved = map[string]struct{}{
	paramPage:   {},
	paramSort:   {},
	paramLimit:  {},
	paramFields: {},
}

// maxPage keeps the computed skip far from integer overflow.
const maxPage = math.MaxInt32

// filterKey accepts "field" and "field[suffix]"; deeper nesting never matches.
var filterKey = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)(?:\[([A-Za-z0-9_]*)\])?$`)

// Translate builds a plan from raw query parameters.
//
// Malformed values degrade to defaults (a filter value that cannot be
// coerced is dropped, a bad page or limit falls back to the descriptor
// default). Unknown filter or sort fields fail with a validation error.
func Translate(params url.Values, d *resource.Descriptor) (Plan, error) {
	filter, err := parseFilter(params, d)
	if err != nil {
		return Plan{}, err
	}
	sortBy, err := parseSort(last(params, paramSort), d)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Filter:     filter,
		Sort:       sortBy,
		Projection: parseProjection(last(params, paramFields), d),
		Page:       parsePage(last(params, paramPage), last(params, paramLimit), d),
	}, nil
}

func parseFilter(params url.Values, d *resource.Descriptor) (Filter, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if _, skip := reserved[k]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var filter Filter
	for _, key := range keys {
		m := filterKey.FindStringSubmatch(key)
		if m == nil {
			return nil, apperr.Validation(key, "is not a filterable field")
		}
		name, suffix := m[1], m[2]
		field, ok := d.Field(name)
		if !ok || !field.Filterable || field.Secret {
			return nil, apperr.Validation(name, "is not a filterable field")
		}
		values := params[key]
		if len(values) == 0 {
			continue
		}

		op, known := rangeOperators[suffix]
		switch {
		case suffix == "":
			if cond, ok := equality(field, values); ok {
				filter = append(filter, cond)
			}
		case known:
			v, ok := coerceOperand(field, values[len(values)-1])
			if ok {
				filter = append(filter, Condition{Field: name, Op: op, Value: v})
			}
		default:
			// Unrecognized suffix: equality on the raw literal, uncoerced.
			raw := values[len(values)-1]
			if !operatorLike(raw) {
				filter = append(filter, Condition{Field: name, Op: Eq, Value: raw})
			}
		}
	}
	return filter, nil
}

func equality(field resource.Field, values []string) (Condition, bool) {
	var operands []any
	for _, raw := range values {
		if v, ok := coerceOperand(field, raw); ok {
			operands = append(operands, v)
		}
	}
	switch len(operands) {
	case 0:
		return Condition{}, false
	case 1:
		return Condition{Field: field.Name, Op: Eq, Value: operands[0]}, true
	default:
		return Condition{Field: field.Name, Op: Eq, Value: operands}, true
	}
}

// coerceOperand converts a single query value to the field's scalar type.
// List fields are compared element-wise, so their element type is used.
func coerceOperand(field resource.Field, raw string) (any, bool) {
	if operatorLike(raw) {
		return nil, false
	}
	scalar := field
	switch field.Type {
	case resource.StringList:
		scalar.Type = resource.String
	case resource.TimeList:
		scalar.Type = resource.Time
	case resource.Object:
		return nil, false
	}
	v, err := resource.Coerce(scalar, raw)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

func operatorLike(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "$")
}

func parseSort(raw string, d *resource.Descriptor) ([]SortField, error) {
	if strings.TrimSpace(raw) == "" {
		if d.DefaultSort == "" {
			return nil, nil
		}
		return []SortField{{Field: d.DefaultSort, Desc: true}}, nil
	}
	seen := make(map[string]struct{})
	var out []SortField
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		field, ok := d.Field(name)
		if !ok || !field.Sortable || field.Secret {
			return nil, apperr.Validation(name, "is not a sortable field")
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, SortField{Field: name, Desc: desc})
	}
	if len(out) == 0 && d.DefaultSort != "" {
		out = []SortField{{Field: d.DefaultSort, Desc: true}}
	}
	return out, nil
}

func parseProjection(raw string, d *resource.Descriptor) Projection {
	var include []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" || name == resource.IDField {
			continue
		}
		if !d.Readable(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		include = append(include, name)
	}
	if len(include) == 0 {
		return Exclusion(d.HiddenByDefault()...)
	}
	return Projection{Include: include}
}

func parsePage(rawPage, rawLimit string, d *resource.Descriptor) Page {
	page := positiveInt(rawPage, 1)
	if page > maxPage {
		page = maxPage
	}
	limit := positiveInt(rawLimit, d.DefaultLimit)
	if limit > d.MaxLimit {
		limit = d.MaxLimit
	}
	return Page{Page: page, Limit: limit, Skip: (page - 1) * limit}
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func last(params url.Values, key string) string {
	values := params[key]
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}
