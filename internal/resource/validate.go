package resource

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/go-playground/validator/v10"

	"natours/api/internal/apperr"
)

type Mode int

const (
	Create Mode = iota
	Update
)

var validate = validator.New()

// Validate coerces body against the descriptor's rule table and returns the
// typed record to persist. current is the stored state for updates and is
// used for cross-field rules; it may be nil.
func (d *Descriptor) Validate(body Record, current Record, mode Mode) (Record, error) {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Record, len(body))
	for _, k := range keys {
		f, ok := d.Field(k)
		if !ok {
			return nil, apperr.Validation(k, "unknown field")
		}
		v, err := Coerce(f, body[k])
		if err != nil {
			return nil, apperr.Validation(k, "must be a %s", f.Type)
		}
		if isEmpty(v) {
			if f.Required {
				return nil, apperr.Validation(k, "is required")
			}
			out[k] = nil
			continue
		}
		if f.Rules != "" {
			if err := validate.Var(v, f.Rules); err != nil {
				return nil, apperr.Validation(k, "%s", ruleMessage(err))
			}
		}
		out[k] = v
	}

	if mode == Create {
		for _, f := range d.Fields {
			if v, ok := out[f.Name]; ok && !isEmpty(v) {
				continue
			}
			if f.Default != nil {
				out[f.Name] = defaultValue(f.Default)
				continue
			}
			if f.Required {
				return nil, apperr.Validation(f.Name, "is required")
			}
		}
	}

	for _, f := range d.Fields {
		if f.LessThan == "" {
			continue
		}
		_, touched := out[f.Name]
		_, otherTouched := out[f.LessThan]
		if !touched && !otherTouched {
			continue
		}
		a, aok := numeric(pick(out, current, f.Name))
		b, bok := numeric(pick(out, current, f.LessThan))
		if aok && bok && a >= b {
			return nil, apperr.Validation(f.Name, "must be below %s", f.LessThan)
		}
	}
	return out, nil
}

func pick(primary, fallback Record, key string) any {
	if v, ok := primary[key]; ok {
		return v
	}
	if fallback != nil {
		return fallback[key]
	}
	return nil
}

func numeric(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, err := toFloat(v)
	return f, err == nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func defaultValue(v any) any {
	if fn, ok := v.(func() any); ok {
		return fn()
	}
	return v
}

func ruleMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must have at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must have at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte", "lte", "gt", "lt":
		return fmt.Sprintf("must satisfy %s %s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
