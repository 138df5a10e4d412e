// Package access carries the caller identity through a request and decides
// which fields and records that caller may touch.
package access

import (
	"context"

	"natours/api/internal/apperr"
	"natours/api/internal/models"
	"natours/api/internal/resource"
)

type Caller struct {
	ID   string
	Role models.Role
}

func (c Caller) Elevated() bool { return c.Role.Elevated() }

type ctxKey int

const (
	callerKey ctxKey = iota
	hiddenKey
)

func ContextWithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

// WithHiddenRecords asks for soft-deleted and hidden records to be included.
// The request is honoured only for elevated callers.
func WithHiddenRecords(ctx context.Context) context.Context {
	return context.WithValue(ctx, hiddenKey, true)
}

// SeesHidden reports whether visibility rules are lifted for ctx.
func SeesHidden(ctx context.Context) bool {
	asked, _ := ctx.Value(hiddenKey).(bool)
	if !asked {
		return false
	}
	c, ok := CallerFromContext(ctx)
	return ok && c.Elevated()
}

// WritableFields keeps the part of body the caller may change. Privilege
// fields outside the caller's reach are dropped without error; secret
// fields are rejected because they have a dedicated flow.
func WritableFields(d *resource.Descriptor, c Caller, body resource.Record) (resource.Record, error) {
	out := make(resource.Record, len(body))
	for k, v := range body {
		f, ok := d.Field(k)
		if !ok {
			if k == resource.IDField {
				continue
			}
			// Left for the validator to report.
			out[k] = v
			continue
		}
		if f.Secret {
			return nil, apperr.Validation(k, "cannot be changed here, use the password endpoints")
		}
		switch f.Mutability {
		case resource.OwnerWritable:
			out[k] = v
		case resource.AdminOnly:
			if c.Elevated() {
				out[k] = v
			}
		}
	}
	return out, nil
}

// CheckOwnership rejects updates by a non-elevated caller to a record owned
// by someone else. Descriptors without an owner field are gated by role at
// the route level.
func CheckOwnership(d *resource.Descriptor, c Caller, rec resource.Record) error {
	if d.OwnerField == "" || c.Elevated() {
		return nil
	}
	var owner string
	if d.OwnerField == resource.IDField {
		owner = rec.ID()
	} else {
		owner, _ = rec[d.OwnerField].(string)
	}
	if owner == "" || owner != c.ID {
		return apperr.ErrForbidden
	}
	return nil
}
