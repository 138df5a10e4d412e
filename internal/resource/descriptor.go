// Package resource holds the static, per-resource-type metadata that drives
// query translation, validation, write protection and response shaping.
package resource

import "fmt"

// Record is a stored document as it moves between the store and the core.
type Record map[string]any

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the record identifier, or "" when absent.
func (r Record) ID() string {
	id, _ := r[IDField].(string)
	return id
}

const (
	IDField     = "id"
	ActiveField = "active"
)

type FieldType int

const (
	String FieldType = iota
	Number
	Integer
	Bool
	Time
	StringList
	TimeList
	Object
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Number:
		return "number"
	case Integer:
		return "integer"
	case Bool:
		return "boolean"
	case Time:
		return "date"
	case StringList:
		return "string list"
	case TimeList:
		return "date list"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Mutability says who may change a field through a generic update.
type Mutability int

const (
	Immutable Mutability = iota
	OwnerWritable
	AdminOnly
)

// Field is one row of a descriptor's rule table.
type Field struct {
	Name       string
	Type       FieldType
	Mutability Mutability
	// Rules is a go-playground/validator tag evaluated against the coerced value.
	Rules    string
	Required bool
	Default  any
	Unique   bool
	Trim     bool
	Lower    bool
	// LessThan names a field whose value this one must stay strictly below.
	LessThan string

	// Secret fields never leave the core (credential material).
	Secret bool
	// Internal fields are excluded from responses unless explicitly selected.
	Internal bool

	Filterable bool
	Sortable   bool
}

// Include resolves reference ids stored in Field against another resource.
type Include struct {
	Field    string
	Resource string
	Exclude  []string
}

// Descriptor is the static description of one resource type.
type Descriptor struct {
	Name         string
	Fields       []Field
	DefaultSort  string
	DefaultLimit int
	MaxLimit     int

	// SoftDelete marks records inactive instead of removing them.
	SoftDelete bool
	// HiddenMarker names a boolean field; marked records are hidden from
	// non-elevated callers.
	HiddenMarker string
	// OwnerField names the field compared with the caller id on updates.
	OwnerField string

	Includes []Include
	// Normalize derives computed fields after validation.
	Normalize func(Record)
	// Present adds read-only derived fields to every sanitized record.
	// They are never stored.
	Present func(Record)

	index map[string]int
}

// New validates d and builds its lookup index. It is meant to run once at
// startup; a malformed descriptor is a programming error.
func New(d Descriptor) (*Descriptor, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("resource: descriptor name is required")
	}
	d.index = make(map[string]int, len(d.Fields))
	for i, f := range d.Fields {
		if f.Name == "" || f.Name == IDField {
			return nil, fmt.Errorf("resource %s: invalid field name %q", d.Name, f.Name)
		}
		if _, dup := d.index[f.Name]; dup {
			return nil, fmt.Errorf("resource %s: duplicate field %q", d.Name, f.Name)
		}
		d.index[f.Name] = i
	}
	if d.DefaultLimit <= 0 {
		d.DefaultLimit = 100
	}
	if d.MaxLimit <= 0 {
		d.MaxLimit = d.DefaultLimit
	}
	if d.DefaultLimit > d.MaxLimit {
		return nil, fmt.Errorf("resource %s: default limit %d exceeds max limit %d", d.Name, d.DefaultLimit, d.MaxLimit)
	}
	if d.DefaultSort != "" {
		if f, ok := d.Field(d.DefaultSort); !ok || !f.Sortable {
			return nil, fmt.Errorf("resource %s: default sort %q is not a sortable field", d.Name, d.DefaultSort)
		}
	}
	if d.SoftDelete {
		if f, ok := d.Field(ActiveField); !ok || f.Type != Bool {
			return nil, fmt.Errorf("resource %s: soft delete requires a boolean %q field", d.Name, ActiveField)
		}
	}
	if d.HiddenMarker != "" {
		if f, ok := d.Field(d.HiddenMarker); !ok || f.Type != Bool {
			return nil, fmt.Errorf("resource %s: hidden marker %q must be a boolean field", d.Name, d.HiddenMarker)
		}
	}
	for _, inc := range d.Includes {
		if _, ok := d.Field(inc.Field); !ok {
			return nil, fmt.Errorf("resource %s: include on unknown field %q", d.Name, inc.Field)
		}
	}
	for _, f := range d.Fields {
		if f.LessThan == "" {
			continue
		}
		if _, ok := d.Field(f.LessThan); !ok {
			return nil, fmt.Errorf("resource %s: field %q compares with unknown field %q", d.Name, f.Name, f.LessThan)
		}
	}
	return &d, nil
}

// MustNew is New for package-level descriptor tables.
func MustNew(d Descriptor) *Descriptor {
	desc, err := New(d)
	if err != nil {
		panic(err)
	}
	return desc
}

// Field looks a field up by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

// Readable reports whether name may appear in a response.
func (d *Descriptor) Readable(name string) bool {
	if name == IDField {
		return true
	}
	f, ok := d.Field(name)
	return ok && !f.Secret
}

// SecretFields lists credential fields.
func (d *Descriptor) SecretFields() []string {
	return d.collect(func(f Field) bool { return f.Secret })
}

// HiddenByDefault lists fields removed when no explicit selection is made.
func (d *Descriptor) HiddenByDefault() []string {
	return d.collect(func(f Field) bool { return f.Secret || f.Internal })
}

// UniqueFields lists fields carrying a uniqueness constraint.
func (d *Descriptor) UniqueFields() []string {
	return d.collect(func(f Field) bool { return f.Unique })
}

func (d *Descriptor) collect(pred func(Field) bool) []string {
	var out []string
	for _, f := range d.Fields {
		if pred(f) {
			out = append(out, f.Name)
		}
	}
	return out
}

// Sanitize strips secret fields, plus internal fields unless they were
// explicitly selected.
func (d *Descriptor) Sanitize(rec Record, selected ...string) Record {
	if rec == nil {
		return nil
	}
	keep := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		keep[s] = struct{}{}
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		if k == IDField {
			out[k] = v
			continue
		}
		f, ok := d.Field(k)
		if !ok || f.Secret {
			continue
		}
		if f.Internal {
			if _, ok := keep[k]; !ok {
				continue
			}
		}
		out[k] = v
	}
	if d.Present != nil {
		d.Present(out)
	}
	return out
}

// Restore converts values read back from a store into the canonical Go
// types Coerce produces. Values that do not fit are left untouched.
func (d *Descriptor) Restore(rec Record) Record {
	for k, v := range rec {
		f, ok := d.Field(k)
		if !ok || v == nil || f.Type == Object {
			continue
		}
		if c, err := Coerce(f, v); err == nil {
			rec[k] = c
		}
	}
	return rec
}
