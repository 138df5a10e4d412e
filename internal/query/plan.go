// Package query turns raw request parameters into a validated query plan.
// It performs no I/O and holds no state.
package query

type Operator string

const (
	Eq  Operator = "eq"
	Gt  Operator = "gt"
	Gte Operator = "gte"
	Lt  Operator = "lt"
	Lte Operator = "lte"
	// Ne is never produced from request parameters; visibility rules use it.
	Ne Operator = "ne"
)

// rangeOperators are the suffixes accepted in "field[op]=value" parameters.
var rangeOperators = map[string]Operator{
	"gt":  Gt,
	"gte": Gte,
	"lt":  Lt,
	"lte": Lte,
}

// Valid reports whether op belongs to the fixed operator set.
func (op Operator) Valid() bool {
	switch op {
	case Eq, Gt, Gte, Lt, Lte, Ne:
		return true
	}
	return false
}

// Condition constrains one field. Value is a coerced scalar, or a []any
// for an Eq condition matching any of several values.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Filter is a conjunction of conditions.
type Filter []Condition

// And returns a new filter holding f followed by extra.
func (f Filter) And(extra ...Condition) Filter {
	out := make(Filter, 0, len(f)+len(extra))
	out = append(out, f...)
	return append(out, extra...)
}

type SortField struct {
	Field string
	Desc  bool
}

// Projection selects fields. Include and Exclude are mutually exclusive;
// both empty means every stored field.
type Projection struct {
	Include []string
	Exclude []string
}

func (p Projection) IsInclude() bool { return len(p.Include) > 0 }

// Exclusion builds an exclusion projection.
func Exclusion(fields ...string) Projection {
	return Projection{Exclude: fields}
}

type Page struct {
	Page  int
	Limit int
	Skip  int
}

// Plan is the translated form of one list request.
type Plan struct {
	Filter     Filter
	Sort       []SortField
	Projection Projection
	Page       Page
}
