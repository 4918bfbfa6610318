package cyberdb

type filterOp int

const (
	opEq filterOp = iota
	opNotEq
	opNotNull
	opIsNull
)

// Filter restricts a Request to records matching a field predicate.
// Supported predicates are equality, inequality and null checks, which is
// the full contract scanners rely on.
type Filter struct {
	field string
	op    filterOp
	value any
}

// Eq matches records whose field equals value.
func Eq(field string, value any) Filter {
	return Filter{field: field, op: opEq, value: value}
}

// NotEq matches records whose field is set and differs from value.
func NotEq(field string, value any) Filter {
	return Filter{field: field, op: opNotEq, value: value}
}

// NotNull matches records whose field is set to a non-null value.
func NotNull(field string) Filter {
	return Filter{field: field, op: opNotNull}
}

// IsNull matches records whose field is unset or null.
func IsNull(field string) Filter {
	return Filter{field: field, op: opIsNull}
}

func (f Filter) matches(r *Record) bool {
	v, set := r.fields[f.field]
	null := !set || v == nil
	switch f.op {
	case opEq:
		return !null && equalValues(v, f.value)
	case opNotEq:
		return !null && !equalValues(v, f.value)
	case opNotNull:
		return !null
	case opIsNull:
		return null
	default:
		return false
	}
}

// equalValues compares a stored value with a caller-supplied one,
// tolerating the int variants normalizeValue accepts.
func equalValues(stored, want any) bool {
	if n, ok := want.(int); ok {
		want = int64(n)
	}
	return stored == want
}
