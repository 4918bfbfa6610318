package cyberdb

import (
	"fmt"
	"time"

	kberrors "github.com/redopsio/cyberkb/pkg/errors"
)

// Fields is the set of field values handed to Feed. A key absent from the
// map leaves the stored value untouched; an explicit nil clears it.
type Fields map[string]any

// Details is the free-form JSON payload attached to controls and alerts.
// Scanners snapshot everything needed to reproduce the finding, so a
// details blob is self-describing without re-querying the store.
type Details map[string]any

// Record is one stored entity row.
type Record struct {
	id     string
	entity string
	fields Fields
}

// ID returns the store-assigned record identifier.
func (r *Record) ID() string { return r.id }

// Entity returns the entity name this record belongs to.
func (r *Record) Entity() string { return r.entity }

// Has reports whether the field is set to a non-null value.
func (r *Record) Has(field string) bool {
	v, ok := r.fields[field]
	return ok && v != nil
}

// Get returns the raw field value, or nil when unset.
func (r *Record) Get(field string) any {
	return r.fields[field]
}

// String returns the field as a string, or "" when unset.
func (r *Record) String(field string) string {
	if v, ok := r.fields[field].(string); ok {
		return v
	}
	return ""
}

// Int returns the field as an int64, or 0 when unset.
func (r *Record) Int(field string) int64 {
	if v, ok := r.fields[field].(int64); ok {
		return v
	}
	return 0
}

// Bool returns the field as a bool, or false when unset.
func (r *Record) Bool(field string) bool {
	if v, ok := r.fields[field].(bool); ok {
		return v
	}
	return false
}

// Time returns the field as a time.Time, or the zero time when unset.
func (r *Record) Time(field string) time.Time {
	if v, ok := r.fields[field].(time.Time); ok {
		return v
	}
	return time.Time{}
}

// Details returns the field as a Details map, or nil when unset.
func (r *Record) Details(field string) Details {
	if v, ok := r.fields[field].(Details); ok {
		return v
	}
	return nil
}

// normalizeValue validates v against the declared field type and converts
// it to the canonical in-store representation. nil passes through: it means
// "clear this field".
func normalizeValue(entity, field string, t FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case FieldString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case FieldInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		}
	case FieldBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case FieldTime:
		if ts, ok := v.(time.Time); ok {
			return ts, nil
		}
	case FieldJSON:
		switch d := v.(type) {
		case Details:
			return d, nil
		case map[string]any:
			return Details(d), nil
		}
	}
	return nil, kberrors.Newf(kberrors.KindInvalidInput, "cyberdb.Feed",
		"field %s.%s: expected %s, got %T", entity, field, t, v)
}

// naturalKey builds the upsert identity of a record from its key fields.
func naturalKey(schema EntitySchema, fields Fields) (string, error) {
	key := ""
	for _, k := range schema.Key {
		v, ok := fields[k]
		if !ok || v == nil {
			return "", kberrors.Newf(kberrors.KindInvalidInput, "cyberdb.Feed",
				"entity %s: missing key field %q", schema.Name, k)
		}
		key += fmt.Sprintf("%v\x1f", v)
	}
	return key, nil
}
