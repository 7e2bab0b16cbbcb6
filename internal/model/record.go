// internal/model/record.go
package model

import "sort"

// Record is one row of a remote collection keyed by column name.
type Record map[string]any

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the field is present, even with a nil value.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}
