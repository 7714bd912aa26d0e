package reconcile

import (
	"fmt"

	"case-reconciler/core/hashing"
)

// Index is a hash -> persisted-row map over all existing rows of one entity
// type, built once per run. Construction fails if two rows collide on
// identity fields, which indicates an upstream uniqueness violation.
type Index struct {
	typ      EntityType
	identity IdentityFunc
	rows     map[string]any
}

// BuildIndex hashes the identity fields of every persisted row and returns
// the populated index.
func BuildIndex(typ EntityType, identity IdentityFunc, rows []any) (*Index, error) {
	ix := &Index{
		typ:      typ,
		identity: identity,
		rows:     make(map[string]any, len(rows)),
	}
	for _, row := range rows {
		key := hashing.SumFields(identity(row))
		if _, dup := ix.rows[key]; dup {
			return nil, fmt.Errorf("%s: %w", typ, ErrAmbiguousIdentity)
		}
		ix.rows[key] = row
	}
	return ix, nil
}

// Len reports the number of indexed rows.
func (ix *Index) Len() int { return len(ix.rows) }

// Lookup probes the index with a candidate's identity. A hash hit is only
// accepted after verifying the stored row's identity fields actually equal
// the candidate's; the hash is an index, not a proof of identity.
func (ix *Index) Lookup(candidate any) (any, bool, error) {
	fields := ix.identity(candidate)
	row, ok := ix.rows[hashing.SumFields(fields)]
	if !ok {
		return nil, false, nil
	}
	stored := ix.identity(row)
	if len(stored) != len(fields) {
		return nil, false, fmt.Errorf("%s: hash hit with mismatched identity fields: %w", ix.typ, ErrAmbiguousIdentity)
	}
	for k, v := range fields {
		if stored[k] != v {
			return nil, false, fmt.Errorf("%s: hash hit with mismatched identity fields: %w", ix.typ, ErrAmbiguousIdentity)
		}
	}
	return row, true, nil
}
