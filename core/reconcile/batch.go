package reconcile

import "case-reconciler/core/hashing"

// Batch wraps an Index for one processing pass over all cases of a run.
// It deduplicates new candidates across cases: the first candidate with a
// given identity registers a pending row, later identical candidates resolve
// to that same pending row, so the bulk insert writes each identity once.
type Batch struct {
	index *Index
	seen  map[string]*Resolved
	order []*Resolved
}

// NewBatch starts a batch pass over the given index.
func NewBatch(index *Index) *Batch {
	return &Batch{
		index: index,
		seen:  make(map[string]*Resolved),
	}
}

// Resolve classifies a candidate as existing, already emitted in this batch,
// or new. The returned Resolved is shared between all candidates with equal
// identity so that a backfilled primary key is visible to every case that
// referenced the entity.
func (b *Batch) Resolve(candidate any) (*Resolved, error) {
	row, found, err := b.index.Lookup(candidate)
	if err != nil {
		return nil, err
	}
	if found {
		return &Resolved{Row: row, Existing: true}, nil
	}

	key := hashing.SumFields(b.index.identity(candidate))
	if prior, ok := b.seen[key]; ok {
		return prior, nil
	}
	res := &Resolved{Row: candidate, Existing: false}
	b.seen[key] = res
	b.order = append(b.order, res)
	return res, nil
}

// ResolveAll resolves a candidate slice in order, returning the parallel
// slice of resolutions.
func (b *Batch) ResolveAll(candidates []any) ([]*Resolved, error) {
	out := make([]*Resolved, 0, len(candidates))
	for _, c := range candidates {
		res, err := b.Resolve(c)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// NewRows returns the deduplicated pending rows in first-seen order, ready
// for one bulk insert.
func (b *Batch) NewRows() []any {
	rows := make([]any, 0, len(b.order))
	for _, res := range b.order {
		rows = append(rows, res.Row)
	}
	return rows
}
