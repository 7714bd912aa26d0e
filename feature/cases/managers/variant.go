package managers

import "fmt"

// VariantKey identifies one genomic variant across cases.
type VariantKey struct {
	Chromosome string
	Position   int
	Reference  string
	Alternate  string
	Assembly   string
}

func (k VariantKey) String() string {
	return fmt.Sprintf("%s:%d:%s>%s@%s", k.Chromosome, k.Position, k.Reference, k.Alternate, k.Assembly)
}

// VariantManager deduplicates variant attribute sets across the cases of a
// run: all cases mentioning the same variant share one canonical value.
type VariantManager struct {
	memo syncMap[VariantKey, VariantKey]
}

// NewVariantManager creates an empty manager.
func NewVariantManager() *VariantManager {
	return &VariantManager{memo: newSyncMap[VariantKey, VariantKey]()}
}

// Canonical registers the key if unseen and returns the canonical copy
// shared by every case in the run.
func (m *VariantManager) Canonical(key VariantKey) VariantKey {
	return m.memo.putIfAbsent(key, key)
}

// Len reports the number of distinct variants seen this run.
func (m *VariantManager) Len() int {
	return len(m.memo.snapshot())
}
