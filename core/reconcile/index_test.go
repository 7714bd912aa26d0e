package reconcile

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGene struct {
	ID     uint
	HGNCID string
	Symbol string
}

func geneIdentity(row any) map[string]string {
	g := row.(*fakeGene)
	return map[string]string{"hgnc_id": g.HGNCID}
}

type fakeVariant struct {
	ID         uint
	Chromosome string
	Position   int
}

func variantIdentity(row any) map[string]string {
	v := row.(*fakeVariant)
	return map[string]string{
		"chromosome": v.Chromosome,
		"position":   strconv.Itoa(v.Position),
	}
}

func TestBuildIndex_AmbiguousStoreIsFatal(t *testing.T) {
	rows := []any{
		&fakeGene{ID: 1, HGNCID: "1097"},
		&fakeGene{ID: 2, HGNCID: "1097"},
	}
	_, err := BuildIndex(EntityGene, geneIdentity, rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousIdentity)
}

func TestIndex_Lookup(t *testing.T) {
	rows := []any{
		&fakeGene{ID: 1, HGNCID: "1097", Symbol: "BRAF"},
		&fakeGene{ID: 2, HGNCID: "6407", Symbol: "KRAS"},
	}
	ix, err := BuildIndex(EntityGene, geneIdentity, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())

	t.Run("hit resolves to persisted row", func(t *testing.T) {
		row, found, err := ix.Lookup(&fakeGene{HGNCID: "1097"})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, uint(1), row.(*fakeGene).ID)
	})

	t.Run("miss is new", func(t *testing.T) {
		_, found, err := ix.Lookup(&fakeGene{HGNCID: "9999"})
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestBatch_DedupAcrossCases(t *testing.T) {
	ix, err := BuildIndex(EntityGene, geneIdentity, nil)
	require.NoError(t, err)
	batch := NewBatch(ix)

	// two different cases reference the identical gene
	first, err := batch.Resolve(&fakeGene{HGNCID: "1097", Symbol: "BRAF"})
	require.NoError(t, err)
	second, err := batch.Resolve(&fakeGene{HGNCID: "1097", Symbol: "BRAF"})
	require.NoError(t, err)

	assert.False(t, first.Existing)
	assert.Same(t, first, second, "identical candidates share one pending row")
	assert.Len(t, batch.NewRows(), 1, "exactly one insert for the shared gene")
}

func TestBatch_ExistingRowsNotReinserted(t *testing.T) {
	rows := []any{&fakeVariant{ID: 7, Chromosome: "7", Position: 117199644}}
	ix, err := BuildIndex(EntityVariant, variantIdentity, rows)
	require.NoError(t, err)
	batch := NewBatch(ix)

	res, err := batch.Resolve(&fakeVariant{Chromosome: "7", Position: 117199644})
	require.NoError(t, err)
	assert.True(t, res.Existing)
	assert.Equal(t, uint(7), res.Row.(*fakeVariant).ID)
	assert.Empty(t, batch.NewRows())
}

func TestBatch_ResolveAllKeepsOrder(t *testing.T) {
	ix, err := BuildIndex(EntityVariant, variantIdentity, nil)
	require.NoError(t, err)
	batch := NewBatch(ix)

	candidates := []any{
		&fakeVariant{Chromosome: "1", Position: 100},
		&fakeVariant{Chromosome: "2", Position: 200},
		&fakeVariant{Chromosome: "1", Position: 100},
	}
	resolved, err := batch.ResolveAll(candidates)
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	assert.Same(t, resolved[0], resolved[2])
	assert.NotSame(t, resolved[0], resolved[1])
	assert.Len(t, batch.NewRows(), 2)
}
