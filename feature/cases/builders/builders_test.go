package builders

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"case-reconciler/core/reconcile"
	"case-reconciler/feature/cases/managers"
	"case-reconciler/feature/cases/models"
	"case-reconciler/feature/cases/parse"
	"case-reconciler/feature/cases/sources"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	genes, err := managers.NewGeneManager(nil, filepath.Join(t.TempDir(), "genes.tsv"))
	require.NoError(t, err)
	panels, err := managers.NewPanelManager(nil, t.TempDir())
	require.NoError(t, err)
	return &Context{
		Panels:           panels,
		Genes:            genes,
		Variants:         managers.NewVariantManager(),
		Transcripts:      managers.NewTranscriptManager(),
		SkipDemographics: true,
		Log:              zap.NewNop(),
	}
}

func resolved(rows ...any) []*reconcile.Resolved {
	out := make([]*reconcile.Resolved, 0, len(rows))
	for _, row := range rows {
		out = append(out, &reconcile.Resolved{Row: row, Existing: true})
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestRegistryDependenciesComeFirst(t *testing.T) {
	seen := make(map[reconcile.EntityType]bool)
	for _, d := range Registry() {
		for _, dep := range d.DependsOn {
			assert.Truef(t, seen[dep], "%s depends on %s which is not yet processed", d.Type, dep)
		}
		assert.False(t, seen[d.Type], "duplicate descriptor for %s", d.Type)
		seen[d.Type] = true
	}
	assert.Len(t, seen, 17)
}

func TestBuildVariantsExcludesTierThreeOnly(t *testing.T) {
	bc := testContext(t)
	cs := NewCaseState(&parse.Case{
		RequestID:       "55-1",
		AssemblyVersion: "GRCh38",
		Variants: []*parse.VariantRecord{
			{Chromosome: "1", Position: 100, Reference: "A", Alternate: "T", MinTier: 1},
			{Chromosome: "2", Position: 200, Reference: "G", Alternate: "C", MinTier: 3},
			{Chromosome: "3", Position: 300, Reference: "C", Alternate: "G", MinTier: 3, Flagged: true},
		},
	})
	cs.SetResolved(reconcile.EntityToolOrAssemblyVersion, resolved(
		&models.ToolOrAssemblyVersion{ID: 9, ToolName: "genome_build", VersionNumber: "GRCh38"},
	))

	rows, err := buildVariants(context.Background(), bc, cs)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].(*models.Variant).Chromosome)
	assert.Equal(t, "3", rows[1].(*models.Variant).Chromosome)
	assert.Equal(t, uint(9), rows[0].(*models.Variant).GenomeAssemblyID)
	require.Len(t, cs.variantsBuilt, 2)
}

func TestBuildVariantsRequiresAssembly(t *testing.T) {
	bc := testContext(t)
	cs := NewCaseState(&parse.Case{RequestID: "55-1"})
	_, err := buildVariants(context.Background(), bc, cs)
	require.Error(t, err)
}

func TestBuildProbandVariantsFlaggedCopyWins(t *testing.T) {
	bc := testContext(t)
	tiered := &parse.VariantRecord{Chromosome: "1", Position: 100, Reference: "A", Alternate: "T", MinTier: 2}
	flagged := &parse.VariantRecord{Chromosome: "1", Position: 100, Reference: "A", Alternate: "T", MinTier: 3, Flagged: true}
	cs := NewCaseState(&parse.Case{Variants: []*parse.VariantRecord{tiered, flagged}})
	cs.variantsBuilt = []*parse.VariantRecord{tiered, flagged}

	// both parsed records resolved to the same row, as in-batch dedup does
	shared := &models.Variant{ID: 7}
	cs.SetResolved(reconcile.EntityVariant, resolved(shared, shared))
	cs.SetResolved(reconcile.EntityReport, resolved(&models.Report{ID: 3}))

	rows, err := buildProbandVariants(context.Background(), bc, cs)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	pv := rows[0].(*models.ProbandVariant)
	assert.Equal(t, uint(3), pv.ReportID)
	assert.Equal(t, uint(7), pv.VariantID)
	assert.Equal(t, 0, pv.MaxTier)
}

func TestBuildGenesResolvesAndDeduplicates(t *testing.T) {
	bc := testContext(t)
	bc.Genes.Record("ENSG001", "HGNC:1100")

	def := &sources.PanelDefinition{Name: "cardiac", Genes: []sources.PanelGene{
		{EnsemblID: "ENSG001", Symbol: "BRCA1"},
		{EnsemblID: "ENSG001", Symbol: "BRCA1"},
		{EnsemblID: "", Symbol: "junk"},
		{EnsemblID: "ENSG404", Symbol: "GONE"},
	}}
	cs := NewCaseState(&parse.Case{})
	cs.panelsBuilt = []*parse.PanelRef{{PanelAppID: "p1", Version: "1.0", Definition: def}}
	cs.Annotations = []sources.TranscriptAnnotation{
		{Name: "NM_1", GeneEnsemblID: "ENSG002", GeneHGNCID: "HGNC:1101", GeneHGNCName: "TP53"},
	}

	rows, err := buildGenes(context.Background(), bc, cs)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "HGNC:1100", rows[0].(*models.Gene).HGNCID)
	assert.Equal(t, "HGNC:1101", rows[1].(*models.Gene).HGNCID)
	assert.Equal(t, "TP53", rows[1].(*models.Gene).HGNCName)

	// the annotation's own mapping was recorded for future runs
	hgnc, err := bc.Genes.HGNCID(context.Background(), "ENSG002")
	require.NoError(t, err)
	assert.Equal(t, "HGNC:1101", hgnc)
}

func TestBuildTranscriptsDropsUnresolvedGenes(t *testing.T) {
	bc := testContext(t)
	cs := NewCaseState(&parse.Case{})
	cs.Annotations = []sources.TranscriptAnnotation{
		{Name: "NM_1", GeneHGNCID: "HGNC:1100", Canonical: true, Strand: "1"},
		{Name: "NM_2", GeneHGNCID: "HGNC:9999"},
		{Name: "NM_3"},
	}
	cs.SetResolved(reconcile.EntityGene, resolved(&models.Gene{ID: 4, HGNCID: "HGNC:1100"}))

	rows, err := buildTranscripts(context.Background(), bc, cs)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	tr := rows[0].(*models.Transcript)
	assert.Equal(t, "NM_1", tr.Name)
	assert.Equal(t, uint(4), tr.GeneID)
	assert.True(t, tr.Canonical)
	assert.Equal(t, []string{"NM_1"}, cs.transcriptsBuilt)
}

func TestEventGeneAttribution(t *testing.T) {
	cs := NewCaseState(&parse.Case{})
	a := &models.Gene{ID: 1, EnsemblID: "ENSG001", HGNCName: "BRCA1"}
	b := &models.Gene{ID: 2, EnsemblID: "ENSG002", HGNCName: "TP53"}
	cs.SetResolved(reconcile.EntityGene, resolved(a, b))

	tests := []struct {
		name  string
		event parse.ReportEventRecord
		want  *models.Gene
	}{
		{"ensembl match wins", parse.ReportEventRecord{GeneEnsemblID: "ENSG001", GeneHGNCSymbol: "BRCA1"}, a},
		{"symbol fallback", parse.ReportEventRecord{GeneHGNCSymbol: "TP53"}, b},
		{"conflict stays unresolved", parse.ReportEventRecord{GeneEnsemblID: "ENSG001", GeneHGNCSymbol: "TP53"}, nil},
		{"unknown gene", parse.ReportEventRecord{GeneEnsemblID: "ENSG999"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := cs.eventGene(&tc.event)
			if tc.want == nil {
				assert.Nil(t, got)
			} else {
				assert.Same(t, tc.want, got)
			}
		})
	}
}

func TestEventCoverageToleratesMissingKeys(t *testing.T) {
	cs := NewCaseState(&parse.Case{
		Proband: parse.Participant{Samples: []string{"LP100"}},
		Coverage: map[string]map[string]map[string]float64{
			"p1": {"BRCA1": {"LP100_avg": 42.5}},
		},
	})
	ref := &parse.PanelRef{PanelAppID: "p1"}

	cov, ok := cs.eventCoverage(ref, &parse.ReportEventRecord{GeneHGNCSymbol: "BRCA1"})
	require.True(t, ok)
	assert.Equal(t, 42.5, cov)

	_, ok = cs.eventCoverage(ref, &parse.ReportEventRecord{GeneHGNCSymbol: "TP53"})
	assert.False(t, ok)
	_, ok = cs.eventCoverage(&parse.PanelRef{PanelAppID: "p2"}, &parse.ReportEventRecord{GeneHGNCSymbol: "BRCA1"})
	assert.False(t, ok)

	cs.Case.Proband.Samples = nil
	_, ok = cs.eventCoverage(ref, &parse.ReportEventRecord{GeneHGNCSymbol: "BRCA1"})
	assert.False(t, ok)
}

func TestBuildReportEvents(t *testing.T) {
	bc := testContext(t)
	rec := &parse.VariantRecord{
		Chromosome: "1", Position: 100, Reference: "A", Alternate: "T", MinTier: 1,
		Events: []parse.ReportEventRecord{
			{EventID: "RE1", Tier: intPtr(1), GeneEnsemblID: "ENSG001", PanelName: "cardiac", PanelVersion: "1.0", GeneHGNCSymbol: "BRCA1"},
			{Tier: intPtr(1)},
		},
	}
	cs := NewCaseState(&parse.Case{
		Proband: parse.Participant{Samples: []string{"LP100"}},
		Coverage: map[string]map[string]map[string]float64{
			"p1": {"BRCA1": {"LP100_avg": 99.9}},
		},
		Variants: []*parse.VariantRecord{rec},
	})
	cs.variantsBuilt = []*parse.VariantRecord{rec}
	cs.SetResolved(reconcile.EntityVariant, resolved(&models.Variant{ID: 7}))
	cs.SetResolved(reconcile.EntityProbandVariant, resolved(&models.ProbandVariant{ID: 11, VariantID: 7}))
	cs.SetResolved(reconcile.EntityGene, resolved(&models.Gene{ID: 4, EnsemblID: "ENSG001", HGNCName: "BRCA1"}))
	ref := &parse.PanelRef{PanelAppID: "p1", Version: "1.0", Definition: &sources.PanelDefinition{Name: "cardiac"}}
	cs.panelVersionsBuilt = []*parse.PanelRef{ref}
	cs.SetResolved(reconcile.EntityPanelVersion, resolved(&models.PanelVersion{ID: 6}))
	cs.panelsBuilt = []*parse.PanelRef{ref}
	cs.SetResolved(reconcile.EntityPanel, resolved(&models.Panel{ID: 5}))

	rows, err := buildReportEvents(context.Background(), bc, cs)
	require.NoError(t, err)
	require.Len(t, rows, 1, "event without an id is skipped")
	ev := rows[0].(*models.ReportEvent)
	assert.Equal(t, "RE1", ev.EventID)
	assert.Equal(t, uint(11), ev.ProbandVariantID)
	require.NotNil(t, ev.GeneID)
	assert.Equal(t, uint(4), *ev.GeneID)
	require.NotNil(t, ev.PanelVersionID)
	assert.Equal(t, uint(6), *ev.PanelVersionID)
	require.NotNil(t, ev.Coverage)
	assert.Equal(t, 99.9, *ev.Coverage)
}

func TestParticipantDemographicsPlaceholders(t *testing.T) {
	bc := testContext(t)
	info := bc.participantDemographics(context.Background(), "P1")
	assert.Equal(t, "unknown", info.Forename)
	assert.Equal(t, "unknown", info.Surname)
	assert.Equal(t, "unknown", info.NHSNumber)
	assert.Equal(t, time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), parseDOB(info.DateOfBirth))
	assert.Equal(t, time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), parseDOB("not a date"))
}

func TestBuildPanelsSkipsUnavailableDefinitions(t *testing.T) {
	bc := testContext(t) // cache-only panel manager, nothing cached
	cs := NewCaseState(&parse.Case{Panels: []parse.PanelRef{{PanelAppID: "p1", Version: "1.0"}}})
	rows, err := buildPanels(context.Background(), bc, cs)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, cs.panelsBuilt)
}
