package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"case-reconciler/core/reconcile"
	"case-reconciler/feature/cases/builders"
	"case-reconciler/feature/cases/managers"
	"case-reconciler/feature/cases/models"
	"case-reconciler/feature/cases/parse"
	"case-reconciler/feature/cases/sources"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func testBuilders(t *testing.T) *builders.Context {
	t.Helper()
	genes, err := managers.NewGeneManager(nil, filepath.Join(t.TempDir(), "genes.tsv"))
	require.NoError(t, err)
	panels, err := managers.NewPanelManager(nil, t.TempDir())
	require.NoError(t, err)
	return &builders.Context{
		Panels:           panels,
		Genes:            genes,
		Variants:         managers.NewVariantManager(),
		Transcripts:      managers.NewTranscriptManager(),
		SkipDemographics: true,
		Log:              zap.NewNop(),
	}
}

func recordJSON(id string, version int, familyID, marker string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"interpretation_request_id": %s, "version": %d, "family_id": %s,
		"proband": 5000, "marker": %q,
		"status": [{"status": "report_generated", "created_at": "2023-02-01T10:00:00", "user": "bob"}],
		"interpretation_request_data": {"json_request": {
			"genomeAssemblyVersion": "GRCh38",
			"pedigree": {"participants": [
				{"gelId": 5000, "isProband": true, "sex": "male", "samples": ["LP100"]}
			]}
		}}}`, id, version, familyID, marker))
}

type stubCaseSource struct {
	refs    []sources.CaseRef
	records map[string]json.RawMessage
	listErr error
}

func (s *stubCaseSource) ListCases(ctx context.Context, sampleType string) ([]sources.CaseRef, error) {
	return s.refs, s.listErr
}

func (s *stubCaseSource) FetchCase(ctx context.Context, requestID string, version int) (*sources.SourceRecord, error) {
	raw, ok := s.records[fmt.Sprintf("%s-%d", requestID, version)]
	if !ok {
		return nil, sources.ErrNotFound
	}
	return &sources.SourceRecord{RequestID: requestID, Version: version, Raw: raw}, nil
}

type stubAnnotator struct {
	annotations []sources.TranscriptAnnotation
	err         error
}

func (s *stubAnnotator) Annotate(ctx context.Context, variants []sources.CaseVariant) ([]sources.TranscriptAnnotation, error) {
	return s.annotations, s.err
}

func TestSelectRefs(t *testing.T) {
	refs := []sources.CaseRef{
		{RequestID: "100", Version: 1},
		{RequestID: "101", Version: 1},
		{RequestID: "102", Version: 2},
	}

	d := &Driver{cfg: Config{Head: 2}}
	assert.Equal(t, refs[:2], d.selectRefs(refs))

	d = &Driver{cfg: Config{Only: "102-2"}}
	assert.Equal(t, []sources.CaseRef{{RequestID: "102", Version: 2}}, d.selectRefs(refs))

	d = &Driver{cfg: Config{Only: "999-1"}}
	assert.Empty(t, d.selectRefs(refs))

	d = &Driver{cfg: Config{}}
	assert.Equal(t, refs, d.selectRefs(refs))
}

func expectHashQueries(mock sqlmock.Sqlmock, familyRows, reportRows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT \\* FROM `interpretation_report_family`").WillReturnRows(familyRows)
	mock.ExpectQuery("SELECT \\* FROM `report`").WillReturnRows(reportRows)
}

func TestLatestReportHashes(t *testing.T) {
	db, mock := setupMockDB(t)
	expectHashQueries(mock,
		sqlmock.NewRows([]string{"id", "ir_family_id"}).
			AddRow(1, "100-1").
			AddRow(2, "101-1"),
		sqlmock.NewRows([]string{"id", "ir_family_id", "content_hash", "archived_version"}).
			AddRow(1, 1, "old", 1).
			AddRow(2, 1, "new", 2))

	d := &Driver{deps: Deps{DB: db, Log: zap.NewNop()}}
	hashes, err := d.latestReportHashes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", hashes["100-1"], "newest archived version wins")
	assert.Equal(t, "", hashes["101-1"], "family without reports still counts as known")
	_, known := hashes["999-9"]
	assert.False(t, known)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	unchanged := recordJSON("100", 1, "9000", "same")
	parsed, err := parse.ParseCase(&sources.SourceRecord{RequestID: "100", Version: 1, Raw: unchanged})
	require.NoError(t, err)

	db, mock := setupMockDB(t)
	expectHashQueries(mock,
		sqlmock.NewRows([]string{"id", "ir_family_id"}).
			AddRow(1, "100-1").
			AddRow(2, "101-1"),
		sqlmock.NewRows([]string{"id", "ir_family_id", "content_hash", "archived_version"}).
			AddRow(1, 1, parsed.ContentHash, 1).
			AddRow(2, 2, "stale", 1))

	source := &stubCaseSource{
		refs: []sources.CaseRef{
			{RequestID: "100", Version: 1},
			{RequestID: "101", Version: 1},
			{RequestID: "102", Version: 1},
		},
		records: map[string]json.RawMessage{
			"100-1": unchanged,
			"101-1": recordJSON("101", 1, "9001", "changed"),
			"102-1": recordJSON("102", 1, "9002", "brand new"),
		},
	}
	d := New(Deps{DB: db, Source: source, Builders: testBuilders(t), Log: zap.NewNop()}, Config{Workers: 2})

	run := &models.RunRecord{}
	states, err := d.classify(context.Background(), source.refs, run)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, 1, run.CasesAdded)
	assert.Equal(t, 1, run.CasesUpdated)
	assert.Equal(t, 1, run.CasesSkipped)
	assert.Equal(t, "101-1", states[0].Case.RequestID)
	assert.Equal(t, "102-1", states[1].Case.RequestID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyParseFailure(t *testing.T) {
	t.Run("new case is skipped", func(t *testing.T) {
		db, mock := setupMockDB(t)
		expectHashQueries(mock,
			sqlmock.NewRows([]string{"id", "ir_family_id"}),
			sqlmock.NewRows([]string{"id", "ir_family_id", "content_hash", "archived_version"}))

		source := &stubCaseSource{
			refs:    []sources.CaseRef{{RequestID: "100", Version: 1}},
			records: map[string]json.RawMessage{"100-1": json.RawMessage(`{"interpretation_request_id": 100, "version": 1}`)},
		}
		d := New(Deps{DB: db, Source: source, Builders: testBuilders(t), Log: zap.NewNop()}, Config{Workers: 1})

		run := &models.RunRecord{}
		states, err := d.classify(context.Background(), source.refs, run)
		require.NoError(t, err)
		assert.Empty(t, states)
		assert.Equal(t, 1, run.CasesSkipped)
	})

	t.Run("known case is fatal", func(t *testing.T) {
		db, mock := setupMockDB(t)
		expectHashQueries(mock,
			sqlmock.NewRows([]string{"id", "ir_family_id"}).AddRow(1, "100-1"),
			sqlmock.NewRows([]string{"id", "ir_family_id", "content_hash", "archived_version"}).
				AddRow(1, 1, "stored", 1))

		source := &stubCaseSource{
			refs:    []sources.CaseRef{{RequestID: "100", Version: 1}},
			records: map[string]json.RawMessage{"100-1": json.RawMessage(`{"interpretation_request_id": 100, "version": 1}`)},
		}
		d := New(Deps{DB: db, Source: source, Builders: testBuilders(t), Log: zap.NewNop()}, Config{Workers: 1})

		_, err := d.classify(context.Background(), source.refs, &models.RunRecord{})
		require.Error(t, err)
		var perr *reconcile.ParseError
		assert.ErrorAs(t, err, &perr)
	})
}

func TestAnnotateDistribution(t *testing.T) {
	caseA, err := parse.ParseCase(&sources.SourceRecord{RequestID: "100", Version: 1,
		Raw: withVariant(recordJSON("100", 1, "9000", "a"))})
	require.NoError(t, err)
	stateA := builders.NewCaseState(caseA)

	ann := &stubAnnotator{annotations: []sources.TranscriptAnnotation{
		{CaseID: "100-1", VariantIndex: 1, Name: "NM_1", Assembly: "GRCh37", HGVSc: "c.1A>T"},
		{CaseID: "100-1", VariantIndex: 1, Name: "NM_1", Assembly: "GRCh38", Canonical: true,
			GeneEnsemblID: "ENSG001", GeneHGNCID: "HGNC:1100", GeneHGNCName: "BRCA1", HGVSc: "c.2A>T"},
	}}
	d := New(Deps{Annotator: ann, Builders: testBuilders(t), Log: zap.NewNop()}, Config{})

	require.NoError(t, d.annotate(context.Background(), []*builders.CaseState{stateA}))
	require.Len(t, stateA.Annotations, 2)

	// the GRCh37 copy inherits the canonical GRCh38 gene attribution but
	// keeps its own per-case consequence fields
	first := stateA.Annotations[0]
	assert.True(t, first.Canonical)
	assert.Equal(t, "HGNC:1100", first.GeneHGNCID)
	assert.Equal(t, "BRCA1", first.GeneHGNCName)
	assert.Equal(t, "c.1A>T", first.HGVSc)
}

func TestAnnotateFailureIsNotFatal(t *testing.T) {
	caseA, err := parse.ParseCase(&sources.SourceRecord{RequestID: "100", Version: 1,
		Raw: withVariant(recordJSON("100", 1, "9000", "a"))})
	require.NoError(t, err)
	state := builders.NewCaseState(caseA)

	d := New(Deps{Annotator: &stubAnnotator{err: errors.New("vep down")},
		Builders: testBuilders(t), Log: zap.NewNop()}, Config{})
	require.NoError(t, d.annotate(context.Background(), []*builders.CaseState{state}))
	assert.Empty(t, state.Annotations)
}

// withVariant injects one tier-1 variant so the case produces a mention.
func withVariant(raw json.RawMessage) json.RawMessage {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		panic(err)
	}
	var ird struct {
		JSONRequest map[string]json.RawMessage `json:"json_request"`
	}
	if err := json.Unmarshal(doc["interpretation_request_data"], &ird); err != nil {
		panic(err)
	}
	ird.JSONRequest["TieredVariants"] = json.RawMessage(`[
		{"chromosome": "1", "position": 100, "reference": "A", "alternate": "T",
		 "reportEvents": [{"reportEventId": "RE1", "tier": "TIER1"}]}
	]`)
	patched, err := json.Marshal(struct {
		JSONRequest map[string]json.RawMessage `json:"json_request"`
	}{ird.JSONRequest})
	if err != nil {
		panic(err)
	}
	doc["interpretation_request_data"] = patched
	out, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return out
}

func TestProcessTypeDeduplicatesAcrossCases(t *testing.T) {
	existing := &models.Clinician{ID: 1, Name: "known", Email: "unknown", Hospital: "unknown"}
	var inserted []any

	desc := builders.Descriptor{
		Type: reconcile.EntityClinician,
		Identity: func(row any) map[string]string {
			r := row.(*models.Clinician)
			return map[string]string{"name": r.Name, "email": r.Email, "hospital": r.Hospital}
		},
		Load: func(ctx context.Context, db *gorm.DB) ([]any, error) {
			return []any{existing}, nil
		},
		Build: func(ctx context.Context, bc *builders.Context, cs *builders.CaseState) ([]any, error) {
			if cs.Case.RequestID == "300-1" {
				return []any{&models.Clinician{Name: "known", Email: "unknown", Hospital: "unknown"}}, nil
			}
			return []any{&models.Clinician{Name: "fresh", Email: "unknown", Hospital: "unknown"}}, nil
		},
		Persist: func(ctx context.Context, db *gorm.DB, rows []any) error {
			inserted = rows
			for i, row := range rows {
				row.(*models.Clinician).ID = uint(100 + i)
			}
			return nil
		},
	}

	s1 := builders.NewCaseState(&parse.Case{RequestID: "100-1"})
	s2 := builders.NewCaseState(&parse.Case{RequestID: "200-1"})
	s3 := builders.NewCaseState(&parse.Case{RequestID: "300-1"})
	d := New(Deps{Builders: testBuilders(t), Log: zap.NewNop()}, Config{})

	require.NoError(t, d.processType(context.Background(), desc, []*builders.CaseState{s1, s2, s3}))

	require.Len(t, inserted, 1, "identical candidates from two cases collapse to one insert")
	assert.Equal(t, "fresh", inserted[0].(*models.Clinician).Name)

	r1 := s1.Resolved(reconcile.EntityClinician)
	r2 := s2.Resolved(reconcile.EntityClinician)
	r3 := s3.Resolved(reconcile.EntityClinician)
	require.Len(t, r1, 1)
	assert.False(t, r1[0].Existing)
	assert.Same(t, r1[0], r2[0], "both cases share the pending row")
	assert.Equal(t, uint(100), r1[0].Row.(*models.Clinician).ID, "id backfill is visible to all cases")
	assert.True(t, r3[0].Existing)
	assert.Same(t, existing, r3[0].Row.(*models.Clinician))
}

func TestRunWritesRecordOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `run_record`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	source := &stubCaseSource{listErr: errors.New("api unreachable")}
	d := New(Deps{DB: db, Source: source, Builders: testBuilders(t), Log: zap.NewNop()}, Config{})

	run, err := d.Run(context.Background())
	require.Error(t, err)
	assert.False(t, run.Success)
	assert.Contains(t, run.Error, "api unreachable")
	assert.NotEmpty(t, run.RunID)
	require.NoError(t, mock.ExpectationsWereMet())
}
