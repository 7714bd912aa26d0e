package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"case-reconciler/core/reconcile"
	"case-reconciler/core/storage"
	"case-reconciler/feature/cases/builders"
	"case-reconciler/feature/cases/models"
	"case-reconciler/feature/cases/parse"
	"case-reconciler/feature/cases/sources"
)

// Deps are the collaborators a Driver runs against. Storage may be nil, in
// which case raw-record archiving is disabled regardless of config.
type Deps struct {
	DB        *gorm.DB
	Source    sources.CaseSource
	Annotator sources.Annotator
	Storage   storage.Client
	Bucket    string
	Builders  *builders.Context
	Log       *zap.Logger
}

// Driver runs one full reconciliation: list and fetch source records,
// classify them against the persisted reports, process every entity type in
// dependency order, and record the outcome.
type Driver struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

func New(deps Deps, cfg Config) *Driver {
	now := deps.Builders.Now
	if now == nil {
		now = time.Now
	}
	return &Driver{deps: deps, cfg: cfg, now: now}
}

// Run executes one reconciliation. A RunRecord is written even when the run
// fails; entity types committed before a fatal error stay committed.
func (d *Driver) Run(ctx context.Context) (*models.RunRecord, error) {
	run := &models.RunRecord{
		RunID:     uuid.NewString(),
		StartedAt: d.now(),
	}
	d.deps.Log.Info("reconciliation run starting", zap.String("run_id", run.RunID))

	err := d.run(ctx, run)

	run.FinishedAt = d.now()
	run.Success = err == nil
	if err != nil {
		run.Error = err.Error()
		d.deps.Log.Error("reconciliation run failed", zap.String("run_id", run.RunID), zap.Error(err))
	} else {
		d.deps.Log.Info("reconciliation run finished",
			zap.String("run_id", run.RunID),
			zap.Int("added", run.CasesAdded),
			zap.Int("updated", run.CasesUpdated),
			zap.Int("skipped", run.CasesSkipped))
	}

	if dbErr := d.deps.DB.WithContext(ctx).Create(run).Error; dbErr != nil {
		d.deps.Log.Error("run record write failed", zap.String("run_id", run.RunID), zap.Error(dbErr))
		if err == nil {
			err = fmt.Errorf("write run record: %w", dbErr)
		}
	}
	return run, err
}

func (d *Driver) run(ctx context.Context, run *models.RunRecord) error {
	refs, err := d.deps.Source.ListCases(ctx, d.cfg.SampleType)
	if err != nil {
		return fmt.Errorf("list cases: %w", err)
	}
	refs = d.selectRefs(refs)
	d.deps.Log.Info("cases listed", zap.Int("count", len(refs)))

	states, err := d.classify(ctx, refs, run)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return nil
	}

	if err := d.annotate(ctx, states); err != nil {
		return err
	}

	for _, desc := range builders.Registry() {
		if err := d.processType(ctx, desc, states); err != nil {
			return err
		}
	}

	if err := d.deps.Builders.Genes.Save(); err != nil {
		d.deps.Log.Warn("gene memo save failed", zap.Error(err))
	}
	d.archive(ctx, states)
	return nil
}

// selectRefs applies the single-case restriction and the head limit.
func (d *Driver) selectRefs(refs []sources.CaseRef) []sources.CaseRef {
	if d.cfg.Only != "" {
		for _, ref := range refs {
			if fmt.Sprintf("%s-%d", ref.RequestID, ref.Version) == d.cfg.Only {
				return []sources.CaseRef{ref}
			}
		}
		return nil
	}
	if d.cfg.Head > 0 && len(refs) > d.cfg.Head {
		refs = refs[:d.cfg.Head]
	}
	return refs
}

// classify fetches and parses the selected records in parallel and partitions
// them into add, update, and skip. Parse failures skip the record on the add
// path but abort the run on the update path, where the stored report cannot
// be compared without a parse.
func (d *Driver) classify(ctx context.Context, refs []sources.CaseRef, run *models.RunRecord) ([]*builders.CaseState, error) {
	existing, err := d.latestReportHashes(ctx)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		state  *builders.CaseState
		update bool
	}
	outcomes := make([]*outcome, len(refs))
	var mu sync.Mutex
	skipped := 0

	workers := d.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ref := range refs {
		g.Go(func() error {
			record, err := d.deps.Source.FetchCase(gctx, ref.RequestID, ref.Version)
			if err != nil {
				return fmt.Errorf("fetch case %s-%d: %w", ref.RequestID, ref.Version, err)
			}
			requestID := fmt.Sprintf("%s-%d", ref.RequestID, ref.Version)
			storedHash, known := existing[requestID]

			c, err := parse.ParseCase(record)
			if err != nil {
				var perr *reconcile.ParseError
				if errors.As(err, &perr) && !known {
					d.deps.Log.Warn("unparseable new case skipped",
						zap.String("request_id", requestID), zap.Error(err))
					mu.Lock()
					skipped++
					mu.Unlock()
					return nil
				}
				return fmt.Errorf("parse case %s: %w", requestID, err)
			}

			if known && c.ContentHash == storedHash && d.cfg.Only == "" {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			outcomes[i] = &outcome{state: builders.NewCaseState(c), update: known}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var states []*builders.CaseState
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		states = append(states, o.state)
		if o.update {
			run.CasesUpdated++
		} else {
			run.CasesAdded++
		}
	}
	run.CasesSkipped = skipped
	d.deps.Log.Info("cases classified",
		zap.Int("add", run.CasesAdded),
		zap.Int("update", run.CasesUpdated),
		zap.Int("skip", run.CasesSkipped))
	return states, nil
}

// latestReportHashes maps every known request id to the content hash of its
// newest archived report.
func (d *Driver) latestReportHashes(ctx context.Context) (map[string]string, error) {
	var families []*models.InterpretationReportFamily
	if err := d.deps.DB.WithContext(ctx).Find(&families).Error; err != nil {
		return nil, fmt.Errorf("load report families: %w", err)
	}
	byRowID := make(map[uint]string, len(families))
	for _, f := range families {
		byRowID[f.ID] = f.IRFamilyID
	}

	var reports []*models.Report
	if err := d.deps.DB.WithContext(ctx).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	latest := make(map[string]*models.Report, len(families))
	hashes := make(map[string]string, len(families))
	for _, r := range reports {
		requestID, ok := byRowID[r.IRFamilyID]
		if !ok {
			continue
		}
		if prior := latest[requestID]; prior == nil || r.ArchivedVersion > prior.ArchivedVersion {
			latest[requestID] = r
			hashes[requestID] = r.ContentHash
		}
	}
	// families without any report still classify as update, not add
	for _, f := range families {
		if _, ok := hashes[f.IRFamilyID]; !ok {
			hashes[f.IRFamilyID] = ""
		}
	}
	return hashes, nil
}

// annotate sends every variant mention of the run to the annotator in one
// batch and distributes the per-case results, preferring the canonical copy
// of each transcript that the transcript manager retained.
func (d *Driver) annotate(ctx context.Context, states []*builders.CaseState) error {
	if d.deps.Annotator == nil {
		return nil
	}
	var mentions []sources.CaseVariant
	for _, st := range states {
		mentions = append(mentions, st.Case.Mentions()...)
	}
	if len(mentions) == 0 {
		return nil
	}

	annotations, err := d.deps.Annotator.Annotate(ctx, mentions)
	if err != nil {
		d.deps.Log.Warn("annotation failed, importing without transcripts", zap.Error(err))
		return nil
	}
	tm := d.deps.Builders.Transcripts
	for _, ann := range annotations {
		tm.Add(ann)
	}
	byCase := make(map[string][]sources.TranscriptAnnotation)
	for _, ann := range annotations {
		merged := ann
		if canonical, ok := tm.Fetch(ann.Name); ok {
			merged.Canonical = canonical.Canonical
			merged.GeneEnsemblID = canonical.GeneEnsemblID
			merged.GeneHGNCID = canonical.GeneHGNCID
			merged.GeneHGNCName = canonical.GeneHGNCName
		}
		byCase[ann.CaseID] = append(byCase[ann.CaseID], merged)
	}
	for _, st := range states {
		st.Annotations = byCase[st.Case.RequestID]
	}
	d.deps.Log.Info("annotations distributed", zap.Int("transcripts", len(annotations)))
	return nil
}

// processType is one pass of the ordered entity loop: index what exists,
// resolve every case's candidates against it, bulk insert the remainder.
// The insert backfills primary keys, which is the barrier that makes this
// type's ids usable by the next one.
func (d *Driver) processType(ctx context.Context, desc builders.Descriptor, states []*builders.CaseState) error {
	rows, err := desc.Load(ctx, d.deps.DB)
	if err != nil {
		return err
	}
	index, err := reconcile.BuildIndex(desc.Type, desc.Identity, rows)
	if err != nil {
		return err
	}
	batch := reconcile.NewBatch(index)

	for _, st := range states {
		candidates, err := desc.Build(ctx, d.deps.Builders, st)
		if err != nil {
			return fmt.Errorf("%s: build candidates for %s: %w", desc.Type, st.Case.RequestID, err)
		}
		resolved, err := batch.ResolveAll(candidates)
		if err != nil {
			return err
		}
		st.SetResolved(desc.Type, resolved)
	}

	newRows := batch.NewRows()
	if err := desc.Persist(ctx, d.deps.DB, newRows); err != nil {
		return err
	}
	d.deps.Log.Debug("entity type processed",
		zap.String("type", string(desc.Type)),
		zap.Int("existing", index.Len()),
		zap.Int("inserted", len(newRows)))
	return nil
}

// archive stores the raw JSON of every imported case to object storage.
// Best effort: a failed upload is logged, never fatal.
func (d *Driver) archive(ctx context.Context, states []*builders.CaseState) {
	if !d.cfg.Archive || d.deps.Storage == nil {
		return
	}
	for _, st := range states {
		name := fmt.Sprintf("cases/%s.json", st.Case.RequestID)
		_, err := d.deps.Storage.PutObject(ctx, d.deps.Bucket, name,
			bytes.NewReader(st.Case.Raw), int64(len(st.Case.Raw)),
			minio.PutObjectOptions{ContentType: "application/json"})
		if err != nil {
			d.deps.Log.Warn("case archive failed", zap.String("object", name), zap.Error(err))
		}
	}
}

// EnsureBucket creates the archive bucket when it does not exist yet. Called
// once at startup when archiving is enabled.
func (d *Driver) EnsureBucket(ctx context.Context) error {
	if !d.cfg.Archive || d.deps.Storage == nil {
		return nil
	}
	exists, err := d.deps.Storage.BucketExists(ctx, d.deps.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", d.deps.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := d.deps.Storage.MakeBucket(ctx, d.deps.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", d.deps.Bucket, err)
	}
	return nil
}
