package builders

import (
	"context"
	"time"

	"go.uber.org/zap"

	"case-reconciler/core/reconcile"
	"case-reconciler/feature/cases/managers"
	"case-reconciler/feature/cases/models"
	"case-reconciler/feature/cases/parse"
	"case-reconciler/feature/cases/sources"
)

// placeholder values substituted when demographic polling is disabled or a
// lookup degrades. Deliberate contract, not an error path.
const (
	unknownValue   = "unknown"
	placeholderDOB = "2011/01/01"
)

// Context carries the run-scoped collaborators shared by every candidate
// builder: the caching managers, the demographics source, and the run
// options that alter construction rules.
type Context struct {
	Panels      *managers.PanelManager
	Genes       *managers.GeneManager
	Variants    *managers.VariantManager
	Transcripts *managers.TranscriptManager

	Demographics     sources.DemographicsSource
	SkipDemographics bool

	Log *zap.Logger
	Now func() time.Time
}

func (bc *Context) now() time.Time {
	if bc.Now != nil {
		return bc.Now()
	}
	return time.Now()
}

// participantDemographics returns demographics for one participant. The
// degraded mode (polling skipped, lookup failed, or fields missing) fills
// placeholder values instead of failing.
func (bc *Context) participantDemographics(ctx context.Context, participantID string) sources.ParticipantInfo {
	info := sources.ParticipantInfo{
		Forename:    unknownValue,
		Surname:     unknownValue,
		DateOfBirth: placeholderDOB,
		NHSNumber:   unknownValue,
	}
	if bc.SkipDemographics || bc.Demographics == nil {
		return info
	}
	fetched, err := bc.Demographics.Participant(ctx, participantID)
	if err != nil {
		bc.Log.Warn("demographics lookup failed, using placeholders",
			zap.String("participant_id", participantID), zap.Error(err))
		return info
	}
	if fetched.Forename != "" {
		info.Forename = fetched.Forename
	}
	if fetched.Surname != "" {
		info.Surname = fetched.Surname
	}
	if fetched.DateOfBirth != "" {
		info.DateOfBirth = fetched.DateOfBirth
	}
	if fetched.NHSNumber != "" {
		info.NHSNumber = fetched.NHSNumber
	}
	return info
}

func parseDOB(value string) time.Time {
	dob, err := time.Parse("2006/01/02", value)
	if err != nil {
		dob, _ = time.Parse("2006/01/02", placeholderDOB)
	}
	return dob
}

// CaseState tracks one case through a run: the read-only parsed Case, its
// canonicalized transcript annotations, and the entities resolved so far.
// Resolved slices are parallel to the candidate slices each builder emitted,
// which is how builders of later types map parsed records back to rows.
type CaseState struct {
	Case        *parse.Case
	Annotations []sources.TranscriptAnnotation

	resolved map[reconcile.EntityType][]*reconcile.Resolved

	panelsBuilt        []*parse.PanelRef
	panelVersionsBuilt []*parse.PanelRef
	variantsBuilt      []*parse.VariantRecord
	transcriptsBuilt   []string
}

// NewCaseState wraps a parsed case for processing.
func NewCaseState(c *parse.Case) *CaseState {
	return &CaseState{
		Case:     c,
		resolved: make(map[reconcile.EntityType][]*reconcile.Resolved),
	}
}

// SetResolved attaches the resolution results for one entity type, parallel
// to the candidates the case's builder produced.
func (cs *CaseState) SetResolved(t reconcile.EntityType, items []*reconcile.Resolved) {
	cs.resolved[t] = items
}

// Resolved returns the resolution results for one entity type.
func (cs *CaseState) Resolved(t reconcile.EntityType) []*reconcile.Resolved {
	return cs.resolved[t]
}

// rowsOf returns the resolved rows of one type for this case.
func rowsOf[T any](cs *CaseState, t reconcile.EntityType) []*T {
	items := cs.resolved[t]
	out := make([]*T, 0, len(items))
	for _, item := range items {
		out = append(out, item.Row.(*T))
	}
	return out
}

// firstRowOf returns the single resolved row of a one-per-case type, or nil.
func firstRowOf[T any](cs *CaseState, t reconcile.EntityType) *T {
	items := cs.resolved[t]
	if len(items) == 0 {
		return nil
	}
	return items[0].Row.(*T)
}

// variantRowFor maps a parsed variant record to its resolved row.
func (cs *CaseState) variantRowFor(rec *parse.VariantRecord) *models.Variant {
	for i, built := range cs.variantsBuilt {
		if built == rec {
			return cs.resolved[reconcile.EntityVariant][i].Row.(*models.Variant)
		}
	}
	return nil
}

// transcriptRowFor maps a transcript name to its resolved row, nil when the
// transcript was dropped for lack of a gene.
func (cs *CaseState) transcriptRowFor(name string) *models.Transcript {
	for i, built := range cs.transcriptsBuilt {
		if built == name {
			return cs.resolved[reconcile.EntityTranscript][i].Row.(*models.Transcript)
		}
	}
	return nil
}

// panelRowFor maps a panel ref to its resolved Panel row.
func (cs *CaseState) panelRowFor(ref *parse.PanelRef) *models.Panel {
	for i, built := range cs.panelsBuilt {
		if built == ref {
			return cs.resolved[reconcile.EntityPanel][i].Row.(*models.Panel)
		}
	}
	return nil
}

// panelVersionRowFor maps a panel ref to its resolved PanelVersion row.
func (cs *CaseState) panelVersionRowFor(ref *parse.PanelRef) *models.PanelVersion {
	for i, built := range cs.panelVersionsBuilt {
		if built == ref {
			return cs.resolved[reconcile.EntityPanelVersion][i].Row.(*models.PanelVersion)
		}
	}
	return nil
}

// probandVariantFor finds this case's ProbandVariant row for a variant id.
func (cs *CaseState) probandVariantFor(variantID uint) *models.ProbandVariant {
	for _, pv := range rowsOf[models.ProbandVariant](cs, reconcile.EntityProbandVariant) {
		if pv.VariantID == variantID {
			return pv
		}
	}
	return nil
}

// geneByHGNCID finds this case's resolved gene row by HGNC id.
func (cs *CaseState) geneByHGNCID(hgncID string) *models.Gene {
	for _, g := range rowsOf[models.Gene](cs, reconcile.EntityGene) {
		if g.HGNCID == hgncID {
			return g
		}
	}
	return nil
}
