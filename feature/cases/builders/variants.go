package builders

import (
	"context"
	"fmt"

	"case-reconciler/core/reconcile"
	"case-reconciler/feature/cases/managers"
	"case-reconciler/feature/cases/models"
)

func buildVariants(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	assembly := assemblyRow(cs)
	if assembly == nil {
		return nil, fmt.Errorf("case %s: no genome build resolved", cs.Case.RequestID)
	}
	out := make([]any, 0, len(cs.Case.Variants))
	for _, rec := range cs.Case.Variants {
		if !rec.Eligible() {
			continue
		}
		key := bc.Variants.Canonical(managers.VariantKey{
			Chromosome: rec.Chromosome,
			Position:   rec.Position,
			Reference:  rec.Reference,
			Alternate:  rec.Alternate,
			Assembly:   cs.Case.AssemblyVersion,
		})
		cs.variantsBuilt = append(cs.variantsBuilt, rec)
		out = append(out, &models.Variant{
			GenomeAssemblyID: assembly.ID,
			Chromosome:       key.Chromosome,
			Position:         key.Position,
			Reference:        key.Reference,
			Alternate:        key.Alternate,
			DBSNPID:          rec.DBSNPID,
		})
	}
	return out, nil
}

// buildProbandVariants links each eligible variant to the case's report.
// Flagged variants go first at tier 0 so that a variant both flagged and
// tiered keeps only the flagged link.
func buildProbandVariants(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	report := firstRowOf[models.Report](cs, reconcile.EntityReport)
	seen := make(map[uint]bool)
	var out []any

	link := func(variantID uint, tier int) {
		if seen[variantID] {
			return
		}
		seen[variantID] = true
		out = append(out, &models.ProbandVariant{
			ReportID:  report.ID,
			VariantID: variantID,
			MaxTier:   tier,
		})
	}

	for _, rec := range cs.Case.Variants {
		if !rec.Flagged {
			continue
		}
		if row := cs.variantRowFor(rec); row != nil {
			link(row.ID, rec.EffectiveTier())
		}
	}
	for _, rec := range cs.Case.Variants {
		if rec.Flagged || !rec.Eligible() {
			continue
		}
		if row := cs.variantRowFor(rec); row != nil {
			link(row.ID, rec.MinTier)
		}
	}
	return out, nil
}

func buildTranscriptVariants(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	out := make([]any, 0, len(cs.Annotations))
	for _, ann := range cs.Annotations {
		transcript := cs.transcriptRowFor(ann.Name)
		if transcript == nil {
			continue
		}
		rec := cs.Case.ByMention(ann.VariantIndex)
		if rec == nil {
			continue
		}
		variant := cs.variantRowFor(rec)
		if variant == nil {
			continue
		}
		out = append(out, &models.TranscriptVariant{
			TranscriptID: transcript.ID,
			VariantID:    variant.ID,
			AFMax:        ann.AFMax,
			HGVSc:        ann.HGVSc,
			HGVSp:        ann.HGVSp,
			HGVSg:        ann.HGVSg,
			Sift:         ann.Sift,
			Polyphen:     ann.Polyphen,
		})
	}
	return out, nil
}

func buildProbandTranscriptVariants(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	out := make([]any, 0, len(cs.Annotations))
	for _, ann := range cs.Annotations {
		transcript := cs.transcriptRowFor(ann.Name)
		if transcript == nil {
			continue
		}
		rec := cs.Case.ByMention(ann.VariantIndex)
		if rec == nil {
			continue
		}
		variant := cs.variantRowFor(rec)
		if variant == nil {
			continue
		}
		pv := cs.probandVariantFor(variant.ID)
		if pv == nil {
			continue
		}
		out = append(out, &models.ProbandTranscriptVariant{
			TranscriptID:     transcript.ID,
			ProbandVariantID: pv.ID,
			Selected:         transcript.Canonical,
			Effect:           ann.Effect,
		})
	}
	return out, nil
}
