package builders

import (
	"context"

	"case-reconciler/core/reconcile"
	"case-reconciler/feature/cases/models"
	"case-reconciler/feature/cases/parse"
)

func buildReportFamilies(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	family := firstRowOf[models.Family](cs, reconcile.EntityFamily)
	return []any{&models.InterpretationReportFamily{
		FamilyID:   family.ID,
		IRFamilyID: cs.Case.RequestID,
		CIP:        cs.Case.CIP,
		Priority:   cs.Case.Priority,
	}}, nil
}

func buildReports(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	irf := firstRowOf[models.InterpretationReportFamily](cs, reconcile.EntityReportFamily)
	return []any{&models.Report{
		IRFamilyID:  irf.ID,
		ContentHash: cs.Case.ContentHash,
		Status:      cs.Case.Status.Status,
		Updated:     cs.Case.Status.CreatedAt,
		User:        cs.Case.Status.User,
		PolledAt:    bc.now(),
	}}, nil
}

// buildReportEvents emits one event per reported observation whose proband
// variant resolved. Gene and panel attribution are optional: an event with an
// ambiguous or unknown gene is kept with the gene left unresolved.
func buildReportEvents(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	var out []any
	for _, rec := range cs.Case.Variants {
		if !rec.Eligible() {
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
		for i := range rec.Events {
			ev := &rec.Events[i]
			if ev.EventID == "" {
				continue
			}
			row := &models.ReportEvent{
				EventID:           ev.EventID,
				ProbandVariantID:  pv.ID,
				Tier:              ev.Tier,
				ModeOfInheritance: ev.ModeOfInheritance,
				Penetrance:        ev.Penetrance,
			}
			if gene := cs.eventGene(ev); gene != nil {
				id := gene.ID
				row.GeneID = &id
			}
			if ref := cs.eventPanel(ev); ref != nil {
				pvRow := cs.panelVersionRowFor(ref)
				id := pvRow.ID
				row.PanelVersionID = &id
				if cov, ok := cs.eventCoverage(ref, ev); ok {
					row.Coverage = &cov
				}
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// eventGene attributes an event to a resolved gene. The Ensembl id wins; the
// HGNC symbol is the fallback. When both match but disagree the attribution
// is left unresolved.
func (cs *CaseState) eventGene(ev *parse.ReportEventRecord) *models.Gene {
	var byEnsembl, bySymbol *models.Gene
	for _, g := range rowsOf[models.Gene](cs, reconcile.EntityGene) {
		if ev.GeneEnsemblID != "" && g.EnsemblID == ev.GeneEnsemblID {
			byEnsembl = g
		}
		if ev.GeneHGNCSymbol != "" && g.HGNCName == ev.GeneHGNCSymbol {
			bySymbol = g
		}
	}
	if byEnsembl != nil && bySymbol != nil && byEnsembl.ID != bySymbol.ID {
		return nil
	}
	if byEnsembl != nil {
		return byEnsembl
	}
	return bySymbol
}

// eventPanel matches the event's panel name and version against the case's
// imported panels.
func (cs *CaseState) eventPanel(ev *parse.ReportEventRecord) *parse.PanelRef {
	for _, ref := range cs.panelVersionsBuilt {
		if ref.Definition.Name == ev.PanelName && ref.Version == ev.PanelVersion {
			return ref
		}
	}
	return nil
}

// eventCoverage pulls the average coverage of the event's gene on the matched
// panel for the proband's first sample. Any missing lookup level means no
// coverage is recorded.
func (cs *CaseState) eventCoverage(ref *parse.PanelRef, ev *parse.ReportEventRecord) (float64, bool) {
	if len(cs.Case.Proband.Samples) == 0 {
		return 0, false
	}
	panels, ok := cs.Case.Coverage[ref.PanelAppID]
	if !ok {
		return 0, false
	}
	genes, ok := panels[ev.GeneHGNCSymbol]
	if !ok {
		return 0, false
	}
	cov, ok := genes[cs.Case.Proband.Samples[0]+"_avg"]
	return cov, ok
}
