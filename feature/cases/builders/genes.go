package builders

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"case-reconciler/feature/cases/models"
	"case-reconciler/feature/cases/sources"
)

// buildGenes collects every gene the case mentions, from panel definitions
// and from transcript annotations, and resolves each to an HGNC id. Genes
// without a resolvable HGNC id are dropped and nothing downstream refers to
// them.
func buildGenes(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	type entry struct {
		ensemblID string
		symbol    string
		hgncID    string
	}

	var pending []entry
	for _, ref := range cs.panelsBuilt {
		for _, g := range ref.Definition.Genes {
			if g.EnsemblID == "" {
				continue
			}
			pending = append(pending, entry{ensemblID: g.EnsemblID, symbol: g.Symbol})
		}
	}
	for _, ann := range cs.Annotations {
		if ann.GeneEnsemblID == "" || ann.GeneHGNCID == "" {
			continue
		}
		// annotations carry their own HGNC id, teach the resolver about it
		bc.Genes.Record(ann.GeneEnsemblID, ann.GeneHGNCID)
		pending = append(pending, entry{
			ensemblID: ann.GeneEnsemblID,
			symbol:    ann.GeneHGNCName,
			hgncID:    ann.GeneHGNCID,
		})
	}

	seen := make(map[string]bool, len(pending))
	out := make([]any, 0, len(pending))
	for _, e := range pending {
		if e.hgncID == "" {
			hgncID, err := bc.Genes.HGNCID(ctx, e.ensemblID)
			if err != nil {
				if !errors.Is(err, sources.ErrNotFound) {
					bc.Log.Warn("gene name lookup failed",
						zap.String("ensembl_id", e.ensemblID), zap.Error(err))
				}
				continue
			}
			e.hgncID = hgncID
		}
		if seen[e.hgncID] {
			continue
		}
		seen[e.hgncID] = true
		out = append(out, &models.Gene{
			EnsemblID: e.ensemblID,
			HGNCName:  e.symbol,
			HGNCID:    e.hgncID,
		})
	}
	return out, nil
}

// buildTranscripts keeps the annotated transcripts whose gene survived
// resolution. The transcript name array is kept parallel to the candidates so
// later builders can map annotations back to rows.
func buildTranscripts(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	out := make([]any, 0, len(cs.Annotations))
	seen := make(map[string]bool, len(cs.Annotations))
	for _, ann := range cs.Annotations {
		if ann.GeneHGNCID == "" || seen[ann.Name] {
			continue
		}
		gene := cs.geneByHGNCID(ann.GeneHGNCID)
		if gene == nil {
			continue
		}
		seen[ann.Name] = true
		cs.transcriptsBuilt = append(cs.transcriptsBuilt, ann.Name)
		out = append(out, &models.Transcript{
			GeneID:    gene.ID,
			Name:      ann.Name,
			Canonical: ann.Canonical,
			Strand:    ann.Strand,
		})
	}
	return out, nil
}
