package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileAnnotator serves precomputed transcript annotations from a JSON file
// containing a list of TranscriptAnnotation objects. It stands in for the
// batch annotation subprocess in local and test runs: annotations are
// matched to the requested variant mentions by (CaseID, VariantIndex).
type FileAnnotator struct {
	path string
}

// NewFileAnnotator creates an annotator over the given JSON file.
func NewFileAnnotator(path string) *FileAnnotator {
	return &FileAnnotator{path: path}
}

type annotationFile struct {
	Transcripts []fileAnnotation `json:"transcripts"`
}

type fileAnnotation struct {
	CaseID        string `json:"case_id"`
	VariantIndex  int    `json:"variant_index"`
	Name          string `json:"name"`
	Canonical     bool   `json:"canonical"`
	Strand        string `json:"strand"`
	Assembly      string `json:"assembly"`
	GeneEnsemblID string `json:"gene_ensembl_id"`
	GeneHGNCID    string `json:"gene_hgnc_id"`
	GeneHGNCName  string `json:"gene_hgnc_name"`
	AFMax         string `json:"af_max"`
	HGVSc         string `json:"hgvs_c"`
	HGVSp         string `json:"hgvs_p"`
	HGVSg         string `json:"hgvs_g"`
	Sift          string `json:"sift"`
	Polyphen      string `json:"polyphen"`
	Effect        string `json:"effect"`
}

// Annotate returns the stored annotations belonging to the requested
// mentions. Mentions with no stored annotation simply produce nothing, the
// same as a transcript the annotation step could not place.
func (a *FileAnnotator) Annotate(ctx context.Context, variants []CaseVariant) ([]TranscriptAnnotation, error) {
	raw, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	var file annotationFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse annotations: %w", err)
	}

	wanted := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		wanted[mentionKey(v.CaseID, v.Index)] = struct{}{}
	}

	var out []TranscriptAnnotation
	for _, t := range file.Transcripts {
		if _, ok := wanted[mentionKey(t.CaseID, t.VariantIndex)]; !ok {
			continue
		}
		out = append(out, TranscriptAnnotation(t))
	}
	return out, nil
}

func mentionKey(caseID string, index int) string {
	return fmt.Sprintf("%s#%d", caseID, index)
}
