package sources

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by lookups whose subject does not exist at the
// collaborator, as opposed to the collaborator itself failing.
var ErrNotFound = errors.New("not found")

// SourceRecord is one raw nested case record as fetched from the reporting
// API. It is immutable once fetched.
type SourceRecord struct {
	RequestID string
	Version   int
	Raw       json.RawMessage
}

// CaseRef identifies one fetchable case at the case source.
type CaseRef struct {
	RequestID string
	Version   int
}

// CaseSource lists and fetches raw case records. Transient failures are the
// collaborator's problem to retry; the engine treats errors as final for the
// run.
type CaseSource interface {
	ListCases(ctx context.Context, sampleType string) ([]CaseRef, error)
	FetchCase(ctx context.Context, requestID string, version int) (*SourceRecord, error)
}

// PanelGene is one gene included in a panel definition.
type PanelGene struct {
	EnsemblID string
	Symbol    string
}

// PanelDefinition is the panel service's description of one panel version.
type PanelDefinition struct {
	Name            string
	DiseaseGroup    string
	DiseaseSubgroup string
	Version         string
	Genes           []PanelGene
}

// PanelSource fetches panel definitions by id and version.
type PanelSource interface {
	FetchPanel(ctx context.Context, panelID, version string) (*PanelDefinition, error)
}

// GeneNameSource resolves an Ensembl gene id to an HGNC id. Returns
// ErrNotFound when the service knows the id but has no HGNC mapping.
type GeneNameSource interface {
	HGNCID(ctx context.Context, ensemblID string) (string, error)
}

// ParticipantInfo carries the demographics of one participant.
type ParticipantInfo struct {
	Forename    string
	Surname     string
	DateOfBirth string // YYYY/MM/DD
	NHSNumber   string
}

// ClinicianInfo carries the responsible clinician for a family.
type ClinicianInfo struct {
	Name     string
	Hospital string
}

// DemographicsSource looks up participant and clinician identity data.
// When demographic polling is disabled by configuration the engine never
// calls this and substitutes placeholder values instead.
type DemographicsSource interface {
	Participant(ctx context.Context, participantID string) (*ParticipantInfo, error)
	ClinicianForFamily(ctx context.Context, familyID string) (*ClinicianInfo, error)
}

// CaseVariant is one variant mention sent to the annotation step, keyed back
// to its case by (CaseID, Index).
type CaseVariant struct {
	CaseID     string
	Index      int
	Chromosome string
	Position   int
	Reference  string
	Alternate  string
	Assembly   string
}

// TranscriptAnnotation is one annotated transcript consequence returned by
// the annotation step for a specific variant mention.
type TranscriptAnnotation struct {
	CaseID        string
	VariantIndex  int
	Name          string
	Canonical     bool
	Strand        string
	Assembly      string
	GeneEnsemblID string
	GeneHGNCID    string
	GeneHGNCName  string
	AFMax         string
	HGVSc         string
	HGVSp         string
	HGVSg         string
	Sift          string
	Polyphen      string
	Effect        string
}

// Annotator produces transcript consequences for a batch of variant
// mentions. One call covers all cases of a run.
type Annotator interface {
	Annotate(ctx context.Context, variants []CaseVariant) ([]TranscriptAnnotation, error)
}
