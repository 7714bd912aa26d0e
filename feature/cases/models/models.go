package models

import (
	"time"

	"gorm.io/gorm"
)

// Clinician is the referring clinician responsible for a family.
type Clinician struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"size:255;uniqueIndex:ux_clinician"`
	Email    string `gorm:"size:255;uniqueIndex:ux_clinician"`
	Hospital string `gorm:"size:255;uniqueIndex:ux_clinician"`
}

func (Clinician) TableName() string { return "clinician" }

// Family groups the proband and relatives under one participating family id.
type Family struct {
	ID          uint       `gorm:"primaryKey"`
	ClinicianID uint       `gorm:"not null;index"`
	Clinician   *Clinician `gorm:"foreignKey:ClinicianID"`
	FamilyID    string     `gorm:"column:family_id;size:64;uniqueIndex"`
}

func (Family) TableName() string { return "family" }

// Phenotype is a single HPO term observed on a proband.
type Phenotype struct {
	ID          uint   `gorm:"primaryKey"`
	HPOTerm     string `gorm:"column:hpo_term;size:64;uniqueIndex"`
	Description string `gorm:"size:255"`
}

func (Phenotype) TableName() string { return "phenotype" }

// Panel is one gene panel as known to the panel service, independent of
// version.
type Panel struct {
	ID              uint   `gorm:"primaryKey"`
	PanelAppID      string `gorm:"column:panelapp_id;size:64;uniqueIndex"`
	PanelName       string `gorm:"size:255"`
	DiseaseGroup    string `gorm:"size:255"`
	DiseaseSubgroup string `gorm:"size:255"`
}

func (Panel) TableName() string { return "panel" }

// PanelVersion pins a Panel to one published version number.
type PanelVersion struct {
	ID            uint   `gorm:"primaryKey"`
	PanelID       uint   `gorm:"not null;uniqueIndex:ux_panel_version"`
	Panel         *Panel `gorm:"foreignKey:PanelID"`
	VersionNumber string `gorm:"size:32;uniqueIndex:ux_panel_version"`
}

func (PanelVersion) TableName() string { return "panel_version" }

// Gene is identified by its HGNC id; the Ensembl id and symbol are carried
// for matching report events back to genes.
type Gene struct {
	ID        uint   `gorm:"primaryKey"`
	EnsemblID string `gorm:"column:ensembl_id;size:32;index"`
	HGNCName  string `gorm:"column:hgnc_name;size:64"`
	HGNCID    string `gorm:"column:hgnc_id;size:32;uniqueIndex"`
}

func (Gene) TableName() string { return "gene" }

// ToolOrAssemblyVersion records a pipeline tool or reference assembly at a
// specific version, e.g. genome_build GRCh38.
type ToolOrAssemblyVersion struct {
	ID            uint   `gorm:"primaryKey"`
	ToolName      string `gorm:"size:64;uniqueIndex:ux_tool_version"`
	VersionNumber string `gorm:"size:64;uniqueIndex:ux_tool_version"`
}

func (ToolOrAssemblyVersion) TableName() string { return "tool_or_assembly_version" }

// Transcript is a gene transcript produced by the annotation step. Only
// transcripts that matched a resolved Gene are persisted.
type Transcript struct {
	ID        uint   `gorm:"primaryKey"`
	GeneID    uint   `gorm:"not null;index"`
	Gene      *Gene  `gorm:"foreignKey:GeneID"`
	Name      string `gorm:"size:64;uniqueIndex"`
	Canonical bool
	Strand    string `gorm:"size:8"`
}

func (Transcript) TableName() string { return "transcript" }

// Variant is one genomic change at a position under a specific assembly.
type Variant struct {
	ID               uint                   `gorm:"primaryKey"`
	GenomeAssemblyID uint                   `gorm:"not null;uniqueIndex:ux_variant"`
	GenomeAssembly   *ToolOrAssemblyVersion `gorm:"foreignKey:GenomeAssemblyID"`
	Chromosome       string                 `gorm:"size:8;uniqueIndex:ux_variant"`
	Position         int                    `gorm:"uniqueIndex:ux_variant"`
	Reference        string                 `gorm:"size:255;uniqueIndex:ux_variant"`
	Alternate        string                 `gorm:"size:255;uniqueIndex:ux_variant"`
	DBSNPID          string                 `gorm:"column:db_snp_id;size:32"`
}

func (Variant) TableName() string { return "variant" }

// Proband is the index participant of a family.
type Proband struct {
	ID            uint    `gorm:"primaryKey"`
	FamilyID      uint    `gorm:"not null;index"`
	Family        *Family `gorm:"foreignKey:FamilyID"`
	ParticipantID string  `gorm:"column:participant_id;size:64;uniqueIndex"`
	NHSNumber     string  `gorm:"column:nhs_number;size:32"`
	Forename      string  `gorm:"size:255"`
	Surname       string  `gorm:"size:255"`
	DateOfBirth   time.Time
	Sex           string `gorm:"size:16"`
}

func (Proband) TableName() string { return "proband" }

// Relative is a non-proband family member.
type Relative struct {
	ID                uint     `gorm:"primaryKey"`
	ProbandID         uint     `gorm:"not null;uniqueIndex:ux_relative"`
	Proband           *Proband `gorm:"foreignKey:ProbandID"`
	ParticipantID     string   `gorm:"column:participant_id;size:64;uniqueIndex:ux_relative"`
	RelationToProband string   `gorm:"size:64"`
	AffectedStatus    string   `gorm:"size:64"`
	NHSNumber         string   `gorm:"column:nhs_number;size:32"`
	Forename          string   `gorm:"size:255"`
	Surname           string   `gorm:"size:255"`
	DateOfBirth       time.Time
	Sex               string `gorm:"size:16"`
}

func (Relative) TableName() string { return "relative" }

// InterpretationReportFamily ties a family to one interpretation request id.
// Its existence is what classifies a source record as add vs update.
type InterpretationReportFamily struct {
	ID         uint    `gorm:"primaryKey"`
	FamilyID   uint    `gorm:"not null;index"`
	Family     *Family `gorm:"foreignKey:FamilyID"`
	IRFamilyID string  `gorm:"column:ir_family_id;size:64;uniqueIndex"`
	CIP        string  `gorm:"column:cip;size:64"`
	Priority   string  `gorm:"size:64"`
}

func (InterpretationReportFamily) TableName() string { return "interpretation_report_family" }

// Report is one archived interpretation of a case. Rows are never mutated;
// a changed source record inserts a new Report under the same family with an
// incremented archived version.
type Report struct {
	ID              uint                        `gorm:"primaryKey"`
	IRFamilyID      uint                        `gorm:"column:ir_family_id;not null;index"`
	IRFamily        *InterpretationReportFamily `gorm:"foreignKey:IRFamilyID"`
	ContentHash     string                      `gorm:"column:content_hash;size:128;uniqueIndex"`
	Status          string                      `gorm:"size:64"`
	Updated         time.Time
	User            string `gorm:"size:255"`
	PolledAt        time.Time
	ArchivedVersion int `gorm:"not null;default:1"`
}

func (Report) TableName() string { return "report" }

// ProbandVariant links a persisted Variant to the Report it was observed in,
// at the variant's minimum report tier.
type ProbandVariant struct {
	ID        uint     `gorm:"primaryKey"`
	ReportID  uint     `gorm:"not null;uniqueIndex:ux_proband_variant"`
	Report    *Report  `gorm:"foreignKey:ReportID"`
	VariantID uint     `gorm:"not null;uniqueIndex:ux_proband_variant"`
	Variant   *Variant `gorm:"foreignKey:VariantID"`
	MaxTier   int      `gorm:"uniqueIndex:ux_proband_variant"`
	Somatic   bool
}

func (ProbandVariant) TableName() string { return "proband_variant" }

// TranscriptVariant carries the per-transcript consequence annotation of a
// variant.
type TranscriptVariant struct {
	ID           uint        `gorm:"primaryKey"`
	TranscriptID uint        `gorm:"not null;uniqueIndex:ux_transcript_variant"`
	Transcript   *Transcript `gorm:"foreignKey:TranscriptID"`
	VariantID    uint        `gorm:"not null;uniqueIndex:ux_transcript_variant"`
	Variant      *Variant    `gorm:"foreignKey:VariantID"`
	AFMax        string      `gorm:"column:af_max;size:32"`
	HGVSc        string      `gorm:"column:hgvs_c;size:255"`
	HGVSp        string      `gorm:"column:hgvs_p;size:255"`
	HGVSg        string      `gorm:"column:hgvs_g;size:255"`
	Sift         string      `gorm:"size:64"`
	Polyphen     string      `gorm:"size:64"`
}

func (TranscriptVariant) TableName() string { return "transcript_variant" }

// ProbandTranscriptVariant selects which transcript-level consequence applies
// to a proband's variant; the canonical transcript is selected by default.
type ProbandTranscriptVariant struct {
	ID               uint            `gorm:"primaryKey"`
	TranscriptID     uint            `gorm:"not null;uniqueIndex:ux_ptv"`
	Transcript       *Transcript     `gorm:"foreignKey:TranscriptID"`
	ProbandVariantID uint            `gorm:"not null;uniqueIndex:ux_ptv"`
	ProbandVariant   *ProbandVariant `gorm:"foreignKey:ProbandVariantID"`
	Selected         bool
	Effect           string `gorm:"size:255"`
}

func (ProbandTranscriptVariant) TableName() string { return "proband_transcript_variant" }

// ReportEvent is one reported observation of a proband variant against a
// panel, with optional gene and coverage context.
type ReportEvent struct {
	ID               uint            `gorm:"primaryKey"`
	EventID          string          `gorm:"column:event_id;size:64;uniqueIndex:ux_report_event"`
	ProbandVariantID uint            `gorm:"not null;uniqueIndex:ux_report_event"`
	ProbandVariant   *ProbandVariant `gorm:"foreignKey:ProbandVariantID"`
	GeneID           *uint           `gorm:"index"`
	Gene             *Gene           `gorm:"foreignKey:GeneID"`
	PanelVersionID   *uint           `gorm:"index"`
	PanelVersion     *PanelVersion   `gorm:"foreignKey:PanelVersionID"`
	Tier             *int
	ModeOfInheritance string   `gorm:"size:255"`
	Penetrance        string   `gorm:"size:64"`
	Coverage          *float64
}

func (ReportEvent) TableName() string { return "report_event" }

// RunRecord is the append-only outcome log of one reconciliation run. It is
// the only row the engine always writes, even when a run fails.
type RunRecord struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"column:run_id;size:36;uniqueIndex"`
	StartedAt    time.Time
	FinishedAt   time.Time
	Success      bool
	CasesAdded   int
	CasesUpdated int
	CasesSkipped int
	Error        string `gorm:"type:text"`
}

func (RunRecord) TableName() string { return "run_record" }

// AutoMigrate creates the schema for every entity table plus the run log.
// The engine otherwise never alters rows in place.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Clinician{},
		&Family{},
		&Phenotype{},
		&Panel{},
		&PanelVersion{},
		&Gene{},
		&ToolOrAssemblyVersion{},
		&Transcript{},
		&Variant{},
		&Proband{},
		&Relative{},
		&InterpretationReportFamily{},
		&Report{},
		&ProbandVariant{},
		&TranscriptVariant{},
		&ProbandTranscriptVariant{},
		&ReportEvent{},
		&RunRecord{},
	)
}
