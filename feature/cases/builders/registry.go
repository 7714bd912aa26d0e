package builders

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"case-reconciler/core/reconcile"
	"case-reconciler/core/utils"
	"case-reconciler/feature/cases/models"
)

const insertBatchSize = 500

// BuildFunc produces one case's candidate rows for a single entity type.
// Rows of every type the descriptor depends on are already resolved on the
// CaseState, so candidates can carry real foreign key ids.
type BuildFunc func(ctx context.Context, bc *Context, cs *CaseState) ([]any, error)

// LoadFunc fetches every persisted row of the type for index building.
type LoadFunc func(ctx context.Context, db *gorm.DB) ([]any, error)

// PersistFunc bulk inserts the new rows of the type. Primary keys are
// populated on the given rows before it returns.
type PersistFunc func(ctx context.Context, db *gorm.DB, rows []any) error

// Descriptor is the per-type wiring of the engine: how to recognize a row,
// how to load what exists, how to build candidates, how to insert the rest.
type Descriptor struct {
	Type      reconcile.EntityType
	DependsOn []reconcile.EntityType
	Identity  reconcile.IdentityFunc
	Load      LoadFunc
	Build     BuildFunc
	Persist   PersistFunc
}

// Registry returns the descriptors in dependency order. The engine processes
// them strictly in this order; each type's insert is the barrier that makes
// its ids available to the types after it.
func Registry() []Descriptor {
	return []Descriptor{
		{
			Type:     reconcile.EntityClinician,
			Identity: clinicianIdentity,
			Load:     loadRows[models.Clinician](),
			Build:    buildClinicians,
			Persist:  persistRows[models.Clinician](),
		},
		{
			Type:      reconcile.EntityFamily,
			DependsOn: []reconcile.EntityType{reconcile.EntityClinician},
			Identity:  familyIdentity,
			Load:      loadRows[models.Family](),
			Build:     buildFamilies,
			Persist:   persistRows[models.Family](),
		},
		{
			Type:     reconcile.EntityPhenotype,
			Identity: phenotypeIdentity,
			Load:     loadRows[models.Phenotype](),
			Build:    buildPhenotypes,
			Persist:  persistRows[models.Phenotype](),
		},
		{
			Type:     reconcile.EntityPanel,
			Identity: panelIdentity,
			Load:     loadRows[models.Panel](),
			Build:    buildPanels,
			Persist:  persistRows[models.Panel](),
		},
		{
			Type:      reconcile.EntityPanelVersion,
			DependsOn: []reconcile.EntityType{reconcile.EntityPanel},
			Identity:  panelVersionIdentity,
			Load:      loadRows[models.PanelVersion](),
			Build:     buildPanelVersions,
			Persist:   persistRows[models.PanelVersion](),
		},
		{
			Type:     reconcile.EntityGene,
			Identity: geneIdentity,
			Load:     loadRows[models.Gene](),
			Build:    buildGenes,
			Persist:  persistRows[models.Gene](),
		},
		{
			Type:     reconcile.EntityToolOrAssemblyVersion,
			Identity: toolVersionIdentity,
			Load:     loadRows[models.ToolOrAssemblyVersion](),
			Build:    buildToolVersions,
			Persist:  persistRows[models.ToolOrAssemblyVersion](),
		},
		{
			Type:      reconcile.EntityTranscript,
			DependsOn: []reconcile.EntityType{reconcile.EntityGene},
			Identity:  transcriptIdentity,
			Load:      loadRows[models.Transcript](),
			Build:     buildTranscripts,
			Persist:   persistRows[models.Transcript](),
		},
		{
			Type:      reconcile.EntityVariant,
			DependsOn: []reconcile.EntityType{reconcile.EntityToolOrAssemblyVersion},
			Identity:  variantIdentity,
			Load:      loadRows[models.Variant](),
			Build:     buildVariants,
			Persist:   persistRows[models.Variant](),
		},
		{
			Type:      reconcile.EntityProband,
			DependsOn: []reconcile.EntityType{reconcile.EntityFamily},
			Identity:  probandIdentity,
			Load:      loadRows[models.Proband](),
			Build:     buildProbands,
			Persist:   persistRows[models.Proband](),
		},
		{
			Type:      reconcile.EntityRelative,
			DependsOn: []reconcile.EntityType{reconcile.EntityProband},
			Identity:  relativeIdentity,
			Load:      loadRows[models.Relative](),
			Build:     buildRelatives,
			Persist:   persistRows[models.Relative](),
		},
		{
			Type:      reconcile.EntityReportFamily,
			DependsOn: []reconcile.EntityType{reconcile.EntityFamily},
			Identity:  reportFamilyIdentity,
			Load:      loadRows[models.InterpretationReportFamily](),
			Build:     buildReportFamilies,
			Persist:   persistRows[models.InterpretationReportFamily](),
		},
		{
			Type:      reconcile.EntityReport,
			DependsOn: []reconcile.EntityType{reconcile.EntityReportFamily},
			Identity:  reportIdentity,
			Load:      loadRows[models.Report](),
			Build:     buildReports,
			Persist:   persistReports,
		},
		{
			Type: reconcile.EntityProbandVariant,
			DependsOn: []reconcile.EntityType{
				reconcile.EntityReport,
				reconcile.EntityVariant,
			},
			Identity: probandVariantIdentity,
			Load:     loadRows[models.ProbandVariant](),
			Build:    buildProbandVariants,
			Persist:  persistRows[models.ProbandVariant](),
		},
		{
			Type: reconcile.EntityTranscriptVariant,
			DependsOn: []reconcile.EntityType{
				reconcile.EntityTranscript,
				reconcile.EntityVariant,
			},
			Identity: transcriptVariantIdentity,
			Load:     loadRows[models.TranscriptVariant](),
			Build:    buildTranscriptVariants,
			Persist:  persistRows[models.TranscriptVariant](),
		},
		{
			Type: reconcile.EntityProbandTranscriptVariant,
			DependsOn: []reconcile.EntityType{
				reconcile.EntityTranscript,
				reconcile.EntityProbandVariant,
			},
			Identity: probandTranscriptVariantIdentity,
			Load:     loadRows[models.ProbandTranscriptVariant](),
			Build:    buildProbandTranscriptVariants,
			Persist:  persistRows[models.ProbandTranscriptVariant](),
		},
		{
			Type: reconcile.EntityReportEvent,
			DependsOn: []reconcile.EntityType{
				reconcile.EntityProbandVariant,
				reconcile.EntityGene,
				reconcile.EntityPanelVersion,
			},
			Identity: reportEventIdentity,
			Load:     loadRows[models.ReportEvent](),
			Build:    buildReportEvents,
			Persist:  persistRows[models.ReportEvent](),
		},
	}
}

func loadRows[T any]() LoadFunc {
	return func(ctx context.Context, db *gorm.DB) ([]any, error) {
		var rows []*T
		if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load %T: %w", rows, err)
		}
		out := make([]any, len(rows))
		for i, row := range rows {
			out[i] = row
		}
		return out, nil
	}
}

func persistRows[T any]() PersistFunc {
	return func(ctx context.Context, db *gorm.DB, rows []any) error {
		if len(rows) == 0 {
			return nil
		}
		typed := make([]*T, len(rows))
		for i, row := range rows {
			typed[i] = row.(*T)
		}
		if err := db.WithContext(ctx).CreateInBatches(typed, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert %T: %w", typed[0], err)
		}
		return nil
	}
}

// persistReports inserts reports one by one so each can take the next
// archived version number for its family. Reports are append-only.
func persistReports(ctx context.Context, db *gorm.DB, rows []any) error {
	for _, row := range rows {
		report := row.(*models.Report)
		var maxVersion int
		err := db.WithContext(ctx).
			Model(&models.Report{}).
			Where("ir_family_id = ?", report.IRFamilyID).
			Select("COALESCE(MAX(archived_version), 0)").
			Scan(&maxVersion).Error
		if err != nil {
			return fmt.Errorf("report version for family %d: %w", report.IRFamilyID, err)
		}
		report.ArchivedVersion = maxVersion + 1
		if err := db.WithContext(ctx).Create(report).Error; err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
	}
	return nil
}

func clinicianIdentity(row any) map[string]string {
	r := row.(*models.Clinician)
	return map[string]string{
		"name":     r.Name,
		"email":    r.Email,
		"hospital": r.Hospital,
	}
}

func familyIdentity(row any) map[string]string {
	r := row.(*models.Family)
	return map[string]string{"family_id": r.FamilyID}
}

func phenotypeIdentity(row any) map[string]string {
	r := row.(*models.Phenotype)
	return map[string]string{"hpo_term": r.HPOTerm}
}

func panelIdentity(row any) map[string]string {
	r := row.(*models.Panel)
	return map[string]string{"panelapp_id": r.PanelAppID}
}

func panelVersionIdentity(row any) map[string]string {
	r := row.(*models.PanelVersion)
	return map[string]string{
		"panel_id":       utils.ToString(r.PanelID),
		"version_number": r.VersionNumber,
	}
}

func geneIdentity(row any) map[string]string {
	r := row.(*models.Gene)
	return map[string]string{"hgnc_id": r.HGNCID}
}

func toolVersionIdentity(row any) map[string]string {
	r := row.(*models.ToolOrAssemblyVersion)
	return map[string]string{
		"tool_name":      r.ToolName,
		"version_number": r.VersionNumber,
	}
}

func transcriptIdentity(row any) map[string]string {
	r := row.(*models.Transcript)
	return map[string]string{"name": r.Name}
}

func variantIdentity(row any) map[string]string {
	r := row.(*models.Variant)
	return map[string]string{
		"genome_assembly_id": utils.ToString(r.GenomeAssemblyID),
		"chromosome":         r.Chromosome,
		"position":           utils.ToString(r.Position),
		"reference":          r.Reference,
		"alternate":          r.Alternate,
	}
}

func probandIdentity(row any) map[string]string {
	r := row.(*models.Proband)
	return map[string]string{"participant_id": r.ParticipantID}
}

func relativeIdentity(row any) map[string]string {
	r := row.(*models.Relative)
	return map[string]string{
		"proband_id":     utils.ToString(r.ProbandID),
		"participant_id": r.ParticipantID,
	}
}

func reportFamilyIdentity(row any) map[string]string {
	r := row.(*models.InterpretationReportFamily)
	return map[string]string{"ir_family_id": r.IRFamilyID}
}

func reportIdentity(row any) map[string]string {
	r := row.(*models.Report)
	return map[string]string{"content_hash": r.ContentHash}
}

func probandVariantIdentity(row any) map[string]string {
	r := row.(*models.ProbandVariant)
	return map[string]string{
		"report_id":  utils.ToString(r.ReportID),
		"variant_id": utils.ToString(r.VariantID),
		"max_tier":   utils.ToString(r.MaxTier),
	}
}

func transcriptVariantIdentity(row any) map[string]string {
	r := row.(*models.TranscriptVariant)
	return map[string]string{
		"transcript_id": utils.ToString(r.TranscriptID),
		"variant_id":    utils.ToString(r.VariantID),
	}
}

func probandTranscriptVariantIdentity(row any) map[string]string {
	r := row.(*models.ProbandTranscriptVariant)
	return map[string]string{
		"transcript_id":      utils.ToString(r.TranscriptID),
		"proband_variant_id": utils.ToString(r.ProbandVariantID),
	}
}

func reportEventIdentity(row any) map[string]string {
	r := row.(*models.ReportEvent)
	return map[string]string{
		"event_id":           r.EventID,
		"proband_variant_id": utils.ToString(r.ProbandVariantID),
	}
}
