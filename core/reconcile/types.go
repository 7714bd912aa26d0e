package reconcile

// EntityType tags one relational entity kind handled by the engine.
type EntityType string

const (
	EntityClinician                EntityType = "clinician"
	EntityFamily                   EntityType = "family"
	EntityPhenotype                EntityType = "phenotype"
	EntityPanel                    EntityType = "panel"
	EntityPanelVersion             EntityType = "panel_version"
	EntityGene                     EntityType = "gene"
	EntityToolOrAssemblyVersion    EntityType = "tool_or_assembly_version"
	EntityTranscript               EntityType = "transcript"
	EntityVariant                  EntityType = "variant"
	EntityProband                  EntityType = "proband"
	EntityRelative                 EntityType = "relative"
	EntityReportFamily             EntityType = "interpretation_report_family"
	EntityReport                   EntityType = "report"
	EntityProbandVariant           EntityType = "proband_variant"
	EntityTranscriptVariant        EntityType = "transcript_variant"
	EntityProbandTranscriptVariant EntityType = "proband_transcript_variant"
	EntityReportEvent              EntityType = "report_event"
)

// IdentityFunc extracts the identity fields of a row (persisted or candidate)
// as stringified values. Rows with equal identity maps are the same entity.
type IdentityFunc func(row any) map[string]string

// Resolved pairs a candidate with its resolution outcome. When Existing is
// true, Row is the persisted row (primary key populated). When false, Row is
// the pending new row shared by every candidate in the batch with the same
// identity; its primary key is backfilled by the bulk insert.
type Resolved struct {
	Row      any
	Existing bool
}
