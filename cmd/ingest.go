package cmd

import (
	"context"
	"fmt"

	"case-reconciler/core/config"
	"case-reconciler/core/database"
	"case-reconciler/core/logger"
	"case-reconciler/core/storage"
	"case-reconciler/feature/cases/builders"
	"case-reconciler/feature/cases/ingest"
	"case-reconciler/feature/cases/managers"
	"case-reconciler/feature/cases/models"
	"case-reconciler/feature/cases/sources"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for the ingest command; each overrides its config counterpart
	// only when explicitly set.
	ingestSampleType string
	ingestWorkers    int
	ingestHead       int
	ingestOnly       string
	ingestPullDemog  bool
	ingestArchive    bool
)

// ingestCmd runs one reconciliation over the configured case source.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest and reconcile interpretation request records",
	Long: `Ingest lists the available interpretation requests, classifies each as
new, changed, or unchanged against the stored reports, and bulk-inserts only
the rows the database is missing.

Examples:
  # Reconcile every listed raredisease case
  case-reconciler ingest

  # Limit to the first 20 cases
  case-reconciler ingest --head 20

  # Force a single case through the update path
  case-reconciler ingest --only 1234-2

  # Poll real demographics instead of placeholders
  case-reconciler ingest --demographics`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSampleType, "sample-type", "", "Sample type to list (raredisease or cancer)")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "Parallel case fetch/parse workers")
	ingestCmd.Flags().IntVar(&ingestHead, "head", 0, "Process only the first N listed cases")
	ingestCmd.Flags().StringVar(&ingestOnly, "only", "", "Restrict the run to one '<id>-<version>' case")
	ingestCmd.Flags().BoolVar(&ingestPullDemog, "demographics", false, "Poll demographics instead of storing placeholders")
	ingestCmd.Flags().BoolVar(&ingestArchive, "archive", false, "Archive raw case records to object storage")

	RootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIngestFlags(cmd, &cfg.Ingest)

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	panels, err := managers.NewPanelManager(nil, cfg.Ingest.PanelCacheDir)
	if err != nil {
		return fmt.Errorf("failed to open panel cache: %w", err)
	}
	genes, err := managers.NewGeneManager(nil, cfg.Ingest.GeneMemoPath)
	if err != nil {
		return fmt.Errorf("failed to open gene memo: %w", err)
	}

	deps := ingest.Deps{
		DB:     db,
		Source: sources.NewDirCaseSource(cfg.Ingest.CaseDir),
		Builders: &builders.Context{
			Panels:           panels,
			Genes:            genes,
			Variants:         managers.NewVariantManager(),
			Transcripts:      managers.NewTranscriptManager(),
			SkipDemographics: cfg.Ingest.SkipDemographics,
			Log:              l,
		},
		Log: l,
	}
	if cfg.Ingest.AnnotationFile != "" {
		deps.Annotator = sources.NewFileAnnotator(cfg.Ingest.AnnotationFile)
	}

	// Storage is only needed when archiving raw records.
	if cfg.Ingest.Archive {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		deps.Storage = client
		deps.Bucket = cfg.Storage.Bucket
	}

	driver := ingest.New(deps, cfg.Ingest)
	if deps.Storage != nil {
		if err := driver.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
	}

	run, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	l.Info("ingest complete",
		zap.String("run_id", run.RunID),
		zap.Int("added", run.CasesAdded),
		zap.Int("updated", run.CasesUpdated),
		zap.Int("skipped", run.CasesSkipped))
	return nil
}

// applyIngestFlags copies flags the caller actually set over the loaded
// configuration.
func applyIngestFlags(cmd *cobra.Command, cfg *ingest.Config) {
	if cmd.Flags().Changed("sample-type") {
		cfg.SampleType = ingestSampleType
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = ingestWorkers
	}
	if cmd.Flags().Changed("head") {
		cfg.Head = ingestHead
	}
	if cmd.Flags().Changed("only") {
		cfg.Only = ingestOnly
	}
	if cmd.Flags().Changed("demographics") {
		cfg.SkipDemographics = !ingestPullDemog
	}
	if cmd.Flags().Changed("archive") {
		cfg.Archive = ingestArchive
	}
}
