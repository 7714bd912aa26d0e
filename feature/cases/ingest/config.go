package ingest

// Config holds the per-run ingestion settings.
type Config struct {
	// SampleType selects which case list to ask the source for.
	SampleType string `mapstructure:"sample_type" default:"raredisease"`
	// Workers bounds parallel case fetching and parsing.
	Workers int `mapstructure:"workers" default:"4"`
	// Head, when positive, processes only the first N listed cases.
	Head int `mapstructure:"head" default:"0"`
	// Only, when set, restricts the run to a single request id and forces it
	// through the update path even when its content hash is unchanged.
	Only string `mapstructure:"only" default:""`
	// SkipDemographics disables demographic polling; placeholder values are
	// stored instead.
	SkipDemographics bool `mapstructure:"skip_demographics" default:"true"`
	// PanelCacheDir is the local directory for cached panel definitions.
	PanelCacheDir string `mapstructure:"panel_cache_dir" default:"cache/panels"`
	// GeneMemoPath is the TSV file persisting ensembl -> HGNC resolutions.
	GeneMemoPath string `mapstructure:"gene_memo_path" default:"cache/genes.tsv"`
	// CaseDir is the directory a directory-backed case source reads from.
	CaseDir string `mapstructure:"case_dir" default:"cases"`
	// AnnotationFile is the file a file-backed annotator reads from.
	AnnotationFile string `mapstructure:"annotation_file" default:""`
	// Archive enables storing raw case JSON to object storage after a
	// successful run.
	Archive bool `mapstructure:"archive" default:"false"`
}
