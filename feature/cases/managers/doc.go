// Package managers holds the run-scoped caching managers that sit between
// candidate construction and the external collaborators.
//
// Each manager memoizes one class of externally derived fact for the
// lifetime of a single reconciliation run, eliminating duplicate network
// calls and disk lookups for identical keys. Candidate construction may run
// across a worker pool, so every manager serializes access and collapses
// concurrent lookups of the same key into one call via singleflight.
//
// Two managers persist beyond a run: PanelManager caches fetched panel
// definitions to local JSON files keyed by (panelID, version), and
// GeneManager keeps a durable TSV memo of ensembl -> HGNC resolutions,
// including negative results.
package managers
