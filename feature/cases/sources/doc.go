// Package sources defines the external collaborators of the reconciliation
// engine: the case record source, panel definitions, gene-name resolution,
// participant demographics, and the batch annotation step.
//
// The engine only depends on the interfaces. Network clients live with the
// services that own them; this package ships filesystem-backed
// implementations (DirCaseSource, FileAnnotator) sufficient for local runs
// and tests.
package sources
