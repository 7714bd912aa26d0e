// Package parse turns one raw nested case record into an in-memory Case:
// proband and relatives, requested panels, the latest status, and the flat
// list of variant-of-interest mentions with their minimum report tier.
//
// Tier handling follows the reporting rules: a tiered variant is eligible
// for persistence only below tier 3, while variants flagged in the
// interpreted-genome section are always eligible at tier 0. Eligible records
// receive a 1-based mention index used to match annotation results back to
// the record.
package parse
