// Package ingest drives a reconciliation run end to end.
//
// A run lists the available source records, fetches and parses them with a
// bounded worker pool, and classifies each as add, update, or skip by
// comparing its content hash against the newest archived report of the same
// family. Imported cases then flow through the entity registry in dependency
// order: each type is indexed, resolved, and bulk inserted before the next
// type begins. There is no cross-type transaction; a fatal error leaves the
// already processed types committed and is captured on the RunRecord, which
// is written for every run regardless of outcome.
package ingest
