// Package models defines the GORM schema for the normalized case store.
//
// Every table carries a unique constraint matching its entity type's
// identity fields, mirroring the lookup-index identity used by the
// reconciliation engine. Rows are write-once: the engine never updates an
// existing row's fields, and a changed case produces a new Report row under
// the same family rather than mutating history.
package models
