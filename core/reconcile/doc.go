// Package reconcile provides the generic core of the case reconciliation
// engine: identity-hash lookup indices over persisted rows, candidate
// resolution, and in-batch deduplication.
//
// The engine is designed around one pass per entity type:
//   - An Index is built once per entity type per run from all persisted rows,
//     mapping identity-hash -> row. Existence checks are then O(1) instead of
//     one query per candidate.
//   - A Batch wraps the Index for one processing pass. Resolving a candidate
//     either finds the persisted row, finds an identical candidate emitted
//     earlier in the same batch (two cases referencing the same gene collapse
//     to a single insert), or registers the candidate as new.
//
// # Identity
//
// Each entity type declares identity fields: the attribute subset whose
// equality defines "same entity". Identity extraction is a plain function
// supplied by the caller, so the package never inspects types at runtime.
// The hash is an index, not a proof: a hash hit is accepted only after the
// matched row's actual identity fields are compared against the candidate's.
//
// # Ambiguity
//
// Two persisted rows hashing identically on identity fields means the store's
// uniqueness constraints were violated upstream. That is never papered over:
// index construction fails with ErrAmbiguousIdentity and the run aborts.
package reconcile
