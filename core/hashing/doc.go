// Package hashing provides canonical content hashing for case records and
// entity identity fields.
//
// The same digest function backs two distinct uses:
//
//  1. Change detection: the full case record is canonicalized (sorted keys)
//     and hashed, and the digest is compared against the hash stored on the
//     most recent persisted report for the same family.
//
//  2. Identity indexing: each entity type's identity fields are stringified
//     and hashed to build the per-run lookup index. Here the hash is only an
//     index key; matches are verified field-by-field before being accepted.
package hashing
