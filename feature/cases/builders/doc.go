// Package builders turns parsed cases into candidate rows, one entity type
// at a time.
//
// The Registry is the table the engine runs: descriptors in dependency
// order, each pairing an identity function with a loader, a builder, and a
// bulk persister. A builder only ever sees types earlier in the table, so
// every foreign key it writes refers to a row whose primary key is already
// known, either because it existed before the run or because the preceding
// bulk insert backfilled it.
//
// Builders degrade rather than fail where a single item cannot be resolved:
// an unknown gene, an unavailable panel definition, or a failed demographics
// lookup drops or placeholders that item and the rest of the case imports.
package builders
