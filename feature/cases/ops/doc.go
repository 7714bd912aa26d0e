// Package ops exposes the read-only operational HTTP surface: run history
// out of the database and archived raw case records out of object storage.
//
// # Endpoints
//
//   - GET /runs        recent reconciliation runs, newest first
//   - GET /runs/:id    a single run by run id
//   - GET /cases       request ids with an archived raw record
//   - GET /cases/:id   the archived raw record for one request id
//
// Both backends are optional; an endpoint whose backend was not configured
// answers 503.
package ops
