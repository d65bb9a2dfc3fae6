// Package sandbox is an in-memory implementation of the restaurant REST API.
//
// It serves every endpoint the engine consumes under /api, issues HS256
// bearer tokens, enforces role permissions and forward-only status
// changes (409 otherwise), and exposes hooks for tests: issued OTPs,
// injected failures, and a count of requests per route.
//
// It backs the engine tests, the scenario harness, and `tableside sandbox`
// for local demos. It is not a production backend.
package sandbox
