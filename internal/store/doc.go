// Package store provides SQLite-backed durable storage for the tableside
// engine state.
//
// The store keeps:
//   - kv: the whole engine snapshot under a single versioned key
//     (StateKey), written after every state mutation
//   - pending_claims: fingerprints of pending orders that have been
//     replayed, so a retried OTP verification cannot submit twice
//
// # Load is fail-soft
//
// Load never returns an error. Missing, unparsable, digest-mismatched or
// schema-invalid data yields DefaultSnapshot(). Validation runs in two
// passes: the embedded CUE schema (schema.cue) checks structure, then Go
// checks the cross-field invariants (session/token, unique cart ids,
// pending order only while guest).
//
// # Token at rest
//
// The auth token is never written in clear text. With a Sealer configured
// (WithSealer) it is sealed with NaCl secretbox; without one it is
// dropped, and a non-guest session without a token is rehydrated as guest.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
