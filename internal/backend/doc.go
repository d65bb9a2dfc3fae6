// Package backend is the HTTP client for the restaurant REST API.
//
// The client consumes the contract; it does not interpret it. Every
// non-2xx response is returned as *Error carrying the status code and the
// server's message (from "detail", "error" or "message", in that order).
// Transport failures are returned wrapped as-is. Classifying failures
// (auth expiry, validation, conflict) is the engine's job.
//
// Protected endpoints take the bearer token explicitly per call; the
// client holds no session state.
package backend
