// Package engine implements the tableside session and order-synchronization engine.
//
// The engine is the single piece of state between a UI and the restaurant
// backend. It holds the session, the cart, the selected table, the menu and
// order caches, and a pending order captured before authentication.
//
// ARCHITECTURE:
//
// State Container:
// All state is one immutable State value. Each mutation is a list of typed
// Actions applied by the pure Reduce function to the latest state under a
// mutex, then written to the store exactly once. Mutations are never
// read-modify-write against a copy captured before a network call.
//
// Request Sequencing:
// The order and menu caches each have a Clock. A fetch takes the next seq
// before it is sent and its response is applied only if the seq is still
// the latest. Login and logout bump the order clock, discarding any fetch
// in flight.
//
// Gateway:
// Orders are created and advanced only through the gateway operations.
// A created order enters the cache after the backend confirms it. A status
// change is a PATCH followed by a full refetch; local status is never
// edited, so the cached status can only move as the backend reports it.
//
// Pending Order Handoff:
// A guest checkout captures the cart and table. Logging the customer in
// detaches the capture in the same transition, so it is cleared before the
// order is submitted, and a store claim keyed by the capture's fingerprint
// stops it from being submitted twice.
//
// Polling:
// Poller runs a fetch immediately and then on an interval until stopped.
// Each dashboard view owns its own poller.
//
// ERRORS:
//
// Public operations return *Error values (see ErrorCode). A 401 or 403 from
// the backend logs the session out and queues a NoticeSessionExpired.
// Calling an operation under a role that may not use it returns
// ErrCodeRoleMismatch before any request is sent.
package engine
