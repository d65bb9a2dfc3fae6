// Package ir provides the data model shared by every tableside package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Session.Token is never serialized with the session (json:"-");
//     persistence handles it separately
//   - Order.Total is computed once at creation (OrderTotal) and never again
//   - Status only moves forward: pending -> preparing -> completed -> paid
//   - All JSON tags follow the backend contract (snake_case except createdAt)
package ir
