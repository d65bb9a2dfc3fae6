package store

import (
	"context"
	"fmt"
)

// ClaimPendingOrder records that the pending order with the given fingerprint
// is being replayed. Returns claimed=true only for the first caller; every
// later call with the same fingerprint returns false.
//
// Uses INSERT ... ON CONFLICT(fingerprint) DO NOTHING so the claim is atomic
// even across processes sharing the database file.
func (s *Store) ClaimPendingOrder(ctx context.Context, fingerprint, captureID string, seq int64) (claimed bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_claims (fingerprint, capture_id, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fingerprint, captureID, seq)
	if err != nil {
		return false, fmt.Errorf("claim pending order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim pending order: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// HasClaim reports whether a pending order with this fingerprint was replayed.
func (s *Store) HasClaim(ctx context.Context, fingerprint string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_claims WHERE fingerprint = ?`, fingerprint,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check claim: %w", err)
	}
	return count > 0, nil
}
