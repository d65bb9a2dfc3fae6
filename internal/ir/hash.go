package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPendingOrder = "tableside/pending-order/v1"
	DomainSnapshot     = "tableside/snapshot/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PendingOrderFingerprint computes the identity used to claim a pending
// order for replay. Item order does not affect the fingerprint.
func PendingOrderFingerprint(p PendingOrder) (string, error) {
	items := CloneItems(p.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	var table string
	if p.TableNo != nil {
		table = *p.TableNo
	}

	data, err := json.Marshal(struct {
		CaptureID string     `json:"capture_id"`
		Items     []CartItem `json:"items"`
		TableNo   string     `json:"table_no"`
	}{p.CaptureID, items, table})
	if err != nil {
		return "", fmt.Errorf("PendingOrderFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPendingOrder, data), nil
}

// SnapshotDigest hashes an encoded snapshot for integrity checks on load.
func SnapshotDigest(data []byte) string {
	return hashWithDomain(DomainSnapshot, data)
}

// OrderTotal returns Σ price*qty over items, summed in decimal so that
// fractional prices do not accumulate float error.
func OrderTotal(items []CartItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		line := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Qty)))
		sum = sum.Add(line)
	}
	return sum.InexactFloat64()
}
