package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tableside/internal/ir"
)

// testKeyHex is a fixed 32-byte sealing key for tests.
const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// createTestStore creates a new store in a temp dir.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSealer returns a Sealer using testKeyHex.
func createTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := ParseKey(testKeyHex)
	if err != nil {
		t.Fatalf("ParseKey() failed: %v", err)
	}
	s, err := NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer() failed: %v", err)
	}
	return s
}

// createTestSnapshot returns a reachable customer state with every field populated.
func createTestSnapshot() Snapshot {
	table := "T4"
	return Snapshot{
		Version: ir.SnapshotVersion,
		User: ir.Session{
			Role:  ir.RoleCustomer,
			Phone: "9998887776",
			Email: "guest@example.com",
			Token: "tok-customer",
		},
		Cart: []ir.CartItem{
			{ID: "m1", Name: "Paneer Tikka", Price: 706, Qty: 2},
		},
		Orders: []ir.Order{
			{
				ID:        "o1",
				Items:     []ir.CartItem{{ID: "m2", Name: "Lassi", Price: 120, Qty: 1}},
				Total:     120,
				Status:    ir.StatusPreparing,
				Customer:  ir.Customer{Phone: "9998887776", Email: "guest@example.com"},
				TableNo:   &table,
				CreatedAt: 1700000000000,
			},
		},
		Menu: []ir.MenuItem{
			{ID: "m1", Name: "Paneer Tikka", Price: 706, Category: "Starters"},
			{ID: "m2", Name: "Lassi", Price: 120, Category: "Drinks", Description: "Sweet"},
		},
		CurrentTable: &table,
	}
}
