package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tableside/internal/ir"
)

// StateKey is the single versioned key the snapshot is stored under.
const StateKey = "tableside.state.v1"

// Snapshot is the persisted form of the whole engine state.
type Snapshot struct {
	Version      int              `json:"version"`
	User         ir.Session       `json:"user"`
	Cart         []ir.CartItem    `json:"cart"`
	Orders       []ir.Order       `json:"orders"`
	Menu         []ir.MenuItem    `json:"menu"`
	SealedToken  string           `json:"token_sealed,omitempty"`
	CurrentTable *string          `json:"currentTable"`
	PendingOrder *ir.PendingOrder `json:"pendingOrder"`

	// Revision is the engine revision that produced the snapshot.
	// Stored alongside the value, not inside it.
	Revision int64 `json:"-"`
}

// DefaultSnapshot returns the empty guest state.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Version: ir.SnapshotVersion,
		User:    ir.GuestSession(),
		Cart:    []ir.CartItem{},
		Orders:  []ir.Order{},
		Menu:    []ir.MenuItem{},
	}
}

// Save writes the entire snapshot under the state key, replacing the previous one.
//
// The token is sealed when a Sealer is configured and dropped otherwise;
// it never reaches disk in clear text.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	data, err := s.encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, digest, revision)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			digest = excluded.digest,
			revision = excluded.revision
	`,
		s.key,
		string(data),
		ir.SnapshotDigest(data),
		snap.Revision,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the last saved snapshot, or DefaultSnapshot() if it is
// absent or fails any check. ok reports whether saved data was used.
func (s *Store) Load(ctx context.Context) (snap Snapshot, ok bool) {
	var value, digest string
	var revision int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, digest, revision FROM kv WHERE key = ?`, s.key,
	).Scan(&value, &digest, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSnapshot(), false
	}
	if err != nil {
		slog.Warn("snapshot unreadable, using defaults", "key", s.key, "error", err)
		return DefaultSnapshot(), false
	}

	if ir.SnapshotDigest([]byte(value)) != digest {
		slog.Warn("snapshot digest mismatch, using defaults", "key", s.key)
		return DefaultSnapshot(), false
	}

	snap, err = s.decodeSnapshot([]byte(value))
	if err != nil {
		slog.Warn("snapshot rejected, using defaults", "key", s.key, "error", err)
		return DefaultSnapshot(), false
	}
	snap.Revision = revision
	return snap, true
}

// encodeSnapshot serializes snap, sealing the token and replacing nil
// slices with empty ones so the encoded form always matches the schema.
func (s *Store) encodeSnapshot(snap Snapshot) ([]byte, error) {
	snap.Version = ir.SnapshotVersion
	snap.SealedToken = ""
	if snap.User.Token != "" && s.sealer != nil {
		sealed, err := s.sealer.Seal(snap.User.Token)
		if err != nil {
			return nil, err
		}
		snap.SealedToken = sealed
	}

	snap.Cart = nonNilItems(snap.Cart)
	if snap.Menu == nil {
		snap.Menu = []ir.MenuItem{}
	}
	orders := make([]ir.Order, len(snap.Orders))
	for i, o := range snap.Orders {
		o.Items = nonNilItems(o.Items)
		orders[i] = o
	}
	snap.Orders = orders
	if snap.PendingOrder != nil {
		p := *snap.PendingOrder
		p.Items = nonNilItems(p.Items)
		snap.PendingOrder = &p
	}

	return json.Marshal(snap)
}

// decodeSnapshot validates and parses stored data, restoring the token.
func (s *Store) decodeSnapshot(data []byte) (Snapshot, error) {
	if err := requireFields(data, requiredSnapshotFields...); err != nil {
		return Snapshot{}, err
	}
	if err := ValidateSnapshotJSON(data); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	if snap.User.Role != ir.RoleGuest {
		token, err := s.openToken(snap.SealedToken)
		if err != nil {
			// Identity cannot be restored without a token; keep the rest.
			slog.Info("session token unavailable, rehydrating as guest", "role", snap.User.Role, "error", err)
			snap.User = ir.GuestSession()
		} else {
			snap.User.Token = token
		}
	}
	snap.SealedToken = ""

	if err := checkInvariants(snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) openToken(sealed string) (string, error) {
	if sealed == "" {
		return "", errors.New("no token stored")
	}
	if s.sealer == nil {
		return "", errors.New("no sealing key configured")
	}
	return s.sealer.Open(sealed)
}

// requiredSnapshotFields must be present at the top level of stored data.
var requiredSnapshotFields = []string{"version", "user", "cart", "orders", "menu", "currentTable", "pendingOrder"}

// requireFields fails if any top-level field is absent. An absent array
// would otherwise decode as nil and pass as empty.
func requireFields(data []byte, fields ...string) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	for _, f := range fields {
		if _, ok := top[f]; !ok {
			return fmt.Errorf("snapshot missing field %q", f)
		}
	}
	return nil
}

// checkInvariants enforces the cross-field rules the schema cannot express.
func checkInvariants(snap Snapshot) error {
	if !snap.User.Valid() {
		return fmt.Errorf("invalid session for role %q", snap.User.Role)
	}
	seen := make(map[string]bool, len(snap.Cart))
	for _, it := range snap.Cart {
		if seen[it.ID] {
			return fmt.Errorf("duplicate cart item %q", it.ID)
		}
		seen[it.ID] = true
	}
	if snap.PendingOrder != nil && snap.User.Role != ir.RoleGuest {
		return fmt.Errorf("pending order present for role %q", snap.User.Role)
	}
	return nil
}

func nonNilItems(items []ir.CartItem) []ir.CartItem {
	if items == nil {
		return []ir.CartItem{}
	}
	return items
}
