package ir

// Version constants for the persisted snapshot and engine.
const (
	// SnapshotVersion is the persisted snapshot schema version.
	SnapshotVersion = 1

	// EngineVersion is the tableside engine version.
	EngineVersion = "0.1.0"
)
