package actor

import "context"

// Store holds known-bad and known-proxy IP records.
type Store interface {
	// Get returns the record for ip, or nil when none exists.
	Get(ctx context.Context, ip string) (*KnownActor, error)

	// Upsert inserts the record or updates every field of an existing one.
	Upsert(ctx context.Context, record *KnownActor) error

	// Classify inserts or updates only the classification columns (proxy
	// type, confidence, detection time). Scorers write through this so a
	// zero-valued record can never clear an operator's block flag.
	Classify(ctx context.Context, record *KnownActor) error

	// Block inserts a block record for ip only if no record exists yet.
	// Concurrent detections for the same IP race on this call, so it must be
	// idempotent rather than an insert that fails on duplicate key.
	Block(ctx context.Context, record *KnownActor) error

	// Unblock clears the block flag on an existing record.
	Unblock(ctx context.Context, ip string) error
}
