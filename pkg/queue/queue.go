// Package queue provides the append-only FIFO buffers between the mutation
// path and the background schedulers.
package queue

import "context"

// Queue is an append-only FIFO of opaque payloads. Push is O(1) and safe to
// fire-and-forget; PopBatch is destructive, so entries popped but not yet
// persisted are lost if the consumer crashes (accepted at-most-once
// boundary).
type Queue interface {
	Push(ctx context.Context, payload []byte) error
	// PopBatch removes and returns up to max entries in FIFO order. An
	// empty queue yields an empty slice, not an error.
	PopBatch(ctx context.Context, max int) ([][]byte, error)
	Len(ctx context.Context) (int64, error)
}
