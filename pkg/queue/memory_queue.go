package queue

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process Queue used by tests and single-process runs.
type MemoryQueue struct {
	mu      sync.Mutex
	entries [][]byte
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Push(ctx context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	buf := make([]byte, len(payload))
	copy(buf, payload)
	q.entries = append(q.entries, buf)
	return nil
}

func (q *MemoryQueue) PopBatch(ctx context.Context, max int) ([][]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if max <= 0 || len(q.entries) == 0 {
		return nil, nil
	}
	if max > len(q.entries) {
		max = len(q.entries)
	}
	batch := q.entries[:max]
	q.entries = q.entries[max:]
	return batch, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}

var _ Queue = (*MemoryQueue)(nil)
