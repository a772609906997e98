package repository

import (
	"context"
	"sync"
)

// MemoryBlobRepo keeps the blob in process memory.  It backs the "memory"
// storage mode and tests.  WriteErr, when set, is returned by every Write
// so callers can exercise persist failures.
type MemoryBlobRepo struct {
	mu       sync.Mutex
	data     []byte
	set      bool
	writes   int
	WriteErr error
}

// NewMemoryBlobRepo returns an empty MemoryBlobRepo.
func NewMemoryBlobRepo() *MemoryBlobRepo { return &MemoryBlobRepo{} }

// Read returns a copy of the stored blob.
func (r *MemoryBlobRepo) Read(_ context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.set {
		return nil, ErrBlobNotFound
	}
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out, nil
}

// Write stores a copy of data.
func (r *MemoryBlobRepo) Write(_ context.Context, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.data = append(r.data[:0], data...)
	r.set = true
	r.writes++
	return nil
}

// Writes reports how many successful writes happened.
func (r *MemoryBlobRepo) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}
