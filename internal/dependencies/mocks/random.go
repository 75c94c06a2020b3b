package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/quizmatch/internal/dependencies/random"
)

// MockRandom is a deterministic Random for testing. Queued values are returned
// first; once a queue is empty String falls back to a zero-padded counter so
// repeated match creation still yields distinct codes.
type MockRandom struct {
	mu sync.Mutex

	stringResults []string
	counter       int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// String returns the next queued result, or the next counter value padded to
// length
func (r *MockRandom) String(length int, _ string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stringResults) > 0 {
		v := r.stringResults[0]
		r.stringResults = r.stringResults[1:]
		return v
	}
	r.counter++
	return fmt.Sprintf("%0*d", length, r.counter)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stringResults = append(r.stringResults, values...)
}
