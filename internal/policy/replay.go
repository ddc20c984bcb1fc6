package policy

import (
	"math/rand"
	"sync"

	"github.com/vietddude/triage/internal/core/domain"
)

// ReplayBuffer is a fixed-capacity ring of completed episodes. When full,
// the oldest episode is evicted first.
type ReplayBuffer struct {
	mu       sync.Mutex
	episodes []domain.Episode
	next     int
	size     int
}

// NewReplayBuffer creates a buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ReplayBuffer{episodes: make([]domain.Episode, capacity)}
}

// Push appends an episode, evicting the oldest when full.
func (b *ReplayBuffer) Push(ep domain.Episode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.episodes[b.next] = ep
	b.next = (b.next + 1) % len(b.episodes)
	if b.size < len(b.episodes) {
		b.size++
	}
}

// Sample returns up to n episodes drawn uniformly with replacement.
func (b *ReplayBuffer) Sample(rng *rand.Rand, n int) []domain.Episode {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 || n <= 0 {
		return nil
	}
	out := make([]domain.Episode, 0, n)
	for i := 0; i < n; i++ {
		idx := rng.Intn(b.size)
		if b.size == len(b.episodes) {
			// Ring is full; oldest lives at next
			idx = (b.next + idx) % len(b.episodes)
		}
		out = append(out, b.episodes[idx])
	}
	return out
}

// Len returns the number of buffered episodes.
func (b *ReplayBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}
