package policy

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
)

func episode(id string) domain.Episode {
	reward := 1.0
	return domain.Episode{
		ID:             id,
		ExceptionID:    id,
		StateSignature: "sig",
		Action:         domain.DestOpsDesk,
		Reward:         &reward,
		Weight:         1,
		RecordedAt:     time.Now(),
	}
}

func TestReplayBufferEviction(t *testing.T) {
	b := NewReplayBuffer(3)

	for i := 0; i < 5; i++ {
		b.Push(episode(fmt.Sprintf("ep-%d", i)))
	}
	if b.Len() != 3 {
		t.Fatalf("Expected buffer capped at 3, got %d", b.Len())
	}

	// Only the newest three survive
	rng := rand.New(rand.NewSource(1))
	seen := map[string]bool{}
	for _, ep := range b.Sample(rng, 100) {
		seen[ep.ID] = true
	}
	for _, evicted := range []string{"ep-0", "ep-1"} {
		if seen[evicted] {
			t.Errorf("Evicted episode %s still sampled", evicted)
		}
	}
}

func TestReplayBufferSampleEmpty(t *testing.T) {
	b := NewReplayBuffer(10)
	rng := rand.New(rand.NewSource(1))
	if got := b.Sample(rng, 5); got != nil {
		t.Errorf("Expected nil sample from empty buffer, got %d episodes", len(got))
	}
}

func TestReplayBufferSamplePartialFill(t *testing.T) {
	b := NewReplayBuffer(100)
	b.Push(episode("only"))

	rng := rand.New(rand.NewSource(1))
	sample := b.Sample(rng, 10)
	if len(sample) != 10 {
		t.Fatalf("Expected 10 draws with replacement, got %d", len(sample))
	}
	for _, ep := range sample {
		if ep.ID != "only" {
			t.Errorf("Sampled unexpected episode %s", ep.ID)
		}
	}
}
