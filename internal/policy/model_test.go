package policy

import (
	"testing"

	"github.com/vietddude/triage/internal/core/domain"
)

func TestModelValueUnseen(t *testing.T) {
	m := NewModel(0.3)
	if v := m.Value("sig", domain.DestOpsDesk); v != 0 {
		t.Errorf("Expected 0 for unseen cell, got %v", v)
	}
}

func TestModelBest(t *testing.T) {
	m := NewModel(0.3)

	if _, _, ok := m.Best("sig"); ok {
		t.Error("Expected ok=false for unseen signature")
	}

	m.set("sig", domain.DestOpsDesk, 0.2)
	m.set("sig", domain.DestEngineering, 0.7)
	m.set("sig", domain.DestCompliance, -0.4)

	action, value, ok := m.Best("sig")
	if !ok {
		t.Fatal("Expected ok=true")
	}
	if action != domain.DestEngineering || value != 0.7 {
		t.Errorf("Best = (%s, %v), want (ENGINEERING, 0.7)", action, value)
	}
}

func TestModelBestTieBreak(t *testing.T) {
	m := NewModel(0.3)
	m.set("sig", domain.DestEngineering, 0.5)
	m.set("sig", domain.DestOpsDesk, 0.5)

	// Ties resolve in fixed action order, OPS_DESK before ENGINEERING
	for i := 0; i < 10; i++ {
		action, _, _ := m.Best("sig")
		if action != domain.DestOpsDesk {
			t.Fatalf("Expected deterministic tie-break to OPS_DESK, got %s", action)
		}
	}
}

func TestModelCellCount(t *testing.T) {
	m := NewModel(0.3)
	if m.CellCount() != 0 {
		t.Errorf("Expected 0 cells, got %d", m.CellCount())
	}
	m.set("a", domain.DestOpsDesk, 1)
	m.set("a", domain.DestCompliance, 1)
	m.set("b", domain.DestOpsDesk, 1)
	if m.CellCount() != 3 {
		t.Errorf("Expected 3 cells, got %d", m.CellCount())
	}
}
