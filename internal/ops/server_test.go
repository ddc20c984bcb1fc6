package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage/memory"
	"github.com/vietddude/triage/internal/policy"
	"github.com/vietddude/triage/internal/triage/delegate"
)

type opsFixture struct {
	ts    *httptest.Server
	store *memory.MemoryStorage
}

func newOpsFixture(t *testing.T) *opsFixture {
	t.Helper()

	store := memory.NewMemoryStorage()
	lifecycle := memory.NewLifecycleStore(store)
	cases := memory.NewCaseRepo(store)

	learner := policy.NewLearner(config.PolicyConfig{
		Alpha:          0.1,
		Gamma:          0.9,
		EpsilonMax:     0.3,
		EpsilonMin:     0.02,
		EpsilonDecay:   0.995,
		OverrideMargin: 0.2,
		ReplayCapacity: 100,
		SnapshotPath:   filepath.Join(t.TempDir(), "model.json"),
		Seed:           42,
	}, nil)
	tracker := delegate.NewTracker(lifecycle, cases, nil, learner, 3.0)

	s := NewServer(lifecycle, cases, tracker, learner, 0)
	ts := httptest.NewServer(s.server.Handler)
	t.Cleanup(ts.Close)

	return &opsFixture{ts: ts, store: store}
}

func (f *opsFixture) seedCase(t *testing.T, id string, state domain.LifecycleState) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	c := &domain.TriageCase{
		ExceptionID:    id,
		TradeID:        "trade-" + id,
		Classification: domain.ClassOperationalIssue,
		Severity:       domain.SeverityAssessment{Score: 0.5, Level: domain.SeverityMedium},
		Destination:    domain.DestOpsDesk,
		Priority:       3,
		SLADeadline:    now.Add(8 * time.Hour),
		State:          domain.CaseStateDelegated,
		StateSignature: "OPERATIONAL_ISSUE|MEDIUM|a1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := memory.NewCaseRepo(f.store).Save(ctx, c); err != nil {
		t.Fatal(err)
	}
	rec := &domain.LifecycleRecord{
		ExceptionID: id,
		State:       state,
		Destination: domain.DestOpsDesk,
		Priority:    3,
		SLADeadline: now.Add(8 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := memory.NewLifecycleStore(f.store).Create(ctx, rec); err != nil {
		t.Fatal(err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newOpsFixture(t)

	resp, err := http.Get(f.ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestPolicyEndpoint(t *testing.T) {
	f := newOpsFixture(t)

	resp, err := http.Get(f.ts.URL + "/policy")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Version uint64  `json:"version"`
		Epsilon float64 `json:"epsilon"`
		Cells   int     `json:"cells"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Epsilon != 0.3 {
		t.Errorf("Expected epsilon 0.3, got %v", body.Epsilon)
	}
	if body.Cells != 0 {
		t.Errorf("Expected empty model, got %d cells", body.Cells)
	}
}

func TestGetCase(t *testing.T) {
	f := newOpsFixture(t)
	f.seedCase(t, "exc-1", domain.LifecyclePending)

	resp, err := http.Get(f.ts.URL + "/cases/exc-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Case      *domain.TriageCase      `json:"case"`
		Lifecycle *domain.LifecycleRecord `json:"lifecycle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Case == nil || body.Case.ExceptionID != "exc-1" {
		t.Errorf("Unexpected case payload: %+v", body.Case)
	}
	if body.Lifecycle == nil || body.Lifecycle.State != domain.LifecyclePending {
		t.Errorf("Unexpected lifecycle payload: %+v", body.Lifecycle)
	}
}

func TestGetCaseNotFound(t *testing.T) {
	f := newOpsFixture(t)

	resp, err := http.Get(f.ts.URL + "/cases/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func postReassign(t *testing.T, url, id string, req map[string]string) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(req)
	resp, err := http.Post(url+"/cases/"+id+"/reassign", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestReassignEndpoint(t *testing.T) {
	f := newOpsFixture(t)
	f.seedCase(t, "exc-1", domain.LifecyclePending)

	resp := postReassign(t, f.ts.URL, "exc-1", map[string]string{
		"destination": "ENGINEERING",
		"actor":       "alice",
		"notes":       "feed handler bug",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	rec, err := memory.NewLifecycleStore(f.store).Get(context.Background(), "exc-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Destination != domain.DestEngineering {
		t.Errorf("Expected ENGINEERING after reassignment, got %s", rec.Destination)
	}
}

func TestReassignTerminalConflict(t *testing.T) {
	f := newOpsFixture(t)
	f.seedCase(t, "exc-1", domain.LifecycleResolved)

	resp := postReassign(t, f.ts.URL, "exc-1", map[string]string{"destination": "ENGINEERING"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for terminal case, got %d", resp.StatusCode)
	}
}

func TestReassignNotFound(t *testing.T) {
	f := newOpsFixture(t)

	resp := postReassign(t, f.ts.URL, "missing", map[string]string{"destination": "ENGINEERING"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestReassignBadDestination(t *testing.T) {
	f := newOpsFixture(t)
	f.seedCase(t, "exc-1", domain.LifecyclePending)

	resp := postReassign(t, f.ts.URL, "exc-1", map[string]string{"destination": "NOWHERE"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown destination, got %d", resp.StatusCode)
	}
}
