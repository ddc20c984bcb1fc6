package router

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/policy"
	"github.com/vietddude/triage/internal/triage/metrics"
)

// slaFallbackHours is used only if a severity level ever appears without a
// table entry. Deliberately explicit: the lookup must stay total.
const slaFallbackHours = 24

// Advisor is the learned-policy consultation surface the router depends on.
type Advisor interface {
	Advise(sig string, baseline domain.Destination) policy.Advice
	Epsilon() float64
}

// Router turns a classified, scored exception into a routed TriageCase.
type Router struct {
	rules   RuleTable
	advisor Advisor
	log     *slog.Logger

	// rng drives epsilon-greedy exploration; injected and seeded so tests
	// can fix the draw sequence
	rngMu sync.Mutex
	rng   *rand.Rand

	now func() time.Time
}

// NewRouter creates a router. The rule table is checked for exhaustiveness
// up front so a partial configuration fails at startup, not mid-decision.
func NewRouter(rules RuleTable, advisor Advisor, rng *rand.Rand) (*Router, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Router{
		rules:   rules,
		advisor: advisor,
		log:     slog.With("component", "router"),
		rng:     rng,
		now:     time.Now,
	}, nil
}

// Route picks destination, priority, and SLA deadline for an exception and
// returns the case in ROUTED state. The learned policy may substitute the
// destination; the substitution is recorded on the case, never silent.
func (r *Router) Route(
	rec *domain.ExceptionRecord,
	classification domain.Classification,
	severity domain.SeverityAssessment,
) *domain.TriageCase {
	baseline := r.rules[classification][severity.Level]
	sig := domain.StateSignature(classification, severity.Level, rec.SourceAgent)

	destination := baseline.Destination
	overrideApplied := false
	explored := false

	if r.advisor != nil {
		advice := r.advisor.Advise(sig, baseline.Destination)
		eps := r.advisor.Epsilon()

		r.rngMu.Lock()
		draw := r.rng.Float64()
		var pick int
		if draw < eps {
			pick = r.rng.Intn(len(domain.Destinations))
		}
		r.rngMu.Unlock()

		if draw < eps {
			destination = domain.Destinations[pick]
			explored = destination != baseline.Destination
			if explored {
				metrics.Overrides.WithLabelValues("explore").Inc()
				r.log.Debug(
					"Exploration draw selected random destination",
					"exception", rec.ID,
					"signature", sig,
					"destination", destination,
				)
			}
		} else if advice.Confident {
			destination = advice.Best
			overrideApplied = true
			metrics.Overrides.WithLabelValues("override").Inc()
			r.log.Info(
				"Learned policy override",
				"exception", rec.ID,
				"signature", sig,
				"baseline", baseline.Destination,
				"destination", destination,
				"gap", advice.BestValue-advice.BaselineValue,
			)
		}
	}

	now := r.now()
	deadline := now.Add(time.Duration(r.slaHoursFor(severity.Level)) * time.Hour)

	metrics.Decisions.WithLabelValues(
		string(classification), string(severity.Level), string(destination),
	).Inc()

	return &domain.TriageCase{
		ExceptionID:        rec.ID,
		TradeID:            rec.TradeID,
		Classification:     classification,
		Severity:           severity,
		Destination:        destination,
		Priority:           baseline.Priority,
		SLADeadline:        deadline,
		RecommendedActions: recommendedActions[classification],
		State:              domain.CaseStateRouted,
		StateSignature:     sig,
		OverrideApplied:    overrideApplied,
		Explored:           explored,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// slaHoursFor maps severity level to SLA hours. Total by construction: every
// declared level has an arm, and the default is explicit rather than an
// accidental fallthrough.
func (r *Router) slaHoursFor(level domain.SeverityLevel) int {
	switch level {
	case domain.SeverityLow:
		return 24
	case domain.SeverityMedium:
		return 8
	case domain.SeverityHigh:
		return 4
	case domain.SeverityCritical:
		return 2
	default:
		r.log.Warn("Unknown severity level, using fallback SLA", "level", level)
		return slaFallbackHours
	}
}
