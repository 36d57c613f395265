// Package simharness is a deterministic simulation harness for the rule
// engine: a seeded PRNG drives random rule and fact generation, a virtual
// clock stands in for wall-clock time, and a fault-injecting filesystem
// exercises the disk rule store's crash-recovery path. InvariantChecker
// turns the properties in this repo's testable-properties list into named
// checks that can run against a Harness after arbitrary sequences of
// operations, so a soak run that finds a violation can be reproduced from
// its seed alone.
package simharness

import (
	"fmt"
	"time"

	"github.com/ruleforge/engine/internal/api"
	"github.com/ruleforge/engine/internal/dslrule"
	"github.com/ruleforge/engine/internal/factspace"
	"github.com/ruleforge/engine/internal/results"
	"github.com/ruleforge/engine/internal/session"
	"github.com/ruleforge/engine/internal/storage"
)

// Harness bundles a fault-injecting disk rule store with a virtual clock and
// a seeded random source, standing in for a running rulegated process across
// restarts within a single test.
type Harness struct {
	seed     int64
	rand     *DeterministicRand
	clock    *VirtualClock
	injector *FaultInjector
	fs       *FaultyFileSystem
	dataDir  string
	store    *storage.DiskRuleStore
}

// NewHarness creates a harness seeded with seed, with fault injection
// disabled (ConservativeProfile is zero-effort to apply via WithFaults).
func NewHarness(seed int64) (*Harness, error) {
	rnd := NewDeterministicRand(seed)
	injector := NewFaultInjector(rnd)
	ffs := NewFaultyFileSystem(injector)

	h := &Harness{
		seed:     seed,
		rand:     rnd,
		clock:    NewVirtualClock(time.Unix(0, 0).UTC()),
		injector: injector,
		fs:       ffs,
		dataDir:  "/data",
	}

	store, err := storage.NewDiskRuleStoreWithFS(h.dataDir, ffs)
	if err != nil {
		return nil, fmt.Errorf("simharness: open rule store: %w", err)
	}
	h.store = store
	return h, nil
}

// WithFaults enables fault injection at the given profile's rates.
func (h *Harness) WithFaults(profile FaultProfile) *Harness {
	h.injector.ApplyProfile(profile)
	return h
}

// Now implements internal/engine.Clock so a RuleSet can run against this
// harness's virtual clock.
func (h *Harness) Now() time.Time { return h.clock.Now() }

// Advance moves the virtual clock forward by d.
func (h *Harness) Advance(d time.Duration) { h.clock.Advance(d) }

// Seed returns the seed this harness was constructed with, for reproducing
// a failing run.
func (h *Harness) Seed() int64 { return h.seed }

// FaultStats reports the faults injected so far.
func (h *Harness) FaultStats() FaultStats { return h.injector.Stats() }

// GetRules returns every rule definition currently in the store.
func (h *Harness) GetRules() []storage.RuleDefinition {
	defs, err := h.store.List()
	if err != nil {
		return nil
	}
	return defs
}

// CreateRule persists def, stamping CreatedAt/UpdatedAt from the virtual clock.
func (h *Harness) CreateRule(def storage.RuleDefinition) error {
	def.CreatedAt = h.clock.Now()
	def.UpdatedAt = h.clock.Now()
	return h.store.Create(def)
}

// GenerateRule creates and persists a pseudo-random single-field rule over
// fact type "probe", returning the definition (zero-valued if persistence
// failed, e.g. a fault injector disk-full).
func (h *Harness) GenerateRule() storage.RuleDefinition {
	threshold := h.rand.Intn(1000)
	def := storage.RuleDefinition{
		Namespace:        "sim",
		Name:             "rule-" + h.rand.String(8),
		FactType:         "probe",
		Salience:         int64(h.rand.Intn(1000)),
		Condition:        fmt.Sprintf("value > %d", threshold),
		ViolationGroup:   "sim",
		ViolationMessage: "simulated threshold exceeded",
		Enabled:          true,
	}
	if err := h.CreateRule(def); err != nil {
		return storage.RuleDefinition{}
	}
	return def
}

// CrashAndRestart simulates a process restart: it discards the in-memory
// store and reopens one over the same (possibly fault-corrupted) backing
// filesystem, exercising the same load path a real restart would take.
func (h *Harness) CrashAndRestart() error {
	store, err := storage.NewDiskRuleStoreWithFS(h.dataDir, h.fs)
	if err != nil {
		return err
	}
	h.store = store
	return nil
}

// EvaluateFacts compiles every enabled rule definition currently in the
// store and runs a fresh session over facts, using this harness's virtual
// clock for window/truncation checks.
func (h *Harness) EvaluateFacts(facts ...*dslrule.Fact) (*results.Results, error) {
	defs, err := h.store.List()
	if err != nil {
		return nil, fmt.Errorf("simharness: list rules: %w", err)
	}

	rs, err := api.BuildRuleSet(fmt.Sprintf("sim-%d", h.rand.Intn(1<<30)), defs)
	if err != nil {
		return nil, fmt.Errorf("simharness: compile rules: %w", err)
	}
	rs = rs.WithClock(h)

	ctx := session.New(factspace.New())
	for _, f := range facts {
		if _, err := ctx.InsertFact(f); err != nil {
			return nil, fmt.Errorf("simharness: insert fact: %w", err)
		}
	}

	return rs.Evaluate(ctx)
}
