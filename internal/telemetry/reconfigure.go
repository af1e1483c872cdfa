package telemetry

import (
	"context"
	"fmt"

	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
	"github.com/nerrad567/enviro-core/internal/sensor"
)

// ReconfigureResult summarises one applied configuration change.
type ReconfigureResult struct {
	Added     []string
	Replaced  []string
	Removed   []string
	Unchanged []string

	// Rejected maps a record's name to the reason it was not applied.
	// Rejection of one record never blocks its siblings.
	Rejected map[string]error
}

// Reconfigure applies a new declarative sensor list to the live engine.
//
// The change is computed as a diff against the current list: unchanged
// sensors keep their live instances and cache entries, removed sensors
// are unregistered and their entries dropped, and added or changed
// records are built, initialised, and registered. A record that fails
// validation or construction is rejected individually; a record whose
// hardware fails to initialise is still registered (disconnected) so
// the reconnect sweep can bring it up later.
//
// The maintenance lock is held for the duration, which stalls
// GetReadingSafe callers; plain GetReading continues to serve the
// previous generation throughout.
//
// Returns:
//   - ReconfigureResult: What was added, replaced, removed, rejected
//   - error: ErrReconfigure if any record was rejected, ctx errors
func (e *Engine) Reconfigure(ctx context.Context, specs []config.SensorConfig) (ReconfigureResult, error) {
	res := ReconfigureResult{Rejected: make(map[string]error)}

	select {
	case e.maint <- struct{}{}:
	case <-ctx.Done():
		return res, ctx.Err()
	}
	defer func() { <-e.maint }()

	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	// Duplicate names in the incoming list: first record wins, the
	// rest are rejected.
	seen := make(map[string]bool, len(specs))
	deduped := make([]config.SensorConfig, 0, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			res.Rejected[spec.Name] = fmt.Errorf("%w: duplicate name %q", sensor.ErrInvalidSpec, spec.Name)
			continue
		}
		seen[spec.Name] = true
		deduped = append(deduped, spec)
	}

	plan := sensor.PlanChanges(e.specs, deduped)

	for _, name := range plan.Remove {
		e.registry.Unregister(name)
		e.forgetFailures(name)
		res.Removed = append(res.Removed, name)
	}

	for _, spec := range plan.Replace {
		e.registry.Unregister(spec.Name)
		e.forgetFailures(spec.Name)
		if err := e.installLocked(ctx, spec); err != nil {
			res.Rejected[spec.Name] = err
			continue
		}
		res.Replaced = append(res.Replaced, spec.Name)
	}

	for _, spec := range plan.Add {
		if err := e.installLocked(ctx, spec); err != nil {
			res.Rejected[spec.Name] = err
			continue
		}
		res.Added = append(res.Added, spec.Name)
	}

	res.Unchanged = plan.Unchanged

	// The accepted list becomes the baseline for the next diff.
	accepted := make([]config.SensorConfig, 0, len(deduped))
	for _, spec := range deduped {
		if _, rejected := res.Rejected[spec.Name]; !rejected {
			accepted = append(accepted, spec)
		}
	}
	e.specs = accepted

	e.pruneLocked()

	e.logger.Info("configuration applied",
		"added", len(res.Added), "replaced", len(res.Replaced),
		"removed", len(res.Removed), "unchanged", len(res.Unchanged),
		"rejected", len(res.Rejected))

	if len(res.Rejected) > 0 {
		return res, fmt.Errorf("%w: %d record(s) rejected", ErrReconfigure, len(res.Rejected))
	}
	return res, nil
}

// CurrentSpecs returns a copy of the sensor list currently applied.
func (e *Engine) CurrentSpecs() []config.SensorConfig {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	out := make([]config.SensorConfig, len(e.specs))
	copy(out, e.specs)
	return out
}

// installLocked builds, initialises, and registers one sensor.
// Initialisation failure is not fatal: the sensor registers in the
// disconnected state. Caller holds pollMu.
func (e *Engine) installLocked(ctx context.Context, spec config.SensorConfig) error {
	s, err := e.factory.Build(spec)
	if err != nil {
		e.logger.Warn("sensor record rejected", "name", spec.Name, "error", err)
		return err
	}

	if err := s.Init(ctx); err != nil {
		e.logger.Warn("sensor initialisation failed, registering disconnected",
			"name", spec.Name, "error", err)
	}

	return e.registry.Register(s)
}

// pruneLocked publishes a generation containing only entries whose
// sensor is still registered. Caller holds pollMu.
func (e *Engine) pruneLocked() {
	cur := *e.published.Load()
	next := make(generation, len(cur))
	for k, r := range cur {
		if s, ok := e.registry.FindByName(k.Sensor); ok && s.Supports(k.Kind) {
			next[k] = r
		}
	}
	e.published.Store(&next)
}

// forgetFailures clears failure-transition state for all of a sensor's
// entries so a re-added sensor logs fresh transitions. Caller holds pollMu.
func (e *Engine) forgetFailures(name string) {
	for k := range e.failed {
		if k.Sensor == name {
			delete(e.failed, k)
		}
	}
}
