package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
	"github.com/nerrad567/enviro-core/internal/sensor"
)

// Logger defines the logging interface used by the engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// key identifies one cached measurement stream.
type key struct {
	Sensor string
	Kind   sensor.Capability
}

// generation is one immutable snapshot of the cache. Readers hold a
// pointer to a generation and are never raced by the writer; the writer
// builds the next generation from a copy and publishes it atomically.
type generation map[key]sensor.Reading

// Update describes one cache entry that changed during a poll pass.
type Update struct {
	Sensor  string
	Kind    sensor.Capability
	Reading sensor.Reading
}

// Observer receives the entries that changed in a poll pass, after the
// new generation is published. Called from the polling goroutine.
type Observer func(updates []Update)

// Engine is the double-buffered reading cache.
//
// Consumers read the published generation lock-free at interrupt-like
// latency; the single producer side (poll pass, reconnect, reconfigure)
// is serialised by pollMu and publishes each new generation with one
// atomic pointer store. A cap-1 channel doubles as the maintenance
// lock: reconfiguration holds it, and GetReadingSafe waits on it with
// a bounded timeout so a stuck maintenance pass cannot hang callers.
type Engine struct {
	registry *sensor.Registry
	factory  *sensor.Factory
	logger   Logger

	retryAttempts int
	retryDelay    time.Duration
	safeTimeout   time.Duration

	maxAge    atomic.Int64 // nanoseconds, floor-clamped
	published atomic.Pointer[generation]
	observer  atomic.Pointer[Observer]

	pollMu sync.Mutex    // serialises all producer-side work
	maint  chan struct{} // cap-1 semaphore, held across reconfiguration

	// Producer-side state, guarded by pollMu.
	specs  []config.SensorConfig
	failed map[key]bool
}

// NewEngine creates a cache engine over the given registry and factory.
//
// The factory may be nil if Reconfigure is never used (tests that
// register sensors directly).
func NewEngine(registry *sensor.Registry, factory *sensor.Factory, cfg *config.Config) *Engine {
	e := &Engine{
		registry:      registry,
		factory:       factory,
		logger:        noopLogger{},
		retryAttempts: cfg.Cache.RetryAttempts,
		retryDelay:    cfg.RetryDelay(),
		safeTimeout:   cfg.SafeReadTimeout(),
		maint:         make(chan struct{}, 1),
		failed:        make(map[key]bool),
	}
	e.maxAge.Store(int64(cfg.MaxCacheAge()))

	empty := make(generation)
	e.published.Store(&empty)
	return e
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetObserver installs the pass observer. Pass nil to remove it.
func (e *Engine) SetObserver(fn Observer) {
	if fn == nil {
		e.observer.Store(nil)
		return
	}
	e.observer.Store(&fn)
}

// MaxCacheAge returns the current freshness threshold.
func (e *Engine) MaxCacheAge() time.Duration {
	return time.Duration(e.maxAge.Load())
}

// SetMaxCacheAge changes the freshness threshold at runtime. Values
// below the floor are clamped, never rejected.
func (e *Engine) SetMaxCacheAge(age time.Duration) time.Duration {
	if age < config.MinCacheAge {
		e.logger.Warn("cache age below floor, clamping",
			"requested", age, "floor", config.MinCacheAge)
		age = config.MinCacheAge
	}
	e.maxAge.Store(int64(age))
	e.logger.Info("cache age updated", "max_age", age)
	return age
}

// GetReading returns the cached reading for a sensor and kind without
// taking any lock. Safe from any goroutine at any time.
//
// Returns:
//   - sensor.Reading: The cached reading; Valid false means the last
//     read attempt failed (Value and Timestamp are the last good ones)
//   - error: ErrSensorNotFound, ErrUnsupportedKind, or ErrNoReading if
//     the sensor has never been successfully read
func (e *Engine) GetReading(name string, kind sensor.Capability) (sensor.Reading, error) {
	gen := e.published.Load()
	if r, ok := (*gen)[key{name, kind}]; ok {
		return r, nil
	}

	// Distinguish "never read" from "no such sensor" for the caller.
	s, ok := e.registry.FindByName(name)
	if !ok {
		return sensor.InvalidReading(), fmt.Errorf("%w: %q", ErrSensorNotFound, name)
	}
	if !s.Supports(kind) {
		return sensor.InvalidReading(), fmt.Errorf("%w: %q does not provide %q", ErrUnsupportedKind, name, kind)
	}
	return sensor.InvalidReading(), fmt.Errorf("%w: %q/%s", ErrNoReading, name, kind)
}

// GetReadingSafe is GetReading gated on the maintenance lock: it waits
// (up to the configured timeout, or ctx cancellation) for any in-flight
// reconfiguration to finish, so the answer reflects the new sensor set.
func (e *Engine) GetReadingSafe(ctx context.Context, name string, kind sensor.Capability) (sensor.Reading, error) {
	timer := time.NewTimer(e.safeTimeout)
	defer timer.Stop()

	select {
	case e.maint <- struct{}{}:
		<-e.maint
	case <-timer.C:
		return sensor.InvalidReading(), ErrMaintenanceBusy
	case <-ctx.Done():
		return sensor.InvalidReading(), ctx.Err()
	}

	return e.GetReading(name, kind)
}

// RefreshAll runs one poll pass: every connected sensor is read for each
// of its capabilities, entries still fresh are skipped unless force is
// set, and the resulting generation is published atomically.
//
// Failed reads are retried with a fixed delay up to the configured
// attempt budget. On exhaustion the entry keeps its last good value and
// timestamp but is marked invalid, so consumers can tell a failing
// sensor from a stale or absent one.
//
// Returns the number of sensors that produced at least one successful
// read this pass.
func (e *Engine) RefreshAll(ctx context.Context, force bool) int {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	cur := *e.published.Load()
	next := make(generation, len(cur))
	for k, r := range cur {
		next[k] = r
	}

	maxAge := e.MaxCacheAge()
	succeeded := make(map[string]bool)
	var updates []Update

	for _, s := range e.registry.All() {
		if ctx.Err() != nil {
			break
		}
		if !s.Connected() {
			continue
		}

		name := s.Name()
		for _, kind := range s.Capabilities() {
			k := key{name, kind}
			prev, exists := cur[k]
			if !force && exists && prev.Fresh(maxAge) {
				continue
			}

			reading, err := e.readWithRetry(ctx, s, kind)
			if err != nil {
				// Keep the last good value and timestamp; only the
				// validity flag flips. A sensor that has never
				// produced a value keeps the NaN sentinel.
				stale := sensor.InvalidReading()
				if exists {
					stale = prev
					stale.Valid = false
				}
				next[k] = stale
				updates = append(updates, Update{name, kind, stale})

				if !e.failed[k] {
					e.failed[k] = true
					e.logger.Warn("sensor read failing",
						"sensor", name, "kind", kind, "error", err)
				}
				continue
			}

			next[k] = reading
			succeeded[name] = true
			updates = append(updates, Update{name, kind, reading})

			if e.failed[k] {
				delete(e.failed, k)
				e.logger.Info("sensor read recovered", "sensor", name, "kind", kind)
			}
		}
	}

	e.published.Store(&next)
	e.notify(updates)
	return len(succeeded)
}

// readWithRetry attempts a read up to the configured attempt budget,
// sleeping the fixed retry delay before each retry and short-circuiting
// on the first success.
func (e *Engine) readWithRetry(ctx context.Context, s sensor.Sensor, kind sensor.Capability) (sensor.Reading, error) {
	var lastErr error
	for attempt := 1; attempt <= e.retryAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(e.retryDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return sensor.InvalidReading(), ctx.Err()
			}
		}

		r, err := s.Read(ctx, kind)
		if err == nil {
			return r, nil
		}
		lastErr = err
	}
	return sensor.InvalidReading(), fmt.Errorf("after %d attempts: %w", e.retryAttempts, lastErr)
}

// Reconnect re-runs initialisation for one named sensor and, on success,
// immediately refreshes its cache entries.
func (e *Engine) Reconnect(ctx context.Context, name string) error {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	s, ok := e.registry.FindByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrSensorNotFound, name)
	}

	if err := s.Init(ctx); err != nil {
		e.logger.Warn("reconnect failed", "sensor", name, "error", err)
		return err
	}

	e.logger.Info("sensor reconnected", "sensor", name)
	e.refreshSensorLocked(ctx, s)
	return nil
}

// ReconnectAll attempts to re-initialise every disconnected sensor.
// Returns the number of sensors brought back.
func (e *Engine) ReconnectAll(ctx context.Context) int {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	recovered := 0
	for _, s := range e.registry.All() {
		if ctx.Err() != nil {
			break
		}
		if s.Connected() {
			continue
		}

		if err := s.Init(ctx); err != nil {
			e.logger.Debug("reconnect attempt failed", "sensor", s.Name(), "error", err)
			continue
		}

		e.logger.Info("sensor reconnected", "sensor", s.Name())
		e.refreshSensorLocked(ctx, s)
		recovered++
	}
	return recovered
}

// refreshSensorLocked reads all capabilities of one sensor and publishes
// a new generation containing the results. Caller holds pollMu.
func (e *Engine) refreshSensorLocked(ctx context.Context, s sensor.Sensor) {
	cur := *e.published.Load()
	next := make(generation, len(cur))
	for k, r := range cur {
		next[k] = r
	}

	name := s.Name()
	var updates []Update
	for _, kind := range s.Capabilities() {
		reading, err := e.readWithRetry(ctx, s, kind)
		if err != nil {
			continue
		}
		k := key{name, kind}
		next[k] = reading
		delete(e.failed, k)
		updates = append(updates, Update{name, kind, reading})
	}

	e.published.Store(&next)
	e.notify(updates)
}

// notify delivers updates to the observer, if installed.
func (e *Engine) notify(updates []Update) {
	if len(updates) == 0 {
		return
	}
	if fn := e.observer.Load(); fn != nil {
		(*fn)(updates)
	}
}
