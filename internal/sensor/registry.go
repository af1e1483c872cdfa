package sensor

import (
	"sync"
)

// Logger defines the logging interface used by the Registry.
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

// Registry is the unordered collection of live sensor instances, indexed
// by unique name and queryable by capability.
//
// The registry performs no I/O; it owns sensors for their lifetime and
// hands ownership back on Unregister/Clear so the caller can dispose of
// them. Sensor counts are small (tens, not thousands), so linear scans
// for capability queries are acceptable.
//
// All public methods are thread-safe, but mutation is expected only from
// the polling/maintenance context (the cache engine serialises
// reconfiguration under its maintenance lock).
type Registry struct {
	mu      sync.RWMutex
	sensors map[string]Sensor
	logger  Logger
}

// NewRegistry creates an empty sensor registry.
func NewRegistry() *Registry {
	return &Registry{
		sensors: make(map[string]Sensor),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register adds a sensor to the registry.
//
// Registration fails with ErrSensorExists if a sensor with the same name
// is already present; the caller must Unregister it first. The failed
// call is a no-op.
func (r *Registry) Register(s Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.sensors[name]; exists {
		r.logger.Warn("sensor already registered", "name", name)
		return ErrSensorExists
	}

	r.sensors[name] = s
	r.logger.Info("sensor registered", "name", name, "type", s.Type())
	return nil
}

// Unregister removes the named sensor and returns ownership of it for
// external disposal. The second return is false if the name is absent.
func (r *Registry) Unregister(name string) (Sensor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sensors[name]
	if !ok {
		return nil, false
	}

	delete(r.sensors, name)
	r.logger.Info("sensor unregistered", "name", name)
	return s, true
}

// Clear removes and returns all sensors. Used on full reconfiguration;
// the registry is empty afterwards.
func (r *Registry) Clear() []Sensor {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]Sensor, 0, len(r.sensors))
	for _, s := range r.sensors {
		removed = append(removed, s)
	}
	r.sensors = make(map[string]Sensor)

	r.logger.Info("registry cleared", "count", len(removed))
	return removed
}

// FindByName returns the named sensor, if present.
func (r *Registry) FindByName(name string) (Sensor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sensors[name]
	return s, ok
}

// All returns all registered sensors.
func (r *Registry) All() []Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sensors := make([]Sensor, 0, len(r.sensors))
	for _, s := range r.sensors {
		sensors = append(sensors, s)
	}
	return sensors
}

// WithCapability returns all sensors providing the given measurement kind.
func (r *Registry) WithCapability(kind Capability) []Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sensors []Sensor
	for _, s := range r.sensors {
		if s.Supports(kind) {
			sensors = append(sensors, s)
		}
	}
	return sensors
}

// Count returns the number of registered sensors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}
