package sensor

import (
	"fmt"
	"sort"

	"github.com/nerrad567/enviro-core/internal/bus"
	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
)

// Builder constructs a sensor instance from a declarative configuration
// record, binding it to the correct bus manager. Builders must not
// perform bus I/O; initialisation happens separately via Sensor.Init.
type Builder func(spec config.SensorConfig, buses *bus.Buses) (Sensor, error)

// Factory constructs sensors from configuration records.
//
// Builders are registered per sensor type. The factory holds no global
// state; construct one per daemon instance and inject it where needed.
type Factory struct {
	buses    *bus.Buses
	builders map[string]Builder
	logger   Logger
}

// NewFactory creates a factory with the built-in driver types registered
// (sht3x, max31855, sim).
func NewFactory(buses *bus.Buses) *Factory {
	f := &Factory{
		buses:    buses,
		builders: make(map[string]Builder),
		logger:   noopLogger{},
	}
	f.builders[TypeSHT3x] = buildSHT3x
	f.builders[TypeMAX31855] = buildMAX31855
	f.builders[TypeSim] = buildSim
	return f
}

// SetLogger sets the logger for the factory.
func (f *Factory) SetLogger(logger Logger) {
	f.logger = logger
}

// RegisterBuilder adds a builder for a sensor type. Registering a type
// twice is a programming error and fails.
func (f *Factory) RegisterBuilder(sensorType string, b Builder) error {
	if _, exists := f.builders[sensorType]; exists {
		return fmt.Errorf("%w: builder for type %q already registered", ErrInvalidSpec, sensorType)
	}
	f.builders[sensorType] = b
	return nil
}

// Types returns the registered sensor types, sorted.
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build validates a configuration record and constructs the sensor it
// describes. The sensor is returned uninitialised (Connected() false);
// the caller runs Init.
//
// Returns:
//   - Sensor: The constructed sensor
//   - error: ErrInvalidSpec / ErrUnknownType wrapped with the reason
func (f *Factory) Build(spec config.SensorConfig) (Sensor, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}

	builder, ok := f.builders[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownType, spec.Type, f.Types())
	}

	s, err := builder(spec, f.buses)
	if err != nil {
		return nil, fmt.Errorf("building sensor %q: %w", spec.Name, err)
	}

	f.logger.Debug("sensor built", "name", spec.Name, "type", spec.Type, "bus", spec.Bus)
	return s, nil
}

// Plan describes the difference between two declarative sensor lists,
// keyed by sensor name.
type Plan struct {
	// Add holds records present only in the new list.
	Add []config.SensorConfig

	// Replace holds records whose configuration changed in any field;
	// the old sensor is destroyed and a new one constructed.
	Replace []config.SensorConfig

	// Remove holds names present only in the old list.
	Remove []string

	// Unchanged holds names whose records are identical. Their sensors
	// are left untouched, avoiding needless bus re-initialisation.
	Unchanged []string
}

// PlanChanges diffs two sensor lists by identity key (name).
//
// Duplicate names within the new list are not resolved here; per-record
// validation during application rejects the later duplicates.
func PlanChanges(current, next []config.SensorConfig) Plan {
	old := make(map[string]config.SensorConfig, len(current))
	for _, spec := range current {
		old[spec.Name] = spec
	}

	var plan Plan
	seen := make(map[string]bool, len(next))
	for _, spec := range next {
		if seen[spec.Name] {
			continue // duplicate; validation rejects it during application
		}
		seen[spec.Name] = true

		prev, exists := old[spec.Name]
		switch {
		case !exists:
			plan.Add = append(plan.Add, spec)
		case prev != spec:
			plan.Replace = append(plan.Replace, spec)
		default:
			plan.Unchanged = append(plan.Unchanged, spec.Name)
		}
	}

	for _, spec := range current {
		if !seen[spec.Name] {
			plan.Remove = append(plan.Remove, spec.Name)
		}
	}

	return plan
}
