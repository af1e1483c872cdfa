package sensor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/enviro-core/internal/bus"
	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
)

// Sim is a simulated sensor requiring no hardware. It serves two roles:
// development on machines without buses, and failure injection in tests
// (failed init, a burst of failed reads, value changes mid-run).
//
// Extra options:
//
//	caps=temperature|humidity   capability set (default temperature)
//	temperature=21.5            initial value per capability
//	fail_init=true              make Init fail until cleared
type Sim struct {
	base

	mu        sync.Mutex
	values    map[Capability]float64
	failInit  bool
	failReads int
	reads     int
}

func buildSim(spec config.SensorConfig, _ *bus.Buses) (Sensor, error) {
	opts, err := ParseExtra(spec.Extra)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	caps := []Capability{CapTemperature}
	if raw, ok := opts["caps"]; ok {
		caps = caps[:0]
		for _, part := range strings.Split(raw, "|") {
			c, err := ParseCapability(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
			}
			caps = append(caps, c)
		}
	}

	s := &Sim{values: make(map[Capability]float64)}
	s.name = spec.Name
	s.sensorType = TypeSim
	s.caps = caps

	for _, c := range caps {
		if raw, ok := opts[string(c)]; ok {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad initial value for %s: %v", ErrInvalidSpec, c, err)
			}
			s.values[c] = v
		}
	}

	if opts["fail_init"] == "true" {
		s.failInit = true
	}

	return s, nil
}

// NewSim creates a simulated sensor directly, bypassing the factory.
// Intended for tests.
func NewSim(name string, caps ...Capability) *Sim {
	if len(caps) == 0 {
		caps = []Capability{CapTemperature}
	}
	s := &Sim{values: make(map[Capability]float64)}
	s.name = name
	s.sensorType = TypeSim
	s.caps = caps
	return s
}

// Init succeeds unless failure injection is armed.
func (s *Sim) Init(_ context.Context) error {
	s.mu.Lock()
	fail := s.failInit
	s.mu.Unlock()

	if fail {
		s.connected.Store(false)
		return fmt.Errorf("%w: injected failure", ErrInitFailed)
	}
	s.connected.Store(true)
	return nil
}

// Read returns the configured value for the kind.
func (s *Sim) Read(_ context.Context, kind Capability) (Reading, error) {
	if !s.Supports(kind) {
		return InvalidReading(), fmt.Errorf("%w: %s does not provide %q", ErrUnsupportedKind, s.name, kind)
	}
	if !s.Connected() {
		return InvalidReading(), ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	if s.failReads > 0 {
		s.failReads--
		return InvalidReading(), fmt.Errorf("%w: injected failure", ErrReadFailed)
	}
	return NewReading(s.values[kind]), nil
}

// SetValue changes the value returned for a capability.
func (s *Sim) SetValue(kind Capability, value float64) {
	s.mu.Lock()
	s.values[kind] = value
	s.mu.Unlock()
}

// FailNextReads makes the next n reads fail, then recover.
func (s *Sim) FailNextReads(n int) {
	s.mu.Lock()
	s.failReads = n
	s.mu.Unlock()
}

// SetFailInit arms or clears init failure injection.
func (s *Sim) SetFailInit(fail bool) {
	s.mu.Lock()
	s.failInit = fail
	s.mu.Unlock()
}

// Disconnect forces the sensor into the disconnected state, as if its
// last initialisation had failed.
func (s *Sim) Disconnect() {
	s.connected.Store(false)
}

// Reads returns how many Read calls the sensor has served.
func (s *Sim) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
