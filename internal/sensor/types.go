package sensor

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Capability is a measurement kind a sensor can provide.
type Capability string

// Known capabilities. The set a sensor supports is fixed at construction
// and never changes at runtime.
const (
	CapTemperature Capability = "temperature"
	CapHumidity    Capability = "humidity"
	CapPressure    Capability = "pressure"
)

// ParseCapability converts a string to a known Capability.
//
// Returns:
//   - Capability: The parsed capability
//   - error: ErrInvalidCapability if the string is not recognised
func ParseCapability(s string) (Capability, error) {
	switch Capability(s) {
	case CapTemperature, CapHumidity, CapPressure:
		return Capability(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCapability, s)
	}
}

// Reading is a single measurement produced by a sensor.
//
// A Reading is immutable once produced; a new Reading with a newer
// timestamp supersedes the old one. Invalid readings carry NaN as a
// sentinel value so accidental arithmetic on them is conspicuous.
type Reading struct {
	// Value is the measurement in the capability's natural unit
	// (°C, %RH, hPa). NaN when Valid is false and no prior value exists.
	Value float64 `json:"value"`

	// Timestamp is when the measurement was taken. time.Time carries a
	// monotonic clock reading on this process's timeline, so age
	// computations are immune to wall-clock adjustments.
	Timestamp time.Time `json:"timestamp"`

	// Valid reports whether Value is a trustworthy measurement.
	Valid bool `json:"valid"`
}

// NewReading creates a valid Reading taken now.
func NewReading(value float64) Reading {
	return Reading{Value: value, Timestamp: time.Now(), Valid: true}
}

// InvalidReading returns the sentinel for "no trustworthy measurement":
// NaN value, zero timestamp, Valid false.
func InvalidReading() Reading {
	return Reading{Value: math.NaN(), Valid: false}
}

// Age returns how long ago the reading was taken. A zero timestamp
// (never read) reports a very large age.
func (r Reading) Age() time.Duration {
	if r.Timestamp.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return time.Since(r.Timestamp)
}

// Fresh reports whether the reading is valid and younger than maxAge.
func (r Reading) Fresh(maxAge time.Duration) bool {
	return r.Valid && r.Age() < maxAge
}

// Tx is the narrow transaction interface drivers depend on. Both
// *i2c.Dev and spi.Conn from periph.io satisfy it, as do test fakes.
type Tx interface {
	Tx(w, r []byte) error
}

// Sensor is the polymorphic capability interface implemented by concrete
// drivers.
//
// Identity (Name, Type) and the capability set are fixed at construction.
// Init and Read perform bus I/O and must only be called from the polling
// context (or under the engine's maintenance lock); Name, Type,
// Capabilities, Supports and Connected are safe from any goroutine.
type Sensor interface {
	// Name returns the unique configured name.
	Name() string

	// Type returns the driver type string (e.g. "sht3x").
	Type() string

	// Capabilities returns the measurement kinds this sensor provides.
	Capabilities() []Capability

	// Supports reports whether the sensor provides the given kind.
	Supports(kind Capability) bool

	// Connected reports whether the last initialisation succeeded.
	Connected() bool

	// Init runs the sensor's initialisation sequence (probe, reset,
	// configuration). On success the sensor reports Connected.
	// Called at construction and again on reconnect attempts.
	Init(ctx context.Context) error

	// Read takes a single measurement of the given kind.
	// Returns an error (and an invalid Reading) on bus failure or if
	// the kind is unsupported. Never panics; hardware absence is an
	// ordinary error value.
	Read(ctx context.Context, kind Capability) (Reading, error)
}
