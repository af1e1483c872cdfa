package sensor

import (
	"fmt"
	"strings"

	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
)

// Bus kind strings accepted in sensor records.
const (
	BusI2C = "i2c"
	BusSPI = "spi"
)

// I2C 7-bit address bounds. Addresses outside this range are reserved
// by the I2C specification.
const (
	minI2CAddress = 0x08
	maxI2CAddress = 0x77
)

// maxNameLength bounds sensor names; they appear in MQTT topics and
// database rows, so keep them short and predictable.
const maxNameLength = 64

// ValidateSpec checks a declarative sensor record for structural errors.
//
// Only record-level checks happen here; whether the hardware actually
// answers on the bus is established later by Init. Rejection of one
// record never affects its siblings, so the engine can apply a partial
// configuration.
//
// Returns:
//   - error: ErrInvalidSpec wrapped with the reason, or nil
func ValidateSpec(spec config.SensorConfig) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name %q exceeds %d characters", ErrInvalidSpec, name, maxNameLength)
	}
	if strings.ContainsAny(name, "/+# \t") {
		return fmt.Errorf("%w: name %q contains reserved characters", ErrInvalidSpec, name)
	}

	if strings.TrimSpace(spec.Type) == "" {
		return fmt.Errorf("%w: sensor %q has no type", ErrInvalidSpec, name)
	}

	switch spec.Bus {
	case BusI2C:
		if spec.Address < minI2CAddress || spec.Address > maxI2CAddress {
			return fmt.Errorf("%w: sensor %q address 0x%02X outside valid I2C range [0x%02X, 0x%02X]",
				ErrInvalidSpec, name, spec.Address, minI2CAddress, maxI2CAddress)
		}
	case BusSPI:
		// chip select is handled by the port; no address to validate
	default:
		return fmt.Errorf("%w: sensor %q has unknown bus kind %q (want %q or %q)",
			ErrInvalidSpec, name, spec.Bus, BusI2C, BusSPI)
	}

	if spec.PollRateMS < 0 {
		return fmt.Errorf("%w: sensor %q has negative poll rate", ErrInvalidSpec, name)
	}

	if _, err := ParseExtra(spec.Extra); err != nil {
		return fmt.Errorf("%w: sensor %q: %v", ErrInvalidSpec, name, err)
	}

	return nil
}

// ParseExtra parses a driver-specific options string of the form
// "key=value,key2=value2" into a map. An empty string yields an empty map.
func ParseExtra(extra string) (map[string]string, error) {
	opts := make(map[string]string)
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return opts, nil
	}

	for _, pair := range strings.Split(extra, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("malformed extra option %q (want key=value)", pair)
		}
		opts[key] = strings.TrimSpace(value)
	}
	return opts, nil
}
