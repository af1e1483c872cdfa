package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/enviro-core/internal/bus"
	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
)

// SHT3x command sequences (16-bit commands, MSB first).
var (
	sht3xSoftReset = []byte{0x30, 0xA2}

	// Single-shot measurement with clock stretching disabled, by
	// repeatability. The sensor NACKs reads until conversion completes,
	// so the driver sleeps for the datasheet's maximum duration instead.
	sht3xMeasureHigh   = []byte{0x24, 0x00}
	sht3xMeasureMedium = []byte{0x24, 0x0B}
	sht3xMeasureLow    = []byte{0x24, 0x16}
)

// Datasheet timings.
const (
	sht3xResetDuration       = 2 * time.Millisecond
	sht3xMeasureDurationHigh = 16 * time.Millisecond
	sht3xMeasureDurationMed  = 7 * time.Millisecond
	sht3xMeasureDurationLow  = 5 * time.Millisecond
)

// SHT3x drives a Sensirion SHT3x temperature and humidity sensor over
// I2C (addresses 0x44 or 0x45).
//
// Every measurement returns both values in a single 6-byte frame; Read
// takes a fresh measurement and extracts the requested kind.
type SHT3x struct {
	base
	tx              Tx
	measureCmd      []byte
	measureDuration time.Duration
}

func buildSHT3x(spec config.SensorConfig, buses *bus.Buses) (Sensor, error) {
	if spec.Bus != BusI2C {
		return nil, fmt.Errorf("%w: sht3x requires the i2c bus", ErrInvalidSpec)
	}
	if buses == nil || buses.I2C == nil {
		return nil, fmt.Errorf("%w: i2c", bus.ErrBusUnavailable)
	}

	opts, err := ParseExtra(spec.Extra)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	s := &SHT3x{tx: buses.I2C.Device(spec.Address)}
	s.name = spec.Name
	s.sensorType = TypeSHT3x
	s.caps = []Capability{CapTemperature, CapHumidity}

	switch opts["repeatability"] {
	case "", "high":
		s.measureCmd = sht3xMeasureHigh
		s.measureDuration = sht3xMeasureDurationHigh
	case "medium":
		s.measureCmd = sht3xMeasureMedium
		s.measureDuration = sht3xMeasureDurationMed
	case "low":
		s.measureCmd = sht3xMeasureLow
		s.measureDuration = sht3xMeasureDurationLow
	default:
		return nil, fmt.Errorf("%w: unknown repeatability %q", ErrInvalidSpec, opts["repeatability"])
	}

	return s, nil
}

// Init soft-resets the sensor and takes a throwaway measurement to
// confirm it answers. On success the sensor reports Connected.
func (s *SHT3x) Init(ctx context.Context) error {
	s.connected.Store(false)

	if err := s.tx.Tx(sht3xSoftReset, nil); err != nil {
		return fmt.Errorf("%w: soft reset: %w", ErrInitFailed, err)
	}
	if err := sleep(ctx, sht3xResetDuration); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	if _, _, err := s.measure(ctx); err != nil {
		return fmt.Errorf("%w: probe measurement: %w", ErrInitFailed, err)
	}

	s.connected.Store(true)
	return nil
}

// Read takes a single measurement and returns the requested kind.
func (s *SHT3x) Read(ctx context.Context, kind Capability) (Reading, error) {
	if !s.Supports(kind) {
		return InvalidReading(), fmt.Errorf("%w: %s does not provide %q", ErrUnsupportedKind, s.name, kind)
	}
	if !s.Connected() {
		return InvalidReading(), ErrNotConnected
	}

	// A failed measurement does not flip connectivity: the caller's
	// retry must reach the bus again, and disconnection is decided by
	// Init and the reconnect sweep, not a single bad frame.
	temp, hum, err := s.measure(ctx)
	if err != nil {
		return InvalidReading(), err
	}

	switch kind {
	case CapTemperature:
		return NewReading(temp), nil
	default:
		return NewReading(hum), nil
	}
}

// measure runs one single-shot conversion and returns temperature (°C)
// and relative humidity (%RH).
func (s *SHT3x) measure(ctx context.Context) (temp, hum float64, err error) {
	if err := s.tx.Tx(s.measureCmd, nil); err != nil {
		return 0, 0, fmt.Errorf("%w: measure command: %w", ErrReadFailed, err)
	}
	if err := sleep(ctx, s.measureDuration); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	// Frame: temp MSB, temp LSB, CRC, hum MSB, hum LSB, CRC.
	var frame [6]byte
	if err := s.tx.Tx(nil, frame[:]); err != nil {
		return 0, 0, fmt.Errorf("%w: reading frame: %w", ErrReadFailed, err)
	}

	if crc8(frame[0:2]) != frame[2] {
		return 0, 0, fmt.Errorf("%w: temperature word", ErrBadChecksum)
	}
	if crc8(frame[3:5]) != frame[5] {
		return 0, 0, fmt.Errorf("%w: humidity word", ErrBadChecksum)
	}

	rawTemp := uint16(frame[0])<<8 | uint16(frame[1])
	rawHum := uint16(frame[3])<<8 | uint16(frame[4])

	temp = -45.0 + 175.0*float64(rawTemp)/65535.0
	hum = 100.0 * float64(rawHum) / 65535.0
	return temp, hum, nil
}

// crc8 computes the SHT3x frame checksum (polynomial 0x31, init 0xFF,
// no reflection, no final XOR).
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
