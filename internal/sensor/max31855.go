package sensor

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/nerrad567/enviro-core/internal/bus"
	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
)

// MAX31855 frame layout (32 bits, MSB first):
//
//	D31..D18  14-bit signed thermocouple temperature, 0.25°C/LSB
//	D16       fault flag
//	D2        short to VCC
//	D1        short to GND
//	D0        open circuit
const (
	max31855FaultFlag  = 1 << 16
	max31855ShortVCC   = 1 << 2
	max31855ShortGND   = 1 << 1
	max31855OpenProbe  = 1 << 0
	max31855DegreesLSB = 0.25
)

// MAX31855 drives a Maxim MAX31855 thermocouple-to-digital converter
// over SPI. The chip is read-only: every transaction clocks out the
// latest conversion, so Read is a single 4-byte exchange.
type MAX31855 struct {
	base
	tx Tx
}

func buildMAX31855(spec config.SensorConfig, buses *bus.Buses) (Sensor, error) {
	if spec.Bus != BusSPI {
		return nil, fmt.Errorf("%w: max31855 requires the spi bus", ErrInvalidSpec)
	}
	if buses == nil || buses.SPI == nil {
		return nil, fmt.Errorf("%w: spi", bus.ErrBusUnavailable)
	}

	s := &MAX31855{tx: buses.SPI.Conn()}
	s.name = spec.Name
	s.sensorType = TypeMAX31855
	s.caps = []Capability{CapTemperature}
	return s, nil
}

// Init reads one frame and checks the fault bits. A faulted probe
// (open circuit, shorted) leaves the sensor disconnected.
func (s *MAX31855) Init(_ context.Context) error {
	s.connected.Store(false)

	frame, err := s.readFrame()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	if err := faultError(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	s.connected.Store(true)
	return nil
}

// Read returns the latest thermocouple temperature.
func (s *MAX31855) Read(_ context.Context, kind Capability) (Reading, error) {
	if !s.Supports(kind) {
		return InvalidReading(), fmt.Errorf("%w: %s does not provide %q", ErrUnsupportedKind, s.name, kind)
	}
	if !s.Connected() {
		return InvalidReading(), ErrNotConnected
	}

	// Failures here do not flip connectivity: the caller's retry must
	// reach the bus again, and disconnection is decided by Init and
	// the reconnect sweep.
	frame, err := s.readFrame()
	if err != nil {
		return InvalidReading(), err
	}
	if err := faultError(frame); err != nil {
		return InvalidReading(), err
	}

	// Arithmetic right shift sign-extends the 14-bit field.
	raw := int32(frame) >> 18
	return NewReading(float64(raw) * max31855DegreesLSB), nil
}

func (s *MAX31855) readFrame() (uint32, error) {
	// SPI transactions are full duplex; clock out zeros to read.
	var buf [4]byte
	if err := s.tx.Tx(make([]byte, 4), buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	frame := binary.BigEndian.Uint32(buf[:])

	// An all-zero frame means the chip is absent or not responding
	// (a real conversion always has reference-junction bits set).
	if frame == 0 {
		return 0, fmt.Errorf("%w: no response", ErrReadFailed)
	}
	return frame, nil
}

// faultError maps the frame's fault bits to a descriptive error.
func faultError(frame uint32) error {
	if frame&max31855FaultFlag == 0 {
		return nil
	}
	switch {
	case frame&max31855OpenProbe != 0:
		return fmt.Errorf("%w: thermocouple open circuit", ErrReadFailed)
	case frame&max31855ShortGND != 0:
		return fmt.Errorf("%w: thermocouple shorted to GND", ErrReadFailed)
	case frame&max31855ShortVCC != 0:
		return fmt.Errorf("%w: thermocouple shorted to VCC", ErrReadFailed)
	default:
		return fmt.Errorf("%w: unspecified fault", ErrReadFailed)
	}
}
