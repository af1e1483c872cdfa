package bus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
)

// hostInit guards the one-time periph host driver initialisation.
var hostInit sync.Once

// initHost loads the periph.io host drivers. Safe to call from every
// Open; only the first call does work.
func initHost() error {
	var err error
	hostInit.Do(func() {
		_, err = host.Init()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHostInit, err)
	}
	return nil
}

// I2CBus owns a single physical I2C bus handle.
//
// Sensors borrow device handles via Device(); the bus serialises
// transactions at the periph.io layer, so handles are safe to use from
// the polling goroutine alongside Probe calls.
type I2CBus struct {
	name string
	bus  i2c.BusCloser
}

// OpenI2C opens the configured I2C bus.
//
// An empty bus name selects the platform's default bus (the first one
// registered by the host drivers).
//
// Parameters:
//   - cfg: I2C bus configuration
//
// Returns:
//   - *I2CBus: Open bus ready for device handles
//   - error: If host init or bus open fails
func OpenI2C(cfg config.I2CBusConfig) (*I2CBus, error) {
	if err := initHost(); err != nil {
		return nil, err
	}

	b, err := i2creg.Open(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: opening i2c bus %q: %w", ErrBusUnavailable, cfg.Name, err)
	}

	return &I2CBus{name: cfg.Name, bus: b}, nil
}

// Name returns the configured bus name ("" for the platform default).
func (b *I2CBus) Name() string {
	return b.name
}

// Device returns a transaction handle for the device at addr.
// No I/O is performed; use Probe to test for presence.
func (b *I2CBus) Device(addr uint16) *i2c.Dev {
	return &i2c.Dev{Bus: b.bus, Addr: addr}
}

// Probe tests whether a device responds at addr.
//
// It issues a one-byte read, which most environmental sensors ACK even
// without a preceding command. A NACK or bus error reports absent.
func (b *I2CBus) Probe(addr uint16) bool {
	dev := i2c.Dev{Bus: b.bus, Addr: addr}
	var buf [1]byte
	return dev.Tx(nil, buf[:]) == nil
}

// Close releases the bus handle.
func (b *I2CBus) Close() error {
	if b.bus == nil {
		return nil
	}
	if err := b.bus.Close(); err != nil {
		return fmt.Errorf("closing i2c bus %q: %w", b.name, err)
	}
	return nil
}

// SPIBus owns a single physical SPI port configured at a fixed mode and
// clock speed. All sensors on the port share the resulting connection.
type SPIBus struct {
	name string
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI opens the configured SPI port and establishes a connection at
// the configured mode and speed.
//
// Parameters:
//   - cfg: SPI bus configuration
//
// Returns:
//   - *SPIBus: Open bus with an established connection
//   - error: If host init, port open, or connect fails
func OpenSPI(cfg config.SPIBusConfig) (*SPIBus, error) {
	if err := initHost(); err != nil {
		return nil, err
	}

	port, err := spireg.Open(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: opening spi port %q: %w", ErrBusUnavailable, cfg.Name, err)
	}

	conn, err := port.Connect(
		physic.Frequency(cfg.SpeedHz)*physic.Hertz,
		spi.Mode(cfg.Mode),
		8,
	)
	if err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: connecting spi port %q: %w", ErrBusUnavailable, cfg.Name, err)
	}

	return &SPIBus{name: cfg.Name, port: port, conn: conn}, nil
}

// Name returns the configured port name ("" for the platform default).
func (b *SPIBus) Name() string {
	return b.name
}

// Conn returns the established SPI connection.
func (b *SPIBus) Conn() spi.Conn {
	return b.conn
}

// Close releases the SPI port.
func (b *SPIBus) Close() error {
	if b.port == nil {
		return nil
	}
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("closing spi port %q: %w", b.name, err)
	}
	return nil
}

// Buses bundles the open bus managers for the sensor factory.
// A nil field means the bus kind is disabled or failed to open.
type Buses struct {
	I2C *I2CBus
	SPI *SPIBus
}

// Close releases all open buses. The first error is returned; remaining
// buses are still closed.
func (b *Buses) Close() error {
	var first error
	if b.I2C != nil {
		if err := b.I2C.Close(); err != nil && first == nil {
			first = err
		}
	}
	if b.SPI != nil {
		if err := b.SPI.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
