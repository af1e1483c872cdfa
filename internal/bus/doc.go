// Package bus owns the physical I2C and SPI bus handles for Enviro Core.
//
// It is a thin layer over periph.io: each bus manager opens its bus once
// at startup and hands out transaction handles to sensor drivers. The
// managers perform no conversion logic and hold no sensor state; they
// exist so that exactly one component owns each bus for the lifetime of
// the process.
//
// Contract per bus kind:
//   - initialise: OpenI2C / OpenSPI (loads periph host drivers on first use)
//   - probe:      I2CBus.Probe (device presence test)
//   - transact:   i2c.Dev.Tx / spi.Conn.Tx handed to drivers
//
// Drivers should depend on the narrow Tx interface (see the sensor
// package), not on these concrete types, so they can be tested against
// fakes without hardware.
package bus
