package sensor

import "errors"

// Domain errors for the sensor package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, sensor.ErrSensorExists) {
//	    // handle duplicate registration
//	}
var (
	// ErrSensorExists is returned when registering a sensor whose name is
	// already taken. The caller must unregister the old sensor first.
	ErrSensorExists = errors.New("sensor: already registered")

	// ErrSensorNotFound is returned when a sensor name does not exist.
	ErrSensorNotFound = errors.New("sensor: not found")

	// ErrInvalidCapability is returned when a capability string is not recognised.
	ErrInvalidCapability = errors.New("sensor: invalid capability")

	// ErrUnsupportedKind is returned when a sensor is asked to read a
	// measurement kind it does not provide.
	ErrUnsupportedKind = errors.New("sensor: unsupported measurement kind")

	// ErrNotConnected is returned when reading from a sensor whose
	// initialisation has not succeeded.
	ErrNotConnected = errors.New("sensor: not connected")

	// ErrReadFailed is returned when a bus transaction or conversion fails.
	ErrReadFailed = errors.New("sensor: read failed")

	// ErrInitFailed is returned when the initialisation sequence fails.
	ErrInitFailed = errors.New("sensor: init failed")

	// ErrBadChecksum is returned when a sensor's on-wire CRC does not match.
	ErrBadChecksum = errors.New("sensor: checksum mismatch")

	// ErrInvalidSpec is returned when a declarative sensor record is malformed.
	ErrInvalidSpec = errors.New("sensor: invalid spec")

	// ErrUnknownType is returned when no builder is registered for a sensor type.
	ErrUnknownType = errors.New("sensor: unknown type")
)
