package telemetry

import "errors"

// Domain errors for the telemetry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, telemetry.ErrNoReading) {
//	    // sensor registered but never successfully read
//	}
var (
	// ErrSensorNotFound is returned when the named sensor is not registered.
	ErrSensorNotFound = errors.New("telemetry: sensor not found")

	// ErrNoReading is returned when a sensor has never produced a
	// successful reading for the requested kind.
	ErrNoReading = errors.New("telemetry: no reading")

	// ErrUnsupportedKind is returned when the sensor does not provide
	// the requested measurement kind.
	ErrUnsupportedKind = errors.New("telemetry: unsupported measurement kind")

	// ErrMaintenanceBusy is returned by GetReadingSafe when maintenance
	// (reconfiguration) holds the engine beyond the caller's patience.
	ErrMaintenanceBusy = errors.New("telemetry: maintenance in progress")

	// ErrReconfigure is returned when applying a new sensor configuration
	// rejected one or more records. The accepted records are still applied.
	ErrReconfigure = errors.New("telemetry: reconfiguration partially failed")
)
