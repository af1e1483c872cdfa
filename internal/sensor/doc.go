// Package sensor provides the sensor abstraction layer: the polymorphic
// Sensor interface, concrete bus-attached drivers, a thread-safe registry,
// and a factory that constructs sensors from declarative configuration
// records.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────┐
//	│                    Factory                       │
//	│   config record ──validate──► builder ──► Sensor │
//	└───────────────────────┬──────────────────────────┘
//	                        │ Register
//	                        ▼
//	┌──────────────────────────────────────────────────┐
//	│                    Registry                      │
//	│   by-name lookup · capability queries · ownership│
//	└───────────────────────┬──────────────────────────┘
//	                        │ Read / Init (polling context only)
//	                        ▼
//	┌──────────────┬───────────────┬───────────────────┐
//	│    SHT3x     │   MAX31855    │       Sim         │
//	│  (I2C 0x44)  │    (SPI)      │   (no hardware)   │
//	└──────────────┴───────────────┴───────────────────┘
//
// # Drivers
//
// Drivers embed a common base carrying identity and an atomic connected
// flag. Identity and capability queries are safe from any goroutine;
// Init and Read perform bus I/O and belong to the polling context.
// Hardware absence is an ordinary error value, never a panic. Read
// failures do not change connectivity: a transient NACK or CRC glitch
// must stay retryable within a pass. Only Init (and the reconnect sweep
// that re-runs it) moves a sensor between connected and disconnected.
//
// # Reconfiguration
//
// PlanChanges diffs two declarative sensor lists by name, classifying
// each record as added, replaced, removed, or unchanged. Unchanged
// sensors keep their live instances so reconfiguration does not disturb
// healthy hardware.
package sensor
