// Package telemetry implements the reading cache engine and the polling
// service that drives it.
//
// # Architecture
//
//	                       consumers (API, MQTT commands, WebSocket)
//	                          │ GetReading (lock-free)
//	                          ▼
//	┌─────────────────────────────────────────────────────────┐
//	│                        Engine                           │
//	│                                                         │
//	│   published ──atomic.Pointer──► generation (immutable)  │
//	│        ▲                                                │
//	│        │ single atomic store per pass                   │
//	│   poll pass · reconnect · reconfigure (pollMu)          │
//	└──────────────────────────▲──────────────────────────────┘
//	                           │ RefreshAll / ReconnectAll
//	┌──────────────────────────┴──────────────────────────────┐
//	│                        Service                          │
//	│   poll loop · reconnect sweep · history prune           │
//	│   updates ──► Publishers (MQTT, WS, Influx) + Recorder  │
//	└─────────────────────────────────────────────────────────┘
//
// # Cache semantics
//
// Each (sensor, kind) pair has at most one entry per generation. An
// absent entry means the pair has never been read at all. An entry
// with Valid false means reads are currently failing; its Value and
// Timestamp are the last good ones, so consumers can show the last
// known measurement alongside its staleness — or the NaN sentinel and
// zero timestamp if no read has ever succeeded. Entries older than the
// runtime-tunable cache age are re-read on the next pass.
//
// Readers never block: they load the published generation pointer and
// index an immutable map. The producer side (one poll pass, reconnect,
// reconfiguration) is serialised by a mutex and publishes a freshly
// built generation with a single atomic store, so no reader ever
// observes a half-written map.
//
// # Failure policy
//
// A failed read is retried with a fixed short delay up to a configured
// total attempt budget, then surrendered until the next pass. Retrying
// never changes connectivity; a sensor drops to disconnected only when
// its Init fails, and the periodic reconnect sweep re-runs Init for
// disconnected sensors. Failure and recovery are each logged once per
// transition, not per pass.
package telemetry
