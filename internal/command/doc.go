// Package command implements the MQTT command responder.
//
// The responder is the remote-control surface of the cache engine: small
// JSON commands arrive on per-verb topics, execute against the engine's
// bounded-wait read path, and produce correlated JSON replies.
//
// # Architecture
//
//	MQTT broker
//	    │ envirocore/command/{verb}
//	    ▼
//	┌────────────┐     ┌──────────────────┐
//	│ Responder  │────▶│ telemetry.Engine │  GetReadingSafe / Reconnect /
//	│ (dispatch) │     │                  │  SetMaxCacheAge / Reconfigure
//	└────────────┘     └──────────────────┘
//	    │ envirocore/reply/{request_id}
//	    ▼
//	MQTT broker
//
// # Verbs
//
//   - get_reading: one cached measurement (sensor + kind parameters)
//   - list_sensors: registered sensors with state and capabilities
//   - reconnect: re-initialise one sensor, or all disconnected sensors
//   - get_max_cache_age / set_max_cache_age: freshness threshold
//   - reload_config: re-read and apply the declarative sensor list
//
// Every reply carries the request's request_id and either a data object
// or a stable error code. Commands without a request_id are dropped:
// there is no topic to answer on.
//
// The responder never touches hardware directly. Reads go through
// GetReadingSafe, so a command issued during reconfiguration fails fast
// with BUSY instead of blocking the MQTT client's handler goroutine.
package command
