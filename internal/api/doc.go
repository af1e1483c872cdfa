// Package api provides the HTTP REST API and WebSocket server for Enviro Core.
//
// It exposes the reading cache, sensor inventory, and history store to
// local dashboards and tooling. Every read goes through the engine's
// bounded-wait path, so a request arriving during sensor reconfiguration
// fails fast with 503 instead of stalling the listener.
//
// # Endpoints
//
//	GET  /api/v1/health                          liveness and sensor count
//	GET  /api/v1/sensors                         registered sensors
//	GET  /api/v1/sensors/{name}                  one sensor with cached readings
//	GET  /api/v1/sensors/{name}/readings/{kind}  one cached measurement
//	GET  /api/v1/sensors/{name}/history          persisted readings (kind, limit)
//	POST /api/v1/sensors/{name}/reconnect        re-initialise a sensor
//	GET  /api/v1/cache/max-age                   current freshness threshold
//	PUT  /api/v1/cache/max-age                   adjust freshness threshold
//	GET  /api/v1/ws                              WebSocket reading stream
//
// # WebSocket
//
// Clients subscribe to the "readings" channel and receive every cache
// entry that changes in a poll pass. The hub satisfies the polling
// service's Publisher interface; slow clients are skipped, never waited
// on.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
