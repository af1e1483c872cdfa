// Package influxdb provides the long-term reading store.
//
// Readings flow in through the polling service's fan-out: the Client
// implements the PublishReading sink signature, batches points in
// memory, and ships them asynchronously. A daemon running without an
// InfluxDB server simply leaves this integration disabled; the local
// SQLite history still serves the HTTP endpoint.
//
// Writes never block the polling goroutine. Errors surface through the
// SetOnError callback since the batching layer reports them after the
// fact.
package influxdb
