package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/enviro-core/internal/sensor"
)

// WriteReading writes a single sensor reading to InfluxDB.
//
// This is the primary method for recording environmental telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
// Invalid readings are dropped, not written.
//
// Parameters:
//   - sensorName: Unique sensor name (e.g., "greenhouse")
//   - kind: Measurement kind (e.g., temperature)
//   - r: The reading to record
//
// Example:
//
//	client.WriteReading("greenhouse", sensor.CapTemperature, reading)
func (c *Client) WriteReading(sensorName string, kind sensor.Capability, r sensor.Reading) {
	if !c.IsConnected() || !r.Valid {
		return
	}

	point := write.NewPoint(
		"readings",
		map[string]string{
			"sensor": sensorName,
			"kind":   string(kind),
		},
		map[string]interface{}{
			"value": r.Value,
		},
		r.Timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// PublishReading adapts WriteReading to the polling service's fan-out,
// so the client can be registered as a reading sink directly.
func (c *Client) PublishReading(sensorName string, kind sensor.Capability, r sensor.Reading) {
	c.WriteReading(sensorName, kind, r)
}

// WriteSensorStatus writes a sensor availability transition.
//
// Used for tracking how often sensors drop off the bus and how long
// recovery takes.
//
// Parameters:
//   - sensorName: Unique sensor name
//   - connected: Whether the sensor is reachable
func (c *Client) WriteSensorStatus(sensorName string, connected bool) {
	if !c.IsConnected() {
		return
	}

	value := 0.0
	if connected {
		value = 1.0
	}

	point := write.NewPoint(
		"sensor_status",
		map[string]string{
			"sensor": sensorName,
		},
		map[string]interface{}{
			"connected": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("daemon_stats",
//	    map[string]string{"host": "enviro-01"},
//	    map[string]interface{}{"poll_pass_ms": 12.4})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
