package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
	"github.com/nerrad567/enviro-core/internal/sensor"
)

func TestConnect_Disabled(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: false}

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect(disabled) error = %v, want ErrDisabled", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWrites_DisconnectedAreNoOps(t *testing.T) {
	c := &Client{}

	// None of these may touch the nil write API.
	c.WriteReading("greenhouse", sensor.CapTemperature, sensor.NewReading(21.5))
	c.PublishReading("greenhouse", sensor.CapTemperature, sensor.NewReading(21.5))
	c.WriteSensorStatus("greenhouse", true)
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1.0})
	c.Flush()
}

func TestWriteReading_DropsInvalid(t *testing.T) {
	// Connected but with a nil write API: an invalid reading must be
	// dropped before the API is touched.
	c := &Client{connected: true}
	c.WriteReading("greenhouse", sensor.CapTemperature, sensor.InvalidReading())
}
