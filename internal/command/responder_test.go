package command

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
	"github.com/nerrad567/enviro-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/enviro-core/internal/sensor"
	"github.com/nerrad567/enviro-core/internal/telemetry"
)

// fakeBroker captures publishes and subscriptions without a broker.
type fakeBroker struct {
	mu         sync.Mutex
	published  []fakeMessage
	subscribed map[string]mqtt.MessageHandler
	pubErr     error
}

type fakeMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subscribed: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubErr != nil {
		return b.pubErr
	}
	b.published = append(b.published, fakeMessage{topic, payload, qos, retained})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed[topic] = handler
	return nil
}

func (b *fakeBroker) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribed, topic)
	return nil
}

func (b *fakeBroker) lastReply(t *testing.T) (string, Reply) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.published) == 0 {
		t.Fatal("no reply published")
	}
	msg := b.published[len(b.published)-1]
	var reply Reply
	if err := json.Unmarshal(msg.payload, &reply); err != nil {
		t.Fatalf("unmarshalling reply: %v", err)
	}
	return msg.topic, reply
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Cache.MaxAgeMS = 5000
	cfg.Cache.RetryAttempts = 4
	cfg.Cache.RetryDelayMS = 1
	cfg.Cache.ReconnectIntervalMS = 5000
	cfg.Cache.SafeReadTimeoutMS = 100
	return cfg
}

// newTestResponder builds a responder over a live engine with the given
// sensors registered and a warm cache.
func newTestResponder(t *testing.T, sensors ...sensor.Sensor) (*Responder, *fakeBroker, *telemetry.Engine) {
	t.Helper()

	registry := sensor.NewRegistry()
	for _, s := range sensors {
		if err := s.Init(context.Background()); err != nil {
			t.Fatalf("Init(%q) error = %v", s.Name(), err)
		}
		if err := registry.Register(s); err != nil {
			t.Fatalf("Register(%q) error = %v", s.Name(), err)
		}
	}

	engine := telemetry.NewEngine(registry, sensor.NewFactory(nil), testConfig())
	engine.RefreshAll(context.Background(), true)

	broker := newFakeBroker()
	r, err := NewResponder(Options{
		Engine:   engine,
		Registry: registry,
		Broker:   broker,
		QoS:      1,
	})
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}
	return r, broker, engine
}

// send delivers a command to the responder as the MQTT client would.
func send(t *testing.T, r *Responder, verb, requestID string, params map[string]any) error {
	t.Helper()

	payload, err := json.Marshal(Request{
		RequestID:  requestID,
		Timestamp:  time.Now().UTC(),
		Parameters: params,
	})
	if err != nil {
		t.Fatalf("marshalling request: %v", err)
	}
	return r.handleMessage(mqtt.Topics{}.Command(verb), payload)
}

func TestResponder_GetReading(t *testing.T) {
	sim := sensor.NewSim("greenhouse", sensor.CapTemperature)
	sim.SetValue(sensor.CapTemperature, 21.5)
	r, broker, _ := newTestResponder(t, sim)

	err := send(t, r, VerbGetReading, "req-1", map[string]any{
		"sensor": "greenhouse",
		"kind":   "temperature",
	})
	if err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	topic, reply := broker.lastReply(t)
	if topic != "envirocore/reply/req-1" {
		t.Errorf("reply topic = %q, want envirocore/reply/req-1", topic)
	}
	if !reply.Success {
		t.Fatalf("reply.Success = false, error = %+v", reply.Error)
	}
	if reply.RequestID != "req-1" {
		t.Errorf("reply.RequestID = %q, want req-1", reply.RequestID)
	}
	if got := reply.Data["value"]; got != 21.5 {
		t.Errorf("reply value = %v, want 21.5", got)
	}
	if got := reply.Data["valid"]; got != true {
		t.Errorf("reply valid = %v, want true", got)
	}
}

func TestResponder_GetReading_Errors(t *testing.T) {
	sim := sensor.NewSim("greenhouse", sensor.CapTemperature)
	r, broker, _ := newTestResponder(t, sim)

	tests := []struct {
		name     string
		params   map[string]any
		wantCode string
	}{
		{"unknown sensor", map[string]any{"sensor": "attic", "kind": "temperature"}, ErrCodeSensorNotFound},
		{"unsupported kind", map[string]any{"sensor": "greenhouse", "kind": "humidity"}, ErrCodeUnsupportedKind},
		{"invalid kind", map[string]any{"sensor": "greenhouse", "kind": "loudness"}, ErrCodeInvalidParameters},
		{"missing sensor", map[string]any{"kind": "temperature"}, ErrCodeInvalidParameters},
		{"missing kind", map[string]any{"sensor": "greenhouse"}, ErrCodeInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := send(t, r, VerbGetReading, "req-err", tt.params); err != nil {
				t.Fatalf("handleMessage() error = %v", err)
			}
			_, reply := broker.lastReply(t)
			if reply.Success {
				t.Fatal("reply.Success = true, want failure")
			}
			if reply.Error == nil || reply.Error.Code != tt.wantCode {
				t.Errorf("reply.Error = %+v, want code %s", reply.Error, tt.wantCode)
			}
		})
	}
}

func TestResponder_ListSensors(t *testing.T) {
	outside := sensor.NewSim("outside", sensor.CapTemperature)
	greenhouse := sensor.NewSim("greenhouse", sensor.CapTemperature, sensor.CapHumidity)
	r, broker, _ := newTestResponder(t, greenhouse, outside)

	if err := send(t, r, VerbListSensors, "req-2", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	_, reply := broker.lastReply(t)
	if !reply.Success {
		t.Fatalf("reply.Success = false, error = %+v", reply.Error)
	}
	if got := reply.Data["count"]; got != float64(2) {
		t.Errorf("count = %v, want 2", got)
	}

	sensors, ok := reply.Data["sensors"].([]any)
	if !ok || len(sensors) != 2 {
		t.Fatalf("sensors = %v, want slice of 2", reply.Data["sensors"])
	}

	// Sorted by name: greenhouse before outside.
	first, ok := sensors[0].(map[string]any)
	if !ok {
		t.Fatalf("sensors[0] = %T, want object", sensors[0])
	}
	if first["name"] != "greenhouse" {
		t.Errorf("sensors[0].name = %v, want greenhouse", first["name"])
	}
	if first["connected"] != true {
		t.Errorf("sensors[0].connected = %v, want true", first["connected"])
	}
}

func TestResponder_Reconnect_Single(t *testing.T) {
	sim := sensor.NewSim("greenhouse", sensor.CapTemperature)
	r, broker, _ := newTestResponder(t, sim)
	sim.Disconnect()

	err := send(t, r, VerbReconnect, "req-3", map[string]any{"sensor": "greenhouse"})
	if err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	_, reply := broker.lastReply(t)
	if !reply.Success {
		t.Fatalf("reply.Success = false, error = %+v", reply.Error)
	}
	if !sim.Connected() {
		t.Error("sensor still disconnected after reconnect")
	}
}

func TestResponder_Reconnect_All(t *testing.T) {
	a := sensor.NewSim("greenhouse", sensor.CapTemperature)
	b := sensor.NewSim("outside", sensor.CapTemperature)
	r, broker, _ := newTestResponder(t, a, b)
	a.Disconnect()
	b.Disconnect()

	if err := send(t, r, VerbReconnect, "req-4", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	_, reply := broker.lastReply(t)
	if !reply.Success {
		t.Fatalf("reply.Success = false, error = %+v", reply.Error)
	}
	if got := reply.Data["reconnected"]; got != float64(2) {
		t.Errorf("reconnected = %v, want 2", got)
	}
}

func TestResponder_Reconnect_UnknownSensor(t *testing.T) {
	r, broker, _ := newTestResponder(t, sensor.NewSim("greenhouse", sensor.CapTemperature))

	err := send(t, r, VerbReconnect, "req-5", map[string]any{"sensor": "attic"})
	if err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	_, reply := broker.lastReply(t)
	if reply.Success {
		t.Fatal("reply.Success = true, want failure")
	}
	if reply.Error.Code != ErrCodeSensorNotFound {
		t.Errorf("error code = %s, want %s", reply.Error.Code, ErrCodeSensorNotFound)
	}
}

func TestResponder_MaxCacheAge_RoundTrip(t *testing.T) {
	r, broker, engine := newTestResponder(t, sensor.NewSim("greenhouse", sensor.CapTemperature))

	err := send(t, r, VerbSetMaxCacheAge, "req-6", map[string]any{"max_age_ms": float64(10000)})
	if err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	_, reply := broker.lastReply(t)
	if !reply.Success {
		t.Fatalf("set reply.Success = false, error = %+v", reply.Error)
	}
	if got := reply.Data["max_age_ms"]; got != float64(10000) {
		t.Errorf("applied max_age_ms = %v, want 10000", got)
	}
	if engine.MaxCacheAge() != 10*time.Second {
		t.Errorf("engine.MaxCacheAge() = %v, want 10s", engine.MaxCacheAge())
	}

	if err := send(t, r, VerbGetMaxCacheAge, "req-7", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	_, reply = broker.lastReply(t)
	if got := reply.Data["max_age_ms"]; got != float64(10000) {
		t.Errorf("get max_age_ms = %v, want 10000", got)
	}
}

func TestResponder_SetMaxCacheAge_Invalid(t *testing.T) {
	r, broker, _ := newTestResponder(t, sensor.NewSim("greenhouse", sensor.CapTemperature))

	tests := []struct {
		name   string
		params map[string]any
	}{
		{"missing", nil},
		{"not a number", map[string]any{"max_age_ms": "fast"}},
		{"zero", map[string]any{"max_age_ms": float64(0)}},
		{"negative", map[string]any{"max_age_ms": float64(-5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := send(t, r, VerbSetMaxCacheAge, "req-bad", tt.params); err != nil {
				t.Fatalf("handleMessage() error = %v", err)
			}
			_, reply := broker.lastReply(t)
			if reply.Success {
				t.Fatal("reply.Success = true, want failure")
			}
			if reply.Error.Code != ErrCodeInvalidParameters {
				t.Errorf("error code = %s, want %s", reply.Error.Code, ErrCodeInvalidParameters)
			}
		})
	}
}

func TestResponder_ReloadConfig(t *testing.T) {
	registry := sensor.NewRegistry()
	factory := sensor.NewFactory(nil)
	engine := telemetry.NewEngine(registry, factory, testConfig())

	specs := []config.SensorConfig{
		{Name: "greenhouse", Type: sensor.TypeSim, Bus: "i2c", Address: 0x44, Extra: "caps=temperature"},
		{Name: "bad sensor/", Type: sensor.TypeSim, Bus: "i2c", Address: 0x45},
	}

	broker := newFakeBroker()
	r, err := NewResponder(Options{
		Engine:    engine,
		Registry:  registry,
		Broker:    broker,
		LoadSpecs: func() ([]config.SensorConfig, error) { return specs, nil },
		QoS:       1,
	})
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}

	if err := send(t, r, VerbReloadConfig, "req-8", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	_, reply := broker.lastReply(t)
	if !reply.Success {
		t.Fatalf("reply.Success = false, error = %+v", reply.Error)
	}

	added, ok := reply.Data["added"].([]any)
	if !ok || len(added) != 1 || added[0] != "greenhouse" {
		t.Errorf("added = %v, want [greenhouse]", reply.Data["added"])
	}
	rejected, ok := reply.Data["rejected"].(map[string]any)
	if !ok || len(rejected) != 1 {
		t.Errorf("rejected = %v, want one entry", reply.Data["rejected"])
	}
}

func TestResponder_ReloadConfig_NoLoader(t *testing.T) {
	r, broker, _ := newTestResponder(t, sensor.NewSim("greenhouse", sensor.CapTemperature))

	if err := send(t, r, VerbReloadConfig, "req-9", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	_, reply := broker.lastReply(t)
	if reply.Success {
		t.Fatal("reply.Success = true, want failure")
	}
	if reply.Error.Code != ErrCodeReloadFailed {
		t.Errorf("error code = %s, want %s", reply.Error.Code, ErrCodeReloadFailed)
	}
}

func TestResponder_ReloadConfig_LoaderError(t *testing.T) {
	registry := sensor.NewRegistry()
	engine := telemetry.NewEngine(registry, sensor.NewFactory(nil), testConfig())
	broker := newFakeBroker()
	r, err := NewResponder(Options{
		Engine:    engine,
		Registry:  registry,
		Broker:    broker,
		LoadSpecs: func() ([]config.SensorConfig, error) { return nil, errors.New("file vanished") },
	})
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}

	if err := send(t, r, VerbReloadConfig, "req-10", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	_, reply := broker.lastReply(t)
	if reply.Success || reply.Error.Code != ErrCodeReloadFailed {
		t.Errorf("reply = %+v, want RELOAD_FAILED", reply)
	}
}

func TestResponder_UnknownVerb(t *testing.T) {
	r, broker, _ := newTestResponder(t, sensor.NewSim("greenhouse", sensor.CapTemperature))

	if err := send(t, r, "self_destruct", "req-11", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	_, reply := broker.lastReply(t)
	if reply.Success {
		t.Fatal("reply.Success = true, want failure")
	}
	if reply.Error.Code != ErrCodeUnknownVerb {
		t.Errorf("error code = %s, want %s", reply.Error.Code, ErrCodeUnknownVerb)
	}
	if !strings.Contains(reply.Error.Message, "self_destruct") {
		t.Errorf("error message %q does not name the verb", reply.Error.Message)
	}
}

func TestResponder_DropsMessageWithoutRequestID(t *testing.T) {
	r, broker, _ := newTestResponder(t, sensor.NewSim("greenhouse", sensor.CapTemperature))

	if err := send(t, r, VerbListSensors, "", nil); err == nil {
		t.Error("handleMessage() error = nil, want error for missing request_id")
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.published) != 0 {
		t.Errorf("published %d replies, want 0", len(broker.published))
	}
}

func TestResponder_DropsMalformedPayload(t *testing.T) {
	r, broker, _ := newTestResponder(t, sensor.NewSim("greenhouse", sensor.CapTemperature))

	err := r.handleMessage(mqtt.Topics{}.Command(VerbListSensors), []byte("{not json"))
	if err == nil {
		t.Error("handleMessage() error = nil, want parse error")
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.published) != 0 {
		t.Errorf("published %d replies, want 0", len(broker.published))
	}
}

func TestResponder_StartAndClose(t *testing.T) {
	r, broker, _ := newTestResponder(t, sensor.NewSim("greenhouse", sensor.CapTemperature))

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	broker.mu.Lock()
	_, subscribed := broker.subscribed["envirocore/command/+"]
	broker.mu.Unlock()
	if !subscribed {
		t.Error("Start() did not subscribe to envirocore/command/+")
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	broker.mu.Lock()
	_, subscribed = broker.subscribed["envirocore/command/+"]
	broker.mu.Unlock()
	if subscribed {
		t.Error("Close() did not remove the subscription")
	}
}

func TestNewResponder_Validation(t *testing.T) {
	registry := sensor.NewRegistry()
	engine := telemetry.NewEngine(registry, sensor.NewFactory(nil), testConfig())
	broker := newFakeBroker()

	tests := []struct {
		name string
		opts Options
	}{
		{"missing engine", Options{Registry: registry, Broker: broker}},
		{"missing registry", Options{Engine: engine, Broker: broker}},
		{"missing broker", Options{Engine: engine, Registry: registry}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewResponder(tt.opts); err == nil {
				t.Error("NewResponder() error = nil, want error")
			}
		})
	}
}
