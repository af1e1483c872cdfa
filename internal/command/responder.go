package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
	"github.com/nerrad567/enviro-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/enviro-core/internal/sensor"
	"github.com/nerrad567/enviro-core/internal/telemetry"
)

// Responder operation constants.
const (
	// commandTimeout bounds the execution of a single command.
	commandTimeout = 5 * time.Second

	// replyQoS is the QoS level for command replies.
	replyQoS = 1
)

// Broker is the narrow MQTT surface the responder depends on.
// Satisfied by *mqtt.Client; test fakes implement it without a broker.
type Broker interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error
}

// SpecLoader reloads the declarative sensor list from configuration.
// Called by the reload_config verb; the result is handed to the engine's
// reconfiguration.
type SpecLoader func() ([]config.SensorConfig, error)

// Logger defines the logging interface used by the responder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Responder dispatches MQTT commands against the cache engine.
//
// It subscribes to envirocore/command/+ and executes each verb through
// the engine's safe read path, publishing a JSON reply to
// envirocore/reply/{request_id}. All dependencies are injected; the
// responder holds no global state.
//
// Thread Safety: handlers run on the MQTT client's goroutines; all
// engine and registry access goes through their own synchronisation.
type Responder struct {
	engine    *telemetry.Engine
	registry  *sensor.Registry
	broker    Broker
	loadSpecs SpecLoader
	logger    Logger
	topics    mqtt.Topics
	qos       byte
}

// Options holds configuration for creating a responder.
type Options struct {
	// Engine is the cache engine commands execute against.
	Engine *telemetry.Engine

	// Registry answers list_sensors queries.
	Registry *sensor.Registry

	// Broker is the MQTT client implementation.
	Broker Broker

	// LoadSpecs is optional; if nil, reload_config is rejected.
	LoadSpecs SpecLoader

	// Logger is optional structured logger.
	Logger Logger

	// QoS is the subscription QoS level.
	QoS byte
}

// NewResponder creates a command responder.
// Call Start() to begin receiving commands.
func NewResponder(opts Options) (*Responder, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Broker == nil {
		return nil, fmt.Errorf("broker is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Responder{
		engine:    opts.Engine,
		registry:  opts.Registry,
		broker:    opts.Broker,
		loadSpecs: opts.LoadSpecs,
		logger:    logger,
		qos:       opts.QoS,
	}, nil
}

// Start subscribes to the command topics.
func (r *Responder) Start() error {
	if err := r.broker.Subscribe(r.topics.AllCommands(), r.qos, r.handleMessage); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	r.logger.Info("command responder started", "topic", r.topics.AllCommands())
	return nil
}

// Close removes the command subscription.
func (r *Responder) Close() error {
	if err := r.broker.Unsubscribe(r.topics.AllCommands()); err != nil {
		return fmt.Errorf("unsubscribing from commands: %w", err)
	}
	return nil
}

// handleMessage parses an inbound command and publishes the reply.
// The verb is the last topic segment.
func (r *Responder) handleMessage(topic string, payload []byte) error {
	verb := topic[strings.LastIndex(topic, "/")+1:]

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		r.logger.Error("malformed command payload", "verb", verb, "error", err)
		return fmt.Errorf("parsing command: %w", err)
	}
	if req.RequestID == "" {
		// No correlation ID means no reply topic; drop rather than guess.
		r.logger.Error("command missing request_id", "verb", verb)
		return errors.New("command missing request_id")
	}

	r.logger.Debug("received command", "verb", verb, "request_id", req.RequestID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply := r.dispatch(ctx, verb, req)
	return r.publishReply(reply)
}

// dispatch routes a command to its verb handler.
func (r *Responder) dispatch(ctx context.Context, verb string, req Request) Reply {
	switch verb {
	case VerbGetReading:
		return r.handleGetReading(ctx, req)
	case VerbListSensors:
		return r.handleListSensors(req)
	case VerbReconnect:
		return r.handleReconnect(ctx, req)
	case VerbGetMaxCacheAge:
		return r.handleGetMaxCacheAge(req)
	case VerbSetMaxCacheAge:
		return r.handleSetMaxCacheAge(req)
	case VerbReloadConfig:
		return r.handleReloadConfig(ctx, req)
	default:
		return newReplyError(req.RequestID, ErrCodeUnknownVerb,
			fmt.Sprintf("unknown verb: %s", verb))
	}
}

// handleGetReading serves a single cached measurement through the
// engine's bounded-wait read path.
func (r *Responder) handleGetReading(ctx context.Context, req Request) Reply {
	name, ok := stringParam(req, "sensor")
	if !ok {
		return newReplyError(req.RequestID, ErrCodeInvalidParameters,
			"missing 'sensor' parameter")
	}

	kindStr, ok := stringParam(req, "kind")
	if !ok {
		return newReplyError(req.RequestID, ErrCodeInvalidParameters,
			"missing 'kind' parameter")
	}
	kind, err := sensor.ParseCapability(kindStr)
	if err != nil {
		return newReplyError(req.RequestID, ErrCodeInvalidParameters,
			fmt.Sprintf("unknown kind: %s", kindStr))
	}

	reading, err := r.engine.GetReadingSafe(ctx, name, kind)
	if err != nil {
		return newReplyError(req.RequestID, readErrorCode(err), err.Error())
	}

	// NaN marks a sensor that never produced a value; JSON carries null.
	var value any
	if !math.IsNaN(reading.Value) {
		value = reading.Value
	}
	return newReply(req.RequestID, map[string]any{
		"sensor":    name,
		"kind":      string(kind),
		"value":     value,
		"timestamp": reading.Timestamp.UTC().Format(time.RFC3339Nano),
		"valid":     reading.Valid,
	})
}

// handleListSensors returns every registered sensor with its
// connection state and capabilities, sorted by name.
func (r *Responder) handleListSensors(req Request) Reply {
	all := r.registry.All()
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })

	sensors := make([]map[string]any, 0, len(all))
	for _, s := range all {
		caps := s.Capabilities()
		kinds := make([]string, len(caps))
		for i, c := range caps {
			kinds[i] = string(c)
		}
		sensors = append(sensors, map[string]any{
			"name":         s.Name(),
			"type":         s.Type(),
			"connected":    s.Connected(),
			"capabilities": kinds,
		})
	}

	return newReply(req.RequestID, map[string]any{
		"count":   len(sensors),
		"sensors": sensors,
	})
}

// handleReconnect re-initialises one sensor, or every disconnected
// sensor when no name is given.
func (r *Responder) handleReconnect(ctx context.Context, req Request) Reply {
	name, ok := stringParam(req, "sensor")
	if !ok {
		n := r.engine.ReconnectAll(ctx)
		return newReply(req.RequestID, map[string]any{"reconnected": n})
	}

	if err := r.engine.Reconnect(ctx, name); err != nil {
		return newReplyError(req.RequestID, readErrorCode(err), err.Error())
	}
	return newReply(req.RequestID, map[string]any{"sensor": name})
}

// handleGetMaxCacheAge reports the current freshness threshold.
func (r *Responder) handleGetMaxCacheAge(req Request) Reply {
	return newReply(req.RequestID, map[string]any{
		"max_age_ms": r.engine.MaxCacheAge().Milliseconds(),
	})
}

// handleSetMaxCacheAge adjusts the freshness threshold at runtime.
// The engine clamps to its floor; the reply carries the applied value.
func (r *Responder) handleSetMaxCacheAge(req Request) Reply {
	ms, ok := numberParam(req, "max_age_ms")
	if !ok {
		return newReplyError(req.RequestID, ErrCodeInvalidParameters,
			"missing 'max_age_ms' parameter")
	}
	if ms <= 0 {
		return newReplyError(req.RequestID, ErrCodeInvalidParameters,
			fmt.Sprintf("'max_age_ms' must be positive, got %.0f", ms))
	}

	applied := r.engine.SetMaxCacheAge(time.Duration(ms) * time.Millisecond)
	return newReply(req.RequestID, map[string]any{
		"max_age_ms": applied.Milliseconds(),
	})
}

// handleReloadConfig re-reads the sensor list and applies it to the
// live engine. Partial application is reported per record, not failed
// wholesale.
func (r *Responder) handleReloadConfig(ctx context.Context, req Request) Reply {
	if r.loadSpecs == nil {
		return newReplyError(req.RequestID, ErrCodeReloadFailed,
			"config reloading is not configured")
	}

	specs, err := r.loadSpecs()
	if err != nil {
		return newReplyError(req.RequestID, ErrCodeReloadFailed,
			fmt.Sprintf("loading config: %v", err))
	}

	result, err := r.engine.Reconfigure(ctx, specs)
	if err != nil && !errors.Is(err, telemetry.ErrReconfigure) {
		return newReplyError(req.RequestID, readErrorCode(err), err.Error())
	}

	rejected := make(map[string]any, len(result.Rejected))
	for name, reason := range result.Rejected {
		rejected[name] = reason.Error()
	}

	return newReply(req.RequestID, map[string]any{
		"added":     result.Added,
		"replaced":  result.Replaced,
		"removed":   result.Removed,
		"unchanged": result.Unchanged,
		"rejected":  rejected,
	})
}

// publishReply serialises and publishes a reply to the request's
// correlation topic.
func (r *Responder) publishReply(reply Reply) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		r.logger.Error("failed to marshal reply", "request_id", reply.RequestID, "error", err)
		return fmt.Errorf("marshalling reply: %w", err)
	}

	topic := r.topics.Reply(reply.RequestID)
	if err := r.broker.Publish(topic, payload, replyQoS, false); err != nil {
		r.logger.Error("failed to publish reply", "topic", topic, "error", err)
		return fmt.Errorf("publishing reply: %w", err)
	}
	return nil
}

// readErrorCode maps engine errors to stable reply codes.
func readErrorCode(err error) string {
	switch {
	case errors.Is(err, telemetry.ErrSensorNotFound):
		return ErrCodeSensorNotFound
	case errors.Is(err, telemetry.ErrUnsupportedKind):
		return ErrCodeUnsupportedKind
	case errors.Is(err, telemetry.ErrNoReading):
		return ErrCodeNoReading
	case errors.Is(err, telemetry.ErrMaintenanceBusy):
		return ErrCodeBusy
	default:
		return ErrCodeInternal
	}
}

// stringParam extracts a string parameter from a request.
func stringParam(req Request, key string) (string, bool) {
	v, ok := req.Parameters[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// numberParam extracts a numeric parameter from a request.
// JSON numbers decode as float64.
func numberParam(req Request, key string) (float64, bool) {
	v, ok := req.Parameters[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
