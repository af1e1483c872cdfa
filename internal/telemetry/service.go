package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
	"github.com/nerrad567/enviro-core/internal/sensor"
)

// minPollInterval bounds how fast the poll loop can spin when the cache
// age is turned all the way down.
const minPollInterval = 50 * time.Millisecond

// Publisher receives cache updates for fan-out (MQTT, WebSocket, InfluxDB).
// Implementations must not block; slow sinks buffer internally.
type Publisher interface {
	PublishReading(sensorName string, kind sensor.Capability, r sensor.Reading)
}

// Recorder persists readings to the local history store.
type Recorder interface {
	Record(ctx context.Context, sensorName string, kind sensor.Capability, r sensor.Reading) error
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Service drives the cache engine: a poll loop paced at half the cache
// age (so entries refresh before they expire), a reconnect sweep for
// disconnected sensors, and a prune loop for the history store.
//
// Updates flow out through the engine's pass observer, which the
// service installs on Start and fans out to the registered publishers
// and the recorder.
type Service struct {
	engine *Engine
	logger Logger

	reconnectInterval time.Duration
	retention         time.Duration
	pruneInterval     time.Duration

	mu         sync.Mutex
	publishers []Publisher
	recorder   Recorder

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates the polling service over an engine.
func NewService(engine *Engine, cfg *config.Config) *Service {
	return &Service{
		engine:            engine,
		logger:            noopLogger{},
		reconnectInterval: cfg.ReconnectInterval(),
		retention:         time.Duration(cfg.History.RetentionHours) * time.Hour,
		pruneInterval:     time.Duration(cfg.History.PruneIntervalMinutes) * time.Minute,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// AddPublisher registers a sink for cache updates. Call before Start.
func (s *Service) AddPublisher(p Publisher) {
	s.mu.Lock()
	s.publishers = append(s.publishers, p)
	s.mu.Unlock()
}

// SetRecorder installs the history store. Call before Start.
func (s *Service) SetRecorder(r Recorder) {
	s.mu.Lock()
	s.recorder = r
	s.mu.Unlock()
}

// Start launches the poll, reconnect, and prune loops. An initial
// forced pass runs synchronously so the cache is warm before Start
// returns.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.ctx = ctx

	s.engine.SetObserver(s.fanOut)

	n := s.engine.RefreshAll(ctx, true)
	s.logger.Info("initial poll pass complete", "sensors_read", n)

	s.wg.Add(2)
	go s.pollLoop(ctx)
	go s.reconnectLoop(ctx)

	s.mu.Lock()
	hasRecorder := s.recorder != nil
	s.mu.Unlock()
	if hasRecorder && s.retention > 0 {
		s.wg.Add(1)
		go s.pruneLoop(ctx)
	}
}

// Stop cancels the loops and waits for them to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.engine.SetObserver(nil)
	s.logger.Info("polling service stopped")
}

// pollInterval derives the loop cadence from the current cache age.
// Half the age keeps entries fresh with margin for retries.
func (s *Service) pollInterval() time.Duration {
	interval := s.engine.MaxCacheAge() / 2
	if interval < minPollInterval {
		interval = minPollInterval
	}
	return interval
}

func (s *Service) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	// Recompute the interval each cycle; the cache age is runtime-tunable.
	timer := time.NewTimer(s.pollInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.engine.RefreshAll(ctx, false)
			timer.Reset(s.pollInterval())
		}
	}
}

func (s *Service) reconnectLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.engine.ReconnectAll(ctx); n > 0 {
				s.logger.Info("reconnect sweep recovered sensors", "count", n)
			}
		}
	}
}

func (s *Service) pruneLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			recorder := s.recorder
			s.mu.Unlock()

			n, err := recorder.Prune(ctx, s.retention)
			if err != nil {
				s.logger.Error("history prune failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("history pruned", "rows", n)
			}
		}
	}
}

// fanOut delivers one pass's updates to every publisher and the recorder.
func (s *Service) fanOut(updates []Update) {
	s.mu.Lock()
	publishers := s.publishers
	recorder := s.recorder
	s.mu.Unlock()

	for _, u := range updates {
		for _, p := range publishers {
			p.PublishReading(u.Sensor, u.Kind, u.Reading)
		}
		if recorder != nil && u.Reading.Valid {
			if err := recorder.Record(s.ctx, u.Sensor, u.Kind, u.Reading); err != nil {
				s.logger.Error("history record failed",
					"sensor", u.Sensor, "kind", u.Kind, "error", err)
			}
		}
	}
}
