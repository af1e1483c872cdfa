package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/enviro-core/internal/sensor"
)

// capturePublisher records every update it receives.
type capturePublisher struct {
	mu      sync.Mutex
	updates []Update
}

func (p *capturePublisher) PublishReading(name string, kind sensor.Capability, r sensor.Reading) {
	p.mu.Lock()
	p.updates = append(p.updates, Update{name, kind, r})
	p.mu.Unlock()
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

// captureRecorder records valid readings and counts prune calls.
type captureRecorder struct {
	mu       sync.Mutex
	recorded []Update
	pruned   int
}

func (r *captureRecorder) Record(_ context.Context, name string, kind sensor.Capability, reading sensor.Reading) error {
	r.mu.Lock()
	r.recorded = append(r.recorded, Update{name, kind, reading})
	r.mu.Unlock()
	return nil
}

func (r *captureRecorder) Prune(_ context.Context, _ time.Duration) (int64, error) {
	r.mu.Lock()
	r.pruned++
	r.mu.Unlock()
	return 0, nil
}

func TestService_StartWarmsCacheAndFansOut(t *testing.T) {
	sim := sensor.NewSim("greenhouse", sensor.CapTemperature, sensor.CapHumidity)
	sim.SetValue(sensor.CapTemperature, 21.0)
	e, _ := newTestEngine(t, sim)

	svc := NewService(e, testConfig())
	pub := &capturePublisher{}
	rec := &captureRecorder{}
	svc.AddPublisher(pub)
	svc.SetRecorder(rec)

	svc.Start(context.Background())
	defer svc.Stop()

	// The initial pass runs synchronously, so the cache is already warm.
	r, err := e.GetReading("greenhouse", sensor.CapTemperature)
	if err != nil {
		t.Fatalf("GetReading() after Start error = %v", err)
	}
	if !r.Valid || r.Value != 21.0 {
		t.Errorf("GetReading() = %+v, want valid 21.0", r)
	}

	if pub.count() != 2 {
		t.Errorf("publisher received %d updates, want 2", pub.count())
	}

	rec.mu.Lock()
	recorded := len(rec.recorded)
	rec.mu.Unlock()
	if recorded != 2 {
		t.Errorf("recorder received %d readings, want 2", recorded)
	}
}

func TestService_RecorderSkipsInvalidReadings(t *testing.T) {
	sim := sensor.NewSim("flaky")
	e, _ := newTestEngine(t, sim)

	svc := NewService(e, testConfig())
	rec := &captureRecorder{}
	svc.SetRecorder(rec)

	// Exhaust the retry budget on the warm-up pass: the update is
	// published (invalid) but must not reach the recorder.
	sim.FailNextReads(100)
	svc.Start(context.Background())
	defer svc.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.recorded) != 0 {
		t.Errorf("recorder received %d readings, want 0", len(rec.recorded))
	}
}

func TestService_StopIsIdempotentAndClean(t *testing.T) {
	sim := sensor.NewSim("greenhouse")
	e, _ := newTestEngine(t, sim)

	svc := NewService(e, testConfig())
	svc.Start(context.Background())
	svc.Stop()

	// Loops are gone; another pass must not panic or deadlock.
	e.RefreshAll(context.Background(), true)
}

func TestService_PollInterval(t *testing.T) {
	e, _ := newTestEngine(t)
	svc := NewService(e, testConfig())

	// 5s cache age → 2.5s cadence.
	if got := svc.pollInterval(); got != 2500*time.Millisecond {
		t.Errorf("pollInterval() = %v, want 2.5s", got)
	}

	// Turned all the way down, the floor holds.
	e.SetMaxCacheAge(0)
	if got := svc.pollInterval(); got != minPollInterval {
		t.Errorf("pollInterval() at floor = %v, want %v", got, minPollInterval)
	}
}
