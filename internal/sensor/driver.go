package sensor

import (
	"context"
	"sync/atomic"
	"time"
)

// Registered driver type strings.
const (
	TypeSHT3x    = "sht3x"
	TypeMAX31855 = "max31855"
	TypeSim      = "sim"
)

// base carries the identity and connection state common to all drivers.
//
// Connected is atomic because the API and command surfaces read it from
// their own goroutines while the polling context flips it.
type base struct {
	name       string
	sensorType string
	caps       []Capability
	connected  atomic.Bool
}

func (b *base) Name() string { return b.name }

func (b *base) Type() string { return b.sensorType }

func (b *base) Capabilities() []Capability {
	out := make([]Capability, len(b.caps))
	copy(out, b.caps)
	return out
}

func (b *base) Supports(kind Capability) bool {
	for _, c := range b.caps {
		if c == kind {
			return true
		}
	}
	return false
}

func (b *base) Connected() bool { return b.connected.Load() }

// sleep waits for d or until ctx is cancelled. Used between issuing a
// measurement command and reading the result.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
