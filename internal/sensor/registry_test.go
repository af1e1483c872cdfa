package sensor

import (
	"errors"
	"testing"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(NewSim("greenhouse")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}

	// Duplicate name must fail and leave the original untouched.
	dup := NewSim("greenhouse", CapHumidity)
	if err := r.Register(dup); !errors.Is(err, ErrSensorExists) {
		t.Errorf("Register(duplicate) error = %v, want ErrSensorExists", err)
	}

	got, ok := r.FindByName("greenhouse")
	if !ok {
		t.Fatal("FindByName() = not found, want found")
	}
	if got.Supports(CapHumidity) {
		t.Error("duplicate registration replaced the original sensor")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	s := NewSim("outdoor")
	if err := r.Register(s); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := r.Unregister("outdoor")
	if !ok {
		t.Fatal("Unregister() = not found, want found")
	}
	if got != Sensor(s) {
		t.Error("Unregister() returned a different sensor")
	}
	if r.Count() != 0 {
		t.Errorf("Count() after unregister = %d, want 0", r.Count())
	}

	if _, ok := r.Unregister("outdoor"); ok {
		t.Error("Unregister(absent) = found, want not found")
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Register(NewSim(name)); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	removed := r.Clear()
	if len(removed) != 3 {
		t.Errorf("Clear() returned %d sensors, want 3", len(removed))
	}
	if r.Count() != 0 {
		t.Errorf("Count() after clear = %d, want 0", r.Count())
	}
}

func TestRegistry_WithCapability(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewSim("t-only", CapTemperature)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(NewSim("th", CapTemperature, CapHumidity)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if got := len(r.WithCapability(CapTemperature)); got != 2 {
		t.Errorf("WithCapability(temperature) = %d sensors, want 2", got)
	}
	if got := len(r.WithCapability(CapHumidity)); got != 1 {
		t.Errorf("WithCapability(humidity) = %d sensors, want 1", got)
	}
	if got := len(r.WithCapability(CapPressure)); got != 0 {
		t.Errorf("WithCapability(pressure) = %d sensors, want 0", got)
	}
}

func TestRegistry_All(t *testing.T) {
	r := NewRegistry()
	if len(r.All()) != 0 {
		t.Error("All() on empty registry should be empty")
	}

	if err := r.Register(NewSim("one")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(NewSim("two")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := len(r.All()); got != 2 {
		t.Errorf("All() = %d sensors, want 2", got)
	}
}
