package sensor

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/enviro-core/internal/bus"
	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
)

func TestFactory_Build(t *testing.T) {
	f := NewFactory(nil)

	spec := config.SensorConfig{
		Name:  "bench",
		Type:  TypeSim,
		Bus:   BusI2C,
		Extra: "caps=temperature|humidity, temperature=19.5",
	}
	// Sim ignores buses, but the record must still validate.
	spec.Address = 0x44

	s, err := f.Build(spec)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if s.Name() != "bench" || s.Type() != TypeSim {
		t.Errorf("Build() identity = %s/%s, want bench/sim", s.Name(), s.Type())
	}
	if s.Connected() {
		t.Error("Build() returned a connected sensor; Init has not run")
	}

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	r, err := s.Read(context.Background(), CapTemperature)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if r.Value != 19.5 {
		t.Errorf("Read() value = %v, want 19.5", r.Value)
	}
}

func TestFactory_Build_UnknownType(t *testing.T) {
	f := NewFactory(nil)

	spec := validSpec()
	spec.Type = "bme999"

	if _, err := f.Build(spec); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Build() error = %v, want ErrUnknownType", err)
	}
}

func TestFactory_Build_InvalidSpec(t *testing.T) {
	f := NewFactory(nil)

	spec := validSpec()
	spec.Name = ""

	if _, err := f.Build(spec); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("Build() error = %v, want ErrInvalidSpec", err)
	}
}

func TestFactory_RegisterBuilder(t *testing.T) {
	f := NewFactory(nil)

	custom := func(spec config.SensorConfig, _ *bus.Buses) (Sensor, error) {
		return NewSim(spec.Name), nil
	}

	if err := f.RegisterBuilder("custom", custom); err != nil {
		t.Fatalf("RegisterBuilder() error = %v", err)
	}
	if err := f.RegisterBuilder("custom", custom); err == nil {
		t.Error("RegisterBuilder(duplicate) error = nil, want error")
	}
	if err := f.RegisterBuilder(TypeSHT3x, custom); err == nil {
		t.Error("RegisterBuilder(built-in type) error = nil, want error")
	}
}

func TestPlanChanges(t *testing.T) {
	mk := func(name string, addr uint16) config.SensorConfig {
		return config.SensorConfig{Name: name, Type: TypeSHT3x, Bus: BusI2C, Address: addr}
	}

	current := []config.SensorConfig{
		mk("keep", 0x44),
		mk("moved", 0x44),
		mk("gone", 0x45),
	}
	next := []config.SensorConfig{
		mk("keep", 0x44),
		mk("moved", 0x45), // address changed, rebuild
		mk("fresh", 0x46),
	}

	plan := PlanChanges(current, next)

	if len(plan.Add) != 1 || plan.Add[0].Name != "fresh" {
		t.Errorf("Add = %v, want [fresh]", plan.Add)
	}
	if len(plan.Replace) != 1 || plan.Replace[0].Name != "moved" {
		t.Errorf("Replace = %v, want [moved]", plan.Replace)
	}
	if len(plan.Remove) != 1 || plan.Remove[0] != "gone" {
		t.Errorf("Remove = %v, want [gone]", plan.Remove)
	}
	if len(plan.Unchanged) != 1 || plan.Unchanged[0] != "keep" {
		t.Errorf("Unchanged = %v, want [keep]", plan.Unchanged)
	}
}

func TestPlanChanges_Empty(t *testing.T) {
	plan := PlanChanges(nil, nil)
	if len(plan.Add)+len(plan.Replace)+len(plan.Remove)+len(plan.Unchanged) != 0 {
		t.Errorf("PlanChanges(nil, nil) = %+v, want empty plan", plan)
	}
}
