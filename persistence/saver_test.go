package persistence

import "testing"

type fakeSavable struct {
	Name string
}

func (f *fakeSavable) TypeID() string { return "persistence.fakeSavable" }

func (f *fakeSavable) SaveState() (*Bundle, error) {
	b := NewBundle(f.TypeID())
	b.SetField("name", f.Name)
	return b, nil
}

func (f *fakeSavable) LoadState(b *Bundle, _ *LoadContext) error {
	f.Name = b.Field("name").String()
	return nil
}

func TestRegistryRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.Register("persistence.fakeSavable", func() Loadable { return &fakeSavable{} })

	original := &fakeSavable{Name: "alpha"}
	bundle, err := original.SaveState()
	if err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	loaded, err := reg.Load(bundle, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	fs, ok := loaded.(*fakeSavable)
	if !ok {
		t.Fatalf("Load returned %T, want *fakeSavable", loaded)
	}
	if fs.Name != "alpha" {
		t.Fatalf("Name = %q, want %q", fs.Name, "alpha")
	}
}

func TestRegistryLoadUnregisteredType(t *testing.T) {
	reg := NewRegistry()
	bundle := NewBundle("unknown.Type")

	if _, err := reg.Load(bundle, nil); err == nil {
		t.Fatal("expected error loading unregistered type")
	}
}

func TestRegistryHonorsObjectLoaderOverride(t *testing.T) {
	reg := NewRegistry()
	reg.Register("override.id", func() Loadable { return &fakeSavable{} })

	bundle := NewBundle("persistence.fakeSavable")
	bundle.SetObjectLoader("override.id")
	bundle.SetField("name", "beta")

	loaded, err := reg.Load(bundle, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.(*fakeSavable).Name != "beta" {
		t.Fatalf("Name = %q, want %q", loaded.(*fakeSavable).Name, "beta")
	}
}

func TestIdentify(t *testing.T) {
	fs := &fakeSavable{Name: "gamma"}
	if got := Identify(fs); got != "persistence.fakeSavable" {
		t.Fatalf("Identify() = %q, want %q", got, "persistence.fakeSavable")
	}
}
