package backend

import (
	"errors"
	"testing"
)

func TestRegistry_OpenByName(t *testing.T) {
	Register("test-a", func() (Device, error) { return &fakeDevice{}, nil })
	defer Unregister("test-a")

	if !IsRegistered("test-a") {
		t.Fatal("IsRegistered(test-a) = false")
	}
	dev, err := Open("test-a")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if dev.Name() != "fake" {
		t.Errorf("Name() = %q, want fake", dev.Name())
	}

	if _, err := Open("missing"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(missing) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistry_OpenFallsBack(t *testing.T) {
	Register(NameWGPU, func() (Device, error) { return nil, errors.New("no adapter") })
	Register(NameSoftware, func() (Device, error) { return &fakeDevice{}, nil })
	defer Unregister(NameWGPU)
	defer Unregister(NameSoftware)

	dev, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\") error = %v", err)
	}
	if dev == nil {
		t.Fatal("Open returned nil device")
	}
}

func TestRegistry_Available(t *testing.T) {
	Register("zz", func() (Device, error) { return &fakeDevice{}, nil })
	Register("aa", func() (Device, error) { return &fakeDevice{}, nil })
	defer Unregister("zz")
	defer Unregister("aa")

	names := Available()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("Available() not sorted: %v", names)
		}
	}
}
