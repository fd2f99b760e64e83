package device

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// mockContextRepository is an in-memory ContextRepository.
type mockContextRepository struct {
	mu       sync.Mutex
	contexts map[string]*Context
	saves    int
	gets     int
}

func newMockContextRepository() *mockContextRepository {
	return &mockContextRepository{contexts: make(map[string]*Context)}
}

func (m *mockContextRepository) Get(_ context.Context, id string) (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	c, ok := m.contexts[id]
	if !ok {
		return nil, ErrContextNotFound
	}
	return c.DeepCopy(), nil
}

func (m *mockContextRepository) List(context.Context) ([]Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Context, 0, len(m.contexts))
	for _, c := range m.contexts {
		out = append(out, *c.DeepCopy())
	}
	return out, nil
}

func (m *mockContextRepository) Save(_ context.Context, c *Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.contexts[c.DeviceID] = c.DeepCopy()
	return nil
}

func (m *mockContextRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contexts[id]; !ok {
		return ErrContextNotFound
	}
	delete(m.contexts, id)
	return nil
}

func testDevice(id, name string, typ Type) *Device {
	return &Device{
		ID:           id,
		Name:         name,
		Type:         typ,
		Connection:   "OpenAPI",
		CloudEnabled: true,
	}
}

func TestRegistry_RegisterAndList(t *testing.T) {
	r := NewRegistry(newMockContextRepository())

	if err := r.Register(testDevice("B1", "Kitchen Bulb", TypeBulb)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(testDevice("A1", "Front Door", TypeLock)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	devices := r.ListDevices()
	if len(devices) != 2 {
		t.Fatalf("ListDevices() len = %d, want 2", len(devices))
	}
	if devices[0].Name != "Front Door" {
		t.Errorf("devices[0] = %q, want Front Door", devices[0].Name)
	}
	if r.DeviceCount() != 2 {
		t.Errorf("DeviceCount() = %d, want 2", r.DeviceCount())
	}

	if err := r.Register(testDevice("bad id!", "x", TypeBulb)); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("Register() invalid id error = %v, want ErrInvalidDevice", err)
	}
}

func TestRegistry_GetDeviceReturnsCopy(t *testing.T) {
	r := NewRegistry(newMockContextRepository())
	d := testDevice("B1", "Kitchen Bulb", TypeBulb)
	d.Settings.Hide = []string{state.Hue}
	if err := r.Register(d); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.GetDevice("B1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	got.Settings.Hide[0] = "mutated"

	again, _ := r.GetDevice("B1")
	if again.Settings.Hide[0] != state.Hue {
		t.Error("GetDevice() returned a shared slice")
	}

	if _, err := r.GetDevice("missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_ContextCache(t *testing.T) {
	repo := newMockContextRepository()
	r := NewRegistry(repo)
	ctx := context.Background()

	c := &Context{DeviceID: "L1", Type: TypeLock, State: state.Values{state.LockTargetState: state.LockSecured}}
	if err := r.SaveContext(ctx, c); err != nil {
		t.Fatalf("SaveContext() error = %v", err)
	}

	got, err := r.GetContext(ctx, "L1")
	if err != nil {
		t.Fatalf("GetContext() error = %v", err)
	}
	if repo.gets != 0 {
		t.Errorf("repository Get called %d times, want 0 (cache hit)", repo.gets)
	}

	got.State[state.LockTargetState] = state.LockUnsecured
	again, _ := r.GetContext(ctx, "L1")
	if v, _ := again.State.Int(state.LockTargetState); v != state.LockSecured {
		t.Error("GetContext() returned a shared state map")
	}

	if _, err := r.GetContext(ctx, "missing"); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("GetContext() error = %v, want ErrContextNotFound", err)
	}
}

func TestRegistry_RefreshCache(t *testing.T) {
	repo := newMockContextRepository()
	repo.contexts["H1"] = &Context{DeviceID: "H1", Type: TypeHub, State: state.Values{state.CurrentTemperature: 20.5}}

	r := NewRegistry(repo)
	if err := r.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	if _, err := r.GetContext(context.Background(), "H1"); err != nil {
		t.Fatalf("GetContext() error = %v", err)
	}
	if repo.gets != 0 {
		t.Errorf("repository Get called %d times after refresh, want 0", repo.gets)
	}
}

func TestRegistry_DeleteContext(t *testing.T) {
	r := NewRegistry(newMockContextRepository())
	ctx := context.Background()

	if err := r.SaveContext(ctx, &Context{DeviceID: "C1", Type: TypeCurtain}); err != nil {
		t.Fatalf("SaveContext() error = %v", err)
	}
	if err := r.DeleteContext(ctx, "C1"); err != nil {
		t.Fatalf("DeleteContext() error = %v", err)
	}
	if _, err := r.GetContext(ctx, "C1"); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("GetContext() after delete error = %v, want ErrContextNotFound", err)
	}
}
