package device

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the Registry.
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

// Registry is the device catalogue plus a write-through cache of contexts.
//
// Devices are registered from configuration and cloud discovery at start-up.
// Contexts are loaded into the cache by RefreshCache and written through to
// the repository by SaveContext.
//
// All public methods are thread-safe.
type Registry struct {
	repo ContextRepository

	mu       sync.RWMutex
	devices  map[string]*Device
	contexts map[string]*Context

	logger Logger
}

// NewRegistry creates a new registry backed by repo.
func NewRegistry(repo ContextRepository) *Registry {
	return &Registry{
		repo:     repo,
		devices:  make(map[string]*Device),
		contexts: make(map[string]*Context),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all contexts from the repository.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	contexts, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading contexts: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.contexts = make(map[string]*Context, len(contexts))
	for i := range contexts {
		c := contexts[i]
		r.contexts[c.DeviceID] = c.DeepCopy()
	}

	r.logger.Info("device context cache refreshed", "count", len(contexts))
	return nil
}

// Register validates and adds a device to the catalogue, replacing any
// earlier description with the same ID.
func (r *Registry) Register(d *Device) error {
	if err := ValidateDevice(d); err != nil {
		return err
	}

	r.mu.Lock()
	r.devices[d.ID] = d.DeepCopy()
	r.mu.Unlock()

	r.logger.Debug("device registered", "device_id", d.ID, "type", d.Type)
	return nil
}

// GetDevice returns a copy of the device description.
func (r *Registry) GetDevice(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

// ListDevices returns copies of all registered devices ordered by name.
func (r *Registry) ListDevices() []Device {
	r.mu.RLock()
	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d.DeepCopy())
	}
	r.mu.RUnlock()

	slices.SortFunc(devices, func(a, b Device) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return devices
}

// DeviceCount returns the number of registered devices.
func (r *Registry) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// GetContext returns a copy of the device's context, falling back to the
// repository on a cache miss. Returns ErrContextNotFound when none exists.
func (r *Registry) GetContext(ctx context.Context, deviceID string) (*Context, error) {
	r.mu.RLock()
	cached, ok := r.contexts[deviceID]
	r.mu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	c, err := r.repo.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.contexts[deviceID] = c.DeepCopy()
	r.mu.Unlock()

	return c, nil
}

// SaveContext writes the context through to the repository and the cache.
func (r *Registry) SaveContext(ctx context.Context, c *Context) error {
	if c == nil {
		return fmt.Errorf("%w: nil context", ErrInvalidContext)
	}

	cpy := c.DeepCopy()
	if err := r.repo.Save(ctx, cpy); err != nil {
		return err
	}

	r.mu.Lock()
	r.contexts[cpy.DeviceID] = cpy
	r.mu.Unlock()

	c.UpdatedAt = cpy.UpdatedAt
	return nil
}

// DeleteContext removes a device's context from the repository and cache.
func (r *Registry) DeleteContext(ctx context.Context, deviceID string) error {
	err := r.repo.Delete(ctx, deviceID)
	if err != nil && !errors.Is(err, ErrContextNotFound) {
		return err
	}

	r.mu.Lock()
	delete(r.contexts, deviceID)
	r.mu.Unlock()

	return err
}
