package device

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// Defaults are applied to every device built by NewRegistry.
type Defaults struct {
	Tuning   Tuning
	BaudRate int
	SpeedRPM int
}

// Registry maps device IDs to handles.
//
// It is built once from a device list and never changes afterwards, so
// lookups need no locking. Mutable per-device state (camera settings,
// turntable speed) is guarded by the handles themselves.
type Registry struct {
	devices    map[string]Handle
	cameras    []*Camera
	turntables []*Turntable
}

// NewRegistry validates list and registers every device in it.
//
// Rules:
//   - at least one camera is required; the motor namespace may be empty
//   - IDs are non-empty, unique across namespaces, and never "all"
//   - camera endpoints are host:port
//   - motor ports are non-empty
func NewRegistry(list *List, defaults Defaults) (*Registry, error) {
	if list == nil || len(list.Cameras) == 0 {
		return nil, ErrNoCameras
	}

	r := &Registry{
		devices: make(map[string]Handle, len(list.Cameras)+len(list.Motors)),
	}

	for _, id := range sortedKeys(list.Cameras) {
		endpoint := strings.TrimSpace(list.Cameras[id])
		if err := validateEndpoint(endpoint); err != nil {
			return nil, fmt.Errorf("camera %q: %w", id, err)
		}
		cam := &Camera{
			ID:       id,
			Endpoint: endpoint,
			Tuning:   defaults.Tuning,
		}
		if err := r.register(cam); err != nil {
			return nil, err
		}
		r.cameras = append(r.cameras, cam)
	}

	for _, id := range sortedKeys(list.Motors) {
		port := strings.TrimSpace(list.Motors[id])
		if port == "" {
			return nil, fmt.Errorf("motor %q: %w", id, ErrInvalidPort)
		}
		tt := &Turntable{
			ID:       id,
			Port:     port,
			BaudRate: defaults.BaudRate,
			speedRPM: defaults.SpeedRPM,
		}
		if err := r.register(tt); err != nil {
			return nil, err
		}
		r.turntables = append(r.turntables, tt)
	}

	return r, nil
}

func (r *Registry) register(h Handle) error {
	id := h.DeviceID()
	if strings.TrimSpace(id) == "" || id == TargetAll {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, exists := r.devices[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	r.devices[id] = h
	return nil
}

// Resolve returns the device registered under id.
// Returns ErrNotFound if no device has that ID.
func (r *Registry) Resolve(id string) (Handle, error) {
	h, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return h, nil
}

// Camera returns the camera registered under id.
func (r *Registry) Camera(id string) (*Camera, error) {
	h, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	cam, ok := h.(*Camera)
	if !ok {
		return nil, fmt.Errorf("%w: %q is a %s", ErrWrongKind, id, h.Kind())
	}
	return cam, nil
}

// Turntable returns the turntable registered under id.
func (r *Registry) Turntable(id string) (*Turntable, error) {
	h, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	tt, ok := h.(*Turntable)
	if !ok {
		return nil, fmt.Errorf("%w: %q is a %s", ErrWrongKind, id, h.Kind())
	}
	return tt, nil
}

// Cameras returns all cameras ordered by ID.
func (r *Registry) Cameras() []*Camera {
	out := make([]*Camera, len(r.cameras))
	copy(out, r.cameras)
	return out
}

// Turntables returns all turntables ordered by ID.
func (r *Registry) Turntables() []*Turntable {
	out := make([]*Turntable, len(r.turntables))
	copy(out, r.turntables)
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	return len(r.devices)
}

// validateEndpoint checks that endpoint is host:port with a numeric port.
func validateEndpoint(endpoint string) error {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidEndpoint, endpoint, err)
	}
	if host == "" {
		return fmt.Errorf("%w: %q: empty host", ErrInvalidEndpoint, endpoint)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: %q: port must be 1-65535", ErrInvalidEndpoint, endpoint)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
