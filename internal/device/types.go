package device

import (
	"slices"
	"sync"
	"time"
)

// Kind identifies which namespace a device was registered in.
type Kind string

// Kind constants.
const (
	KindCamera    Kind = "camera"
	KindTurntable Kind = "turntable"
)

// TargetAll is the reserved target that addresses no device.
const TargetAll = "all"

// Auto is the value a camera reports for a setting under automatic control.
// It is kept verbatim and never resolved to a concrete value.
const Auto = "auto"

// Handle is a registered device.
type Handle interface {
	DeviceID() string
	Kind() Kind
}

// Tuning holds the camera request retry parameters.
type Tuning struct {
	Attempts int
	Delay    time.Duration
	Timeout  time.Duration
}

// Setting is one camera setting as last reported by the camera.
type Setting struct {
	Value   string   `json:"value"`
	Ability []string `json:"ability,omitempty"`
}

// Allows reports whether v is an accepted value. An unknown ability list
// accepts everything.
func (s Setting) Allows(v string) bool {
	if len(s.Ability) == 0 {
		return true
	}
	return slices.Contains(s.Ability, v)
}

// IsAuto reports whether the camera is choosing this setting itself.
func (s Setting) IsAuto() bool {
	return s.Value == Auto
}

// Settings is a settings snapshot keyed by camera setting key (tv, av, iso,
// exposure, wb, colortemperature).
type Settings map[string]Setting

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	out := make(Settings, len(s))
	for k, v := range s {
		v.Ability = slices.Clone(v.Ability)
		out[k] = v
	}
	return out
}

// Camera is a network camera addressed by host:port.
//
// The settings snapshot is advisory: it reflects the camera at the time of
// the last refresh and is never updated implicitly by setters.
//
// Thread Safety:
//   - Snapshot and UpdateSettings are safe for concurrent use.
type Camera struct {
	ID       string
	Endpoint string
	Tuning   Tuning

	mu          sync.RWMutex
	settings    Settings
	refreshedAt time.Time
}

// DeviceID implements Handle.
func (c *Camera) DeviceID() string { return c.ID }

// Kind implements Handle.
func (c *Camera) Kind() Kind { return KindCamera }

// Snapshot returns a copy of the cached settings and when they were refreshed.
func (c *Camera) Snapshot() (Settings, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Clone(), c.refreshedAt
}

// Setting returns one cached setting.
func (c *Camera) Setting(key string) (Setting, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.settings[key]
	if !ok {
		return Setting{}, false
	}
	s.Ability = slices.Clone(s.Ability)
	return s, true
}

// UpdateSettings replaces the cached snapshot.
func (c *Camera) UpdateSettings(s Settings, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s.Clone()
	c.refreshedAt = at
}

// Turntable is a serial-attached rotation stage.
// No absolute position is tracked; only relative turns are supported.
//
// Thread Safety:
//   - SpeedRPM and SetSpeedRPM are safe for concurrent use.
type Turntable struct {
	ID       string
	Port     string
	BaudRate int

	mu       sync.RWMutex
	speedRPM int
}

// DeviceID implements Handle.
func (t *Turntable) DeviceID() string { return t.ID }

// Kind implements Handle.
func (t *Turntable) Kind() Kind { return KindTurntable }

// SpeedRPM returns the configured rotation speed.
func (t *Turntable) SpeedRPM() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.speedRPM
}

// SetSpeedRPM records a new rotation speed.
func (t *Turntable) SetSpeedRPM(rpm int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speedRPM = rpm
}
