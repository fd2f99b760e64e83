package device

import (
	"slices"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Type is the device category the bridge knows how to reconcile.
type Type string

// Device categories.
const (
	TypeBulb       Type = "bulb"
	TypeLock       Type = "lock"
	TypeCurtain    Type = "curtain"
	TypeHumidifier Type = "humidifier"
	TypeHub        Type = "hub"
	TypeMotion     Type = "motion"
	TypeContact    Type = "contact"
	TypeIR         Type = "ir"
)

// AllTypes returns every supported device category.
func AllTypes() []Type {
	return []Type{TypeBulb, TypeLock, TypeCurtain, TypeHumidifier, TypeHub, TypeMotion, TypeContact, TypeIR}
}

// cloudTypes maps the cloud's deviceType names onto device categories.
var cloudTypes = map[string]Type{
	"color bulb":     TypeBulb,
	"strip light":    TypeBulb,
	"ceiling light":  TypeBulb,
	"smart lock":     TypeLock,
	"smart lock pro": TypeLock,
	"curtain":        TypeCurtain,
	"curtain3":       TypeCurtain,
	"humidifier":     TypeHumidifier,
	"hub 2":          TypeHub,
	"meter":          TypeHub,
	"meterplus":      TypeHub,
	"wosensorth":     TypeHub,
	"woiosensor":     TypeHub,
	"motion sensor":  TypeMotion,
	"contact sensor": TypeContact,
}

// TypeFromCloud maps a cloud deviceType (for example "Color Bulb") to its
// category. IR remotes are recognised by their remote type instead.
func TypeFromCloud(deviceType string) (Type, bool) {
	t, ok := cloudTypes[strings.ToLower(strings.TrimSpace(deviceType))]
	return t, ok
}

// IsValid reports whether t is a supported category.
func (t Type) IsValid() bool {
	return slices.Contains(AllTypes(), t)
}

// Device describes one physical device and how to reach it.
type Device struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         Type     `json:"type"`
	Model        string   `json:"model,omitempty"`
	RemoteType   string   `json:"remote_type,omitempty"`
	MAC          string   `json:"mac,omitempty"`
	Connection   string   `json:"connection"`
	CloudEnabled bool     `json:"enable_cloud_service"`
	Offline      bool     `json:"offline"`
	HubID        string   `json:"hub_id,omitempty"`
	Settings     Settings `json:"settings"`
}

// Settings are the per-device tuning knobs. Zero values fall back to the
// bridge-wide defaults.
type Settings struct {
	RefreshRate  time.Duration `json:"refresh_rate,omitempty"`
	PushRate     time.Duration `json:"push_rate,omitempty"`
	MaxRetry     int           `json:"max_retry,omitempty"`
	ScanDuration time.Duration `json:"scan_duration,omitempty"`
	MinLux       float64       `json:"min_lux,omitempty"`
	MaxLux       float64       `json:"max_lux,omitempty"`
	MinStep      int           `json:"min_step,omitempty"`
	Hide         []string      `json:"hide,omitempty"`

	// IR remotes
	Customize      bool   `json:"customize,omitempty"`
	CustomOn       string `json:"custom_on,omitempty"`
	CustomOff      string `json:"custom_off,omitempty"`
	DisablePushOn  bool   `json:"disable_push_on,omitempty"`
	DisablePushOff bool   `json:"disable_push_off,omitempty"`

	// Curtains
	OpenMode  string `json:"set_open_mode,omitempty"`
	CloseMode string `json:"set_close_mode,omitempty"`
}

// DeepCopy returns an independent copy of the device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	cpy.Settings.Hide = slices.Clone(d.Settings.Hide)
	return &cpy
}

// Overrides are per-device configuration values stored with the context so
// they survive restarts of a discovered device.
type Overrides struct {
	ScanDuration time.Duration `json:"scan_duration,omitempty"`
	RefreshRate  time.Duration `json:"refresh_rate,omitempty"`
	MinLux       float64       `json:"min_lux,omitempty"`
	MaxLux       float64       `json:"max_lux,omitempty"`
	MaxRetry     int           `json:"max_retry,omitempty"`
}

// Context is the durable side-car record for one device.
//
// State holds the last committed canonical values, expressed in hub-facing
// units, against which dirty checks are made.
type Context struct {
	DeviceID  string       `json:"device_id"`
	Type      Type         `json:"type"`
	State     state.Values `json:"state"`
	Firmware  string       `json:"firmware,omitempty"`
	Offline   bool         `json:"offline"`
	Overrides Overrides    `json:"overrides"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// DeepCopy returns an independent copy of the context.
func (c *Context) DeepCopy() *Context {
	if c == nil {
		return nil
	}
	cpy := *c
	cpy.State = c.State.Clone()
	return &cpy
}
