package normalize

import (
	"errors"
	"math"
	"testing"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// assertValues checks that got contains exactly the want properties.
func assertValues(t *testing.T, got, want state.Values) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got %d properties %v, want %d %v", len(got), got, len(want), want)
	}
	for k, w := range want {
		g, ok := got[k]
		if !ok {
			t.Errorf("missing %s", k)
			continue
		}
		if gf, ok := g.(float64); ok {
			if wf, ok := w.(float64); ok && math.Abs(gf-wf) < 0.01 {
				continue
			}
		}
		if !state.Equal(g, w) {
			t.Errorf("%s = %v (%T), want %v", k, g, g, w)
		}
	}
}

func TestNormalize_BulbWebhook(t *testing.T) {
	raw := Raw{
		"powerState":       "ON",
		"brightness":       80.0,
		"color":            "255:0:0",
		"colorTemperature": 140.0,
	}

	got, err := Normalize(device.TypeBulb, channel.Webhook, raw, Options{})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	assertValues(t, got, state.Values{
		state.On:               true,
		state.Brightness:       80,
		state.Hue:              0,
		state.Saturation:       100,
		state.ColorTemperature: 140,
	})
}

func TestNormalize_Bulb(t *testing.T) {
	tests := []struct {
		name    string
		ch      channel.Kind
		raw     Raw
		want    state.Values
		wantErr bool
	}{
		{
			name: "cloud full",
			ch:   channel.Cloud,
			raw:  Raw{"power": "on", "brightness": 55.0, "color": "0:0:255", "colorTemperature": 2700.0, "version": "V3.1"},
			want: state.Values{state.On: true, state.Brightness: 55, state.Hue: 240, state.Saturation: 100, state.ColorTemperature: 370},
		},
		{
			name: "cloud off without colour",
			ch:   channel.Cloud,
			raw:  Raw{"power": "off"},
			want: state.Values{state.On: false},
		},
		{
			name: "cloud kelvin clamped to mired range",
			ch:   channel.Cloud,
			raw:  Raw{"power": "on", "colorTemperature": 1000.0},
			want: state.Values{state.On: true, state.ColorTemperature: 500},
		},
		{
			name:    "cloud missing power",
			ch:      channel.Cloud,
			raw:     Raw{"brightness": 10.0},
			wantErr: true,
		},
		{
			name:    "cloud unknown power",
			ch:      channel.Cloud,
			raw:     Raw{"power": "standby"},
			wantErr: true,
		},
		{
			name: "webhook partial",
			ch:   channel.Webhook,
			raw:  Raw{"brightness": 120.0},
			want: state.Values{state.Brightness: 100},
		},
		{
			name: "webhook kelvin",
			ch:   channel.Webhook,
			raw:  Raw{"colorTemperature": 5000.0},
			want: state.Values{state.ColorTemperature: 200},
		},
		{
			name: "webhook malformed colour skipped",
			ch:   channel.Webhook,
			raw:  Raw{"powerState": "OFF", "color": "red"},
			want: state.Values{state.On: false},
		},
		{
			name: "local",
			ch:   channel.Local,
			raw:  Raw{"state": true, "brightness": 30, "red": 0, "green": 255, "blue": 0, "color_temperature": 0},
			want: state.Values{state.On: true, state.Brightness: 30, state.Hue: 120, state.Saturation: 100},
		},
		{
			name:    "local missing state",
			ch:      channel.Local,
			raw:     Raw{"brightness": 30},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(device.TypeBulb, tt.ch, tt.raw, Options{})
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("Normalize() error = %v, want ErrMalformedPayload", err)
				}
				if got != nil {
					t.Errorf("Normalize() values = %v, want nil on error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			assertValues(t, got, tt.want)
		})
	}
}

func TestNormalize_Lock(t *testing.T) {
	tests := []struct {
		name    string
		ch      channel.Kind
		raw     Raw
		want    state.Values
		wantErr bool
	}{
		{
			name: "cloud locked closed",
			ch:   channel.Cloud,
			raw:  Raw{"lockState": "locked", "doorState": "closed", "battery": 90.0},
			want: state.Values{
				state.LockCurrentState:   state.LockSecured,
				state.LockTargetState:    state.LockSecured,
				state.ContactSensorState: state.ContactDetected,
				state.BatteryLevel:       90,
				state.StatusLowBattery:   state.BatteryNormal,
			},
		},
		{
			name: "cloud unlocked open low battery",
			ch:   channel.Cloud,
			raw:  Raw{"lockState": "unlocked", "doorState": "opened", "battery": 5.0},
			want: state.Values{
				state.LockCurrentState:   state.LockUnsecured,
				state.LockTargetState:    state.LockUnsecured,
				state.ContactSensorState: state.ContactNotDetected,
				state.BatteryLevel:       5,
				state.StatusLowBattery:   state.BatteryLow,
			},
		},
		{
			name: "cloud jammed leaves target alone",
			ch:   channel.Cloud,
			raw:  Raw{"lockState": "jammed"},
			want: state.Values{state.LockCurrentState: state.LockJammed},
		},
		{
			name: "webhook upper case",
			ch:   channel.Webhook,
			raw:  Raw{"lockState": "LOCKED", "deviceMac": "AA"},
			want: state.Values{state.LockCurrentState: state.LockSecured, state.LockTargetState: state.LockSecured},
		},
		{
			name: "local",
			ch:   channel.Local,
			raw:  Raw{"status": "unlocked", "door_open": true, "battery": 50},
			want: state.Values{
				state.LockCurrentState:   state.LockUnsecured,
				state.LockTargetState:    state.LockUnsecured,
				state.ContactSensorState: state.ContactNotDetected,
				state.BatteryLevel:       50,
				state.StatusLowBattery:   state.BatteryNormal,
			},
		},
		{name: "missing state", ch: channel.Cloud, raw: Raw{"battery": 50.0}, wantErr: true},
		{name: "unknown state", ch: channel.Webhook, raw: Raw{"lockState": "OPEN_SESAME"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(device.TypeLock, tt.ch, tt.raw, Options{})
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("Normalize() error = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			assertValues(t, got, tt.want)
		})
	}
}

func TestNormalize_Curtain(t *testing.T) {
	tests := []struct {
		name    string
		ch      channel.Kind
		raw     Raw
		opts    Options
		want    state.Values
		wantErr bool
	}{
		{
			name: "cloud stopped half open",
			ch:   channel.Cloud,
			raw:  Raw{"slidePosition": 40.0, "moving": false, "battery": 70.0, "brightness": "dim"},
			want: state.Values{
				state.CurrentPosition:          60,
				state.TargetPosition:           60,
				state.PositionState:            state.PositionStopped,
				state.BatteryLevel:             70,
				state.StatusLowBattery:         state.BatteryNormal,
				state.CurrentAmbientLightLevel: 1.0,
			},
		},
		{
			name: "cloud moving towards open target",
			ch:   channel.Cloud,
			raw:  Raw{"slidePosition": 80.0, "moving": true},
			opts: Options{Current: state.Values{state.TargetPosition: 100}},
			want: state.Values{
				state.CurrentPosition: 20,
				state.PositionState:   state.PositionIncreasing,
			},
		},
		{
			name: "local light level",
			ch:   channel.Local,
			raw:  Raw{"position": 0, "inMotion": false, "lightLevel": 20},
			opts: Options{MinLux: 10, MaxLux: 1000},
			want: state.Values{
				state.CurrentPosition:          100,
				state.TargetPosition:           100,
				state.PositionState:            state.PositionStopped,
				state.CurrentAmbientLightLevel: 1000.0,
			},
		},
		{
			name: "webhook battery only",
			ch:   channel.Webhook,
			raw:  Raw{"battery": 8.0},
			want: state.Values{state.BatteryLevel: 8, state.StatusLowBattery: state.BatteryLow},
		},
		{name: "cloud missing position", ch: channel.Cloud, raw: Raw{"moving": false}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(device.TypeCurtain, tt.ch, tt.raw, tt.opts)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("Normalize() error = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			assertValues(t, got, tt.want)
		})
	}
}

func TestNormalize_Humidifier(t *testing.T) {
	tests := []struct {
		name    string
		ch      channel.Kind
		raw     Raw
		opts    Options
		want    state.Values
		wantErr bool
	}{
		{
			name: "cloud idle above threshold",
			ch:   channel.Cloud,
			raw: Raw{
				"power": "on", "auto": false, "humidity": 60.0, "temperature": 21.5,
				"nebulizationEfficiency": 50.0, "lackWater": false,
			},
			want: state.Values{
				state.Active:                              state.IsActive,
				state.TargetHumidifierDehumidifierState:   state.HumidifierOnly,
				state.CurrentRelativeHumidity:             60,
				state.CurrentTemperature:                  21.5,
				state.RelativeHumidityHumidifierThreshold: 50,
				state.WaterLevel:                          100,
				state.CurrentHumidifierDehumidifierState:  state.HumidifierIdle,
			},
		},
		{
			name: "cloud off lacking water",
			ch:   channel.Cloud,
			raw:  Raw{"power": "off", "lackWater": true, "nebulizationEfficiency": 150.0},
			want: state.Values{
				state.Active:     state.Inactive,
				state.WaterLevel: 0,
				state.RelativeHumidityHumidifierThreshold: 100,
				state.CurrentHumidifierDehumidifierState:  state.HumidifierInactive,
			},
		},
		{
			name: "webhook fahrenheit ignored",
			ch:   channel.Webhook,
			raw:  Raw{"scale": "FAHRENHEIT", "temperature": 70.0, "humidity": 30.0},
			opts: Options{Current: state.Values{state.Active: state.IsActive, state.RelativeHumidityHumidifierThreshold: 45}},
			want: state.Values{
				state.CurrentRelativeHumidity:            30,
				state.CurrentHumidifierDehumidifierState: state.HumidifierHumidifying,
			},
		},
		{
			name: "local",
			ch:   channel.Local,
			raw:  Raw{"onState": true, "autoMode": true, "percentage": 40},
			want: state.Values{
				state.Active:                              state.IsActive,
				state.TargetHumidifierDehumidifierState:   state.HumidifierAuto,
				state.RelativeHumidityHumidifierThreshold: 40,
				state.CurrentHumidifierDehumidifierState:  state.HumidifierHumidifying,
			},
		},
		{name: "cloud missing power", ch: channel.Cloud, raw: Raw{"humidity": 40.0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(device.TypeHumidifier, tt.ch, tt.raw, tt.opts)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("Normalize() error = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			assertValues(t, got, tt.want)
		})
	}
}

func TestNormalize_Hub(t *testing.T) {
	tests := []struct {
		name string
		ch   channel.Kind
		raw  Raw
		want state.Values
	}{
		{
			name: "cloud",
			ch:   channel.Cloud,
			raw:  Raw{"temperature": 19.8, "humidity": 52.0, "lightLevel": 10.0},
			want: state.Values{
				state.CurrentTemperature:       19.8,
				state.CurrentRelativeHumidity:  52,
				state.CurrentAmbientLightLevel: 1 + 6000.0/19*9,
			},
		},
		{
			name: "webhook celsius",
			ch:   channel.Webhook,
			raw:  Raw{"scale": "CELSIUS", "temperature": 22.0, "humidity": 40.0, "lightLevel": 1.0},
			want: state.Values{
				state.CurrentTemperature:       22.0,
				state.CurrentRelativeHumidity:  40,
				state.CurrentAmbientLightLevel: 1.0,
			},
		},
		{
			name: "webhook fahrenheit",
			ch:   channel.Webhook,
			raw:  Raw{"scale": "FAHRENHEIT", "temperature": 72.0},
			want: state.Values{},
		},
		{
			name: "local nested temperature",
			ch:   channel.Local,
			raw:  Raw{"temperature": map[string]any{"c": 18.5, "f": 65.3}, "humidity": 61},
			want: state.Values{state.CurrentTemperature: 18.5, state.CurrentRelativeHumidity: 61},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(device.TypeHub, tt.ch, tt.raw, Options{})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			assertValues(t, got, tt.want)
		})
	}
}

func TestNormalize_Motion(t *testing.T) {
	tests := []struct {
		name string
		ch   channel.Kind
		raw  Raw
		want state.Values
	}{
		{
			name: "cloud",
			ch:   channel.Cloud,
			raw:  Raw{"moveDetected": true, "brightness": "bright", "battery": 80.0},
			want: state.Values{
				state.MotionDetected:           true,
				state.CurrentAmbientLightLevel: float64(codec.DefaultMaxLux),
				state.BatteryLevel:             80,
				state.StatusLowBattery:         state.BatteryNormal,
			},
		},
		{
			name: "webhook not detected",
			ch:   channel.Webhook,
			raw:  Raw{"detectionState": "NOT_DETECTED", "brightness": "dim"},
			want: state.Values{
				state.MotionDetected:           false,
				state.CurrentAmbientLightLevel: float64(codec.DefaultMinLux),
			},
		},
		{
			name: "webhook unknown detection state",
			ch:   channel.Webhook,
			raw:  Raw{"detectionState": "MAYBE"},
			want: state.Values{},
		},
		{
			name: "local dark",
			ch:   channel.Local,
			raw:  Raw{"movement": false, "lightLevel": "dark", "battery": 5},
			want: state.Values{
				state.MotionDetected:           false,
				state.CurrentAmbientLightLevel: float64(codec.DefaultMinLux),
				state.BatteryLevel:             5,
				state.StatusLowBattery:         state.BatteryLow,
			},
		},
		{
			name: "local level bucket",
			ch:   channel.Local,
			raw:  Raw{"movement": true, "lightLevel": 10},
			want: state.Values{
				state.MotionDetected:           true,
				state.CurrentAmbientLightLevel: 1 + 6000.0/19*9,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(device.TypeMotion, tt.ch, tt.raw, Options{})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			assertValues(t, got, tt.want)
		})
	}
}

func TestNormalize_Contact(t *testing.T) {
	tests := []struct {
		name string
		ch   channel.Kind
		raw  Raw
		want state.Values
	}{
		{
			name: "cloud closed",
			ch:   channel.Cloud,
			raw:  Raw{"openState": "close", "moveDetected": false, "brightness": "dim"},
			want: state.Values{
				state.ContactSensorState:       state.ContactDetected,
				state.MotionDetected:           false,
				state.CurrentAmbientLightLevel: float64(codec.DefaultMinLux),
			},
		},
		{
			name: "cloud left open",
			ch:   channel.Cloud,
			raw:  Raw{"openState": "timeOutNotClose"},
			want: state.Values{state.ContactSensorState: state.ContactNotDetected},
		},
		{
			name: "webhook open with motion",
			ch:   channel.Webhook,
			raw:  Raw{"openState": "open", "detectionState": "DETECTED", "battery": 60.0},
			want: state.Values{
				state.ContactSensorState: state.ContactNotDetected,
				state.MotionDetected:     true,
				state.BatteryLevel:       60,
				state.StatusLowBattery:   state.BatteryNormal,
			},
		},
		{
			name: "local timeout",
			ch:   channel.Local,
			raw:  Raw{"doorState": "timeout not close", "movement": false, "lightLevel": "bright"},
			want: state.Values{
				state.ContactSensorState:       state.ContactNotDetected,
				state.MotionDetected:           false,
				state.CurrentAmbientLightLevel: float64(codec.DefaultMaxLux),
			},
		},
		{
			name: "unknown door state skipped",
			ch:   channel.Local,
			raw:  Raw{"doorState": "ajar"},
			want: state.Values{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(device.TypeContact, tt.ch, tt.raw, Options{})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			assertValues(t, got, tt.want)
		})
	}
}

func TestNormalize_Unsupported(t *testing.T) {
	if _, err := Normalize(device.TypeIR, channel.Cloud, Raw{}, Options{}); !errors.Is(err, ErrUnsupportedDevice) {
		t.Errorf("IR error = %v, want ErrUnsupportedDevice", err)
	}
	if _, err := Normalize(device.TypeHub, channel.None, Raw{}, Options{}); !errors.Is(err, ErrUnsupportedChannel) {
		t.Errorf("none channel error = %v, want ErrUnsupportedChannel", err)
	}
}

func TestFirmware(t *testing.T) {
	if got := Firmware(Raw{"version": "V4.2"}); got != "V4.2" {
		t.Errorf("Firmware() = %q, want V4.2", got)
	}
	if got := Firmware(Raw{}); got != "" {
		t.Errorf("Firmware() = %q, want empty", got)
	}
}
