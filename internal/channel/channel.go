// Package channel decides which communication path a device operation uses.
//
// A SwitchBot device is reachable over the local radio, the cloud API, or
// both. The selector turns the device's configured connection mode, its
// cloud-service flag and the presence of cloud credentials into a Plan: a
// primary channel, an optional fallback, and, when nothing is usable, the
// reason the device must fall back to its offline baseline.
package channel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for unrecognised connection modes.
var ErrUnknownMode = errors.New("channel: unknown connection mode")

// Kind identifies a communication path.
type Kind string

const (
	// None means no channel is usable.
	None Kind = "none"

	// Local is the short-range radio.
	Local Kind = "local"

	// Cloud is the SwitchBot cloud API.
	Cloud Kind = "cloud"

	// Webhook labels unsolicited status pushed by the cloud. The selector
	// never picks it; normalizers use it to pick field names.
	Webhook Kind = "webhook"
)

// Mode is a device's configured connection mode.
type Mode string

const (
	ModeLocal      Mode = "local"
	ModeCloud      Mode = "cloud"
	ModeLocalCloud Mode = "local+cloud"
)

// ParseMode accepts both the SwitchBot names (BLE, OpenAPI, BLE/OpenAPI) and
// the short names (local, cloud, local+cloud), case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ble", "local":
		return ModeLocal, nil
	case "openapi", "cloud", "":
		return ModeCloud, nil
	case "ble/openapi", "local+cloud", "local/cloud":
		return ModeLocalCloud, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Reason explains why a device is offline.
type Reason string

const (
	// ReasonNone means the device is reachable.
	ReasonNone Reason = ""

	// ReasonDisabled means the device was explicitly taken offline in its
	// configuration.
	ReasonDisabled Reason = "disabled"

	// ReasonNoChannel means no configured channel is usable, for example
	// a cloud-only device without credentials.
	ReasonNoChannel Reason = "no_channel"

	// ReasonDeviceOffline means the cloud reported the device or its hub
	// as offline.
	ReasonDeviceOffline Reason = "device_offline"

	// ReasonPushUnsupported means the device has channels but none of
	// them can carry commands. This does not take the device offline.
	ReasonPushUnsupported Reason = "push_unsupported"
)

// Inputs are the facts the selector decides on.
type Inputs struct {
	Mode           Mode
	CloudEnabled   bool
	HasCredentials bool
	Disabled       bool
}

func (in Inputs) cloudUsable() bool {
	return in.CloudEnabled && in.HasCredentials
}

// Plan is the selector's decision for one operation.
type Plan struct {
	Primary  Kind
	Fallback Kind
	Reason   Reason
}

// Usable reports whether the plan names a channel.
func (p Plan) Usable() bool {
	return p.Primary != None
}

// String renders the plan for logs.
func (p Plan) String() string {
	switch {
	case !p.Usable():
		return fmt.Sprintf("none (%s)", p.Reason)
	case p.Fallback != None:
		return fmt.Sprintf("%s, fallback %s", p.Primary, p.Fallback)
	default:
		return string(p.Primary)
	}
}

func offline(r Reason) Plan {
	return Plan{Primary: None, Fallback: None, Reason: r}
}

func only(k Kind) Plan {
	return Plan{Primary: k, Fallback: None}
}

// ForRefresh chooses the channel for a status refresh.
//
//	mode         cloud usable   refresh
//	local        -              local
//	cloud        yes            cloud
//	cloud        no             none
//	local+cloud  yes            local, fallback cloud
//	local+cloud  no             local
func ForRefresh(in Inputs) Plan {
	if in.Disabled {
		return offline(ReasonDisabled)
	}
	switch in.Mode {
	case ModeLocal:
		return only(Local)
	case ModeCloud:
		if in.cloudUsable() {
			return only(Cloud)
		}
		return offline(ReasonNoChannel)
	case ModeLocalCloud:
		if in.cloudUsable() {
			return Plan{Primary: Local, Fallback: Cloud}
		}
		return only(Local)
	default:
		return offline(ReasonNoChannel)
	}
}

// ForPush chooses the channel for an outbound command.
//
// localPush is whether the device type can be commanded over the radio.
//
//	mode         cloud usable   push
//	local        -              local (none if the type cannot push locally)
//	cloud        yes            cloud
//	cloud        no             none
//	local+cloud  yes            local, fallback cloud; cloud if no local push
//	local+cloud  no             none
func ForPush(in Inputs, localPush bool) Plan {
	if in.Disabled {
		return offline(ReasonDisabled)
	}
	switch in.Mode {
	case ModeLocal:
		if localPush {
			return only(Local)
		}
		return offline(ReasonPushUnsupported)
	case ModeCloud:
		if in.cloudUsable() {
			return only(Cloud)
		}
		return offline(ReasonNoChannel)
	case ModeLocalCloud:
		if !in.cloudUsable() {
			return offline(ReasonNoChannel)
		}
		if localPush {
			return Plan{Primary: Local, Fallback: Cloud}
		}
		return only(Cloud)
	default:
		return offline(ReasonNoChannel)
	}
}
