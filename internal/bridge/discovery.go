package bridge

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/cloud"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// DeviceLister lists the devices of the cloud account. *cloud.Client
// satisfies it.
type DeviceLister interface {
	Devices(ctx context.Context) (*cloud.DeviceList, error)
}

// Discover merges the configured devices with the devices the cloud account
// lists. A configured entry always wins over the discovered one with the
// same id. Discovered devices of unsupported types are skipped and logged.
// Discovered devices use the cloud connection.
//
// Parameters:
//   - ctx: Context for the discovery request
//   - lister: Cloud device listing
//   - configured: Devices from configuration, kept in order
//   - logger: Receives one debug line per skipped device
//
// Returns:
//   - []device.Device: configured devices followed by new discovered ones
//   - error: if the cloud listing fails; configured devices are still returned
func Discover(ctx context.Context, lister DeviceLister, configured []device.Device, logger Logger) ([]device.Device, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	out := make([]device.Device, 0, len(configured))
	seen := make(map[string]bool, len(configured))
	for _, d := range configured {
		out = append(out, d)
		seen[d.ID] = true
	}

	list, err := lister.Devices(ctx)
	if err != nil {
		return out, fmt.Errorf("discovering devices: %w", err)
	}

	for _, info := range list.Devices {
		if seen[info.DeviceID] {
			continue
		}
		t, ok := device.TypeFromCloud(info.DeviceType)
		if !ok {
			logger.Debug("skipping unsupported device",
				"device_id", info.DeviceID,
				"device_type", info.DeviceType)
			continue
		}
		seen[info.DeviceID] = true
		out = append(out, device.Device{
			ID:           info.DeviceID,
			Name:         nameOr(info.DeviceName, info.DeviceID),
			Type:         t,
			Model:        info.DeviceType,
			Connection:   string(channel.ModeCloud),
			CloudEnabled: info.EnableCloudService,
			HubID:        info.HubDeviceID,
		})
	}

	for _, info := range list.Remotes {
		if seen[info.DeviceID] {
			continue
		}
		seen[info.DeviceID] = true
		out = append(out, device.Device{
			ID:           info.DeviceID,
			Name:         nameOr(info.DeviceName, info.DeviceID),
			Type:         device.TypeIR,
			RemoteType:   info.RemoteType,
			Connection:   string(channel.ModeCloud),
			CloudEnabled: true,
			HubID:        info.HubDeviceID,
		})
	}

	return out, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
