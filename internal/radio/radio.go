package radio

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultScanDuration is the scan window used when a device has no override.
const DefaultScanDuration = time.Second

// Advertisement is one BLE advertisement from a SwitchBot device.
type Advertisement struct {
	Address     string         `json:"address"`
	Model       string         `json:"model"`
	ModelName   string         `json:"modelName,omitempty"`
	RSSI        int            `json:"rssi"`
	ServiceData map[string]any `json:"serviceData"`
	ReceivedAt  time.Time      `json:"-"`
}

// Filter selects advertisements by model code and address. Empty fields match
// anything.
type Filter struct {
	Model   string
	Address string
}

// Matches reports whether the advertisement passes the filter.
func (f Filter) Matches(ad Advertisement) bool {
	if f.Model != "" && ad.Model != f.Model {
		return false
	}
	if f.Address != "" && NormalizeAddress(ad.Address) != NormalizeAddress(f.Address) {
		return false
	}
	return true
}

// Command is an action sent to a device over the radio.
type Command struct {
	ID     string `json:"id"`
	Model  string `json:"model"`
	Action string `json:"action"`
	Args   []any  `json:"args,omitempty"`
}

// Scanner produces advertisements until ctx is cancelled. The returned
// channel is closed when the scan stops.
type Scanner interface {
	Scan(ctx context.Context, f Filter) (<-chan Advertisement, error)
}

// Commander delivers commands to a device and waits for the gateway's
// acknowledgement.
type Commander interface {
	Send(ctx context.Context, address string, cmd Command) error
}

// FirstMatch scans for at most window and returns the first advertisement
// matching f. The scan stops as soon as a match arrives.
//
// Returns:
//   - Advertisement: The matching sample
//   - error: ErrScanTimeout if the window elapsed, or the scanner's error
func FirstMatch(ctx context.Context, s Scanner, f Filter, window time.Duration) (Advertisement, error) {
	if window <= 0 {
		window = DefaultScanDuration
	}
	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	ads, err := s.Scan(scanCtx, f)
	if err != nil {
		return Advertisement{}, fmt.Errorf("starting scan: %w", err)
	}

	for {
		select {
		case ad, ok := <-ads:
			if !ok {
				return Advertisement{}, fmt.Errorf("%w: %s", ErrScanTimeout, f.Address)
			}
			if f.Matches(ad) {
				return ad, nil
			}
		case <-scanCtx.Done():
			if ctx.Err() != nil {
				return Advertisement{}, ctx.Err()
			}
			return Advertisement{}, fmt.Errorf("%w: %s after %v", ErrScanTimeout, f.Address, window)
		}
	}
}

// AddressFromID derives a BLE address from a SwitchBot device id: the id is
// split into byte pairs, joined with ':' and lower-cased.
//
// Example:
//
//	radio.AddressFromID("E1A2B3C4D5E6") // "e1:a2:b3:c4:d5:e6"
func AddressFromID(id string) string {
	id = strings.ToLower(strings.ReplaceAll(id, ":", ""))
	var b strings.Builder
	for i := 0; i < len(id); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		end := min(i+2, len(id))
		b.WriteString(id[i:end])
	}
	return b.String()
}

// NormalizeAddress lower-cases an address and strips separators, the form
// used in gateway topics.
func NormalizeAddress(addr string) string {
	r := strings.NewReplacer(":", "", "-", "")
	return strings.ToLower(r.Replace(addr))
}
