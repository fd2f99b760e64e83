package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/cloud"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/normalize"
	"github.com/nerrad567/gray-logic-switchbot/internal/radio"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
	"github.com/nerrad567/gray-logic-switchbot/internal/statuscode"
)

// Refresh reads the device's status over the planned channel and merges it
// into the canonical state.
//
// Refresh returns ErrRefreshSkipped while another refresh or a push is
// outstanding. A result, success or failure, is dropped when a set or a
// webhook changed the state while the read was in flight. A device the cloud reports offline, or one without a usable
// channel, falls to its baseline and Refresh returns nil. Other failures
// are reported to the sink and returned.
func (m *Machine) Refresh(ctx context.Context) error {
	if !m.adapter.Refreshable() {
		return nil
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.refreshing || m.phase == PhasePushPending || m.phase == PhasePushInFlight {
		m.mu.Unlock()
		m.metrics.RefreshSkipped(string(m.dev.Type))
		return ErrRefreshSkipped
	}

	plan := channel.ForRefresh(m.inputs())
	if !plan.Usable() {
		baseline, entered := m.goOfflineLocked(plan.Reason)
		snap := m.contextLocked()
		m.mu.Unlock()
		if entered {
			m.publishOffline(ctx, plan.Reason, baseline, snap)
		}
		return nil
	}

	m.refreshing = true
	if m.phase == PhaseIdle {
		m.phase = PhaseRefreshInFlight
	}
	gen := m.generation
	current := m.tracker.Current()
	m.mu.Unlock()

	values, used, firmware, err := m.fetch(ctx, plan, current)
	m.metrics.RefreshDone(string(m.dev.Type), string(used), err)

	m.mu.Lock()
	m.refreshing = false
	if m.phase == PhaseRefreshInFlight {
		m.phase = PhaseIdle
	}
	if gen != m.generation || m.stopped {
		m.mu.Unlock()
		m.logDebug("discarding stale refresh", "channel", string(used), "error", err)
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return m.refreshFailed(ctx, used, err)
	}

	m.leaveOfflineLocked()
	changed := m.tracker.Observe(values)
	if firmware != "" {
		m.firmware = firmware
	}
	m.lastErr = nil
	m.updatedAt = time.Now()
	visible := m.visibleLocked(changed)
	snap := m.contextLocked()
	all := m.tracker.Current()
	m.mu.Unlock()

	m.logDebug("refreshed", "channel", string(used), "changed", changed)
	m.persist(ctx, snap)
	if len(visible) > 0 {
		m.sink.Update(m.dev.ID, visible)
	}
	m.emit(all, pick(all, changed), device.StateHistorySourceRefresh)
	return nil
}

// ApplyPush merges an unsolicited status notification (a cloud webhook)
// through the same path as a polled cloud status. Malformed payloads are
// logged and leave the state untouched.
func (m *Machine) ApplyPush(raw normalize.Raw) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.dev.Offline {
		m.mu.Unlock()
		m.logDebug("ignoring webhook for disabled device")
		return nil
	}
	current := m.tracker.Current()
	m.mu.Unlock()

	values, err := normalize.Normalize(m.dev.Type, channel.Webhook, raw, m.normalizeOptions(current))
	m.metrics.RefreshDone(string(m.dev.Type), string(channel.Webhook), err)
	if err != nil {
		m.logError("rejected webhook payload", err, "channel", string(channel.Webhook))
		return err
	}

	m.mu.Lock()
	m.generation++
	m.leaveOfflineLocked()
	changed := m.tracker.Observe(values)
	m.lastErr = nil
	m.updatedAt = time.Now()
	visible := m.visibleLocked(changed)
	snap := m.contextLocked()
	all := m.tracker.Current()
	m.mu.Unlock()

	m.logDebug("applied webhook", "changed", changed)
	m.persist(m.ctx, snap)
	if len(visible) > 0 {
		m.sink.Update(m.dev.ID, visible)
	}
	m.emit(all, pick(all, changed), device.StateHistorySourceWebhook)
	return nil
}

// fetch reads and normalizes a status. A local failure on a dual-mode device
// falls over to the cloud once; the radio scan is never repeated in the
// same cycle.
func (m *Machine) fetch(ctx context.Context, plan channel.Plan, current state.Values) (state.Values, channel.Kind, string, error) {
	opts := m.normalizeOptions(current)

	if plan.Primary == channel.Local {
		values, err := m.fetchLocal(ctx, opts)
		if err == nil {
			return values, channel.Local, "", nil
		}
		if plan.Fallback != channel.Cloud {
			return nil, channel.Local, "", err
		}
		m.logInfo("local refresh failed, falling back to cloud", "error", err)
		m.metrics.Fallback(string(m.dev.Type), "refresh")
	}

	values, firmware, err := m.fetchCloud(ctx, opts)
	return values, channel.Cloud, firmware, err
}

func (m *Machine) fetchLocal(ctx context.Context, opts normalize.Options) (state.Values, error) {
	if m.scanner == nil {
		return nil, radio.ErrNotConnected
	}
	ad, err := radio.FirstMatch(ctx, m.scanner, radio.Filter{Model: m.dev.Model, Address: m.dev.MAC}, m.scanDuration)
	if err != nil {
		return nil, err
	}
	return normalize.Normalize(m.dev.Type, channel.Local, normalize.Raw(ad.ServiceData), opts)
}

func (m *Machine) fetchCloud(ctx context.Context, opts normalize.Options) (state.Values, string, error) {
	if m.cloud == nil {
		return nil, "", ErrNoChannel
	}
	resp, err := m.cloud.Status(ctx, m.dev.ID)
	if err != nil {
		return nil, "", err
	}
	body, err := resp.BodyMap()
	if err != nil {
		return nil, "", err
	}
	values, err := normalize.Normalize(m.dev.Type, channel.Cloud, body, opts)
	if err != nil {
		return nil, "", err
	}
	return values, normalize.Firmware(body), nil
}

// refreshFailed classifies a refresh error. Offline status codes move the
// machine to its baseline and are not returned.
func (m *Machine) refreshFailed(ctx context.Context, used channel.Kind, err error) error {
	if m.classify("refresh", used, err) {
		m.mu.Lock()
		baseline, entered := m.goOfflineLocked(channel.ReasonDeviceOffline)
		m.lastErr = err
		snap := m.contextLocked()
		m.mu.Unlock()
		if entered {
			m.publishOffline(ctx, channel.ReasonDeviceOffline, baseline, snap)
		}
		return nil
	}

	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.sink.Fault(m.dev.ID, err)
	return fmt.Errorf("refresh %s: %w", m.dev.ID, err)
}

// classify logs a failed operation and reports whether the device must go
// offline. Only cloud status codes can take a device offline.
func (m *Machine) classify(op string, used channel.Kind, err error) bool {
	var se *cloud.StatusError
	if !errors.As(err, &se) {
		m.logError(op+" failed", err, "channel", string(used))
		return false
	}

	cl := statuscode.Worst(se.Codes()...)
	m.metrics.StatusCode(cl.Code, cl.Action.String())
	switch cl.Action {
	case statuscode.ActionUnknown:
		m.logInfo(op+" returned unknown status code",
			"channel", string(used), "status_code", cl.Code, "hint", cl.Message)
	case statuscode.ActionOffline:
		m.logError(op+" failed: "+cl.Message, err, "channel", string(used), "status_code", cl.Code)
		return true
	default:
		m.logError(op+" failed: "+cl.Message, err, "channel", string(used), "status_code", cl.Code)
	}
	return false
}

func (m *Machine) normalizeOptions(current state.Values) normalize.Options {
	return normalize.Options{
		MinLux:  m.overrides.MinLux,
		MaxLux:  m.overrides.MaxLux,
		Current: current,
	}
}

func pick(values state.Values, names []string) state.Values {
	out := make(state.Values, len(names))
	for _, n := range names {
		if v, ok := values[n]; ok {
			out[n] = v
		}
	}
	return out
}
