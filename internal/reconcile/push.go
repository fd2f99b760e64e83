package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/radio"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// pushJob is the work captured when the debounce timer fires.
type pushJob struct {
	current   state.Values
	commands  []Command
	uncovered state.Values
	plan      channel.Plan

	// readable is whether a refresh could still reach the device. A push
	// without a channel only takes the device offline when it is false.
	readable bool
}

// pushResult is what came back from delivering a job.
type pushResult struct {
	acked  []Command
	failed []Command
	used   channel.Kind
	err    error
}

// onDebounce runs when the debounce timer expires without a newer set.
func (m *Machine) onDebounce(seq uint64) {
	m.mu.Lock()
	if m.stopped || seq != m.debounceSeq || m.phase != PhasePushPending {
		m.mu.Unlock()
		return
	}
	m.phase = PhasePushInFlight
	m.wg.Add(1)
	job := m.preparePushLocked()
	m.mu.Unlock()

	defer m.wg.Done()
	m.push(job)
}

// preparePushLocked diffs pending against committed and asks the adapter for
// the commands that settle the difference.
func (m *Machine) preparePushLocked() pushJob {
	dirty := m.tracker.Dirty()
	current := m.tracker.Current()
	commands := m.adapter.Commands(dirty, current)

	uncovered := dirty.Clone()
	for _, c := range commands {
		for _, p := range c.Properties {
			delete(uncovered, p)
		}
	}

	return pushJob{
		current:   current,
		commands:  commands,
		uncovered: uncovered,
		plan:      channel.ForPush(m.inputs(), m.adapter.LocalPush()),
		readable:  channel.ForRefresh(m.inputs()).Usable(),
	}
}

func (m *Machine) push(job pushJob) {
	var res pushResult
	switch {
	case len(job.commands) == 0:
	case !job.plan.Usable():
		res.failed = job.commands
		res.used = channel.None
		if job.plan.Reason == channel.ReasonPushUnsupported {
			res.err = ErrPushUnsupported
		} else {
			res.err = fmt.Errorf("%w: %s", ErrNoChannel, job.plan.Reason)
		}
	default:
		res = m.deliver(job)
	}
	m.finishPush(job, res)
}

// deliver sends the commands in order and stops at the first failure.
func (m *Machine) deliver(job pushJob) pushResult {
	plan := job.plan
	res := pushResult{used: plan.Primary}
	for i, cmd := range job.commands {
		if cmd.NoOp() {
			res.acked = append(res.acked, cmd)
			continue
		}
		used, err := m.send(m.ctx, &plan, cmd)
		res.used = used
		if err != nil {
			res.failed = job.commands[i:]
			res.err = err
			return res
		}
		res.acked = append(res.acked, cmd)
	}
	return res
}

// send delivers one command. Local delivery is attempted 1+maxRetry times
// with a fixed delay; after that a dual-mode device falls over to the cloud
// and stays there for the rest of the push. The cloud is tried once.
func (m *Machine) send(ctx context.Context, plan *channel.Plan, cmd Command) (channel.Kind, error) {
	if plan.Primary == channel.Local {
		switch {
		case cmd.Local != nil:
			err := m.sendLocal(ctx, *cmd.Local)
			if err == nil {
				return channel.Local, nil
			}
			if plan.Fallback != channel.Cloud {
				return channel.Local, err
			}
			m.logInfo("local push failed, falling back to cloud", "error", err, "command", cmd.Local.Action)
			m.metrics.Fallback(string(m.dev.Type), "push")
			*plan = channel.Plan{Primary: channel.Cloud}
		case plan.Fallback != channel.Cloud:
			return channel.Local, ErrPushUnsupported
		}
	}

	if cmd.Cloud.Command == "" || m.cloud == nil {
		return channel.Cloud, ErrPushUnsupported
	}
	m.logDebug("sending cloud command",
		"command", cmd.Cloud.Command, "parameter", cmd.Cloud.Parameter, "command_type", cmd.Cloud.CommandType)
	if _, err := m.cloud.SendCommand(ctx, m.dev.ID, cmd.Cloud); err != nil {
		return channel.Cloud, err
	}
	return channel.Cloud, nil
}

func (m *Machine) sendLocal(ctx context.Context, cmd radio.Command) error {
	if m.commander == nil {
		return radio.ErrNotConnected
	}
	if cmd.Model == "" {
		cmd.Model = m.dev.Model
	}

	var err error
	for attempt := 0; attempt <= m.maxRetry; attempt++ {
		if attempt > 0 {
			m.metrics.Retry(string(m.dev.Type))
			m.logDebug("retrying local command", "attempt", attempt+1, "error", err)
			select {
			case <-time.After(m.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		err = m.commander.Send(attemptCtx, m.dev.MAC, cmd)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

// finishPush commits what the device accepted, reverts what it did not and
// leaves PhasePushInFlight.
func (m *Machine) finishPush(job pushJob, res pushResult) {
	offline := channel.ReasonNone
	if res.err != nil {
		switch {
		case !job.plan.Usable() && job.plan.Reason != channel.ReasonPushUnsupported && !job.readable:
			offline = job.plan.Reason
		case m.classify("push", res.used, res.err):
			offline = channel.ReasonDeviceOffline
		}
	}
	m.metrics.PushDone(string(m.dev.Type), string(res.used), res.err)

	acked := commandValues(res.acked, job.current)
	attempted := commandValues(res.failed, job.current).Merge(job.uncovered)

	m.mu.Lock()
	m.tracker.Acknowledge(acked)
	reverted := m.tracker.Revert(attempted)
	visible := m.visibleLocked(reverted)

	entered := false
	if offline != channel.ReasonNone {
		var baseline state.Values
		baseline, entered = m.goOfflineLocked(offline)
		visible.Merge(baseline)
	} else {
		if len(acked) > 0 {
			m.leaveOfflineLocked()
		}
		if m.rearm {
			m.rearm = false
			m.phase = PhasePushPending
			m.armDebounceLocked()
		} else {
			m.phase = PhaseIdle
		}
	}
	m.lastErr = res.err
	if len(acked) > 0 {
		m.updatedAt = time.Now()
		if res.err == nil {
			m.scheduleConfirmLocked()
		}
	}
	snap := m.contextLocked()
	all := m.tracker.Current()
	m.mu.Unlock()

	if len(reverted) > 0 {
		m.logDebug("reverted unpushed properties", "properties", reverted)
	}
	if len(acked) > 0 || entered {
		m.persist(m.ctx, snap)
	}
	if len(visible) > 0 {
		m.sink.Update(m.dev.ID, visible)
	}
	switch {
	case entered:
		m.sink.Fault(m.dev.ID, fmt.Errorf("%w: %s", ErrOffline, offline))
	case res.err != nil:
		m.sink.Fault(m.dev.ID, res.err)
	}
	if len(acked) > 0 {
		m.logDebug("pushed", "channel", string(res.used), "properties", acked.Keys())
		m.emit(all, acked, device.StateHistorySourcePush)
	}
}

// scheduleConfirmLocked arms the verifying refresh after a successful push.
func (m *Machine) scheduleConfirmLocked() {
	if !m.adapter.Refreshable() || m.confirmDelay < 0 || m.stopped {
		return
	}
	if m.confirm != nil {
		m.confirm.Stop()
	}
	m.confirm = time.AfterFunc(m.confirmDelay, m.confirmRefresh)
}

func (m *Machine) confirmRefresh() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	if err := m.Refresh(m.ctx); err != nil && m.ctx.Err() == nil {
		m.logDebug("confirm refresh", "error", err)
	}
}

// commandValues collects the values the commands carried.
func commandValues(cmds []Command, current state.Values) state.Values {
	out := make(state.Values)
	for _, c := range cmds {
		for _, p := range c.Properties {
			if v, ok := current[p]; ok {
				out[p] = v
			}
		}
	}
	return out
}
