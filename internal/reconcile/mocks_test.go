package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/cloud"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/radio"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// mockAdapter turns every dirty property into one "set<Name>" command.
type mockAdapter struct {
	typ         device.Type
	baseline    state.Values
	writable    map[string]bool
	localPush   bool
	refreshable bool
}

func newMockAdapter(typ device.Type, writable ...string) *mockAdapter {
	a := &mockAdapter{
		typ:         typ,
		baseline:    state.Values{state.On: false},
		writable:    make(map[string]bool),
		refreshable: true,
	}
	for _, w := range writable {
		a.writable[w] = true
	}
	return a
}

func (a *mockAdapter) Type() device.Type           { return a.typ }
func (a *mockAdapter) Baseline() state.Values      { return a.baseline.Clone() }
func (a *mockAdapter) Writable(name string) bool   { return a.writable[name] }
func (a *mockAdapter) LocalPush() bool             { return a.localPush }
func (a *mockAdapter) Refreshable() bool           { return a.refreshable }
func (a *mockAdapter) ConfirmDelay() time.Duration { return time.Hour }

func (a *mockAdapter) Prepare(name string, value any, _ state.Values) (state.Values, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: %s is nil", ErrInvalidValue, name)
	}
	return state.Values{name: value}, nil
}

func (a *mockAdapter) Commands(dirty, _ state.Values) []Command {
	var cmds []Command
	for _, name := range dirty.Keys() {
		c := Command{
			Properties: []string{name},
			Cloud: cloud.Command{
				Command:     "set" + name,
				Parameter:   fmt.Sprint(dirty[name]),
				CommandType: "command",
			},
		}
		if a.localPush {
			c.Local = &radio.Command{Action: "set" + name, Args: []any{dirty[name]}}
		}
		cmds = append(cmds, c)
	}
	return cmds
}

// mockCloud is a scripted cloud client.
type mockCloud struct {
	mu          sync.Mutex
	credentials bool
	statusBody  map[string]any
	statusErr   error
	sendErr     error
	statusCalls int
	sent        []cloud.Command
}

func newMockCloud() *mockCloud {
	return &mockCloud{credentials: true}
}

func (c *mockCloud) HasCredentials() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credentials
}

func (c *mockCloud) Status(_ context.Context, _ string) (*cloud.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if c.statusErr != nil {
		return nil, c.statusErr
	}
	body, err := json.Marshal(c.statusBody)
	if err != nil {
		return nil, err
	}
	return &cloud.Response{HTTPStatus: 200, StatusCode: 100, Message: "success", Body: body}, nil
}

func (c *mockCloud) SendCommand(_ context.Context, _ string, cmd cloud.Command) (*cloud.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, cmd)
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	return &cloud.Response{HTTPStatus: 200, StatusCode: 100, Message: "success"}, nil
}

func (c *mockCloud) GetSent() []cloud.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cloud.Command, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *mockCloud) GetStatusCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusCalls
}

// blockingCloud holds every Status call until release is closed, then
// answers from the embedded mockCloud. entered is signalled per call.
type blockingCloud struct {
	*mockCloud
	entered chan struct{}
	release chan struct{}
}

func newBlockingCloud() *blockingCloud {
	return &blockingCloud{
		mockCloud: newMockCloud(),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
}

func (c *blockingCloud) Status(ctx context.Context, id string) (*cloud.Response, error) {
	c.entered <- struct{}{}
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.mockCloud.Status(ctx, id)
}

// mockCommander fails every send with err when set. delay simulates a slow
// acknowledgement.
type mockCommander struct {
	mu    sync.Mutex
	err   error
	delay time.Duration
	calls []radio.Command
}

func (c *mockCommander) Send(ctx context.Context, _ string, cmd radio.Command) error {
	c.mu.Lock()
	c.calls = append(c.calls, cmd)
	err, delay := c.err, c.delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *mockCommander) GetCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// mockScanner replays ads, or fails to start when err is set.
type mockScanner struct {
	err error
	ads []radio.Advertisement
}

func (s *mockScanner) Scan(ctx context.Context, _ radio.Filter) (<-chan radio.Advertisement, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan radio.Advertisement, len(s.ads))
	for _, ad := range s.ads {
		out <- ad
	}
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

// mockSink records updates and faults.
type mockSink struct {
	mu      sync.Mutex
	updates []state.Values
	merged  state.Values
	faults  []error
}

func newMockSink() *mockSink {
	return &mockSink{merged: state.Values{}}
}

func (s *mockSink) Update(_ string, values state.Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, values.Clone())
	s.merged.Merge(values)
}

func (s *mockSink) Fault(_ string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, err)
}

func (s *mockSink) GetMerged() state.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merged.Clone()
}

func (s *mockSink) GetFaults() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.faults...)
}

// mockStore keeps contexts in memory.
type mockStore struct {
	mu       sync.Mutex
	contexts map[string]*device.Context
	saves    int
}

func newMockStore() *mockStore {
	return &mockStore{contexts: make(map[string]*device.Context)}
}

func (s *mockStore) GetContext(_ context.Context, id string) (*device.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contexts[id]
	if !ok {
		return nil, device.ErrContextNotFound
	}
	return c.DeepCopy(), nil
}

func (s *mockStore) SaveContext(_ context.Context, c *device.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[c.DeviceID] = c.DeepCopy()
	s.saves++
	return nil
}

// mockRecorder records history samples.
type mockRecorder struct {
	mu      sync.Mutex
	samples []state.Values
	sources []string
}

func (r *mockRecorder) RecordStateChange(_ context.Context, _ string, values state.Values, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, values.Clone())
	r.sources = append(r.sources, source)
	return nil
}

func (r *mockRecorder) GetSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sources...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
