package signal

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"signalhub/internal/app/state"
	"signalhub/internal/pkg/logx"
)

func TestMain(m *testing.M) {
	logx.Silence(io.Discard, zerolog.Disabled)
	os.Exit(m.Run())
}

// fakeSink records every frame delivered to one connection.
type fakeSink struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (s *fakeSink) Deliver(raw []byte) bool {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.frames = append(s.frames, f)
	return true
}

func (s *fakeSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		names = append(names, f.Event)
	}
	return names
}

func (s *fakeSink) all(event string) []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Frame
	for _, f := range s.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (s *fakeSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

// last returns the most recent frame for event and fails the test if there is none.
func (s *fakeSink) last(t *testing.T, event string) Frame {
	t.Helper()
	frames := s.all(event)
	require.NotEmpty(t, frames, "no %q frame; got %v", event, s.events())
	return frames[len(frames)-1]
}

func decodeAs[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

// harness drives a hub's handlers synchronously, the way the Run loop would.
type harness struct {
	t     *testing.T
	hub   *Hub
	clock time.Time
	sinks map[string]*fakeSink
}

func newHarness(t *testing.T, opts Options) *harness {
	if opts.SessionSecret == "" {
		opts.SessionSecret = "test-secret"
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = time.Hour
	}

	th := &harness{
		t:     t,
		hub:   NewHub(opts),
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		sinks: make(map[string]*fakeSink),
	}
	th.hub.now = func() time.Time { return th.clock }

	return th
}

func (th *harness) connect(handle string) *fakeSink {
	return th.connectSession(handle, "")
}

func (th *harness) connectSession(handle, sessionID string) *fakeSink {
	sink := &fakeSink{}
	th.sinks[handle] = sink
	th.hub.connect(handle, sessionID, sink)
	return sink
}

// named connects handle, binds name, and clears the setup frames.
func (th *harness) named(handle, name string) *fakeSink {
	sink := th.connect(handle)
	th.send(handle, EventSetUsername, UsernameRequest{Username: name})
	require.Equal(th.t, []string{EventSession, EventUsernameSet}, sink.events())
	sink.reset()
	return sink
}

func (th *harness) send(handle, event string, data any) {
	th.sendAck(handle, event, data, 0)
}

func (th *harness) sendAck(handle, event string, data any, ack uint64) {
	th.t.Helper()

	f := Frame{Event: event, Ack: ack}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(th.t, err)
		f.Data = raw
	}

	th.hub.dispatch(handle, f)
	th.consistent()
}

func (th *harness) disconnect(handle string) {
	th.t.Helper()
	th.hub.disconnect(handle)
	th.consistent()
}

func (th *harness) consistent() {
	th.t.Helper()
	require.NoError(th.t, th.hub.store.CheckInvariants())
}

func (th *harness) participant(handle string) state.Participant {
	th.t.Helper()
	p, ok := th.hub.store.People.Get(handle)
	require.True(th.t, ok, "no participant for %s", handle)
	return p
}

func (th *harness) resetAll() {
	for _, s := range th.sinks {
		s.reset()
	}
}

// ring has caller ring the named callee and returns the call room id.
func (th *harness) ring(caller, calleeName string) string {
	th.t.Helper()
	th.send(caller, EventCallUser, CallUserRequest{TargetUsername: calleeName, CallType: "video"})
	calling := decodeAs[CallingPayload](th.t, th.sinks[caller].last(th.t, EventCalling))
	return calling.RoomID
}

// call rings callee and has it accept, returning the call room id with all sinks cleared.
func (th *harness) call(caller, callerName, callee, calleeName string) string {
	th.t.Helper()
	roomID := th.ring(caller, calleeName)
	th.send(callee, EventCallResponse, CallResponseRequest{Accepted: true, RoomID: roomID, From: callerName})
	th.resetAll()
	return roomID
}
