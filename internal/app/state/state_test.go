package state

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalhub/internal/pkg/errs"
)

type nopSink struct {
	frames [][]byte
	full   bool
	closed bool
}

func (s *nopSink) Deliver(frame []byte) bool {
	if s.full {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *nopSink) Close() { s.closed = true }

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name string
		in   string
		code int
	}{
		{"single char", "a", 0},
		{"max length", strings.Repeat("x", MaxUsernameLength), 0},
		{"full charset", "Ab_9-z", 0},
		{"empty", "", errs.ErrUsernameEmpty},
		{"too long", strings.Repeat("x", MaxUsernameLength+1), errs.ErrUsernameTooLong},
		{"space", "al ice", errs.ErrUsernameCharset},
		{"punctuation", "alice!", errs.ErrUsernameCharset},
		{"unicode", "álice", errs.ErrUsernameCharset},
		{"long unicode names the length rule", strings.Repeat("é", MaxUsernameLength+1), errs.ErrUsernameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.in)
			if tt.code == 0 {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
		})
	}
}

func TestConnections_Lifecycle(t *testing.T) {
	c := NewConnections()
	sink := &nopSink{}

	c.Add("h1", "s1", sink, time.Now())
	assert.True(t, c.Alive("h1"))
	assert.True(t, c.SessionLive("s1"))
	assert.True(t, c.Send("h1", []byte("x")))
	assert.Len(t, sink.frames, 1)

	assert.False(t, c.Send("ghost", []byte("x")), "unknown handle drops silently")

	sink.full = true
	assert.False(t, c.Send("h1", []byte("y")), "full queue drops silently")

	_, ok := c.Remove("h1")
	assert.True(t, ok)
	_, ok = c.Remove("h1")
	assert.False(t, ok, "remove is idempotent")
	assert.False(t, c.SessionLive("s1"))
}

func TestConnections_CloseAll(t *testing.T) {
	c := NewConnections()
	a, b := &nopSink{}, &nopSink{}
	c.Add("a", "s", a, time.Now())
	c.Add("b", "s", b, time.Now())

	c.CloseAll()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Zero(t, c.Len())
}

func TestIdentities_BindAndResolve(t *testing.T) {
	s := NewStore()
	s.Conns.Add("h1", "s1", &nopSink{}, time.Now())
	s.Conns.Add("h2", "s2", &nopSink{}, time.Now())

	require.NoError(t, s.Names.Bind("h1", "s1", "alice"))

	handle, ok := s.Names.Resolve("alice")
	require.True(t, ok)
	assert.Equal(t, "h1", handle)

	name, ok := s.Names.Username("s1")
	require.True(t, ok)
	assert.Equal(t, "alice", name)

	err := s.Names.Bind("h2", "s2", "alice")
	assert.Equal(t, errs.ErrNameInUse, errs.CodeOf(err))

	require.NoError(t, s.Names.Bind("h1", "s1", "alice"), "rebinding own name is allowed")
}

func TestIdentities_ValidationDoesNotMutate(t *testing.T) {
	s := NewStore()
	s.Conns.Add("h1", "s1", &nopSink{}, time.Now())

	err := s.Names.Bind("h1", "s1", "bad name")
	assert.Equal(t, errs.ErrUsernameCharset, errs.CodeOf(err))

	assert.Zero(t, s.Names.Names())
	assert.Zero(t, s.Names.Sessions())
}

func TestIdentities_LazyEvictionOfDeadOwner(t *testing.T) {
	s := NewStore()
	s.Conns.Add("h1", "s1", &nopSink{}, time.Now())
	require.NoError(t, s.Names.Bind("h1", "s1", "alice"))

	// Connection vanishes without releasing its name.
	s.Conns.Remove("h1")
	assert.Equal(t, 1, s.Names.Names(), "binding is still present until requested")

	_, ok := s.Names.Resolve("alice")
	assert.False(t, ok)
	assert.Zero(t, s.Names.Names(), "resolve evicted the stale binding")

	s.Conns.Add("h1b", "s1", &nopSink{}, time.Now())
	s.Conns.Add("h2", "s2", &nopSink{}, time.Now())
	require.NoError(t, s.Names.Bind("h1b", "s1", "bob"))
	s.Conns.Remove("h1b")

	require.NoError(t, s.Names.Bind("h2", "s2", "bob"), "stale owner is evicted on bind")
	handle, ok := s.Names.Resolve("bob")
	require.True(t, ok)
	assert.Equal(t, "h2", handle)
}

func TestIdentities_RenameReleasesOldName(t *testing.T) {
	s := NewStore()
	s.Conns.Add("h1", "s1", &nopSink{}, time.Now())
	s.Conns.Add("h2", "s2", &nopSink{}, time.Now())

	require.NoError(t, s.Names.Bind("h1", "s1", "alice"))
	require.NoError(t, s.Names.Bind("h1", "s1", "alicia"))

	_, ok := s.Names.Resolve("alice")
	assert.False(t, ok)
	require.NoError(t, s.Names.Bind("h2", "s2", "alice"))

	name, _ := s.Names.Username("s1")
	assert.Equal(t, "alicia", name)
}

func TestIdentities_ReleaseOnlyOwnBinding(t *testing.T) {
	s := NewStore()
	s.Conns.Add("old", "s1", &nopSink{}, time.Now())
	require.NoError(t, s.Names.Bind("old", "s1", "carol"))
	s.Conns.Remove("old")

	s.Conns.Add("new", "s2", &nopSink{}, time.Now())
	require.NoError(t, s.Names.Bind("new", "s2", "carol"))

	s.Names.Release("old")

	handle, ok := s.Names.Resolve("carol")
	require.True(t, ok, "releasing the old handle must not evict the new owner")
	assert.Equal(t, "new", handle)
}

func TestIdentities_PruneSessions(t *testing.T) {
	s := NewStore()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Names.now = func() time.Time { return clock }

	s.Conns.Add("h1", "s1", &nopSink{}, clock)
	s.Conns.Add("h2", "s2", &nopSink{}, clock)
	require.NoError(t, s.Names.Bind("h1", "s1", "alice"))
	require.NoError(t, s.Names.Bind("h2", "s2", "bob"))

	s.Names.Release("h1")
	s.Conns.Remove("h1")

	pruned := s.Names.PruneSessions(clock.Add(time.Hour), s.Conns.SessionLive)
	assert.Equal(t, 1, pruned, "only the detached session is pruned")

	_, ok := s.Names.Username("s1")
	assert.False(t, ok)
	_, ok = s.Names.Username("s2")
	assert.True(t, ok)
}

func TestRooms_JoinLeaveDelete(t *testing.T) {
	r := NewRooms()

	r.Join("a", "lobby")
	r.Join("b", "lobby")
	r.Join("a", "lobby")
	assert.Equal(t, []string{"a", "b"}, r.Members("lobby"), "join order, no duplicates")

	assert.True(t, r.Leave("a", "lobby"))
	assert.False(t, r.Leave("a", "lobby"), "second leave is a no-op")
	assert.True(t, r.Exists("lobby"))

	assert.True(t, r.Leave("b", "lobby"))
	assert.False(t, r.Exists("lobby"), "empty rooms are deleted")

	r.Join("a", "call-1-abc")
	r.Join("b", "call-1-abc")
	r.Join("c", "lobby")
	total, calls := r.Count()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, calls)

	assert.Equal(t, []string{"a", "b"}, r.Delete("call-1-abc"))
	assert.False(t, r.Exists("call-1-abc"))
	assert.Nil(t, r.Members("call-1-abc"))
}

func TestParticipants_StateMachine(t *testing.T) {
	p := NewParticipants()
	now := time.Now()

	p.Upsert("a", "alice")
	rec, ok := p.Get("a")
	require.True(t, ok)
	assert.Equal(t, StatusAvailable, rec.Status)

	p.Ring("a", "call-1", now)
	rec, _ = p.Get("a")
	assert.Equal(t, StatusRinging, rec.Status)
	assert.Equal(t, "call-1", rec.CallRoomID)
	assert.Equal(t, []string{"a"}, p.RingingOn("call-1"))
	assert.Equal(t, []string{"call-1"}, p.RingingBefore(now.Add(time.Second)))
	assert.Empty(t, p.RingingBefore(now))

	p.Connect("a", "call-1")
	rec, _ = p.Get("a")
	assert.True(t, rec.InCall())
	assert.True(t, rec.RingingSince.IsZero())
	assert.Empty(t, p.RingingOn("call-1"))

	p.Reset("a")
	rec, _ = p.Get("a")
	assert.Equal(t, StatusAvailable, rec.Status)
	assert.Empty(t, rec.CallRoomID)

	p.Upsert("a", "alicia")
	rec, _ = p.Get("a")
	assert.Equal(t, "alicia", rec.Username)

	p.Remove("a")
	_, ok = p.Get("a")
	assert.False(t, ok)
}

func TestStore_CheckInvariants(t *testing.T) {
	s := NewStore()
	s.Conns.Add("a", "s", &nopSink{}, time.Now())
	require.NoError(t, s.Names.Bind("a", "s", "alice"))
	s.People.Upsert("a", "alice")

	s.Rooms.Join("a", "lobby")
	assert.Error(t, s.CheckInvariants(), "membership not mirrored yet")

	s.People.SetRoom("a", "lobby")
	assert.NoError(t, s.CheckInvariants())

	s.People.Ring("a", "", time.Now())
	assert.Error(t, s.CheckInvariants(), "ringing without a call room")
}
