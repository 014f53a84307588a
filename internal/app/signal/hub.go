/*
Package signal implements the signaling hub: identity binding, rooms, the call state machine,
and the point-to-point relay of session negotiation messages.

This file defines the Hub, the single goroutine that owns every registry. Clients hand it
registrations, inbound frames and disconnects through channels; each is handled to
completion before the next one is read.
*/
package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signalhub/internal/app/calllog"
	"signalhub/internal/app/state"
	"signalhub/internal/pkg/auth/jwt"
	"signalhub/internal/pkg/errs"
	"signalhub/internal/pkg/logx"
	"signalhub/internal/pkg/randx"
)

const (
	// inboundBuffer bounds frames waiting for the hub across all connections.
	inboundBuffer = 1024

	// DefaultSweepInterval is how often sessions and ringing timeouts are checked.
	DefaultSweepInterval = 30 * time.Second
)

// ErrHubStopped is returned to callers once the hub's Run loop has exited.
var ErrHubStopped = errors.New("signal hub stopped")

// Options configures a Hub.
type Options struct {
	// SessionSecret signs the session tokens handed out on connect.
	SessionSecret string

	// SessionTTL is the token lifetime and how long a detached session keeps its name.
	SessionTTL time.Duration

	// RingTimeout resets calls left ringing this long. Zero disables it.
	RingTimeout time.Duration

	// SweepInterval defaults to DefaultSweepInterval.
	SweepInterval time.Duration

	// Recorder receives call lifecycle events. Defaults to calllog.Nop.
	Recorder calllog.Recorder
}

type registration struct {
	handle    string
	sessionID string
	sink      state.Sink
}

type inbound struct {
	handle string
	frame  Frame
}

// Hub serializes every registry mutation behind its Run loop.
type Hub struct {
	store   *state.Store
	callIDs randx.CallRoomIDs
	opts    Options

	register   chan registration
	unregister chan string
	inbound    chan inbound
	stats      chan chan StatsSnapshot

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	now    func() time.Time
	logger zerolog.Logger
}

// NewHub creates a hub. Call Run to start processing.
func NewHub(opts Options) *Hub {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Recorder == nil {
		opts.Recorder = calllog.Nop{}
	}

	return &Hub{
		store:      state.NewStore(),
		opts:       opts,
		register:   make(chan registration),
		unregister: make(chan string),
		inbound:    make(chan inbound, inboundBuffer),
		stats:      make(chan chan StatsSnapshot),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
		now:        time.Now,
		logger:     logx.Component("hub"),
	}
}

// Run processes hub events until Stop is called. On exit every connection's sink is closed.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.opts.SweepInterval)

	defer func() {
		ticker.Stop()

		remaining := h.store.Conns.Len()
		h.store.Conns.CloseAll()
		close(h.done)

		h.logger.Info().Int("closed_connections", remaining).Msg("Hub Run loop finished.")
	}()

	h.logger.Info().
		Dur("session_ttl", h.opts.SessionTTL).
		Dur("ring_timeout", h.opts.RingTimeout).
		Msg("Hub Run loop started.")

	for {
		select {
		case reg := <-h.register:
			h.connect(reg.handle, reg.sessionID, reg.sink)

		case handle := <-h.unregister:
			h.disconnect(handle)

		case in := <-h.inbound:
			h.dispatch(in.handle, in.frame)

		case reply := <-h.stats:
			reply <- h.snapshot()

		case now := <-ticker.C:
			h.sweep(now)

		case <-h.stopChan:
			h.logger.Info().Msg("Hub stop requested.")
			return
		}
	}
}

// Stop asks the Run loop to exit. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Done is closed once the Run loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register adds a live connection. An empty sessionID starts a fresh session.
func (h *Hub) Register(handle, sessionID string, sink state.Sink) error {
	select {
	case h.register <- registration{handle: handle, sessionID: sessionID, sink: sink}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister runs disconnect cleanup for handle. Unknown handles are ignored.
func (h *Hub) Unregister(handle string) {
	select {
	case h.unregister <- handle:
	case <-h.done:
	}
}

// Submit queues an inbound frame from handle without blocking.
func (h *Hub) Submit(handle string, f Frame) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.inbound <- inbound{handle: handle, frame: f}:
		return nil
	default:
		h.logger.Warn().Str("socket_id", handle).Str("event", f.Event).Msg("Inbound queue full, rejecting frame.")
		return errs.NewError(errs.ErrServerBusy)
	}
}

// Stats returns registry counts read inside the Run loop.
func (h *Hub) Stats(ctx context.Context) (StatsSnapshot, error) {
	reply := make(chan StatsSnapshot, 1)

	select {
	case h.stats <- reply:
	case <-h.done:
		return StatsSnapshot{}, ErrHubStopped
	case <-ctx.Done():
		return StatsSnapshot{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return StatsSnapshot{}, ctx.Err()
	}
}

func (h *Hub) connect(handle, sessionID string, sink state.Sink) {
	if sessionID == "" {
		sessionID = randx.UUID()
	}

	h.store.Conns.Add(handle, sessionID, sink, h.now())

	token, err := jwt.IssueSessionToken(sessionID, h.opts.SessionSecret, h.opts.SessionTTL)
	if err != nil {
		h.logger.Error().Err(err).Str("socket_id", handle).Msg("Failed to issue session token.")
	} else {
		h.emit(handle, EventSession, SessionPayload{Token: token, SocketID: handle})
	}

	h.logger.Info().
		Str("socket_id", handle).
		Int("total_connections", h.store.Conns.Len()).
		Msg("Client connected.")
}

// disconnect leaves the current room, settles any call left ringing, and frees the
// connection's name. Every step tolerates having already run.
func (h *Hub) disconnect(handle string) {
	if !h.store.Conns.Alive(handle) {
		return
	}

	if p, ok := h.store.People.Get(handle); ok {
		if p.RoomID != "" {
			h.leaveRoom(handle, p.RoomID)
		}

		p, _ = h.store.People.Get(handle)
		if p.Status == state.StatusRinging && !h.store.Rooms.Exists(p.CallRoomID) {
			if n := h.clearRinging(p.CallRoomID, p.Username, handle); n > 0 {
				h.record(calllog.KindEnded, p.CallRoomID, p.Username, "", "")
			}
		}

		h.store.People.Remove(handle)
	}

	h.store.Names.Release(handle)
	h.store.Conns.Close(handle)

	h.logger.Info().
		Str("socket_id", handle).
		Int("total_connections", h.store.Conns.Len()).
		Msg("Client disconnected.")
}

// dispatch routes one inbound frame to its handler. Frames from connections that have
// already disconnected are dropped.
func (h *Hub) dispatch(handle string, f Frame) {
	if !h.store.Conns.Alive(handle) {
		return
	}

	switch f.Event {
	case EventSetUsername:
		h.handleSetUsername(handle, f)
	case EventGetUsername:
		h.handleGetUsername(handle, f)
	case EventJoinRoom:
		h.handleJoinRoom(handle, f)
	case EventLeaveRoom:
		h.handleLeaveRoom(handle, f)
	case EventCallUser:
		h.handleCallUser(handle, f)
	case EventCallResponse:
		h.handleCallResponse(handle, f)
	case EventAddParticipant:
		h.handleAddParticipant(handle, f)
	case EventToggleMedia:
		h.handleToggleMedia(handle, f)
	case EventEndCall:
		h.endCall(handle)
	case EventOffer, EventAnswer, EventIceCandidate:
		h.handleRelay(handle, f)
	default:
		h.logger.Warn().Str("socket_id", handle).Str("event", f.Event).Msg("Client sent unsupported event")
		h.fail(handle, errs.NewError(errs.ErrUnknownEvent, f.Event))
	}
}

// sweep prunes detached sessions and expires calls left ringing past the timeout.
func (h *Hub) sweep(now time.Time) {
	pruned := h.store.Names.PruneSessions(now.Add(-h.opts.SessionTTL), h.store.Conns.SessionLive)

	expired := 0
	if h.opts.RingTimeout > 0 {
		for _, roomID := range h.store.People.RingingBefore(now.Add(-h.opts.RingTimeout)) {
			if n := h.clearRinging(roomID, "", ""); n > 0 {
				expired++
				h.record(calllog.KindEnded, roomID, "", "", "")
			}
		}
	}

	if pruned > 0 || expired > 0 {
		h.logger.Debug().Int("pruned_sessions", pruned).Int("expired_calls", expired).Msg("Hub sweep finished.")
	}
}

func (h *Hub) snapshot() StatsSnapshot {
	rooms, calls := h.store.Rooms.Count()
	return StatsSnapshot{
		Connections:  h.store.Conns.Len(),
		Participants: h.store.People.Len(),
		Rooms:        rooms,
		CallRooms:    calls,
		Sessions:     h.store.Names.Sessions(),
	}
}

// emit encodes one event for handle. Delivery failures are dropped.
func (h *Hub) emit(handle, event string, data any) {
	h.emitAll([]string{handle}, event, data)
}

// emitAll encodes an event once and delivers it to every handle.
func (h *Hub) emitAll(handles []string, event string, data any) {
	if len(handles) == 0 {
		return
	}

	frame, err := EncodeFrame(event, data, 0)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode outbound frame.")
		return
	}

	for _, handle := range handles {
		if !h.store.Conns.Send(handle, frame) {
			h.logger.Debug().Str("socket_id", handle).Str("event", event).Msg("Outbound frame dropped.")
		}
	}
}

// ack replies to an inbound frame that carried an ack id.
func (h *Hub) ack(handle string, id uint64, result any) {
	if id == 0 {
		return
	}

	frame, err := EncodeFrame(EventAck, result, id)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode ack frame.")
		return
	}

	h.store.Conns.Send(handle, frame)
}

// fail sends err to handle as an error event.
func (h *Hub) fail(handle string, err error) {
	if frame := ErrorFrame(err); frame != nil {
		h.store.Conns.Send(handle, frame)
	}
}

// reply reports err through the ack when the client asked for one, otherwise as an error event.
func (h *Hub) reply(handle string, ackID uint64, err error) {
	if ackID != 0 {
		h.ack(handle, ackID, failure(err))
		return
	}
	h.fail(handle, err)
}

func (h *Hub) record(kind calllog.Kind, roomID, actor, target, callType string) {
	h.opts.Recorder.Record(calllog.Event{
		Kind:     kind,
		RoomID:   roomID,
		Actor:    actor,
		Target:   target,
		CallType: callType,
		At:       h.now(),
	})
}

// view renders handle's participant record for snapshots and announcements.
func (h *Hub) view(handle string) ParticipantView {
	p, _ := h.store.People.Get(handle)
	return ParticipantView{SocketID: handle, Username: p.Username, Status: p.Status}
}
