package signal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"signalhub/internal/pkg/errs"
)

func startServer(t *testing.T, limit rate.Limit, burst int) (*Hub, string) {
	t.Helper()

	hub := NewHub(Options{SessionSecret: "test-secret", SessionTTL: time.Hour})
	go hub.Run()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = NewClient(hub, conn, "", limit, burst).Serve()
	}))

	t.Cleanup(func() {
		hub.Stop()
		<-hub.Done()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) (*websocket.Conn, SessionPayload) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	session := decodeAs[SessionPayload](t, readEvent(t, conn, EventSession))
	return conn, session
}

func writeFrame(t *testing.T, conn *websocket.Conn, event string, data any, ack uint64) {
	t.Helper()

	f := Frame{Event: event, Ack: ack}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		f.Data = raw
	}

	require.NoError(t, conn.WriteJSON(f))
}

// readEvent reads frames until one named event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, event string) Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q", event)

		f, err := DecodeFrame(raw)
		require.NoError(t, err)
		if f.Event == event {
			return f
		}
	}
}

func TestClient_EndToEndCallAndRelay(t *testing.T) {
	_, url := startServer(t, rate.Inf, 1)

	alice, aliceSession := dial(t, url)
	bob, bobSession := dial(t, url)
	assert.NotEqual(t, aliceSession.SocketID, bobSession.SocketID)
	assert.NotEmpty(t, aliceSession.Token)

	writeFrame(t, alice, EventSetUsername, UsernameRequest{Username: "alice"}, 1)
	ack := readEvent(t, alice, EventAck)
	assert.Equal(t, uint64(1), ack.Ack)
	assert.True(t, decodeAs[AckResult](t, ack).Success)

	writeFrame(t, bob, EventSetUsername, UsernameRequest{Username: "bob"}, 0)
	readEvent(t, bob, EventUsernameSet)

	writeFrame(t, alice, EventCallUser, CallUserRequest{TargetUsername: "bob", CallType: "audio"}, 0)
	incoming := decodeAs[IncomingCallPayload](t, readEvent(t, bob, EventIncomingCall))
	assert.Equal(t, "alice", incoming.From)

	writeFrame(t, bob, EventCallResponse, CallResponseRequest{Accepted: true, RoomID: incoming.RoomID, From: "alice"}, 0)
	accepted := decodeAs[CallAcceptedPayload](t, readEvent(t, alice, EventCallAccepted))
	assert.Equal(t, incoming.RoomID, accepted.RoomID)

	writeFrame(t, alice, EventOffer, map[string]any{"to": bobSession.SocketID, "offer": map[string]string{"sdp": "v=0"}}, 0)
	offer := decodeAs[RelayPayload](t, readEvent(t, bob, EventOffer))
	assert.Equal(t, aliceSession.SocketID, offer.From)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(offer.Offer))

	require.NoError(t, alice.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	left := decodeAs[UserLeftPayload](t, readEvent(t, bob, EventUserLeft))
	assert.Equal(t, "alice", left.Username)
}

func TestClient_InvalidFrameAndRateLimit(t *testing.T) {
	_, url := startServer(t, rate.Limit(0), 2)

	conn, _ := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	invalid := decodeAs[ErrorPayload](t, readEvent(t, conn, EventError))
	assert.Equal(t, errs.ErrInvalidJSONFormat, invalid.Code)

	writeFrame(t, conn, EventGetUsername, nil, 1)
	readEvent(t, conn, EventAck)

	writeFrame(t, conn, EventGetUsername, nil, 2)
	limited := decodeAs[ErrorPayload](t, readEvent(t, conn, EventError))
	assert.Equal(t, errs.ErrRateLimitExceeded, limited.Code)
}

func TestClient_HubStopClosesSocket(t *testing.T) {
	hub, url := startServer(t, rate.Inf, 1)
	conn, _ := dial(t, url)

	hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
