/*
Package signal implements the signaling hub: identity binding, rooms, the call state machine,
and the point-to-point relay of session negotiation messages.

This file defines the wire frame and every event payload.
*/
package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"signalhub/internal/app/state"
	"signalhub/internal/pkg/errs"
)

// Inbound event names.
const (
	EventSetUsername    = "set-username"
	EventGetUsername    = "get-username"
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventCallUser       = "call-user"
	EventCallResponse   = "call-response"
	EventAddParticipant = "add-participant"
	EventToggleMedia    = "toggle-media"
	EventEndCall        = "end-call"
)

// Relay event names, used in both directions.
const (
	EventOffer        = "webrtc-offer"
	EventAnswer       = "webrtc-answer"
	EventIceCandidate = "ice-candidate"
)

// Outbound event names.
const (
	EventSession             = "session"
	EventAck                 = "ack"
	EventError               = "error"
	EventUsernameSet         = "username-set"
	EventUsernameError       = "username-error"
	EventCurrentParticipants = "current-participants"
	EventUserJoined          = "user-joined"
	EventUserLeft            = "user-left"
	EventIncomingCall        = "incoming-call"
	EventCalling             = "calling"
	EventCallFailed          = "call-failed"
	EventCallAccepted        = "call-accepted"
	EventCallRejected        = "call-rejected"
	EventParticipantInvited  = "participant-invited"
	EventMediaToggled        = "media-toggled"
	EventCallEnded           = "call-ended"
)

// Frame is the JSON envelope of every message in both directions.
// A non-zero Ack on an inbound frame asks for an ack frame carrying the same id.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
}

// DecodeFrame parses one inbound text message.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, err
	}
	if f.Event == "" {
		return Frame{}, errors.New("frame has no event name")
	}
	return f, nil
}

// EncodeFrame builds an outbound frame.
func EncodeFrame(event string, data any, ack uint64) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		raw = b
	}
	return json.Marshal(Frame{Event: event, Data: raw, Ack: ack})
}

// ErrorFrame encodes err as an error event for the originating connection.
func ErrorFrame(err error) []byte {
	frame, encErr := EncodeFrame(EventError, errorPayloadOf(err), 0)
	if encErr != nil {
		return nil
	}
	return frame
}

// decodeData unmarshals a frame's payload into v.
func decodeData(f Frame, v any) error {
	if len(f.Data) == 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return errs.NewError(errs.ErrInvalidParams)
	}
	return nil
}

// ErrorPayload is the body of error, username-error and call-failed events.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorPayloadOf(err error) ErrorPayload {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		return ErrorPayload{Code: customErr.Code, Message: customErr.Message}
	}
	unknown := errs.NewError(errs.ErrUnknown)
	return ErrorPayload{Code: unknown.Code, Message: unknown.Message}
}

// AckResult is the acknowledgment body for set-username, join-room and leave-room.
type AckResult struct {
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     int    `json:"code,omitempty"`
}

func failure(err error) AckResult {
	p := errorPayloadOf(err)
	return AckResult{Success: false, Error: p.Message, Code: p.Code}
}

// UsernameLookup is the acknowledgment body for get-username. Username is null when unknown.
type UsernameLookup struct {
	Success  bool    `json:"success"`
	Username *string `json:"username"`
}

type SessionPayload struct {
	Token    string `json:"token"`
	SocketID string `json:"socketId"`
}

type UsernameRequest struct {
	Username string `json:"username"`
}

type UsernamePayload struct {
	Username string `json:"username"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// ParticipantView is how a participant appears in room snapshots and join announcements.
type ParticipantView struct {
	SocketID string       `json:"socketId"`
	Username string       `json:"username"`
	Status   state.Status `json:"status"`
}

type UserLeftPayload struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type CallUserRequest struct {
	TargetUsername string `json:"targetUsername"`
	CallType       string `json:"callType"`
}

type IncomingCallPayload struct {
	From     string `json:"from"`
	CallType string `json:"callType,omitempty"`
	RoomID   string `json:"roomId"`
}

type CallingPayload struct {
	Target   string `json:"target"`
	RoomID   string `json:"roomId"`
	CallType string `json:"callType"`
}

// CallFailedPayload reports why call-user did not ring the target.
type CallFailedPayload struct {
	Target  string `json:"target"`
	Reason  string `json:"reason"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type CallResponseRequest struct {
	Accepted bool   `json:"accepted"`
	RoomID   string `json:"roomId"`
	From     string `json:"from"`
}

type CallAcceptedPayload struct {
	RoomID     string `json:"roomId"`
	Respondent string `json:"respondent"`
}

type CallRejectedPayload struct {
	From string `json:"from"`
}

type AddParticipantRequest struct {
	Username string `json:"username"`
	CallType string `json:"callType,omitempty"`
}

type ParticipantInvitedPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

type ToggleMediaRequest struct {
	MediaType string `json:"mediaType"`
	Enabled   bool   `json:"enabled"`
}

type MediaToggledPayload struct {
	SocketID  string `json:"socketId"`
	Username  string `json:"username"`
	MediaType string `json:"mediaType"`
	Enabled   bool   `json:"enabled"`
}

type CallEndedPayload struct {
	EndedBy string `json:"endedBy"`
	RoomID  string `json:"roomId,omitempty"`
}

// RelayRequest carries one negotiation blob addressed to a connection handle.
// Exactly one of Offer, Answer and Candidate is expected, matching the event name.
type RelayRequest struct {
	To        string          `json:"to"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// RelayPayload is what the addressed connection receives.
type RelayPayload struct {
	From      string          `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// StatsSnapshot is a point-in-time count of the registries.
type StatsSnapshot struct {
	Connections  int `json:"connections"`
	Participants int `json:"participants"`
	Rooms        int `json:"rooms"`
	CallRooms    int `json:"callRooms"`
	Sessions     int `json:"sessions"`
}
