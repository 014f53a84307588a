package signal

import (
	"encoding/json"

	"signalhub/internal/app/calllog"
	"signalhub/internal/pkg/errs"
	"signalhub/internal/pkg/randx"
)

func (h *Hub) handleSetUsername(handle string, f Frame) {
	var req UsernameRequest
	if err := decodeData(f, &req); err != nil {
		h.usernameFailed(handle, f.Ack, err)
		return
	}

	conn, _ := h.store.Conns.Get(handle)

	if err := h.store.Names.Bind(handle, conn.SessionID, req.Username); err != nil {
		h.usernameFailed(handle, f.Ack, err)
		return
	}

	h.store.People.Upsert(handle, req.Username)

	h.emit(handle, EventUsernameSet, UsernamePayload{Username: req.Username})
	h.ack(handle, f.Ack, AckResult{Success: true, Username: req.Username})

	h.logger.Info().Str("socket_id", handle).Str("username", req.Username).Msg("Username set.")
}

func (h *Hub) usernameFailed(handle string, ackID uint64, err error) {
	h.emit(handle, EventUsernameError, errorPayloadOf(err))
	h.ack(handle, ackID, failure(err))
}

func (h *Hub) handleGetUsername(handle string, f Frame) {
	conn, _ := h.store.Conns.Get(handle)

	result := UsernameLookup{Success: true}
	if name, ok := h.store.Names.Username(conn.SessionID); ok {
		result.Username = &name
	}

	h.ack(handle, f.Ack, result)
}

func (h *Hub) handleJoinRoom(handle string, f Frame) {
	var req JoinRoomRequest
	if err := decodeData(f, &req); err != nil {
		h.reply(handle, f.Ack, err)
		return
	}

	if err := h.joinRoom(handle, req.RoomID); err != nil {
		h.reply(handle, f.Ack, err)
		return
	}

	h.ack(handle, f.Ack, AckResult{Success: true})
}

// joinRoom moves handle into roomID, leaving its previous room first. The joiner's
// snapshot and the announcement to the others come from the same membership read.
func (h *Hub) joinRoom(handle, roomID string) error {
	if roomID == "" || randx.IsCallRoom(roomID) {
		return errs.NewError(errs.ErrRoomIDInvalid)
	}

	p, ok := h.store.People.Get(handle)
	if !ok {
		return errs.NewError(errs.ErrIdentityRequired)
	}

	if p.RoomID != roomID {
		if p.RoomID != "" {
			h.leaveRoom(handle, p.RoomID)
		}

		h.store.Rooms.Join(handle, roomID)
		h.store.People.SetRoom(handle, roomID)
	}

	members := h.store.Rooms.Members(roomID)

	others := make([]string, 0, len(members))
	snapshot := make([]ParticipantView, 0, len(members))
	for _, member := range members {
		if member == handle {
			continue
		}
		others = append(others, member)
		snapshot = append(snapshot, h.view(member))
	}

	if p.RoomID != roomID {
		h.emitAll(others, EventUserJoined, h.view(handle))
	}
	h.emit(handle, EventCurrentParticipants, snapshot)

	h.logger.Info().
		Str("socket_id", handle).
		Str("room_id", roomID).
		Int("members", len(members)).
		Msg("Participant joined room.")

	return nil
}

func (h *Hub) handleLeaveRoom(handle string, f Frame) {
	roomID, err := decodeRoomID(f)
	if err != nil {
		h.reply(handle, f.Ack, err)
		return
	}

	h.leaveRoom(handle, roomID)
	h.ack(handle, f.Ack, AckResult{Success: true})
}

// decodeRoomID accepts the room id either as a bare JSON string or as {"roomId": ...}.
func decodeRoomID(f Frame) (string, error) {
	var roomID string
	if err := json.Unmarshal(f.Data, &roomID); err == nil {
		return roomID, nil
	}

	var req JoinRoomRequest
	if err := decodeData(f, &req); err != nil {
		return "", err
	}
	return req.RoomID, nil
}

// leaveRoom removes handle from roomID if that is the room it is recorded in, and reports
// whether anything changed. Leaving a call room also ends the leaver's call; when the call
// room empties, anyone still ringing on it is told the call is over.
func (h *Hub) leaveRoom(handle, roomID string) bool {
	p, ok := h.store.People.Get(handle)
	if !ok || roomID == "" || p.RoomID != roomID {
		return false
	}

	h.store.Rooms.Leave(handle, roomID)
	h.store.People.SetRoom(handle, "")

	h.emitAll(h.store.Rooms.Members(roomID), EventUserLeft, UserLeftPayload{SocketID: handle, Username: p.Username})

	if randx.IsCallRoom(roomID) {
		if p.CallRoomID == roomID {
			h.store.People.Reset(handle)
		}

		if !h.store.Rooms.Exists(roomID) {
			h.clearRinging(roomID, p.Username, handle)
			h.record(calllog.KindEnded, roomID, p.Username, "", "")
		}
	}

	h.logger.Info().Str("socket_id", handle).Str("room_id", roomID).Msg("Participant left room.")

	return true
}
