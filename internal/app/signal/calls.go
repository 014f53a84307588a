package signal

import (
	"slices"

	"signalhub/internal/app/calllog"
	"signalhub/internal/app/state"
	"signalhub/internal/pkg/errs"
	"signalhub/internal/pkg/randx"
)

// call-failed reasons.
const (
	reasonInvalid       = "invalid"
	reasonNotRegistered = "not-registered"
	reasonNotFound      = "not-found"
	reasonInCall        = "in-call"
	reasonInternal      = "internal"
)

// handleCallUser rings the named target on a fresh call room. A target that is already
// ringing may be rung again; only an established call is refused.
func (h *Hub) handleCallUser(handle string, f Frame) {
	var req CallUserRequest
	if err := decodeData(f, &req); err != nil {
		h.callFailed(handle, "", reasonInvalid, err)
		return
	}

	caller, ok := h.store.People.Get(handle)
	if !ok {
		h.callFailed(handle, req.TargetUsername, reasonNotRegistered, errs.NewError(errs.ErrNotRegistered))
		return
	}

	target, ok := h.store.Names.Resolve(req.TargetUsername)
	if !ok {
		h.callFailed(handle, req.TargetUsername, reasonNotFound, errs.NewError(errs.ErrUserNotFound))
		return
	}

	if target == handle {
		h.callFailed(handle, req.TargetUsername, reasonInvalid, errs.NewError(errs.ErrInvalidParams))
		return
	}

	callee, ok := h.store.People.Get(target)
	if !ok {
		h.callFailed(handle, req.TargetUsername, reasonNotFound, errs.NewError(errs.ErrUserNotFound))
		return
	}

	if callee.InCall() {
		h.callFailed(handle, req.TargetUsername, reasonInCall, errs.NewError(errs.ErrTargetInCall))
		return
	}

	roomID, err := h.callIDs.Next()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to allocate call room id.")
		h.callFailed(handle, req.TargetUsername, reasonInternal, errs.NewError(errs.ErrUnknown, err))
		return
	}

	now := h.now()
	h.store.People.Ring(handle, roomID, now)
	h.store.People.Ring(target, roomID, now)

	h.emit(target, EventIncomingCall, IncomingCallPayload{From: caller.Username, CallType: req.CallType, RoomID: roomID})
	h.emit(handle, EventCalling, CallingPayload{Target: callee.Username, RoomID: roomID, CallType: req.CallType})

	h.record(calllog.KindStarted, roomID, caller.Username, callee.Username, req.CallType)

	h.logger.Info().
		Str("room_id", roomID).
		Str("caller", caller.Username).
		Str("callee", callee.Username).
		Str("call_type", req.CallType).
		Msg("Call started.")
}

func (h *Hub) callFailed(handle, target, reason string, err error) {
	p := errorPayloadOf(err)
	h.emit(handle, EventCallFailed, CallFailedPayload{
		Target:  target,
		Reason:  reason,
		Code:    p.Code,
		Message: p.Message,
	})
}

func (h *Hub) handleCallResponse(handle string, f Frame) {
	var req CallResponseRequest
	if err := decodeData(f, &req); err != nil {
		h.fail(handle, err)
		return
	}

	if _, ok := h.store.People.Get(handle); !ok {
		h.fail(handle, errs.NewError(errs.ErrNotRegistered))
		return
	}

	if !randx.IsCallRoom(req.RoomID) {
		h.fail(handle, errs.NewError(errs.ErrRoomIDInvalid))
		return
	}

	caller, ok := h.store.Names.Resolve(req.From)
	if !ok {
		h.fail(handle, errs.NewError(errs.ErrCallerNotFound))
		return
	}

	if caller == handle {
		h.fail(handle, errs.NewError(errs.ErrInvalidParams))
		return
	}

	if !h.answerable(handle, caller, req.RoomID) {
		h.logger.Warn().
			Str("socket_id", handle).
			Str("room_id", req.RoomID).
			Str("from", req.From).
			Msg("Call response for a call that is no longer offered, dropping.")
		h.fail(handle, errs.NewError(errs.ErrCallerNotFound))
		return
	}

	if req.Accepted {
		h.acceptCall(handle, caller, req.RoomID)
	} else {
		h.rejectCall(handle, caller, req.RoomID)
	}
}

// acceptCall puts both parties in the call room and sends every member a fresh snapshot.
func (h *Hub) acceptCall(respondent, caller, roomID string) {
	h.enterCall(respondent, roomID)
	h.enterCall(caller, roomID)

	rp, _ := h.store.People.Get(respondent)
	cp, _ := h.store.People.Get(caller)

	h.emit(caller, EventCallAccepted, CallAcceptedPayload{RoomID: roomID, Respondent: rp.Username})

	members := h.store.Rooms.Members(roomID)
	snapshot := make([]ParticipantView, 0, len(members))
	for _, member := range members {
		snapshot = append(snapshot, h.view(member))
	}
	h.emitAll(members, EventCurrentParticipants, snapshot)

	h.record(calllog.KindAccepted, roomID, rp.Username, cp.Username, "")

	h.logger.Info().
		Str("room_id", roomID).
		Str("respondent", rp.Username).
		Int("members", len(members)).
		Msg("Call accepted.")
}

// enterCall joins handle to the call room, leaving any other room, and marks it in-call.
func (h *Hub) enterCall(handle, roomID string) {
	p, _ := h.store.People.Get(handle)

	if p.RoomID != roomID {
		if p.RoomID != "" {
			h.leaveRoom(handle, p.RoomID)
		}
		h.store.Rooms.Join(handle, roomID)
		h.store.People.SetRoom(handle, roomID)
	}

	h.store.People.Connect(handle, roomID)
}

// rejectCall resets whichever of the two parties is still ringing on roomID. A caller
// already in the established call keeps its status.
func (h *Hub) rejectCall(respondent, caller, roomID string) {
	rp, _ := h.store.People.Get(respondent)
	cp, _ := h.store.People.Get(caller)

	if ringingOn(rp, roomID) {
		h.store.People.Reset(respondent)
	}
	if ringingOn(cp, roomID) {
		h.store.People.Reset(caller)
	}

	if !h.store.Rooms.Exists(roomID) {
		h.clearRinging(roomID, rp.Username, "")
	}

	h.emit(caller, EventCallRejected, CallRejectedPayload{From: rp.Username})

	h.record(calllog.KindRejected, roomID, rp.Username, cp.Username, "")

	h.logger.Info().Str("room_id", roomID).Str("respondent", rp.Username).Msg("Call rejected.")
}

func ringingOn(p state.Participant, roomID string) bool {
	return p.Status == state.StatusRinging && p.CallRoomID == roomID
}

// answerable reports whether caller still offers roomID to respondent. A direct call needs
// both sides ringing on it; an invite needs the caller to be in that established call.
func (h *Hub) answerable(respondent, caller, roomID string) bool {
	cp, ok := h.store.People.Get(caller)
	if !ok {
		return false
	}

	if ringingOn(cp, roomID) {
		rp, _ := h.store.People.Get(respondent)
		return ringingOn(rp, roomID)
	}

	return cp.InCall() && cp.RoomID == roomID
}

// handleAddParticipant invites another user into the caller's established call. The
// invitee joins only when it accepts; repeated invites are sent again.
func (h *Hub) handleAddParticipant(handle string, f Frame) {
	var req AddParticipantRequest
	if err := decodeData(f, &req); err != nil {
		h.fail(handle, err)
		return
	}

	p, ok := h.store.People.Get(handle)
	if !ok || !p.InCall() || p.RoomID == "" {
		h.fail(handle, errs.NewError(errs.ErrNotInCall))
		return
	}

	target, ok := h.store.Names.Resolve(req.Username)
	if !ok {
		h.fail(handle, errs.NewError(errs.ErrUserNotFound))
		return
	}

	invitee, ok := h.store.People.Get(target)
	if !ok {
		h.fail(handle, errs.NewError(errs.ErrUserNotFound))
		return
	}

	if invitee.InCall() {
		h.fail(handle, errs.NewError(errs.ErrAlreadyInCall))
		return
	}

	h.emit(target, EventIncomingCall, IncomingCallPayload{From: p.Username, CallType: req.CallType, RoomID: p.RoomID})
	h.emit(handle, EventParticipantInvited, ParticipantInvitedPayload{Username: invitee.Username, RoomID: p.RoomID})

	h.record(calllog.KindInvited, p.RoomID, p.Username, invitee.Username, req.CallType)
}

// endCall tears down the initiator's call for everyone in it: members of the room and
// anyone still ringing on it. Call rooms are deleted outright.
func (h *Hub) endCall(handle string) {
	p, ok := h.store.People.Get(handle)
	if !ok {
		return
	}

	roomID := p.RoomID
	if p.Status != state.StatusAvailable {
		roomID = p.CallRoomID
	}
	if roomID == "" {
		return
	}

	affected := h.store.Rooms.Members(roomID)
	for _, ringing := range h.store.People.RingingOn(roomID) {
		if !slices.Contains(affected, ringing) {
			affected = append(affected, ringing)
		}
	}

	h.emitAll(affected, EventCallEnded, CallEndedPayload{EndedBy: p.Username, RoomID: roomID})

	for _, a := range affected {
		ap, _ := h.store.People.Get(a)
		if ap.CallRoomID == roomID {
			h.store.People.Reset(a)
		}
		if ap.RoomID == roomID {
			h.store.Rooms.Leave(a, roomID)
			h.store.People.SetRoom(a, "")
		}
	}

	if randx.IsCallRoom(roomID) {
		h.store.Rooms.Delete(roomID)
		h.record(calllog.KindEnded, roomID, p.Username, "", "")
	}

	h.logger.Info().
		Str("room_id", roomID).
		Str("ended_by", p.Username).
		Int("participants", len(affected)).
		Msg("Call ended.")
}

// clearRinging resets everyone ringing on roomID who is not a member of it, except skip,
// and tells each of them the call is over. It returns how many were reset.
func (h *Hub) clearRinging(roomID, endedBy, skip string) int {
	cleared := 0

	for _, handle := range h.store.People.RingingOn(roomID) {
		if handle == skip || h.store.Rooms.IsMember(handle, roomID) {
			continue
		}

		h.store.People.Reset(handle)
		h.emit(handle, EventCallEnded, CallEndedPayload{EndedBy: endedBy, RoomID: roomID})
		cleared++
	}

	return cleared
}

func (h *Hub) handleToggleMedia(handle string, f Frame) {
	var req ToggleMediaRequest
	if err := decodeData(f, &req); err != nil {
		h.fail(handle, err)
		return
	}

	p, ok := h.store.People.Get(handle)
	if !ok || p.RoomID == "" {
		return
	}

	others := slices.DeleteFunc(h.store.Rooms.Members(p.RoomID), func(member string) bool {
		return member == handle
	})

	h.emitAll(others, EventMediaToggled, MediaToggledPayload{
		SocketID:  handle,
		Username:  p.Username,
		MediaType: req.MediaType,
		Enabled:   req.Enabled,
	})
}
