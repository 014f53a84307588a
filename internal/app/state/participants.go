package state

import (
	"sort"
	"time"
)

// Status is a participant's position in the call state machine.
type Status string

const (
	StatusAvailable Status = "available"
	StatusRinging   Status = "ringing"
	StatusInCall    Status = "in-call"
)

// Participant is the per-connection presence record.
//
// RoomID is the room the connection is a member of. CallRoomID is the call room its
// ringing or in-call status refers to; while ringing the call room may not have been
// joined yet, so the two are tracked apart.
type Participant struct {
	SocketID     string
	Username     string
	RoomID       string
	CallRoomID   string
	Status       Status
	RingingSince time.Time
}

// InCall reports whether the participant is in an established call.
func (p Participant) InCall() bool {
	return p.Status == StatusInCall
}

// Participants maps connection handles to participant records.
type Participants struct {
	byHandle map[string]*Participant
}

// NewParticipants returns an empty participant registry.
func NewParticipants() *Participants {
	return &Participants{byHandle: make(map[string]*Participant)}
}

// Get returns a copy of handle's record.
func (p *Participants) Get(handle string) (Participant, bool) {
	rec, ok := p.byHandle[handle]
	if !ok {
		return Participant{}, false
	}
	return *rec, true
}

// Upsert creates handle's record as available, or renames an existing one.
func (p *Participants) Upsert(handle, username string) Participant {
	rec, ok := p.byHandle[handle]
	if !ok {
		rec = &Participant{SocketID: handle, Status: StatusAvailable}
		p.byHandle[handle] = rec
	}
	rec.Username = username
	return *rec
}

// SetRoom records the room handle is a member of; empty clears it.
func (p *Participants) SetRoom(handle, roomID string) {
	if rec, ok := p.byHandle[handle]; ok {
		rec.RoomID = roomID
	}
}

// Ring marks handle as ringing on callRoomID.
func (p *Participants) Ring(handle, callRoomID string, now time.Time) {
	if rec, ok := p.byHandle[handle]; ok {
		rec.Status = StatusRinging
		rec.CallRoomID = callRoomID
		rec.RingingSince = now
	}
}

// Connect marks handle as in a call on callRoomID.
func (p *Participants) Connect(handle, callRoomID string) {
	if rec, ok := p.byHandle[handle]; ok {
		rec.Status = StatusInCall
		rec.CallRoomID = callRoomID
		rec.RingingSince = time.Time{}
	}
}

// Reset returns handle to available and forgets its call room.
func (p *Participants) Reset(handle string) {
	if rec, ok := p.byHandle[handle]; ok {
		rec.Status = StatusAvailable
		rec.CallRoomID = ""
		rec.RingingSince = time.Time{}
	}
}

// Remove deletes handle's record.
func (p *Participants) Remove(handle string) {
	delete(p.byHandle, handle)
}

// RingingOn returns the handles ringing on callRoomID, sorted.
func (p *Participants) RingingOn(callRoomID string) []string {
	var handles []string
	for h, rec := range p.byHandle {
		if rec.Status == StatusRinging && rec.CallRoomID == callRoomID {
			handles = append(handles, h)
		}
	}
	sort.Strings(handles)
	return handles
}

// RingingBefore returns the call rooms with a participant ringing since before cutoff.
func (p *Participants) RingingBefore(cutoff time.Time) []string {
	seen := make(map[string]struct{})
	var rooms []string
	for _, rec := range p.byHandle {
		if rec.Status != StatusRinging || !rec.RingingSince.Before(cutoff) {
			continue
		}
		if _, dup := seen[rec.CallRoomID]; dup {
			continue
		}
		seen[rec.CallRoomID] = struct{}{}
		rooms = append(rooms, rec.CallRoomID)
	}
	sort.Strings(rooms)
	return rooms
}

// InRoom returns the handles whose recorded room is roomID, sorted.
func (p *Participants) InRoom(roomID string) []string {
	var handles []string
	for h, rec := range p.byHandle {
		if rec.RoomID == roomID {
			handles = append(handles, h)
		}
	}
	sort.Strings(handles)
	return handles
}

// Handles returns every handle with a record, sorted.
func (p *Participants) Handles() []string {
	handles := make([]string, 0, len(p.byHandle))
	for h := range p.byHandle {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// Len returns the number of participant records.
func (p *Participants) Len() int {
	return len(p.byHandle)
}
