package state

import (
	"fmt"
	"slices"
)

// Store bundles the four registries owned by the hub.
type Store struct {
	Conns  *Connections
	Names  *Identities
	Rooms  *Rooms
	People *Participants
}

// NewStore returns an empty store with the identity registry wired to the connection registry.
func NewStore() *Store {
	conns := NewConnections()
	return &Store{
		Conns:  conns,
		Names:  NewIdentities(conns),
		Rooms:  NewRooms(),
		People: NewParticipants(),
	}
}

// CheckInvariants verifies the cross-registry invariants and returns the first violation:
//   - every room's members are exactly the participants recording that room,
//   - a participant that is not available refers to a call room,
//   - every participant belongs to a live connection,
//   - every live name resolves to a connection whose participant carries that name.
func (s *Store) CheckInvariants() error {
	for _, roomID := range s.Rooms.IDs() {
		members := slices.Clone(s.Rooms.Members(roomID))
		slices.Sort(members)
		recorded := s.People.InRoom(roomID)
		if !slices.Equal(members, recorded) {
			return fmt.Errorf("room %s: members %v, participants recording it %v", roomID, members, recorded)
		}
	}

	for _, handle := range s.People.Handles() {
		p, _ := s.People.Get(handle)

		if p.RoomID != "" && !s.Rooms.IsMember(handle, p.RoomID) {
			return fmt.Errorf("participant %s records room %s but is not a member", handle, p.RoomID)
		}
		if p.Status != StatusAvailable && p.CallRoomID == "" {
			return fmt.Errorf("participant %s is %s without a call room", handle, p.Status)
		}
		if !s.Conns.Alive(handle) {
			return fmt.Errorf("participant %s has no live connection", handle)
		}
	}

	for name, owner := range s.Names.owners {
		if !s.Conns.Alive(owner) {
			continue
		}
		p, ok := s.People.Get(owner)
		if !ok || p.Username != name {
			return fmt.Errorf("name %s resolves to %s whose participant is %q", name, owner, p.Username)
		}
	}

	return nil
}
