package state

import (
	"sort"

	"signalhub/internal/pkg/randx"
)

type room struct {
	// members maps handle to join order.
	members map[string]uint64
}

// Rooms maps room ids to their member handles.
// Empty rooms are deleted as soon as their last member leaves.
type Rooms struct {
	rooms map[string]*room
	seq   uint64
}

// NewRooms returns an empty room registry.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*room)}
}

// Join creates roomID if needed and adds handle. Joining twice keeps the original position.
func (r *Rooms) Join(handle, roomID string) {
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{members: make(map[string]uint64)}
		r.rooms[roomID] = rm
	}

	if _, member := rm.members[handle]; member {
		return
	}

	r.seq++
	rm.members[handle] = r.seq
}

// Leave removes handle from roomID and deletes the room once empty.
// It reports whether handle was a member.
func (r *Rooms) Leave(handle, roomID string) bool {
	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	if _, member := rm.members[handle]; !member {
		return false
	}

	delete(rm.members, handle)
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
	}

	return true
}

// Delete removes roomID regardless of its members and returns the handles it held.
func (r *Rooms) Delete(roomID string) []string {
	members := r.Members(roomID)
	delete(r.rooms, roomID)
	return members
}

// Members returns a snapshot of roomID's members in join order.
func (r *Rooms) Members(roomID string) []string {
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	handles := make([]string, 0, len(rm.members))
	for h := range rm.members {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(a, b int) bool {
		return rm.members[handles[a]] < rm.members[handles[b]]
	})

	return handles
}

// IsMember reports whether handle belongs to roomID.
func (r *Rooms) IsMember(handle, roomID string) bool {
	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, member := rm.members[handle]
	return member
}

// Exists reports whether roomID currently exists.
func (r *Rooms) Exists(roomID string) bool {
	_, ok := r.rooms[roomID]
	return ok
}

// IDs returns all room ids in sorted order.
func (r *Rooms) IDs() []string {
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of rooms and how many of them are call rooms.
func (r *Rooms) Count() (total, calls int) {
	for id := range r.rooms {
		if randx.IsCallRoom(id) {
			calls++
		}
	}
	return len(r.rooms), calls
}
