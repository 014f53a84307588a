/*
Package state holds the registries behind the signaling hub: live connections,
display-name bindings, room membership, and per-participant call state.

None of the registries lock. They are owned by the hub's event loop, which is the
only goroutine allowed to call them, so every handler sees one coherent snapshot.
*/
package state

import (
	"sort"
	"time"
)

// Sink receives encoded outbound frames for one connection.
type Sink interface {
	// Deliver enqueues frame without blocking and reports whether it was accepted.
	Deliver(frame []byte) bool

	// Close tells the transport no further frames will be delivered.
	Close()
}

// Connection is one live client link.
type Connection struct {
	Handle      string
	SessionID   string
	ConnectedAt time.Time

	sink Sink
}

// Connections maps connection handles to live links.
type Connections struct {
	conns map[string]*Connection
}

// NewConnections returns an empty connection registry.
func NewConnections() *Connections {
	return &Connections{conns: make(map[string]*Connection)}
}

// Add registers a live link. A handle that is already registered is replaced.
func (c *Connections) Add(handle, sessionID string, sink Sink, now time.Time) Connection {
	conn := &Connection{
		Handle:      handle,
		SessionID:   sessionID,
		ConnectedAt: now,
		sink:        sink,
	}
	c.conns[handle] = conn
	return *conn
}

// Remove unregisters handle and returns the removed connection.
// Removing an unknown handle is a no-op.
func (c *Connections) Remove(handle string) (Connection, bool) {
	conn, ok := c.conns[handle]
	if !ok {
		return Connection{}, false
	}
	delete(c.conns, handle)
	return *conn, true
}

// Close unregisters handle and closes its sink. It reports whether handle was registered.
func (c *Connections) Close(handle string) bool {
	conn, ok := c.conns[handle]
	if !ok {
		return false
	}
	delete(c.conns, handle)
	if conn.sink != nil {
		conn.sink.Close()
	}
	return true
}

// Get returns the connection for handle.
func (c *Connections) Get(handle string) (Connection, bool) {
	conn, ok := c.conns[handle]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// Alive reports whether handle is a live connection.
func (c *Connections) Alive(handle string) bool {
	_, ok := c.conns[handle]
	return ok
}

// Send delivers frame to handle. Unknown handles and full queues drop the frame silently.
func (c *Connections) Send(handle string, frame []byte) bool {
	conn, ok := c.conns[handle]
	if !ok || conn.sink == nil {
		return false
	}
	return conn.sink.Deliver(frame)
}

// SessionLive reports whether any live connection uses sessionID.
func (c *Connections) SessionLive(sessionID string) bool {
	for _, conn := range c.conns {
		if conn.SessionID == sessionID {
			return true
		}
	}
	return false
}

// Handles returns all live handles in sorted order.
func (c *Connections) Handles() []string {
	handles := make([]string, 0, len(c.conns))
	for h := range c.conns {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// CloseAll closes every sink and empties the registry.
func (c *Connections) CloseAll() {
	for handle, conn := range c.conns {
		if conn.sink != nil {
			conn.sink.Close()
		}
		delete(c.conns, handle)
	}
}

// Len returns the number of live connections.
func (c *Connections) Len() int {
	return len(c.conns)
}
