package state

import (
	"regexp"
	"time"
	"unicode/utf8"

	"signalhub/internal/pkg/errs"
)

// MaxUsernameLength is the longest accepted display name, in characters.
const MaxUsernameLength = 20

var usernameCharset = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateUsername checks name and returns an error naming the first rule it breaks.
func ValidateUsername(name string) *errs.CustomError {
	if name == "" {
		return errs.NewError(errs.ErrUsernameEmpty)
	}

	if utf8.RuneCountInString(name) > MaxUsernameLength {
		return errs.NewError(errs.ErrUsernameTooLong, MaxUsernameLength)
	}

	if !usernameCharset.MatchString(name) {
		return errs.NewError(errs.ErrUsernameCharset)
	}

	return nil
}

type sessionEntry struct {
	name string
	seen time.Time
}

// Identities binds display names to live connections and sessions to display names.
type Identities struct {
	conns *Connections

	// owners maps a display name to the handle holding it. Entries may be stale.
	owners map[string]string

	// names is the reverse of owners for live bindings.
	names map[string]string

	sessions map[string]sessionEntry

	now func() time.Time
}

// NewIdentities returns an identity registry that checks liveness against conns.
func NewIdentities(conns *Connections) *Identities {
	return &Identities{
		conns:    conns,
		owners:   make(map[string]string),
		names:    make(map[string]string),
		sessions: make(map[string]sessionEntry),
		now:      time.Now,
	}
}

// Bind validates name and binds it to handle and sessionID.
// A name held by another live connection fails with ErrNameInUse; a name held by a
// dead connection is evicted first. Binding a new name releases the handle's old one.
func (i *Identities) Bind(handle, sessionID, name string) error {
	if err := ValidateUsername(name); err != nil {
		return err
	}

	if owner, ok := i.owners[name]; ok && owner != handle {
		if i.conns.Alive(owner) {
			return errs.NewError(errs.ErrNameInUse)
		}
		i.evict(name, owner)
	}

	if old, ok := i.names[handle]; ok && old != name {
		i.evict(old, handle)
	}

	i.owners[name] = handle
	i.names[handle] = name
	i.sessions[sessionID] = sessionEntry{name: name, seen: i.now()}

	return nil
}

// Username returns the display name last bound under sessionID.
func (i *Identities) Username(sessionID string) (string, bool) {
	entry, ok := i.sessions[sessionID]
	if !ok {
		return "", false
	}
	return entry.name, true
}

// Resolve returns the live handle holding name. A binding whose connection is gone
// is evicted and reported as not found.
func (i *Identities) Resolve(name string) (string, bool) {
	owner, ok := i.owners[name]
	if !ok {
		return "", false
	}

	if !i.conns.Alive(owner) {
		i.evict(name, owner)
		return "", false
	}

	return owner, true
}

// NameOf returns the display name bound to handle.
func (i *Identities) NameOf(handle string) (string, bool) {
	name, ok := i.names[handle]
	return name, ok
}

// Release drops handle's binding. The name entry is removed only while it still points at
// handle, so a newer owner of the same name is never evicted. The session keeps its name
// for reconnect recovery.
func (i *Identities) Release(handle string) {
	name, ok := i.names[handle]
	if !ok {
		return
	}

	i.evict(name, handle)

	if conn, ok := i.conns.Get(handle); ok {
		if entry, ok := i.sessions[conn.SessionID]; ok {
			entry.seen = i.now()
			i.sessions[conn.SessionID] = entry
		}
	}
}

// PruneSessions forgets sessions last seen before cutoff unless live reports them in use.
func (i *Identities) PruneSessions(cutoff time.Time, live func(sessionID string) bool) int {
	pruned := 0
	for sid, entry := range i.sessions {
		if entry.seen.Before(cutoff) && !live(sid) {
			delete(i.sessions, sid)
			pruned++
		}
	}
	return pruned
}

// Names returns the number of name bindings, including stale ones not yet evicted.
func (i *Identities) Names() int {
	return len(i.owners)
}

// Sessions returns the number of remembered sessions.
func (i *Identities) Sessions() int {
	return len(i.sessions)
}

func (i *Identities) evict(name, handle string) {
	if i.owners[name] == handle {
		delete(i.owners, name)
	}
	if i.names[handle] == name {
		delete(i.names, handle)
	}
}
