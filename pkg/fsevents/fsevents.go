// Package fsevents provides a narrow, handle-oriented abstraction over the
// OS change-notification facility. A Source registers watches on individual
// paths and delivers raw events tagged with the handle of the watch that
// produced them. Two backends are provided: a raw inotify source on Linux
// and an fsnotify adapter everywhere else.
package fsevents

import "errors"

// ErrSourceClosed is returned when a Source is used after Close.
var ErrSourceClosed = errors.New("event source closed")

// Op is a bitmask of event kinds, used both as the registration mask of a
// watch and as the kind of a delivered event.
type Op uint32

const (
	Create Op = 1 << iota
	Modify
	Delete
)

// Has reports whether o contains all bits of h.
func (o Op) Has(h Op) bool { return o&h == h }

func (o Op) String() string {
	switch {
	case o.Has(Create):
		return "create"
	case o.Has(Modify):
		return "modify"
	case o.Has(Delete):
		return "delete"
	default:
		return "unknown"
	}
}

// Handle identifies a live watch registration. No two live registrations on
// the same Source share a handle.
type Handle int

// Event is one raw notification. Name is the child path component relative
// to the watched directory; it is empty when the event is about the watched
// path itself.
type Event struct {
	Handle Handle
	Op     Op
	IsDir  bool
	Name   string
}

// Source is a connection to the OS change-notification facility.
type Source interface {
	// AddWatch registers a watch for path with the given event mask and
	// returns its handle.
	AddWatch(path string, mask Op) (Handle, error)

	// ReadBatch blocks until at least one event is available and returns
	// the batch delivered by the OS in a single read.
	ReadBatch() ([]Event, error)

	// Close tears down the connection and invalidates all watches.
	Close() error
}
