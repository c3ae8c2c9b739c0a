//go:build linux

package fsevents

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// readBufferSize fits typical event batches. The kernel splits larger
// backlogs across successive reads; one read is one batch.
const readBufferSize = 4096

type inotifySource struct {
	fd  int
	buf [readBufferSize]byte

	mu     sync.Mutex
	closed bool
}

// NewInotify opens an inotify connection.
func NewInotify() (Source, error) {
	fd, err := unix.InotifyInit1(0)
	if err != nil {
		return nil, os.NewSyscallError("inotify_init1", err)
	}
	return &inotifySource{fd: fd}, nil
}

func (s *inotifySource) AddWatch(path string, mask Op) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSourceClosed
	}

	wd, err := unix.InotifyAddWatch(s.fd, path, inotifyMask(mask))
	if err != nil {
		return 0, fmt.Errorf("inotify add watch %s: %w", path, err)
	}
	return Handle(wd), nil
}

func (s *inotifySource) ReadBatch() ([]Event, error) {
	for {
		n, err := unix.Read(s.fd, s.buf[:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, os.NewSyscallError("read", err)
		}
		if n < unix.SizeofInotifyEvent {
			return nil, fmt.Errorf("inotify: short read (%d bytes)", n)
		}

		events := parseEvents(s.buf[:n])
		if len(events) > 0 {
			return events, nil
		}
	}
}

func (s *inotifySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Close(s.fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// parseEvents walks every whole inotify_event structure in buf. Names are
// NUL-padded by the kernel.
func parseEvents(buf []byte) []Event {
	var events []Event
	var offset uint32
	for offset <= uint32(len(buf)-unix.SizeofInotifyEvent) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameLen := raw.Len

		event := Event{
			Handle: Handle(raw.Wd),
			Op:     opFromInotify(raw.Mask),
			IsDir:  raw.Mask&unix.IN_ISDIR != 0,
		}
		if nameLen > 0 {
			name := (*[unix.PathMax]byte)(unsafe.Pointer(&buf[offset+unix.SizeofInotifyEvent]))
			event.Name = strings.TrimRight(string(name[0:nameLen]), "\x00")
		}
		events = append(events, event)

		offset += unix.SizeofInotifyEvent + nameLen
	}
	return events
}

func inotifyMask(mask Op) uint32 {
	var m uint32
	if mask.Has(Create) {
		m |= unix.IN_CREATE
	}
	if mask.Has(Modify) {
		m |= unix.IN_MODIFY
	}
	if mask.Has(Delete) {
		m |= unix.IN_DELETE
	}
	return m
}

func opFromInotify(mask uint32) Op {
	var op Op
	if mask&unix.IN_CREATE != 0 {
		op |= Create
	}
	if mask&unix.IN_MODIFY != 0 {
		op |= Modify
	}
	if mask&unix.IN_DELETE != 0 {
		op |= Delete
	}
	return op
}
