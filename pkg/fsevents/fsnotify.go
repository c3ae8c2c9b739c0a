package fsevents

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type fsnotifyWatch struct {
	handle Handle
	mask   Op
}

// fsnotifySource adapts fsnotify to the handle-oriented Source contract on
// platforms without inotify. Handles are synthesized per added path and
// events are correlated back to them through the path of the watch that
// covers them.
type fsnotifySource struct {
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	watches map[string]fsnotifyWatch
	next    Handle
	closed  bool
}

// NewFsnotify opens an fsnotify-backed event source.
func NewFsnotify() (Source, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fsnotifySource{
		watcher: watcher,
		watches: make(map[string]fsnotifyWatch),
	}, nil
}

func (s *fsnotifySource) AddWatch(path string, mask Op) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSourceClosed
	}

	path = filepath.Clean(path)
	if watch, ok := s.watches[path]; ok {
		return watch.handle, nil
	}
	if err := s.watcher.Add(path); err != nil {
		return 0, fmt.Errorf("fsnotify add watch %s: %w", path, err)
	}

	s.next++
	s.watches[path] = fsnotifyWatch{handle: s.next, mask: mask}
	return s.next, nil
}

func (s *fsnotifySource) ReadBatch() ([]Event, error) {
	for {
		select {
		case raw, ok := <-s.watcher.Events:
			if !ok {
				return nil, ErrSourceClosed
			}
			event, ok := s.convert(raw)
			if !ok {
				continue
			}
			// fsnotify delivers one event at a time, so a batch is always
			// a single element.
			return []Event{event}, nil

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil, ErrSourceClosed
			}
			return nil, err
		}
	}
}

func (s *fsnotifySource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.watcher.Close()
}

// convert translates a raw fsnotify event, dropping kinds outside the
// originating watch's mask (fsnotify has no kernel-side mask filtering).
func (s *fsnotifySource) convert(raw fsnotify.Event) (Event, bool) {
	op := opFromFsnotify(raw.Op)
	if op == 0 {
		return Event{}, false
	}

	path := filepath.Clean(raw.Name)
	name := ""

	s.mu.Lock()
	watch, ok := s.watches[path]
	if !ok {
		watch, ok = s.watches[filepath.Dir(path)]
		name = filepath.Base(path)
	}
	s.mu.Unlock()

	if !ok || watch.mask&op == 0 {
		return Event{}, false
	}

	// Best effort: the target of a delete cannot be stat'ed anymore.
	isDir := false
	if !op.Has(Delete) {
		if info, err := os.Stat(raw.Name); err == nil {
			isDir = info.IsDir()
		}
	}

	return Event{Handle: watch.handle, Op: op, IsDir: isDir, Name: name}, true
}

func opFromFsnotify(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return Create
	case op.Has(fsnotify.Write):
		return Modify
	case op.Has(fsnotify.Remove):
		return Delete
	default:
		return 0
	}
}
