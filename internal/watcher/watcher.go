// Package watcher implements change monitoring for a single file or a
// directory tree on top of a fsevents.Source. A directory watcher can either
// pre-register every subdirectory up front (Recursive) or watch the root
// only (Heuristic). With Recursive traversal the watcher maintains a registry
// of watch handles to paths and extends it as new subdirectories appear.
package watcher

import (
	"fmt"
	"log/slog"
	"strings"

	"pathwatch/pkg/fsevents"
)

// Kind selects which event-loop variant a Watcher runs.
type Kind int

const (
	File Kind = iota
	Directory
)

// Traversal selects how a directory watcher covers the tree. Consumed once
// at construction.
type Traversal int

const (
	// Recursive eagerly registers a watch for every non-hidden
	// subdirectory of the root.
	Recursive Traversal = iota
	// Heuristic registers the root path only.
	Heuristic
)

// Names starting with this marker are excluded from traversal and from
// dynamic registration.
const hiddenPrefix = "."

// Watcher owns one event-source connection and reports classified change
// events through an optionally attached logger. It is not safe for
// concurrent use; consecutive Watch calls must not overlap.
type Watcher struct {
	kind   Kind
	source fsevents.Source
	mask   fsevents.Op
	logger *slog.Logger

	// paths maps each live watch handle to the directory it covers.
	// Present only for Directory watchers with Recursive traversal. It
	// grows as new subdirectories are discovered and is never pruned, so
	// entries for deleted directories go stale.
	paths map[fsevents.Handle]string
}

// NewFileWatcher opens an event source and watches a single file for
// modification and deletion.
func NewFileWatcher(path string) (*Watcher, error) {
	source, err := fsevents.New()
	if err != nil {
		return nil, fmt.Errorf("open event source: %w", err)
	}
	watcher, err := NewFileWatcherWithSource(source, path)
	if err != nil {
		source.Close()
		return nil, err
	}
	return watcher, nil
}

// NewFileWatcherWithSource is NewFileWatcher over a caller-provided source.
// The caller keeps ownership of the source when construction fails.
func NewFileWatcherWithSource(source fsevents.Source, path string) (*Watcher, error) {
	mask := fsevents.Modify | fsevents.Delete
	if _, err := source.AddWatch(path, mask); err != nil {
		return nil, err
	}
	return &Watcher{kind: File, source: source, mask: mask}, nil
}

// NewDirWatcher opens an event source and watches a directory tree for
// creations, modifications and deletions, covering it per the traversal
// strategy. Any registration failure aborts construction; no partially
// built watcher is returned.
func NewDirWatcher(path string, traversal Traversal) (*Watcher, error) {
	source, err := fsevents.New()
	if err != nil {
		return nil, fmt.Errorf("open event source: %w", err)
	}
	watcher, err := NewDirWatcherWithSource(source, path, traversal)
	if err != nil {
		source.Close()
		return nil, err
	}
	return watcher, nil
}

// NewDirWatcherWithSource is NewDirWatcher over a caller-provided source.
// The caller keeps ownership of the source when construction fails.
func NewDirWatcherWithSource(source fsevents.Source, path string, traversal Traversal) (*Watcher, error) {
	mask := fsevents.Create | fsevents.Modify | fsevents.Delete

	var paths map[fsevents.Handle]string
	switch traversal {
	case Recursive:
		paths = make(map[fsevents.Handle]string)
		if err := registerTree(source, path, mask, paths); err != nil {
			return nil, err
		}
	default:
		if _, err := source.AddWatch(path, mask); err != nil {
			return nil, err
		}
	}

	return &Watcher{kind: Directory, source: source, mask: mask, paths: paths}, nil
}

// AttachLogger sets the sink for event reporting, replacing any prior
// logger. It takes effect for all subsequent events; a nil logger silences
// the watcher.
func (w *Watcher) AttachLogger(logger *slog.Logger) {
	w.logger = logger
}

// Kind reports whether the watcher covers a single file or a directory tree.
func (w *Watcher) Kind() Kind {
	return w.kind
}

// Watches reports how many handle-to-path registrations the watcher holds.
// Zero for file watchers and heuristic directory watchers.
func (w *Watcher) Watches() int {
	return len(w.paths)
}

// Close releases the underlying event-source connection, invalidating all
// watches.
func (w *Watcher) Close() error {
	return w.source.Close()
}

// Watch blocks until the next change event arrives, reports it, and returns.
// The boolean is always true on success; it signals that exactly one event
// was handled. Continuous monitoring is achieved by calling Watch in a loop.
// Any event-source failure, including a failed registration of a newly
// created subdirectory, is terminal for that call.
func (w *Watcher) Watch() (bool, error) {
	if w.kind == File {
		return w.fileEventLoop()
	}
	return w.dirEventLoop()
}

func (w *Watcher) dirEventLoop() (bool, error) {
	for {
		events, err := w.source.ReadBatch()
		if err != nil {
			return false, err
		}

		// Only the first event of a batch is handled; the remainder is
		// dropped. Callers loop over Watch to keep observing.
		for _, event := range events {
			switch {
			case event.Op.Has(fsevents.Create):
				if event.IsDir {
					w.logInfo("directory created", "name", event.Name)
					if err := w.watchNewDir(event); err != nil {
						return false, err
					}
				} else {
					w.logInfo("file created", "name", event.Name)
				}
			case event.Op.Has(fsevents.Delete):
				if event.IsDir {
					w.logInfo("directory deleted", "name", event.Name)
				} else {
					w.logInfo("file deleted", "name", event.Name)
				}
			case event.Op.Has(fsevents.Modify):
				if event.IsDir {
					w.logInfo("directory modified", "name", event.Name)
				} else {
					w.logInfo("file modified", "name", event.Name)
				}
			}
			return true, nil
		}
	}
}

func (w *Watcher) fileEventLoop() (bool, error) {
	for {
		events, err := w.source.ReadBatch()
		if err != nil {
			return false, err
		}

		for _, event := range events {
			if event.Op.Has(fsevents.Modify) {
				w.logInfo("file modified")
			} else {
				w.logInfo("unexpected event", "name", event.Name)
			}
			return true, nil
		}
	}
}

// watchNewDir extends the registry with a directory that appeared at
// runtime. No-op without a registry, for hidden names, and for handles the
// registry does not know.
func (w *Watcher) watchNewDir(event fsevents.Event) error {
	if w.paths == nil || event.Name == "" || strings.HasPrefix(event.Name, hiddenPrefix) {
		return nil
	}
	parent, ok := w.paths[event.Handle]
	if !ok {
		return nil
	}

	newPath := parent + "/" + event.Name
	w.logInfo("watching new directory", "path", newPath)

	handle, err := w.source.AddWatch(newPath, w.mask)
	if err != nil {
		return err
	}
	w.paths[handle] = newPath
	return nil
}

func (w *Watcher) logInfo(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}
