//go:build !linux

package fsevents

// New opens the platform default event source.
func New() (Source, error) {
	return NewFsnotify()
}
