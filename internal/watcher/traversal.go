package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pathwatch/pkg/fsevents"
)

// registerTree walks the directory tree rooted at root, registers a watch
// for every directory reachable from it (the root included) and records the
// handle-to-path pair of each registration. Hidden entries are filtered
// before descent, so their whole subtree is excluded. Symbolic links are
// followed; non-directories are skipped. Any read or registration failure
// aborts the walk with the underlying error.
func registerTree(source fsevents.Source, root string, mask fsevents.Op, paths map[fsevents.Handle]string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil
	}

	handle, err := source.AddWatch(root, mask)
	if err != nil {
		return err
	}
	paths[handle] = root

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", root, err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), hiddenPrefix) {
			continue
		}
		// os.Stat at the top of the recursive call follows symlinks, so
		// linked directory trees are covered too.
		if err := registerTree(source, filepath.Join(root, entry.Name()), mask, paths); err != nil {
			return err
		}
	}
	return nil
}
