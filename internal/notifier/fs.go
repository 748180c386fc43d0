package notifier

import (
	"os"
	"time"
)

// DiskStat is the disk-side information the reconcile loop needs for one
// path, gathered via NOFOLLOW_SYMLINKS stat (os.Lstat never follows the
// final symlink component, matching lstat(2) semantics).
type DiskStat struct {
	IsDir     bool
	Mtime     time.Time
	Mountpoint bool
}

// FileSystem abstracts filesystem access so reconcile can be driven by a
// fake in tests instead of the real disk.
type FileSystem interface {
	Lstat(path string) (DiskStat, error)
	ReadDir(path string) ([]string, error)
}

// OSFileSystem is the real FileSystem, backed by the os package.
type OSFileSystem struct {
	// MountPoints, if set, reports whether a path is a separate mount point
	// (crawlDirectory won't recurse across one). A nil map means nothing is
	// ever treated as a mountpoint.
	MountPoints map[string]struct{}
}

func (fs OSFileSystem) Lstat(path string) (DiskStat, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return DiskStat{}, err
	}
	_, mount := fs.MountPoints[path]
	return DiskStat{IsDir: info.IsDir(), Mtime: info.ModTime(), Mountpoint: mount}, nil
}

func (fs OSFileSystem) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}
