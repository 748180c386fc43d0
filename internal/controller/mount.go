package controller

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/localsearch/miner/internal/tree"
)

// mountPoint is one parsed row of /proc/mounts.
type mountPoint struct {
	device string
	path   string
}

// MountObserver polls the live mount table and reports removable-media
// mounts and unmounts to a Tree, tagging added roots
// Recurse|Preserve|Priority|IsVolume. IS_VOLUME is advisory on the tree
// side; this observer is the only thing that ever sets or clears it, so
// the tree never has to guess at live removability itself.
//
// There is no library in the example pack for reading the mount table or
// classifying removable storage, so this polls /proc/mounts and
// /sys/block/*/removable directly; both are stable, documented Linux
// interfaces, and pulling in a generic cross-platform disk-inventory
// library for two file reads would be a heavier dependency than the
// problem warrants.
type MountObserver struct {
	tree     *tree.Tree
	interval time.Duration
	known    map[string]mountPoint // path -> mountPoint, removable mounts we added

	// readMounts and isRemovable are swapped out in tests; the zero value
	// wires up the real /proc and /sys readers.
	readMounts  func() ([]mountPoint, error)
	isRemovable func(device string) bool

	mu      sync.Mutex
	enabled bool
}

// NewMountObserver creates a MountObserver polling every interval. It does
// nothing until SetEnabled(true) is called, mirroring the
// index-removable-devices config key being off by default.
func NewMountObserver(t *tree.Tree, interval time.Duration) *MountObserver {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MountObserver{
		tree:        t,
		interval:    interval,
		known:       make(map[string]mountPoint),
		readMounts:  func() ([]mountPoint, error) { return readProcMounts("/proc/mounts") },
		isRemovable: isRemovableDevice,
	}
}

// SetEnabled turns removable-device observation on or off, tracking the
// index-removable-devices config key. Disabling does not tear down roots
// already added; re-enabling resumes polling from the current mount state.
func (m *MountObserver) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// Run polls until ctx is cancelled.
func (m *MountObserver) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *MountObserver) poll() {
	m.mu.Lock()
	enabled := m.enabled
	m.mu.Unlock()
	if !enabled {
		return
	}

	mounts, err := m.readMounts()
	if err != nil {
		return
	}

	current := make(map[string]mountPoint, len(mounts))
	for _, mp := range mounts {
		if !m.isRemovable(mp.device) {
			continue
		}
		current[mp.path] = mp
	}

	for path := range m.known {
		if _, stillMounted := current[path]; !stillMounted {
			m.tree.Remove(path)
			delete(m.known, path)
		}
	}

	for path, mp := range current {
		if _, known := m.known[path]; known {
			continue
		}
		m.tree.Add(path, tree.Recurse|tree.Preserve|tree.Priority|tree.IsVolume)
		m.known[path] = mp
	}
}

// readProcMounts parses /proc/mounts-format lines: "device mountpoint fstype
// options dump pass".
func readProcMounts(path string) ([]mountPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mounts []mountPoint
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		mounts = append(mounts, mountPoint{device: fields[0], path: fields[1]})
	}
	return mounts, scanner.Err()
}

// isRemovableDevice reports whether device (e.g. "/dev/sdb1") lives on
// removable media, per /sys/block/<base>/removable. Non-device sources
// (tmpfs, overlay, proc, and similar pseudo-filesystems) are never
// removable.
func isRemovableDevice(device string) bool {
	if !strings.HasPrefix(device, "/dev/") {
		return false
	}
	base := strings.TrimPrefix(device, "/dev/")
	base = stripPartitionSuffix(base)

	data, err := os.ReadFile("/sys/block/" + base + "/removable")
	if err != nil {
		return false
	}
	flag, err := strconv.Atoi(strings.TrimSpace(string(data)))
	return err == nil && flag == 1
}

// stripPartitionSuffix turns "sdb1" into "sdb" so the parent block device's
// removable flag can be looked up (partitions don't carry their own).
func stripPartitionSuffix(dev string) string {
	i := len(dev)
	for i > 0 && dev[i-1] >= '0' && dev[i-1] <= '9' {
		i--
	}
	if i == 0 || i == len(dev) {
		return dev
	}
	return dev[:i]
}
