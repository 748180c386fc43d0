// Package controller translates configuration into IndexingTree mutations.
// It owns no state of its own beyond the last-applied snapshot; every
// actual mutation happens on the tree it's given, so it stays safe to
// re-Apply on every config reload.
package controller

import (
	"fmt"
	"sync"

	"github.com/localsearch/miner/internal/config"
	"github.com/localsearch/miner/internal/tree"
)

// Controller diffs a config.Config against the live tree.Tree and converges
// the tree's roots and filters to match.
type Controller struct {
	tree   *tree.Tree
	mounts *MountObserver

	mu            sync.Mutex
	allowlist     []string
	lastRecursive map[string]struct{}
	lastSingle    map[string]struct{}
}

// New creates a Controller bound to t. mounts may be nil if removable-media
// observation isn't wired up.
func New(t *tree.Tree, mounts *MountObserver) *Controller {
	return &Controller{tree: t, mounts: mounts}
}

// Apply diffs cfg against the tree's current roots and filters and
// converges the tree to match. Safe to call repeatedly (e.g. on SIGHUP or
// a watched config file reload); unchanged roots are left alone, while the
// three filter lists are cleared and rebuilt on every call.
func (c *Controller) Apply(cfg *config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("controller: invalid config: %w", err)
	}

	c.reconcileRootsLocked(cfg)
	c.reconcileFiltersLocked(cfg)
	c.allowlist = append([]string(nil), cfg.TextAllowlist...)

	if c.mounts != nil {
		c.mounts.SetEnabled(cfg.IndexRemovableDevices)
	}
	return nil
}

// TextAllowlist returns the mimetype/extension allowlist from the last
// applied config. Consumed at the extractor hand-off boundary.
func (c *Controller) TextAllowlist() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.allowlist...)
}

func (c *Controller) reconcileRootsLocked(cfg *config.Config) {
	monitorFlag := tree.Flag(0)
	if cfg.EnableMonitors {
		monitorFlag = tree.Monitor
	}

	wantRecursive := make(map[string]struct{}, len(cfg.IndexRecursiveDirectories))
	for _, r := range cfg.IndexRecursiveDirectories {
		wantRecursive[r.Path] = struct{}{}
	}
	wantSingle := make(map[string]struct{}, len(cfg.IndexSingleDirectories))
	for _, r := range cfg.IndexSingleDirectories {
		wantSingle[r.Path] = struct{}{}
	}

	// Remove roots this controller previously added that are no longer
	// configured. Roots carrying IsVolume belong to the MountObserver, not
	// config, and are left alone here.
	for _, root := range c.tree.ListRoots() {
		if root.Flags.Has(tree.IsVolume) {
			continue
		}
		_, stillRecursive := wantRecursive[root.Path]
		_, stillSingle := wantSingle[root.Path]
		if !stillRecursive && !stillSingle {
			if _, owned := c.lastRecursive[root.Path]; owned {
				c.tree.Remove(root.Path)
				continue
			}
			if _, owned := c.lastSingle[root.Path]; owned {
				c.tree.Remove(root.Path)
			}
		}
	}

	for path := range wantRecursive {
		if !c.tree.FileIsRoot(path) {
			c.tree.Add(path, tree.Recurse|monitorFlag)
		}
	}
	for path := range wantSingle {
		if !c.tree.FileIsRoot(path) {
			c.tree.Add(path, monitorFlag)
		}
	}

	c.lastRecursive = wantRecursive
	c.lastSingle = wantSingle
}

func (c *Controller) reconcileFiltersLocked(cfg *config.Config) {
	c.tree.ClearFilters(tree.FilterFile)
	for _, pattern := range cfg.IgnoredFiles {
		c.tree.AddFilter(tree.FilterFile, pattern)
	}

	c.tree.ClearFilters(tree.FilterDirectory)
	for _, pattern := range cfg.IgnoredDirectories {
		c.tree.AddFilter(tree.FilterDirectory, pattern)
	}

	c.tree.ClearFilters(tree.FilterParentDirectory)
	for _, name := range cfg.IgnoredDirectoriesWithContent {
		c.tree.AddFilter(tree.FilterParentDirectory, name)
	}
}
