// Package nav owns the current directory location and exposes a sorted,
// paginated view over its entries under a strict entry-count budget.
package nav

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kk-code-lab/redit/internal/errs"
	"github.com/kk-code-lab/redit/internal/fs"
	"github.com/kk-code-lab/redit/internal/persist"
)

// SortMode selects the comparator field for file entries.
type SortMode = persist.SortMode

const (
	SortByName = persist.SortByName
	SortByDate = persist.SortByDate
	SortBySize = persist.SortBySize
)

// DefaultWindowSize is how many entries one page holds unless configured
// otherwise.
const DefaultWindowSize = 32

// Options configure a Navigator.
type Options struct {
	// MaxEntries is the full-sort budget: listings with more entries
	// fall back to windowed-raw mode. Zero means no budget.
	MaxEntries int
	// WindowSize is the page size of the view. Defaults to
	// DefaultWindowSize.
	WindowSize int
	// ShowHidden lists hidden entries too.
	ShowHidden bool
	// Store persists {relative, sort, ascending} across runs. Optional.
	Store persist.Store
	// Logger receives soft failures. Optional.
	Logger *zap.Logger
}

// Navigator is a caller-owned browsing session. It is not safe for
// concurrent use; drive it from one control thread.
type Navigator struct {
	root       string
	relative   string
	maxEntries int
	windowSize int
	showHidden bool
	store      persist.Store
	logger     *zap.Logger

	sortMode  SortMode
	ascending bool

	sortEnabled  bool
	totalEntries int
	windowStart  int
	viewSize     int
	entries      []fs.Entry

	restoreErr error
}

// New validates root, restores any persisted location and sort
// preference (best effort), and performs the initial refresh.
func New(root string, opts Options) (*Navigator, error) {
	if root == "" || !filepath.IsAbs(root) {
		return nil, fmt.Errorf("root %q: %w", root, errs.ErrInvalidArgument)
	}
	isDir, err := fs.IsDirectory(root)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, fmt.Errorf("root %s is not a directory: %w", root, errs.ErrNotFound)
	}

	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Navigator{
		root:       filepath.Clean(root),
		maxEntries: opts.MaxEntries,
		windowSize: windowSize,
		showHidden: opts.ShowHidden,
		viewSize:   windowSize,
		store:      opts.Store,
		logger:     logger,
		sortMode:   SortByName,
		ascending:  true,
	}

	n.restore()

	if err := n.Refresh(); err != nil {
		if n.relative == "" {
			return nil, err
		}
		// The restored location vanished since it was saved; fall back
		// to the root rather than failing init.
		n.logger.Warn("restored location unreadable, falling back to root",
			zap.String("relative", n.relative), zap.Error(err))
		n.relative = ""
		if err := n.Refresh(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// restore loads the persisted navigator state, falling back to the root
// with default sort on any integrity or validity failure. The failure is
// remembered as a soft warning, never surfaced as an init error.
func (n *Navigator) restore() {
	if n.store == nil {
		return
	}
	blob, err := n.store.GetBlob(persist.Namespace, persist.Key)
	if err != nil {
		return
	}
	state, err := persist.DecodeNavState(blob)
	if err != nil {
		n.restoreErr = err
		n.logger.Warn("persisted state rejected", zap.Error(err))
		return
	}
	if state.Relative != "" {
		isDir, err := fs.IsDirectory(filepath.Join(n.root, state.Relative))
		if err != nil || !isDir {
			n.restoreErr = fmt.Errorf("restored path %q: %w", state.Relative, errs.ErrNotFound)
			n.logger.Warn("persisted location missing", zap.String("relative", state.Relative))
			return
		}
	}
	n.relative = state.Relative
	n.sortMode = state.Sort
	n.ascending = state.Ascending
}

// RestoreWarning returns the soft failure of the last state restore, if
// any.
func (n *Navigator) RestoreWarning() error { return n.restoreErr }

// Root returns the fixed navigator root.
func (n *Navigator) Root() string { return n.root }

// Relative returns the validated path below the root, "" at the root.
func (n *Navigator) Relative() string { return n.relative }

// Current returns the browsed directory, always derived from
// root+relative.
func (n *Navigator) Current() string {
	if n.relative == "" {
		return n.root
	}
	return filepath.Join(n.root, n.relative)
}

// SortEnabled reports full-sort mode; false means windowed-raw mode.
func (n *Navigator) SortEnabled() bool { return n.sortEnabled }

// TotalEntries returns the entry count of the current directory.
func (n *Navigator) TotalEntries() int { return n.totalEntries }

// WindowStart returns the view's first entry index.
func (n *Navigator) WindowStart() int { return n.windowStart }

// Sort returns the active mode and direction.
func (n *Navigator) Sort() (SortMode, bool) { return n.sortMode, n.ascending }

// Refresh re-reads the current directory. On failure no partial listing
// is ever visible: the entry count is zero until a refresh succeeds.
func (n *Navigator) Refresh() error {
	dir := n.Current()
	total, err := fs.CountEntries(dir, n.showHidden)
	if err != nil {
		n.clearListing()
		return err
	}

	sortEnabled := n.maxEntries == 0 || total <= n.maxEntries
	var entries []fs.Entry
	if total > 0 {
		if sortEnabled {
			entries, err = fs.ScanAll(dir, total, n.showHidden)
			if err == nil {
				n.fillStatsForSort(dir, entries)
				sortEntries(entries, n.sortMode, n.ascending)
			}
		} else {
			entries, err = fs.ScanWindow(dir, 0, n.windowSize, n.showHidden)
		}
		if err != nil {
			n.clearListing()
			return err
		}
	}

	n.sortEnabled = sortEnabled
	n.totalEntries = total
	n.entries = entries
	n.windowStart = 0
	n.viewSize = n.windowSize
	return nil
}

// Enter descends into the directory entry at viewIndex. Navigation is
// all-or-nothing: a failed refresh of the child rolls the location and
// listing back.
func (n *Navigator) Enter(viewIndex int) error {
	entry, err := n.viewEntry(viewIndex)
	if err != nil {
		return err
	}
	if !entry.IsDir {
		return fmt.Errorf("enter %q: not a directory: %w", entry.Name, errs.ErrInvalidState)
	}
	child := entry.Name
	if n.relative != "" {
		child = n.relative + "/" + child
	}
	if err := persist.ValidateRelative(child); err != nil {
		return err
	}
	return n.navigate(child)
}

// GoParent ascends one level. At the root it fails with ErrInvalidState.
func (n *Navigator) GoParent() error {
	if n.relative == "" {
		return fmt.Errorf("already at root: %w", errs.ErrInvalidState)
	}
	parent := ""
	if idx := strings.LastIndexByte(n.relative, '/'); idx >= 0 {
		parent = n.relative[:idx]
	}
	return n.navigate(parent)
}

// navigate switches to relative, refreshes, and rolls everything back on
// failure.
func (n *Navigator) navigate(relative string) error {
	prevRelative := n.relative
	prevEntries := n.entries
	prevTotal := n.totalEntries
	prevStart := n.windowStart
	prevViewSize := n.viewSize
	prevSortEnabled := n.sortEnabled

	n.relative = relative
	if err := n.Refresh(); err != nil {
		n.relative = prevRelative
		n.entries = prevEntries
		n.totalEntries = prevTotal
		n.windowStart = prevStart
		n.viewSize = prevViewSize
		n.sortEnabled = prevSortEnabled
		return err
	}
	n.persistState()
	return nil
}

// SetSort changes the comparator mode/direction, re-sorts a resident
// listing, and persists the preference.
func (n *Navigator) SetSort(mode SortMode, ascending bool) error {
	if mode > SortBySize {
		return fmt.Errorf("sort mode %d: %w", mode, errs.ErrInvalidArgument)
	}
	n.sortMode = mode
	n.ascending = ascending
	if n.sortEnabled && len(n.entries) > 0 {
		n.fillStatsForSort(n.Current(), n.entries)
		sortEntries(n.entries, n.sortMode, n.ascending)
		n.windowStart = 0
	}
	n.persistState()
	return nil
}

// SetWindow repositions the view. In full-sort mode this is a slice
// adjustment with no I/O; in windowed-raw mode the directory stream is
// re-scanned from the beginning, an O(start) cost documented in
// fs.ScanWindow.
func (n *Navigator) SetWindow(start, size int) error {
	if size <= 0 {
		return fmt.Errorf("window size %d: %w", size, errs.ErrInvalidArgument)
	}
	if start < 0 {
		start = 0
	}
	if n.totalEntries == 0 {
		start = 0
	} else if start > n.totalEntries-1 {
		start = n.totalEntries - 1
	}

	if n.sortEnabled {
		n.windowStart = start
		n.viewSize = size
		return nil
	}
	entries, err := fs.ScanWindow(n.Current(), start, size, n.showHidden)
	if err != nil {
		return err
	}
	n.entries = entries
	n.windowStart = start
	n.viewSize = size
	return nil
}

// ShowHidden reports whether hidden entries are listed.
func (n *Navigator) ShowHidden() bool { return n.showHidden }

// ToggleHidden flips hidden-entry visibility and re-reads the listing.
// A failed re-read restores the previous visibility.
func (n *Navigator) ToggleHidden() error {
	n.showHidden = !n.showHidden
	if err := n.Refresh(); err != nil {
		n.showHidden = !n.showHidden
		return err
	}
	return nil
}

// Window returns the entries of the current view. The slice is owned by
// the navigator; callers must not retain it across calls.
func (n *Navigator) Window() []fs.Entry {
	if !n.sortEnabled {
		return n.entries
	}
	if n.windowStart >= len(n.entries) {
		return nil
	}
	end := n.windowStart + n.viewSize
	if end > len(n.entries) {
		end = len(n.entries)
	}
	return n.entries[n.windowStart:end]
}

// EnsureMeta lazily stats the entry at viewIndex. Entries already
// statted are left untouched, as are all other entries.
func (n *Navigator) EnsureMeta(viewIndex int) error {
	entry, err := n.viewEntry(viewIndex)
	if err != nil {
		return err
	}
	if !entry.NeedsStat {
		return nil
	}
	return fs.Stat(filepath.Join(n.Current(), entry.Name), entry)
}

// viewEntry resolves a view-relative index to the backing entry.
func (n *Navigator) viewEntry(viewIndex int) (*fs.Entry, error) {
	idx := viewIndex
	if n.sortEnabled {
		idx += n.windowStart
	}
	if viewIndex < 0 || idx >= len(n.entries) {
		return nil, fmt.Errorf("view index %d: %w", viewIndex, errs.ErrInvalidArgument)
	}
	return &n.entries[idx], nil
}

// fillStatsForSort stats entries eagerly when the active mode compares
// stat fields. Name mode keeps stats fully lazy. Stat failures leave the
// entry pending and are not fatal to the sort.
func (n *Navigator) fillStatsForSort(dir string, entries []fs.Entry) {
	if n.sortMode == SortByName {
		return
	}
	for i := range entries {
		if !entries[i].NeedsStat {
			continue
		}
		if err := fs.Stat(filepath.Join(dir, entries[i].Name), &entries[i]); err != nil {
			n.logger.Warn("stat for sort failed",
				zap.String("name", entries[i].Name), zap.Error(err))
		}
	}
}

// persistState saves {relative, sort, ascending}. Failures are logged
// and never surfaced as navigation failures.
func (n *Navigator) persistState() {
	if n.store == nil {
		return
	}
	blob, err := persist.EncodeNavState(persist.NavState{
		Relative:  n.relative,
		Sort:      n.sortMode,
		Ascending: n.ascending,
	})
	if err != nil {
		n.logger.Warn("encode navigator state", zap.Error(err))
		return
	}
	if err := n.store.SetBlob(persist.Namespace, persist.Key, blob); err != nil {
		n.logger.Warn("persist navigator state", zap.Error(err))
		return
	}
	if err := n.store.Commit(); err != nil {
		n.logger.Warn("commit navigator state", zap.Error(err))
	}
}

func (n *Navigator) clearListing() {
	n.entries = nil
	n.totalEntries = 0
	n.windowStart = 0
}
