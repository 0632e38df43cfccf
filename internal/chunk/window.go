// Package chunk maintains a two-chunk sliding window over a file's bytes
// for viewing and editing. The presentation layer issues explicit
// requests (edge scrolls, seeks, saves, prompt resolutions) and reads
// typed outcomes; no state leaks out through callbacks.
package chunk

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/kk-code-lab/redit/internal/errs"
	"github.com/kk-code-lab/redit/internal/fs"
	"github.com/kk-code-lab/redit/internal/storage"
)

// windowChunks is how many chunks the window holds when the file is
// large enough.
const windowChunks = 2

// Edge identifies which edge of the loaded content the scroll position
// reached.
type Edge int

const (
	EdgeTop Edge = iota
	EdgeBottom
)

// ResultKind classifies the outcome of a window request.
type ResultKind int

const (
	// Loaded means the window moved and content was replaced.
	Loaded ResultKind = iota
	// NoOp means the request required no work (already at bound, same
	// window, or edge latch still set).
	NoOp
	// Prompted means the window is dirty and the request is parked
	// behind a save/discard/cancel prompt.
	Prompted
	// Deferred means storage was unreachable; the request is retained
	// and will be replayed once on reconnect.
	Deferred
	// Saved means a save completed.
	Saved
)

// Result is the typed outcome of a request.
type Result struct {
	Kind ResultKind
	// CursorByte is the offset into the new content of the former chunk
	// boundary, so the caller can keep the cursor where editing left off.
	// Only meaningful when Kind is Loaded.
	CursorByte int
}

// Resolution answers the dirty prompt.
type Resolution int

const (
	ResolveSave Resolution = iota
	ResolveDiscard
	ResolveCancel
)

// Saver is the atomic patch writer contract.
type Saver interface {
	Write(path string, content []byte, first, second int64, chunkSize int) (int64, error)
}

type actionKind int

const (
	actionLoad actionKind = iota
	actionSave
)

// action is a coalesced pending request: at most one exists, and a newer
// one replaces it.
type action struct {
	kind          actionKind
	first, second int64
	edgeCursor    bool // reposition cursor at the former chunk boundary
}

// Window is the file chunk window. It is owned by a single session and
// must only be used from the control thread.
type Window struct {
	path      string
	chunkSize int
	reader    fs.ContentReader
	saver     Saver
	ready     storage.Readiness
	logger    *zap.Logger

	first, second int64
	maxOffset     int64
	content       []byte
	original      []byte
	dirty         bool

	atTop, atBottom bool
	seekStep        int64
	seekTracking    bool

	prompt  *action // request parked behind the dirty prompt
	pending *action // request awaiting storage reconnect
}

// New builds a window over reader/saver. A nil logger disables logging.
func New(reader fs.ContentReader, saver Saver, ready storage.Readiness, chunkSize int, logger *zap.Logger) *Window {
	if chunkSize <= 0 {
		chunkSize = fs.DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Window{
		chunkSize: chunkSize,
		reader:    reader,
		saver:     saver,
		ready:     ready,
		logger:    logger,
	}
}

// Open loads the initial window [0, 1] of path, or [0, 0] for a file of
// one chunk or fewer.
func (w *Window) Open(path string) error {
	size, err := w.reader.FileSize(path)
	if err != nil {
		return err
	}
	w.path = path
	w.maxOffset = fs.ChunkCount(size, w.chunkSize) - 1
	first := int64(0)
	second := min64(windowChunks-1, w.maxOffset)
	content, err := w.load(first, second)
	if err != nil {
		return err
	}
	w.first, w.second = first, second
	w.setSnapshot(content)
	w.atTop, w.atBottom = false, false
	w.seekTracking = false
	w.prompt, w.pending = nil, nil
	return nil
}

// Path returns the open file's path.
func (w *Window) Path() string { return w.path }

// Offsets returns the loaded chunk range and the last valid chunk index.
func (w *Window) Offsets() (first, second, maxOffset int64) {
	return w.first, w.second, w.maxOffset
}

// ChunkSize returns the fixed chunk byte size.
func (w *Window) ChunkSize() int { return w.chunkSize }

// Content returns the materialized window content.
func (w *Window) Content() []byte { return w.content }

// SetContent replaces the window content with an edited version and
// recomputes the dirty flag against the snapshot.
func (w *Window) SetContent(content []byte) {
	w.content = content
	w.dirty = !bytes.Equal(w.content, w.original)
}

// Dirty reports whether content differs from the last loaded or saved
// snapshot.
func (w *Window) Dirty() bool { return w.dirty }

// PromptPending reports whether a dirty prompt is outstanding.
func (w *Window) PromptPending() bool { return w.prompt != nil }

// ReconnectPending reports whether an action is parked behind a storage
// reconnect.
func (w *Window) ReconnectPending() bool { return w.pending != nil }

// ===== EDGE-TRIGGERED PAGING =====

// ScrollEdge handles the scroll position reaching the top or bottom of
// the loaded content. The edge stays latched until LeaveEdge, so holding
// a scroll at the edge never triggers redundant loads.
func (w *Window) ScrollEdge(edge Edge) (Result, error) {
	switch edge {
	case EdgeTop:
		if w.atTop {
			return Result{Kind: NoOp}, nil
		}
		w.atTop = true
		if w.first == 0 {
			return Result{Kind: NoOp}, nil
		}
		return w.request(action{kind: actionLoad, first: w.first - 1, second: w.first, edgeCursor: true})
	case EdgeBottom:
		if w.atBottom {
			return Result{Kind: NoOp}, nil
		}
		w.atBottom = true
		if w.second >= w.maxOffset {
			return Result{Kind: NoOp}, nil
		}
		return w.request(action{kind: actionLoad, first: w.second, second: w.second + 1, edgeCursor: true})
	default:
		return Result{}, fmt.Errorf("scroll edge %d: %w", edge, errs.ErrInvalidArgument)
	}
}

// LeaveEdge clears the latch once the scroll position moves off an edge.
func (w *Window) LeaveEdge(edge Edge) {
	if edge == EdgeTop {
		w.atTop = false
	} else {
		w.atBottom = false
	}
}

// ===== RANDOM-ACCESS SEEK =====

// MaxStep returns the last valid step index of the position control.
func (w *Window) MaxStep() int64 {
	steps := w.maxOffset - windowChunks + 1
	if steps < 0 {
		steps = 0
	}
	return steps
}

// SeekTrack records the control position during interaction without
// loading anything.
func (w *Window) SeekTrack(step int64) {
	if step < 0 {
		step = 0
	}
	if limit := w.MaxStep(); step > limit {
		step = limit
	}
	w.seekStep = step
	w.seekTracking = true
}

// SeekRelease applies the tracked position. A release with no tracked
// interaction, or landing on the already-loaded window, is a no-op.
func (w *Window) SeekRelease() (Result, error) {
	if !w.seekTracking {
		return Result{Kind: NoOp}, nil
	}
	w.seekTracking = false
	first := w.seekStep
	second := min64(first+windowChunks-1, w.maxOffset)
	if first == w.first && second == w.second {
		return Result{Kind: NoOp}, nil
	}
	w.atTop, w.atBottom = false, false
	return w.request(action{kind: actionLoad, first: first, second: second})
}

// ===== DIRTY PROMPT =====

// Resolve answers an outstanding dirty prompt.
func (w *Window) Resolve(resolution Resolution) (Result, error) {
	if w.prompt == nil {
		return Result{}, fmt.Errorf("no prompt outstanding: %w", errs.ErrInvalidState)
	}
	parked := *w.prompt
	w.prompt = nil
	switch resolution {
	case ResolveSave:
		res, err := w.Save()
		if err != nil || res.Kind == Deferred {
			return res, err
		}
		if w.dirty {
			return Result{Kind: NoOp}, nil
		}
		return w.apply(parked)
	case ResolveDiscard:
		w.content = append([]byte(nil), w.original...)
		w.dirty = false
		return w.apply(parked)
	case ResolveCancel:
		return Result{Kind: NoOp}, nil
	default:
		return Result{}, fmt.Errorf("resolution %d: %w", resolution, errs.ErrInvalidArgument)
	}
}

// ===== SAVE =====

// Save writes the window content back through the atomic patch writer,
// then recomputes the chunk bound from the new file size and refreshes
// the snapshot.
func (w *Window) Save() (Result, error) {
	if w.pending != nil {
		w.pending = &action{kind: actionSave}
		return Result{Kind: Deferred}, nil
	}
	newSize, err := w.saver.Write(w.path, w.content, w.first, w.second, w.chunkSize)
	if err != nil {
		if !w.ready.IsReady() {
			w.park(action{kind: actionSave})
			return Result{Kind: Deferred}, nil
		}
		return Result{}, err
	}
	w.maxOffset = fs.ChunkCount(newSize, w.chunkSize) - 1
	if w.first > w.maxOffset {
		w.first = w.maxOffset
	}
	if w.second > w.maxOffset {
		w.second = w.maxOffset
	}
	w.setSnapshot(w.content)
	w.logger.Debug("window saved",
		zap.String("path", w.path), zap.Int64("size", newSize))
	return Result{Kind: Saved}, nil
}

// ===== RECONNECT REPLAY =====

// OnReconnect replays the single pending action after the storage
// readiness collaborator reports success. The action replayed is always
// the most recently requested one, exactly once.
func (w *Window) OnReconnect() (Result, error) {
	if w.pending == nil {
		return Result{Kind: NoOp}, nil
	}
	parked := *w.pending
	w.pending = nil
	if parked.kind == actionSave {
		return w.Save()
	}
	// The file may have changed while storage was away; refresh the
	// bound before clamping the replayed window into it.
	if size, err := w.reader.FileSize(w.path); err == nil {
		w.maxOffset = fs.ChunkCount(size, w.chunkSize) - 1
	}
	parked.first = min64(parked.first, w.maxOffset)
	parked.second = min64(parked.second, w.maxOffset)
	return w.apply(parked)
}

// ===== INTERNAL =====

// request routes a window-change request through the dirty gate and the
// pending-action slot.
func (w *Window) request(act action) (Result, error) {
	if w.pending != nil {
		// Reconnect in progress: replace, never queue.
		w.pending = &act
		return Result{Kind: Deferred}, nil
	}
	if w.prompt != nil {
		// A prompt is outstanding; newer requests are dropped.
		return Result{Kind: NoOp}, nil
	}
	if w.dirty {
		w.prompt = &act
		return Result{Kind: Prompted}, nil
	}
	return w.apply(act)
}

func (w *Window) apply(act action) (Result, error) {
	content, err := w.load(act.first, act.second)
	if err != nil {
		if !w.ready.IsReady() {
			w.park(act)
			return Result{Kind: Deferred}, nil
		}
		return Result{}, err
	}
	w.first, w.second = act.first, act.second
	w.setSnapshot(content)

	cursor := 0
	if act.edgeCursor {
		// Both edge loads share one chunk with the previous window; the
		// former boundary sits right after the first chunk of the new
		// content in either direction.
		firstLen := w.chunkSize
		if firstLen > len(content) {
			firstLen = len(content)
		}
		cursor = firstLen
	}
	w.logger.Debug("window moved",
		zap.Int64("first", w.first), zap.Int64("second", w.second))
	return Result{Kind: Loaded, CursorByte: cursor}, nil
}

func (w *Window) load(first, second int64) ([]byte, error) {
	if first < 0 || second < first || second > w.maxOffset {
		return nil, fmt.Errorf("window [%d,%d] of %d: %w", first, second, w.maxOffset, errs.ErrInvalidArgument)
	}
	var content []byte
	for idx := first; idx <= second; idx++ {
		part, err := w.reader.ReadChunk(w.path, idx, w.chunkSize)
		if err != nil {
			return nil, err
		}
		content = append(content, part...)
	}
	return content, nil
}

func (w *Window) park(act action) {
	w.pending = &act
	w.ready.ScheduleReconnect()
	w.logger.Warn("storage unreachable, action deferred",
		zap.String("path", w.path))
}

func (w *Window) setSnapshot(content []byte) {
	w.content = content
	w.original = append([]byte(nil), content...)
	w.dirty = false
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
