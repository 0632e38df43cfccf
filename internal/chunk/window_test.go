package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/kk-code-lab/redit/internal/errs"
	"github.com/kk-code-lab/redit/internal/storage"
)

// ===== FAKES =====

// memFile is the shared backing buffer of the fake reader and saver.
type memFile struct {
	data []byte
}

type fakeReader struct {
	file    *memFile
	failing bool
	reads   int
}

func (r *fakeReader) ReadChunk(path string, index int64, chunkSize int) ([]byte, error) {
	if r.failing {
		return nil, fmt.Errorf("read chunk %d: %w", index, errs.ErrIO)
	}
	r.reads++
	start := index * int64(chunkSize)
	size := int64(len(r.file.data))
	if start >= size {
		return nil, nil
	}
	end := min64(start+int64(chunkSize), size)
	return append([]byte(nil), r.file.data[start:end]...), nil
}

func (r *fakeReader) FileSize(path string) (int64, error) {
	if r.failing {
		return 0, fmt.Errorf("stat %s: %w", path, errs.ErrIO)
	}
	return int64(len(r.file.data)), nil
}

type fakeSaver struct {
	file    *memFile
	failing bool
	writes  int
}

func (s *fakeSaver) Write(path string, content []byte, first, second int64, chunkSize int) (int64, error) {
	if s.failing {
		return 0, fmt.Errorf("write %s: %w", path, errs.ErrIO)
	}
	s.writes++
	size := int64(len(s.file.data))
	lo := min64(first*int64(chunkSize), size)
	hi := min64((second+1)*int64(chunkSize), size)
	out := append([]byte(nil), s.file.data[:lo]...)
	out = append(out, content...)
	out = append(out, s.file.data[hi:]...)
	s.file.data = out
	return int64(len(out)), nil
}

type fakeReady struct {
	ready     bool
	scheduled int
}

func (r *fakeReady) IsReady() bool                { return r.ready }
func (r *fakeReady) ScheduleReconnect()           { r.scheduled++ }
func (r *fakeReady) Events() <-chan storage.Event { return nil }

const testChunk = 100

// chunkData builds size bytes where every chunk is one repeated letter,
// so window content is easy to assert on.
func chunkData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + (i/testChunk)%26)
	}
	return data
}

func newTestWindow(t *testing.T, size int) (*Window, *fakeReader, *fakeSaver, *fakeReady) {
	t.Helper()
	file := &memFile{data: chunkData(size)}
	reader := &fakeReader{file: file}
	saver := &fakeSaver{file: file}
	ready := &fakeReady{ready: true}
	w := New(reader, saver, ready, testChunk, nil)
	if err := w.Open("fake.txt"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return w, reader, saver, ready
}

// ===== OPEN =====

func TestOpenLoadsTwoChunks(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 5*testChunk)
	first, second, maxOffset := w.Offsets()
	if first != 0 || second != 1 || maxOffset != 4 {
		t.Errorf("Expected window [0,1] of 4, got [%d,%d] of %d", first, second, maxOffset)
	}
	if len(w.Content()) != 2*testChunk {
		t.Errorf("Expected %d bytes resident, got %d", 2*testChunk, len(w.Content()))
	}
}

func TestOpenSmallFile(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 30)
	first, second, maxOffset := w.Offsets()
	if first != 0 || second != 0 || maxOffset != 0 {
		t.Errorf("Expected window [0,0] of 0, got [%d,%d] of %d", first, second, maxOffset)
	}
	if len(w.Content()) != 30 {
		t.Errorf("Expected 30 bytes, got %d", len(w.Content()))
	}
}

func TestOpenEmptyFile(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 0)
	first, second, maxOffset := w.Offsets()
	if first != 0 || second != 0 || maxOffset != 0 {
		t.Errorf("Expected window [0,0] of 0, got [%d,%d] of %d", first, second, maxOffset)
	}
	if len(w.Content()) != 0 {
		t.Errorf("Expected empty content, got %d bytes", len(w.Content()))
	}
}

// ===== EDGE-TRIGGERED PAGING =====

func TestScrollBottomAdvancesOneChunk(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 5*testChunk)

	res, err := w.ScrollEdge(EdgeBottom)
	if err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}
	if res.Kind != Loaded {
		t.Fatalf("Expected Loaded, got %v", res.Kind)
	}
	first, second, _ := w.Offsets()
	if first != 1 || second != 2 {
		t.Errorf("Expected window [1,2], got [%d,%d]", first, second)
	}
	// Chunks 1 and 2 are 'b' and 'c'; the former boundary sits after the
	// shared chunk.
	if w.Content()[0] != 'b' || w.Content()[testChunk] != 'c' {
		t.Error("Window content mismatch after bottom scroll")
	}
	if res.CursorByte != testChunk {
		t.Errorf("Expected cursor at %d, got %d", testChunk, res.CursorByte)
	}
}

func TestScrollEdgeLatches(t *testing.T) {
	w, reader, _, _ := newTestWindow(t, 5*testChunk)

	if _, err := w.ScrollEdge(EdgeBottom); err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}
	before := reader.reads
	res, err := w.ScrollEdge(EdgeBottom)
	if err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}
	if res.Kind != NoOp {
		t.Errorf("Expected NoOp while latched, got %v", res.Kind)
	}
	if reader.reads != before {
		t.Error("Latched edge still triggered a load")
	}

	w.LeaveEdge(EdgeBottom)
	res, err = w.ScrollEdge(EdgeBottom)
	if err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}
	if res.Kind != Loaded {
		t.Errorf("Expected Loaded after LeaveEdge, got %v", res.Kind)
	}
	first, second, _ := w.Offsets()
	if first != 2 || second != 3 {
		t.Errorf("Expected window [2,3], got [%d,%d]", first, second)
	}
}

func TestScrollTopAtStartIsGuarded(t *testing.T) {
	w, reader, _, _ := newTestWindow(t, 5*testChunk)

	before := reader.reads
	res, err := w.ScrollEdge(EdgeTop)
	if err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}
	if res.Kind != NoOp {
		t.Errorf("Expected NoOp at file start, got %v", res.Kind)
	}
	if reader.reads != before {
		t.Error("Top edge at chunk 0 triggered a load")
	}
	first, second, _ := w.Offsets()
	if first != 0 || second != 1 {
		t.Errorf("Window moved at file start: [%d,%d]", first, second)
	}
}

func TestScrollTopStepsBack(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 5*testChunk)
	w.SeekTrack(2)
	if _, err := w.SeekRelease(); err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}

	res, err := w.ScrollEdge(EdgeTop)
	if err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}
	if res.Kind != Loaded {
		t.Fatalf("Expected Loaded, got %v", res.Kind)
	}
	first, second, _ := w.Offsets()
	if first != 1 || second != 2 {
		t.Errorf("Expected window [1,2], got [%d,%d]", first, second)
	}
	if res.CursorByte != testChunk {
		t.Errorf("Expected cursor at %d, got %d", testChunk, res.CursorByte)
	}
}

func TestScrollBottomAtEndIsNoOp(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 2*testChunk)
	res, err := w.ScrollEdge(EdgeBottom)
	if err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}
	if res.Kind != NoOp {
		t.Errorf("Expected NoOp at last chunk, got %v", res.Kind)
	}
}

// ===== SEEK =====

func TestMaxStep(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 5*testChunk)
	if got := w.MaxStep(); got != 3 {
		t.Errorf("Expected MaxStep 3, got %d", got)
	}
	small, _, _, _ := newTestWindow(t, 50)
	if got := small.MaxStep(); got != 0 {
		t.Errorf("Expected MaxStep 0 for small file, got %d", got)
	}
}

func TestSeekReleaseLoadsTrackedWindow(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 10*testChunk)
	w.SeekTrack(7)
	res, err := w.SeekRelease()
	if err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}
	if res.Kind != Loaded {
		t.Fatalf("Expected Loaded, got %v", res.Kind)
	}
	first, second, _ := w.Offsets()
	if first != 7 || second != 8 {
		t.Errorf("Expected window [7,8], got [%d,%d]", first, second)
	}
}

func TestSeekReleaseWithoutTrackingIsNoOp(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 10*testChunk)
	res, err := w.SeekRelease()
	if err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}
	if res.Kind != NoOp {
		t.Errorf("Expected NoOp without tracking, got %v", res.Kind)
	}
}

func TestSeekReleaseOnSameWindowIsNoOp(t *testing.T) {
	w, reader, _, _ := newTestWindow(t, 10*testChunk)
	before := reader.reads
	w.SeekTrack(0)
	res, err := w.SeekRelease()
	if err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}
	if res.Kind != NoOp || reader.reads != before {
		t.Error("Seek to the loaded window should not reload")
	}
}

func TestSeekTrackClamps(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 5*testChunk)
	w.SeekTrack(999)
	if _, err := w.SeekRelease(); err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}
	first, second, _ := w.Offsets()
	if first != 3 || second != 4 {
		t.Errorf("Expected clamp to [3,4], got [%d,%d]", first, second)
	}

	w.SeekTrack(-5)
	if _, err := w.SeekRelease(); err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}
	first, second, _ = w.Offsets()
	if first != 0 || second != 1 {
		t.Errorf("Expected clamp to [0,1], got [%d,%d]", first, second)
	}
}

// ===== DIRTY GATE =====

func TestDirtyScrollPrompts(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 5*testChunk)
	w.SetContent(append([]byte("edit:"), w.Content()...))
	if !w.Dirty() {
		t.Fatal("Expected dirty after SetContent")
	}

	res, err := w.ScrollEdge(EdgeBottom)
	if err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}
	if res.Kind != Prompted {
		t.Fatalf("Expected Prompted, got %v", res.Kind)
	}
	first, second, _ := w.Offsets()
	if first != 0 || second != 1 {
		t.Errorf("Window moved while dirty: [%d,%d]", first, second)
	}
	if !w.PromptPending() {
		t.Error("Expected outstanding prompt")
	}
}

func TestPromptDropsNewerRequests(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 10*testChunk)
	w.SetContent([]byte("x"))
	if _, err := w.ScrollEdge(EdgeBottom); err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}

	// A second request behind an open prompt is dropped outright.
	w.SeekTrack(5)
	res, err := w.SeekRelease()
	if err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}
	if res.Kind != NoOp {
		t.Errorf("Expected NoOp behind prompt, got %v", res.Kind)
	}

	// Discarding applies the first parked request, not the dropped one.
	res, err = w.Resolve(ResolveDiscard)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Kind != Loaded {
		t.Fatalf("Expected Loaded, got %v", res.Kind)
	}
	first, second, _ := w.Offsets()
	if first != 1 || second != 2 {
		t.Errorf("Expected parked scroll to [1,2], got [%d,%d]", first, second)
	}
	if w.Dirty() {
		t.Error("Discard left window dirty")
	}
}

func TestPromptSaveThenApply(t *testing.T) {
	w, _, saver, _ := newTestWindow(t, 5*testChunk)
	edited := append([]byte(nil), w.Content()...)
	copy(edited, []byte("EDITED"))
	w.SetContent(edited)

	if _, err := w.ScrollEdge(EdgeBottom); err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}
	res, err := w.Resolve(ResolveSave)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Kind != Loaded {
		t.Fatalf("Expected Loaded after save, got %v", res.Kind)
	}
	if saver.writes != 1 {
		t.Errorf("Expected 1 write, got %d", saver.writes)
	}
	if !bytes.HasPrefix(saver.file.data, []byte("EDITED")) {
		t.Error("Edit not written through")
	}
	first, second, _ := w.Offsets()
	if first != 1 || second != 2 {
		t.Errorf("Expected parked scroll to [1,2], got [%d,%d]", first, second)
	}
}

func TestPromptCancelKeepsEdits(t *testing.T) {
	w, _, saver, _ := newTestWindow(t, 5*testChunk)
	w.SetContent([]byte("kept edit"))
	if _, err := w.ScrollEdge(EdgeBottom); err != nil {
		t.Fatalf("ScrollEdge failed: %v", err)
	}

	res, err := w.Resolve(ResolveCancel)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Kind != NoOp {
		t.Errorf("Expected NoOp, got %v", res.Kind)
	}
	if !w.Dirty() || string(w.Content()) != "kept edit" {
		t.Error("Cancel should preserve the edit")
	}
	if saver.writes != 0 {
		t.Error("Cancel should not save")
	}
	first, second, _ := w.Offsets()
	if first != 0 || second != 1 {
		t.Errorf("Cancel moved the window: [%d,%d]", first, second)
	}
}

func TestResolveWithoutPrompt(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 5*testChunk)
	if _, err := w.Resolve(ResolveSave); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
}

// ===== SAVE =====

func TestSaveRecomputesBoundOnShrink(t *testing.T) {
	// 5 chunks resident as [0,1]; replacing 200 bytes with 21 leaves
	// 21 + 300 = 321 bytes, so maxOffset drops from 4 to 3.
	w, _, _, _ := newTestWindow(t, 5*testChunk)
	w.SetContent([]byte("tiny replacement edit"))

	res, err := w.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if res.Kind != Saved {
		t.Fatalf("Expected Saved, got %v", res.Kind)
	}
	_, _, maxOffset := w.Offsets()
	if maxOffset != 3 {
		t.Errorf("Expected maxOffset 3 after shrink, got %d", maxOffset)
	}
	if w.Dirty() {
		t.Error("Save left window dirty")
	}
}

func TestSaveClampsWindowIntoNewBound(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 10*testChunk)
	w.SeekTrack(8)
	if _, err := w.SeekRelease(); err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}

	// Shrink the tail window [8,9] to almost nothing: the file drops to
	// 800 + 3 = 803 bytes and the loaded offsets clamp into the new bound.
	w.SetContent([]byte("end"))
	if _, err := w.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	first, second, maxOffset := w.Offsets()
	if maxOffset != 8 {
		t.Errorf("Expected maxOffset 8, got %d", maxOffset)
	}
	if first > maxOffset || second > maxOffset {
		t.Errorf("Window [%d,%d] outside bound %d", first, second, maxOffset)
	}
}

func TestSaveFailureWhileReadySurfaces(t *testing.T) {
	w, _, saver, ready := newTestWindow(t, 5*testChunk)
	saver.failing = true
	ready.ready = true

	w.SetContent([]byte("edit"))
	if _, err := w.Save(); !errors.Is(err, errs.ErrIO) {
		t.Errorf("Expected ErrIO, got %v", err)
	}
	if ready.scheduled != 0 {
		t.Error("Reachable storage should not schedule a reconnect")
	}
}

// ===== RECONNECT REPLAY =====

func TestSaveDeferredWhenStorageGone(t *testing.T) {
	w, _, saver, ready := newTestWindow(t, 5*testChunk)
	saver.failing = true
	ready.ready = false

	w.SetContent([]byte("offline edit"))
	res, err := w.Save()
	if err != nil {
		t.Fatalf("Save should defer, not fail: %v", err)
	}
	if res.Kind != Deferred {
		t.Fatalf("Expected Deferred, got %v", res.Kind)
	}
	if ready.scheduled != 1 {
		t.Errorf("Expected 1 reconnect scheduled, got %d", ready.scheduled)
	}
	if !w.ReconnectPending() {
		t.Error("Expected a parked action")
	}

	saver.failing = false
	ready.ready = true
	res, err = w.OnReconnect()
	if err != nil {
		t.Fatalf("OnReconnect failed: %v", err)
	}
	if res.Kind != Saved {
		t.Errorf("Expected Saved on replay, got %v", res.Kind)
	}
	if saver.writes != 1 {
		t.Errorf("Expected exactly 1 write, got %d", saver.writes)
	}
	if !bytes.HasPrefix(saver.file.data, []byte("offline edit")) {
		t.Error("Replayed save not written through")
	}
}

func TestPendingRequestsCoalesce(t *testing.T) {
	w, reader, _, ready := newTestWindow(t, 10*testChunk)
	reader.failing = true
	ready.ready = false

	// First request parks.
	w.SeekTrack(3)
	res, err := w.SeekRelease()
	if err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}
	if res.Kind != Deferred {
		t.Fatalf("Expected Deferred, got %v", res.Kind)
	}

	// Newer requests replace the parked one; only the last survives.
	w.SeekTrack(5)
	if _, err := w.SeekRelease(); err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}
	w.SeekTrack(7)
	if _, err := w.SeekRelease(); err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}
	if ready.scheduled != 1 {
		t.Errorf("Expected a single reconnect, got %d", ready.scheduled)
	}

	reader.failing = false
	ready.ready = true
	res, err = w.OnReconnect()
	if err != nil {
		t.Fatalf("OnReconnect failed: %v", err)
	}
	if res.Kind != Loaded {
		t.Fatalf("Expected Loaded, got %v", res.Kind)
	}
	first, second, _ := w.Offsets()
	if first != 7 || second != 8 {
		t.Errorf("Expected the newest request [7,8], got [%d,%d]", first, second)
	}

	// Replay happens exactly once.
	res, err = w.OnReconnect()
	if err != nil {
		t.Fatalf("OnReconnect failed: %v", err)
	}
	if res.Kind != NoOp {
		t.Errorf("Expected NoOp on second replay, got %v", res.Kind)
	}
}

func TestReconnectClampsIntoRefreshedBound(t *testing.T) {
	w, reader, _, ready := newTestWindow(t, 10*testChunk)
	reader.failing = true
	ready.ready = false

	w.SeekTrack(8)
	if _, err := w.SeekRelease(); err != nil {
		t.Fatalf("SeekRelease failed: %v", err)
	}

	// The file shrank while storage was away.
	reader.file.data = chunkData(3 * testChunk)
	reader.failing = false
	ready.ready = true

	res, err := w.OnReconnect()
	if err != nil {
		t.Fatalf("OnReconnect failed: %v", err)
	}
	if res.Kind != Loaded {
		t.Fatalf("Expected Loaded, got %v", res.Kind)
	}
	first, second, maxOffset := w.Offsets()
	if maxOffset != 2 {
		t.Errorf("Expected refreshed maxOffset 2, got %d", maxOffset)
	}
	if first != 2 || second != 2 {
		t.Errorf("Expected clamped window [2,2], got [%d,%d]", first, second)
	}
}

func TestReconnectWithNothingPending(t *testing.T) {
	w, _, _, _ := newTestWindow(t, 5*testChunk)
	res, err := w.OnReconnect()
	if err != nil {
		t.Fatalf("OnReconnect failed: %v", err)
	}
	if res.Kind != NoOp {
		t.Errorf("Expected NoOp, got %v", res.Kind)
	}
}
