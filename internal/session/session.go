package session

import (
	"bytes"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kk-code-lab/redit/internal/chunk"
	"github.com/kk-code-lab/redit/internal/errs"
	"github.com/kk-code-lab/redit/internal/fs"
	"github.com/kk-code-lab/redit/internal/nav"
	"github.com/kk-code-lab/redit/internal/storage"
)

// Mode is the session's input mode.
type Mode int

const (
	ModeBrowser Mode = iota
	ModeEditor
	ModePrompt    // dirty save/discard/cancel prompt
	ModeReconnect // blocking storage reconnect prompt
)

// Session is the single logical session owning the navigator, the open
// chunk window, and the storage monitor. All mutation happens on the
// control thread through Apply; the reconnect worker only reaches the
// session as StorageEventActions drained from the monitor's event
// channel.
type Session struct {
	Nav     *nav.Navigator
	Win     *chunk.Window
	Monitor *storage.Monitor

	logger   *zap.Logger
	readonly bool

	Mode     Mode
	prevMode Mode

	// Browser view state.
	Selected int

	// Editor view state.
	CursorByte int
	ScrollLine int

	Width, Height int
	Status        string
	Quit          bool

	closeArmed bool

	// pendingOpen is the file the user tried to open while storage was
	// unreachable, replayed once after reconnect. The newest open wins.
	pendingOpen string
}

// NewSession wires a session. Monitor may be nil when storage recovery
// is not wanted (tests).
func NewSession(navigator *nav.Navigator, window *chunk.Window, monitor *storage.Monitor, readonly bool, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		Nav:      navigator,
		Win:      window,
		Monitor:  monitor,
		logger:   logger,
		readonly: readonly,
		Mode:     ModeBrowser,
		Width:    80,
		Height:   24,
	}
}

// PageSize is how many listing entries fit one page.
func (s *Session) PageSize() int {
	size := s.Height - 3 // header, footer, status line
	if size < 1 {
		size = 1
	}
	return size
}

// Apply consumes one action. Failures of the error taxonomy become
// status messages; anything else is returned.
func (s *Session) Apply(action Action) error {
	switch act := action.(type) {
	case ResizeAction:
		return s.resize(act.Width, act.Height)
	case QuitAction:
		s.Quit = true
		return nil
	case StorageEventAction:
		return s.storageEvent(act.Event)
	case StorageAckAction:
		return s.storageAck()
	case PromptResolveAction:
		return s.resolvePrompt(act.Resolution)
	}

	switch s.Mode {
	case ModeBrowser:
		return s.applyBrowser(action)
	case ModeEditor:
		return s.applyEditor(action)
	default:
		// Prompt and reconnect modes accept only the actions handled
		// above; everything else is dropped (request coalescing).
		return nil
	}
}

// ===== BROWSER =====

func (s *Session) applyBrowser(action Action) error {
	switch act := action.(type) {
	case MoveSelectionAction:
		s.moveSelection(act.Delta)
	case PageAction:
		s.page(act.Delta)
	case EnterAction:
		return s.enterSelected()
	case GoParentAction:
		if err := s.Nav.GoParent(); err != nil {
			s.report(err)
			return nil
		}
		s.Selected = 0
		s.Status = ""
	case RefreshAction:
		if err := s.Nav.Refresh(); err != nil {
			s.report(err)
			return nil
		}
		s.Selected = 0
	case SetSortAction:
		mode, asc := s.Nav.Sort()
		if mode == act.Mode {
			asc = !asc
		} else {
			asc = true
		}
		if err := s.Nav.SetSort(act.Mode, asc); err != nil {
			s.report(err)
		}
	case ToggleSortOrderAction:
		mode, asc := s.Nav.Sort()
		if err := s.Nav.SetSort(mode, !asc); err != nil {
			s.report(err)
		}
	case ToggleHiddenAction:
		if err := s.Nav.ToggleHidden(); err != nil {
			s.report(err)
			return nil
		}
		s.Selected = 0
	}
	return nil
}

func (s *Session) moveSelection(delta int) {
	window := s.Nav.Window()
	if len(window) == 0 {
		return
	}
	target := s.Selected + delta
	switch {
	case target < 0:
		// Crossing the top of the page shifts the window back.
		start := s.Nav.WindowStart() - s.PageSize()
		if s.Nav.WindowStart() == 0 {
			s.Selected = 0
			return
		}
		if start < 0 {
			start = 0
		}
		if err := s.Nav.SetWindow(start, s.PageSize()); err != nil {
			s.report(err)
			return
		}
		s.Selected = len(s.Nav.Window()) - 1
	case target >= len(window):
		start := s.Nav.WindowStart() + s.PageSize()
		if start >= s.Nav.TotalEntries() {
			s.Selected = len(window) - 1
			return
		}
		if err := s.Nav.SetWindow(start, s.PageSize()); err != nil {
			s.report(err)
			return
		}
		s.Selected = 0
	default:
		s.Selected = target
	}
	s.ensureSelectedMeta()
}

func (s *Session) page(delta int) {
	start := s.Nav.WindowStart() + delta*s.PageSize()
	if start < 0 {
		start = 0
	}
	if err := s.Nav.SetWindow(start, s.PageSize()); err != nil {
		s.report(err)
		return
	}
	s.Selected = 0
	s.ensureSelectedMeta()
}

// ensureSelectedMeta lazily stats the entry under the cursor so the
// footer can show size and mtime.
func (s *Session) ensureSelectedMeta() {
	if len(s.Nav.Window()) == 0 {
		return
	}
	if err := s.Nav.EnsureMeta(s.Selected); err != nil {
		s.logger.Warn("stat entry", zap.Error(err))
	}
}

func (s *Session) enterSelected() error {
	window := s.Nav.Window()
	if s.Selected < 0 || s.Selected >= len(window) {
		return nil
	}
	entry := window[s.Selected]
	if entry.IsDir {
		if err := s.Nav.Enter(s.Selected); err != nil {
			s.report(err)
			return nil
		}
		s.Selected = 0
		s.Status = ""
		return nil
	}
	return s.openFile(filepath.Join(s.Nav.Current(), entry.Name))
}

// ===== EDITOR =====

func (s *Session) openFile(path string) error {
	sample, err := fs.ReadSniffSample(path)
	if err != nil {
		s.deferOpenOrReport(path, err)
		return nil
	}
	if !fs.LooksText(path, sample) {
		s.Status = "binary file"
		return nil
	}
	if err := s.Win.Open(path); err != nil {
		s.deferOpenOrReport(path, err)
		return nil
	}
	s.pendingOpen = ""
	s.Mode = ModeEditor
	s.CursorByte = 0
	s.ScrollLine = 0
	s.Status = ""
	s.closeArmed = false
	return nil
}

// deferOpenOrReport parks a failed open behind the reconnect worker so
// the selected file opens without a second keypress once storage is
// back.
func (s *Session) deferOpenOrReport(path string, err error) {
	if s.Monitor != nil && !s.Monitor.IsReady() {
		s.pendingOpen = path
		s.Monitor.ScheduleReconnect()
		s.Status = "storage unreachable, open pending"
		return
	}
	s.report(err)
}

func (s *Session) applyEditor(action Action) error {
	switch act := action.(type) {
	case CloseFileAction:
		s.closeFile()
	case MoveCursorAction:
		return s.moveCursor(act.DeltaLines, act.DeltaRunes)
	case SeekTrackAction:
		s.Win.SeekTrack(act.Step)
	case SeekReleaseAction:
		res, err := s.Win.SeekRelease()
		if err != nil {
			s.report(err)
			return nil
		}
		s.applyResult(res)
	case InsertRuneAction:
		s.insertText(string(act.Rune))
	case BackspaceAction:
		s.backspace()
	case SaveAction:
		s.save()
	}
	return nil
}

func (s *Session) closeFile() {
	if s.Win.Dirty() && !s.closeArmed {
		s.closeArmed = true
		s.Status = "unsaved changes: save first or close again to discard"
		return
	}
	s.Mode = ModeBrowser
	s.Status = ""
	s.closeArmed = false
}

// contentLines splits the window content for display and cursor math.
func (s *Session) contentLines() [][]byte {
	return bytes.Split(s.Win.Content(), []byte{'\n'})
}

// cursorLineCol locates the cursor within contentLines.
func (s *Session) cursorLineCol(lines [][]byte) (line, col int) {
	remaining := s.CursorByte
	for i, l := range lines {
		if remaining <= len(l) {
			return i, remaining
		}
		remaining -= len(l) + 1
	}
	return len(lines) - 1, len(lines[len(lines)-1])
}

func lineStart(lines [][]byte, line int) int {
	start := 0
	for i := 0; i < line; i++ {
		start += len(lines[i]) + 1
	}
	return start
}

func (s *Session) moveCursor(deltaLines, deltaRunes int) error {
	lines := s.contentLines()
	line, col := s.cursorLineCol(lines)

	if deltaRunes != 0 {
		s.moveCursorRunes(deltaRunes)
		s.followCursor(lines)
		return nil
	}

	target := line + deltaLines
	switch {
	case target < 0:
		res, err := s.Win.ScrollEdge(chunk.EdgeTop)
		if err != nil {
			s.report(err)
			return nil
		}
		s.applyResult(res)
		return nil
	case target >= len(lines):
		res, err := s.Win.ScrollEdge(chunk.EdgeBottom)
		if err != nil {
			s.report(err)
			return nil
		}
		s.applyResult(res)
		return nil
	}

	if target > 0 {
		s.Win.LeaveEdge(chunk.EdgeTop)
	}
	if target < len(lines)-1 {
		s.Win.LeaveEdge(chunk.EdgeBottom)
	}
	if col > len(lines[target]) {
		col = len(lines[target])
	}
	s.CursorByte = lineStart(lines, target) + col
	s.followCursor(lines)
	return nil
}

func (s *Session) moveCursorRunes(delta int) {
	content := s.Win.Content()
	for ; delta > 0 && s.CursorByte < len(content); delta-- {
		_, size := utf8.DecodeRune(content[s.CursorByte:])
		s.CursorByte += size
	}
	for ; delta < 0 && s.CursorByte > 0; delta++ {
		_, size := utf8.DecodeLastRune(content[:s.CursorByte])
		s.CursorByte -= size
	}
}

// followCursor keeps the cursor's line inside the visible slice.
func (s *Session) followCursor(lines [][]byte) {
	visible := s.Height - 2
	if visible < 1 {
		visible = 1
	}
	line, _ := s.cursorLineCol(lines)
	if line < s.ScrollLine {
		s.ScrollLine = line
	}
	if line >= s.ScrollLine+visible {
		s.ScrollLine = line - visible + 1
	}
}

func (s *Session) insertText(text string) {
	if s.readonly {
		s.Status = "read-only"
		return
	}
	content := s.Win.Content()
	edited := make([]byte, 0, len(content)+len(text))
	edited = append(edited, content[:s.CursorByte]...)
	edited = append(edited, text...)
	edited = append(edited, content[s.CursorByte:]...)
	s.Win.SetContent(edited)
	s.CursorByte += len(text)
	s.closeArmed = false
	s.followCursor(s.contentLines())
}

func (s *Session) backspace() {
	if s.readonly {
		s.Status = "read-only"
		return
	}
	if s.CursorByte == 0 {
		return
	}
	content := s.Win.Content()
	_, size := utf8.DecodeLastRune(content[:s.CursorByte])
	edited := make([]byte, 0, len(content)-size)
	edited = append(edited, content[:s.CursorByte-size]...)
	edited = append(edited, content[s.CursorByte:]...)
	s.Win.SetContent(edited)
	s.CursorByte -= size
	s.closeArmed = false
	s.followCursor(s.contentLines())
}

func (s *Session) save() {
	if s.readonly {
		s.Status = "read-only"
		return
	}
	res, err := s.Win.Save()
	if err != nil {
		s.report(err)
		return
	}
	if res.Kind == chunk.Saved {
		if s.CursorByte > len(s.Win.Content()) {
			s.CursorByte = len(s.Win.Content())
		}
		s.Status = "saved"
	}
	s.applyResult(res)
}

// applyResult folds a chunk window outcome into the view state.
func (s *Session) applyResult(res chunk.Result) {
	switch res.Kind {
	case chunk.Loaded:
		s.CursorByte = res.CursorByte
		lines := s.contentLines()
		line, _ := s.cursorLineCol(lines)
		s.ScrollLine = line
		s.followCursor(lines)
	case chunk.Prompted:
		s.prevMode = s.Mode
		s.Mode = ModePrompt
		s.Status = "unsaved changes"
	case chunk.Deferred:
		s.Status = "storage unreachable, retry pending"
	}
}

// ===== PROMPT =====

func (s *Session) resolvePrompt(resolution chunk.Resolution) error {
	if s.Mode != ModePrompt {
		return nil
	}
	s.Mode = ModeEditor
	res, err := s.Win.Resolve(resolution)
	if err != nil {
		s.report(err)
		return nil
	}
	if resolution == chunk.ResolveCancel {
		s.Status = ""
		return nil
	}
	if s.CursorByte > len(s.Win.Content()) {
		s.CursorByte = len(s.Win.Content())
	}
	s.applyResult(res)
	return nil
}

// ===== STORAGE =====

func (s *Session) storageEvent(ev storage.Event) error {
	switch ev.Kind {
	case storage.EventPrompt:
		if s.Mode != ModeReconnect {
			s.prevMode = s.Mode
		}
		s.Mode = ModeReconnect
		s.Status = "storage unreachable: press enter to reconnect"
	case storage.EventAttempt:
		s.Status = fmt.Sprintf("reconnecting (attempt %d)...", ev.Attempt)
	case storage.EventReconnected:
		s.Mode = s.prevMode
		res, err := s.Win.OnReconnect()
		if err != nil {
			s.report(err)
			return nil
		}
		s.Status = "storage reconnected"
		s.applyResult(res)
		// A deferred open replays through the full open path so the
		// binary sniff gate still applies.
		if path := s.pendingOpen; path != "" {
			s.pendingOpen = ""
			return s.openFile(path)
		}
	case storage.EventFailed:
		s.Status = "reconnect failed: press enter to retry"
		if s.Monitor != nil {
			s.Monitor.ScheduleReconnect()
		}
	}
	return nil
}

func (s *Session) storageAck() error {
	if s.Mode != ModeReconnect || s.Monitor == nil {
		return nil
	}
	s.Monitor.Acknowledge()
	s.Status = "reconnecting..."
	return nil
}

// ===== MISC =====

func (s *Session) resize(width, height int) error {
	s.Width, s.Height = width, height
	if s.Mode == ModeBrowser || s.Mode == ModePrompt {
		if err := s.Nav.SetWindow(s.Nav.WindowStart(), s.PageSize()); err != nil {
			s.report(err)
		}
		if window := s.Nav.Window(); s.Selected >= len(window) && len(window) > 0 {
			s.Selected = len(window) - 1
		}
	}
	return nil
}

// report turns taxonomy errors into short status messages and logs the
// rest.
func (s *Session) report(err error) {
	if err == nil {
		return
	}
	s.Status = errs.Kind(err)
	s.logger.Warn("request failed", zap.Error(err))
}
