// Package render draws the browser and editor views on a tcell screen.
package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/kk-code-lab/redit/internal/fs"
	"github.com/kk-code-lab/redit/internal/textutil"
)

// Mode mirrors the session input mode without importing it.
type Mode int

const (
	ModeBrowser Mode = iota
	ModeEditor
	ModePrompt
	ModeReconnect
)

// State is the renderer's view model; the app layer projects the
// session onto it every frame.
type State struct {
	Mode Mode

	// Browser.
	Path        string
	Entries     []fs.Entry
	Selected    int
	WindowStart int
	Total       int
	Sorted      bool
	SortMode    int
	Ascending   bool
	ShowHidden  bool

	// Editor.
	FilePath    string
	Content     []byte
	CursorByte  int
	ScrollLine  int
	Dirty       bool
	FirstChunk  int64
	SecondChunk int64
	MaxChunk    int64

	Status string
}

var sortNames = [...]string{"name", "date", "size"}

// Renderer handles all UI drawing.
type Renderer struct {
	screen tcell.Screen
}

// NewRenderer creates a renderer for screen.
func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// Render draws a full frame from state.
func (r *Renderer) Render(state State) {
	r.screen.Clear()
	w, h := r.screen.Size()
	if w <= 0 || h <= 0 {
		r.screen.Show()
		return
	}

	switch state.Mode {
	case ModeBrowser, ModeReconnect:
		r.drawBrowserHeader(state, w)
		r.drawListing(state, w, h)
	case ModeEditor, ModePrompt:
		r.drawEditorHeader(state, w)
		r.drawContent(state, w, h)
	}
	r.drawStatusLine(state, w, h)
	r.screen.Show()
}

func (r *Renderer) drawBrowserHeader(state State, w int) {
	order := "asc"
	if !state.Ascending {
		order = "desc"
	}
	mode := "raw"
	if state.Sorted {
		mode = sortNames[state.SortMode] + " " + order
	}
	if state.ShowHidden {
		mode += " +hidden"
	}
	header := fmt.Sprintf(" %s  [%s]", state.Path, mode)
	r.drawLine(0, header, w, tcell.StyleDefault.Reverse(true))
}

func (r *Renderer) drawListing(state State, w, h int) {
	rows := h - 3
	if rows < 1 {
		rows = 1
	}
	for i := 0; i < rows && i < len(state.Entries); i++ {
		entry := state.Entries[i]
		marker := "  "
		if entry.IsDir {
			marker = "/ "
		}
		line := marker + textutil.SanitizeName(entry.Name)
		if !entry.NeedsStat && !entry.IsDir {
			line += fmt.Sprintf("  %s  %s",
				formatSize(entry.Size),
				entry.Modified.Format(time.DateTime))
		}
		style := tcell.StyleDefault
		if i == state.Selected {
			style = style.Reverse(true)
		}
		r.drawLine(1+i, line, w, style)
	}

	footer := fmt.Sprintf(" %d-%d of %d",
		state.WindowStart+1,
		state.WindowStart+len(state.Entries),
		state.Total)
	if state.Total == 0 {
		footer = " empty"
	}
	if !state.Sorted {
		footer += "  (unsorted window)"
	}
	r.drawLine(h-2, footer, w, tcell.StyleDefault.Dim(true))
}

func (r *Renderer) drawEditorHeader(state State, w int) {
	dirty := ""
	if state.Dirty {
		dirty = " *"
	}
	header := fmt.Sprintf(" %s%s  [chunks %d-%d/%d]",
		state.FilePath, dirty, state.FirstChunk, state.SecondChunk, state.MaxChunk)
	r.drawLine(0, header, w, tcell.StyleDefault.Reverse(true))
}

func (r *Renderer) drawContent(state State, w, h int) {
	lines := bytes.Split(state.Content, []byte{'\n'})
	visible := h - 2
	if visible < 1 {
		visible = 1
	}

	cursorLine, cursorCol := locateCursor(lines, state.CursorByte)
	for row := 0; row < visible; row++ {
		idx := state.ScrollLine + row
		if idx >= len(lines) {
			break
		}
		line := textutil.ExpandTabs(string(lines[idx]), textutil.DefaultTabWidth)
		r.drawLine(1+row, line, w, tcell.StyleDefault)
	}
	if cursorLine >= state.ScrollLine && cursorLine < state.ScrollLine+visible {
		// Tab expansion only depends on what precedes it, so expanding
		// the prefix yields the cursor's on-screen column.
		prefix := textutil.ExpandTabs(string(lines[cursorLine][:cursorCol]), textutil.DefaultTabWidth)
		x := textutil.DisplayWidth(prefix)
		if x < w {
			r.screen.ShowCursor(x, 1+cursorLine-state.ScrollLine)
		}
	} else {
		r.screen.HideCursor()
	}
}

func (r *Renderer) drawStatusLine(state State, w, h int) {
	status := state.Status
	if state.Mode == ModePrompt {
		status = "unsaved changes: [y] save  [n] discard  [c] cancel"
	}
	r.drawLine(h-1, " "+status, w, tcell.StyleDefault.Reverse(true))
}

// drawLine writes text into one row, truncated to the screen width.
func (r *Renderer) drawLine(y int, text string, w int, style tcell.Style) {
	x := 0
	for _, ru := range text {
		width := runewidth.RuneWidth(ru)
		if width <= 0 {
			continue
		}
		if x+width > w {
			break
		}
		r.screen.SetContent(x, y, ru, nil, style)
		x += width
	}
	for ; x < w; x++ {
		r.screen.SetContent(x, y, ' ', nil, style)
	}
}

func locateCursor(lines [][]byte, cursor int) (line, col int) {
	remaining := cursor
	for i, l := range lines {
		if remaining <= len(l) {
			return i, remaining
		}
		remaining -= len(l) + 1
	}
	return len(lines) - 1, len(lines[len(lines)-1])
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<30:
		return fmt.Sprintf("%.1fG", float64(size)/(1<<30))
	case size >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%dB", size)
	}
}
