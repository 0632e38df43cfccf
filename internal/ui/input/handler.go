// Package input converts tcell events into session actions.
package input

import (
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/kk-code-lab/redit/internal/chunk"
	"github.com/kk-code-lab/redit/internal/nav"
	sessionpkg "github.com/kk-code-lab/redit/internal/session"
)

// editorPageLines is how many lines a PgUp/PgDn jump moves the cursor.
const editorPageLines = 16

// Handler maps events to actions per session mode.
type Handler struct{}

// NewHandler creates a new input handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Translate converts one tcell event into zero or more actions.
func (h *Handler) Translate(ev tcell.Event, mode sessionpkg.Mode) []sessionpkg.Action {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		w, hgt := ev.Size()
		return []sessionpkg.Action{sessionpkg.ResizeAction{Width: w, Height: hgt}}
	case *tcell.EventKey:
		return h.translateKey(ev, mode)
	default:
		return nil
	}
}

func (h *Handler) translateKey(ev *tcell.EventKey, mode sessionpkg.Mode) []sessionpkg.Action {
	if ev.Key() == tcell.KeyCtrlC {
		return []sessionpkg.Action{sessionpkg.QuitAction{}}
	}
	switch mode {
	case sessionpkg.ModeBrowser:
		return h.browserKey(ev)
	case sessionpkg.ModeEditor:
		return h.editorKey(ev)
	case sessionpkg.ModePrompt:
		return h.promptKey(ev)
	case sessionpkg.ModeReconnect:
		if ev.Key() == tcell.KeyEnter {
			return []sessionpkg.Action{sessionpkg.StorageAckAction{}}
		}
	}
	return nil
}

func (h *Handler) browserKey(ev *tcell.EventKey) []sessionpkg.Action {
	switch ev.Key() {
	case tcell.KeyUp:
		return one(sessionpkg.MoveSelectionAction{Delta: -1})
	case tcell.KeyDown:
		return one(sessionpkg.MoveSelectionAction{Delta: 1})
	case tcell.KeyPgUp:
		return one(sessionpkg.PageAction{Delta: -1})
	case tcell.KeyPgDn:
		return one(sessionpkg.PageAction{Delta: 1})
	case tcell.KeyEnter, tcell.KeyRight:
		return one(sessionpkg.EnterAction{})
	case tcell.KeyLeft, tcell.KeyBackspace, tcell.KeyBackspace2:
		return one(sessionpkg.GoParentAction{})
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'j':
			return one(sessionpkg.MoveSelectionAction{Delta: 1})
		case 'k':
			return one(sessionpkg.MoveSelectionAction{Delta: -1})
		case 'l':
			return one(sessionpkg.EnterAction{})
		case 'h':
			return one(sessionpkg.GoParentAction{})
		case 'n':
			return one(sessionpkg.SetSortAction{Mode: nav.SortByName})
		case 'd':
			return one(sessionpkg.SetSortAction{Mode: nav.SortByDate})
		case 's':
			return one(sessionpkg.SetSortAction{Mode: nav.SortBySize})
		case 'o':
			return one(sessionpkg.ToggleSortOrderAction{})
		case '.':
			return one(sessionpkg.ToggleHiddenAction{})
		case 'r':
			return one(sessionpkg.RefreshAction{})
		case 'q':
			return one(sessionpkg.QuitAction{})
		}
	}
	return nil
}

func (h *Handler) editorKey(ev *tcell.EventKey) []sessionpkg.Action {
	switch ev.Key() {
	case tcell.KeyEscape:
		return one(sessionpkg.CloseFileAction{})
	case tcell.KeyUp:
		return one(sessionpkg.MoveCursorAction{DeltaLines: -1})
	case tcell.KeyDown:
		return one(sessionpkg.MoveCursorAction{DeltaLines: 1})
	case tcell.KeyLeft:
		return one(sessionpkg.MoveCursorAction{DeltaRunes: -1})
	case tcell.KeyRight:
		return one(sessionpkg.MoveCursorAction{DeltaRunes: 1})
	case tcell.KeyPgUp:
		return one(sessionpkg.MoveCursorAction{DeltaLines: -editorPageLines})
	case tcell.KeyPgDn:
		return one(sessionpkg.MoveCursorAction{DeltaLines: editorPageLines})
	case tcell.KeyHome:
		// Track-then-release models the position control jumping to an
		// end stop and being let go.
		return []sessionpkg.Action{
			sessionpkg.SeekTrackAction{Step: 0},
			sessionpkg.SeekReleaseAction{},
		}
	case tcell.KeyEnd:
		return []sessionpkg.Action{
			sessionpkg.SeekTrackAction{Step: math.MaxInt64},
			sessionpkg.SeekReleaseAction{},
		}
	case tcell.KeyCtrlS:
		return one(sessionpkg.SaveAction{})
	case tcell.KeyEnter:
		return one(sessionpkg.InsertRuneAction{Rune: '\n'})
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return one(sessionpkg.BackspaceAction{})
	case tcell.KeyTab:
		return one(sessionpkg.InsertRuneAction{Rune: '\t'})
	case tcell.KeyRune:
		return one(sessionpkg.InsertRuneAction{Rune: ev.Rune()})
	}
	return nil
}

func (h *Handler) promptKey(ev *tcell.EventKey) []sessionpkg.Action {
	if ev.Key() == tcell.KeyEscape {
		return one(sessionpkg.PromptResolveAction{Resolution: chunk.ResolveCancel})
	}
	if ev.Key() == tcell.KeyRune {
		switch ev.Rune() {
		case 'y', 's':
			return one(sessionpkg.PromptResolveAction{Resolution: chunk.ResolveSave})
		case 'n', 'd':
			return one(sessionpkg.PromptResolveAction{Resolution: chunk.ResolveDiscard})
		case 'c':
			return one(sessionpkg.PromptResolveAction{Resolution: chunk.ResolveCancel})
		}
	}
	return nil
}

func one(action sessionpkg.Action) []sessionpkg.Action {
	return []sessionpkg.Action{action}
}
