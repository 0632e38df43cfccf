package session

import (
	"github.com/kk-code-lab/redit/internal/chunk"
	"github.com/kk-code-lab/redit/internal/nav"
	"github.com/kk-code-lab/redit/internal/storage"
)

// Action is the base interface for all session requests. The input layer
// only issues actions; the session consumes them in Apply and the
// presentation layer reads the resulting state.
type Action interface{}

// ===== BROWSER ACTIONS =====

type MoveSelectionAction struct {
	Delta int
}

type PageAction struct {
	Delta int // pages, negative is up
}

type EnterAction struct{}

type GoParentAction struct{}

type RefreshAction struct{}

type SetSortAction struct {
	Mode nav.SortMode
}

type ToggleSortOrderAction struct{}

type ToggleHiddenAction struct{}

// ===== EDITOR ACTIONS =====

type CloseFileAction struct{}

type MoveCursorAction struct {
	DeltaLines int
	DeltaRunes int
}

type SeekTrackAction struct {
	Step int64
}

type SeekReleaseAction struct{}

type InsertRuneAction struct {
	Rune rune
}

type BackspaceAction struct{}

type SaveAction struct{}

// ===== PROMPT & STORAGE ACTIONS =====

type PromptResolveAction struct {
	Resolution chunk.Resolution
}

type StorageAckAction struct{}

type StorageEventAction struct {
	Event storage.Event
}

// ===== APPLICATION ACTIONS =====

type ResizeAction struct {
	Width  int
	Height int
}

type QuitAction struct{}
