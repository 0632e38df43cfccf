package app

import (
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	sessionpkg "github.com/kk-code-lab/redit/internal/session"
	"github.com/kk-code-lab/redit/internal/storage"
	inputui "github.com/kk-code-lab/redit/internal/ui/input"
	renderui "github.com/kk-code-lab/redit/internal/ui/render"
)

// Application represents the running app.
type Application struct {
	screen   tcell.Screen
	session  *sessionpkg.Session
	renderer *renderui.Renderer
	input    *inputui.Handler
	monitor  *storage.Monitor
	logger   *zap.Logger
}

// Close cleans up resources. Run leaves teardown to Close so the screen
// is finalized exactly once.
func (app *Application) Close() error {
	if app.monitor != nil {
		_ = app.monitor.Close()
	}
	app.screen.Fini()
	return nil
}

// Session exposes the session for tests.
func (app *Application) Session() *sessionpkg.Session {
	return app.session
}
