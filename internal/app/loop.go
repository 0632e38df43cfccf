package app

import (
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/kk-code-lab/redit/internal/chunk"
	"github.com/kk-code-lab/redit/internal/fs"
	"github.com/kk-code-lab/redit/internal/nav"
	"github.com/kk-code-lab/redit/internal/patch"
	"github.com/kk-code-lab/redit/internal/persist"
	sessionpkg "github.com/kk-code-lab/redit/internal/session"
	"github.com/kk-code-lab/redit/internal/storage"
	inputui "github.com/kk-code-lab/redit/internal/ui/input"
	renderui "github.com/kk-code-lab/redit/internal/ui/render"
)

// Config carries the command-line configuration into the application.
type Config struct {
	Root       string
	MaxEntries int
	ChunkSize  int
	Readonly   bool
	ShowHidden bool
	Store      persist.Store
	Logger     *zap.Logger
}

// NewApplication initializes the screen and wires the session.
func NewApplication(cfg Config) (*Application, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	monitor := storage.NewMonitor(cfg.Root, storage.Options{}, logger)
	if err := monitor.StartWatch(); err != nil {
		logger.Warn("storage watch unavailable", zap.Error(err))
	}

	navigator, err := nav.New(cfg.Root, nav.Options{
		MaxEntries: cfg.MaxEntries,
		ShowHidden: cfg.ShowHidden,
		Store:      cfg.Store,
		Logger:     logger,
	})
	if err != nil {
		screen.Fini()
		_ = monitor.Close()
		return nil, err
	}

	window := chunk.New(fs.ChunkReader{}, patch.Writer{}, monitor, cfg.ChunkSize, logger)
	session := sessionpkg.NewSession(navigator, window, monitor, cfg.Readonly, logger)
	w, h := screen.Size()

	app := &Application{
		screen:   screen,
		session:  session,
		renderer: renderui.NewRenderer(screen),
		input:    inputui.NewHandler(),
		monitor:  monitor,
		logger:   logger,
	}
	if warn := navigator.RestoreWarning(); warn != nil {
		session.Status = "restored defaults: " + warn.Error()
	}
	_ = session.Apply(sessionpkg.ResizeAction{Width: w, Height: h})
	return app, nil
}

// Run drives the control loop: tcell events and storage events both
// become actions applied on this single goroutine.
func (app *Application) Run() {
	app.render()

	eventCh := make(chan tcell.Event)
	go func() {
		for {
			ev := app.screen.PollEvent()
			if ev == nil {
				return
			}
			eventCh <- ev
		}
	}()

	for !app.session.Quit {
		select {
		case ev := <-eventCh:
			for _, action := range app.input.Translate(ev, app.session.Mode) {
				app.apply(action)
			}
		case ev := <-app.monitor.Events():
			app.apply(sessionpkg.StorageEventAction{Event: ev})
		}
		app.render()
	}
}

func (app *Application) apply(action sessionpkg.Action) {
	if err := app.session.Apply(action); err != nil {
		app.logger.Error("apply action", zap.Error(err))
	}
}

func (app *Application) render() {
	app.renderer.Render(renderState(app.session))
}

// renderState projects the session onto the renderer's view model, which
// keeps ui/render free of engine imports.
func renderState(s *sessionpkg.Session) renderui.State {
	mode, asc := s.Nav.Sort()
	state := renderui.State{
		Mode:        renderui.Mode(s.Mode),
		Path:        s.Nav.Current(),
		Entries:     s.Nav.Window(),
		Selected:    s.Selected,
		WindowStart: s.Nav.WindowStart(),
		Total:       s.Nav.TotalEntries(),
		Sorted:      s.Nav.SortEnabled(),
		SortMode:    int(mode),
		Ascending:   asc,
		ShowHidden:  s.Nav.ShowHidden(),
		Status:      s.Status,
	}
	if s.Mode == sessionpkg.ModeEditor || s.Mode == sessionpkg.ModePrompt {
		first, second, maxOffset := s.Win.Offsets()
		state.FilePath = s.Win.Path()
		state.Content = s.Win.Content()
		state.CursorByte = s.CursorByte
		state.ScrollLine = s.ScrollLine
		state.Dirty = s.Win.Dirty()
		state.FirstChunk = first
		state.SecondChunk = second
		state.MaxChunk = maxOffset
	}
	return state
}
