// Package storage tracks whether the backing store is reachable and runs
// the reconnect worker after a failed load or save.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kk-code-lab/redit/internal/errs"
)

// EventKind identifies a reconnect progress report.
type EventKind int

const (
	// EventPrompt asks the control thread to show the blocking reconnect
	// prompt; the worker waits for Acknowledge before probing.
	EventPrompt EventKind = iota
	// EventAttempt reports one probe attempt.
	EventAttempt
	// EventReconnected reports that the store is reachable again.
	EventReconnected
	// EventFailed reports that all attempts were exhausted.
	EventFailed
)

// Event is delivered on the events channel; the worker never mutates
// shared state directly.
type Event struct {
	Kind    EventKind
	Attempt int
	Err     error
}

// Readiness is the storage readiness contract consumed by the chunk
// window and the patch writer retry path.
type Readiness interface {
	IsReady() bool
	ScheduleReconnect()
	Events() <-chan Event
}

// Options tune the reconnect worker.
type Options struct {
	Attempts int           // probe attempts per reconnect, default 5
	Delay    time.Duration // fixed inter-attempt delay, default 2s
}

// Monitor probes a path for reachability and owns the single reconnect
// worker. At most one worker is in flight; ScheduleReconnect while one is
// active is a no-op.
type Monitor struct {
	path    string
	probe   func(string) error
	logger  *zap.Logger
	opts    Options
	events  chan Event
	ack     chan struct{}
	nudge   chan struct{}
	watcher *fsnotify.Watcher

	inFlight atomic.Bool
}

// NewMonitor builds a monitor probing path. A nil logger disables logging.
func NewMonitor(path string, opts Options, logger *zap.Logger) *Monitor {
	if opts.Attempts <= 0 {
		opts.Attempts = 5
	}
	if opts.Delay <= 0 {
		opts.Delay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		path:   path,
		probe:  probePath,
		logger: logger,
		opts:   opts,
		events: make(chan Event, 8),
		ack:    make(chan struct{}, 1),
		nudge:  make(chan struct{}, 1),
	}
}

// SetProbe overrides the reachability probe. Test hook.
func (m *Monitor) SetProbe(probe func(string) error) {
	m.probe = probe
}

func probePath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("probe %s: %w: %v", path, errs.ErrNotReady, err)
	}
	return nil
}

// IsReady probes the store synchronously.
func (m *Monitor) IsReady() bool {
	return m.probe(m.path) == nil
}

// Events is the channel the control loop drains for reconnect progress.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Acknowledge unblocks a worker waiting on the reconnect prompt.
func (m *Monitor) Acknowledge() {
	select {
	case m.ack <- struct{}{}:
	default:
	}
}

// ScheduleReconnect starts the reconnect worker unless one is already in
// flight. The worker emits EventPrompt, blocks on Acknowledge, then
// probes up to opts.Attempts times with a fixed delay between attempts.
func (m *Monitor) ScheduleReconnect() {
	if !m.inFlight.CompareAndSwap(false, true) {
		return
	}
	m.logger.Info("storage reconnect scheduled", zap.String("path", m.path))
	go m.reconnect()
}

func (m *Monitor) reconnect() {
	defer m.inFlight.Store(false)

	m.events <- Event{Kind: EventPrompt}
	<-m.ack

	var lastErr error
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		lastErr = m.probe(m.path)
		m.events <- Event{Kind: EventAttempt, Attempt: attempt, Err: lastErr}
		if lastErr == nil {
			m.logger.Info("storage reconnected", zap.Int("attempt", attempt))
			m.events <- Event{Kind: EventReconnected, Attempt: attempt}
			return
		}
		m.logger.Warn("storage probe failed",
			zap.Int("attempt", attempt), zap.Error(lastErr))
		if attempt == m.opts.Attempts {
			break
		}
		// A watcher nudge ends the wait early so a remount is noticed
		// without burning an attempt on a timer.
		select {
		case <-time.After(m.opts.Delay):
		case <-m.nudge:
		}
	}
	m.events <- Event{Kind: EventFailed, Attempt: m.opts.Attempts, Err: lastErr}
}

// StartWatch begins watching the parent of the monitored path and nudges
// the reconnect worker when anything changes there. Best effort; an
// unsupported or failing watcher only disables the nudge.
func (m *Monitor) StartWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w: %v", errs.ErrIO, err)
	}
	parent := filepath.Dir(m.path)
	if err := watcher.Add(parent); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w: %v", parent, errs.ErrIO, err)
	}
	m.watcher = watcher
	go func() {
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case m.nudge <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running.
func (m *Monitor) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
