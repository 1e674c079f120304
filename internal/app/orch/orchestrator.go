// Package orch runs one session: it routes transport events into the
// control interpreter and presence tracker and publishes the reconciled view.
package orch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rana-X/nora/internal/app/control"
	"github.com/Rana-X/nora/internal/app/layout"
	"github.com/Rana-X/nora/internal/app/presence"
	"github.com/Rana-X/nora/internal/app/session"
	"github.com/Rana-X/nora/internal/core"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/Rana-X/nora/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultMailboxSize = 256

type Config struct {
	Dialer     core.Dialer
	Quiescence time.Duration
	AfterFunc  presence.AfterFunc
	Metrics    metrics.Collector
	// OnDisconnect is told once when the session ends, voluntarily or not.
	// It must not block.
	OnDisconnect func()
	MailboxSize  int
}

// Orchestrator owns one session. Everything except the view snapshot and the
// watcher set is touched only by the loop goroutine.
type Orchestrator struct {
	cfg     Config
	logger  zerolog.Logger
	metrics metrics.Collector

	manager *session.Manager
	interp  *control.Interpreter
	tracker *presence.Tracker

	data     subscription
	activity subscription
	roster   subscription
	tracks   subscription

	inbox     chan input
	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool
	endOnce   sync.Once

	view      atomic.Pointer[layout.View]
	watchMu   sync.Mutex
	watchers  map[int]chan layout.View
	nextWatch int
	closed    bool

	// loop-owned
	roomName      string
	desktopStatus domain.DesktopStatus
	desktopErr    string
}

func New(cfg Config) *Orchestrator {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaultMailboxSize
	}
	o := &Orchestrator{
		cfg:      cfg,
		logger:   log.With().Str("module", "orch").Logger(),
		metrics:  cfg.Metrics,
		interp:   control.NewInterpreter(),
		inbox:    make(chan input, cfg.MailboxSize),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		watchers: make(map[int]chan layout.View),
	}
	o.tracker = presence.NewTracker(presence.Options{
		Quiescence:   cfg.Quiescence,
		AfterFunc:    cfg.AfterFunc,
		OnQuiescence: func(gen uint64) { o.post(quiescence{gen: gen}) },
	})
	o.manager = session.NewManager(session.Options{
		Dialer:        cfg.Dialer,
		OnStateChange: o.onStateChange,
		OnDisconnect:  o.onDisconnect,
	})

	initial := o.compose()
	o.view.Store(&initial)

	go o.run()
	return o
}

// Join establishes the session and blocks until it is connected or failed.
// Listeners are scoped to the session and released on every exit path.
func (o *Orchestrator) Join(ctx context.Context, creds domain.SessionCredentials) error {
	if !o.do(func() { o.roomName = creds.RoomName }) {
		return session.ErrLeft
	}
	for _, s := range []*subscription{&o.data, &o.activity, &o.roster, &o.tracks} {
		s.acquire(o.manager)
	}

	o.started.Store(true)
	o.metrics.SessionStarted()
	sink := core.EventSinkFunc(func(ev core.Event) { o.post(transportEvent{ev: ev}) })
	if err := o.manager.Connect(ctx, creds, sink); err != nil {
		o.metrics.SessionFailed(failReason(err))
		o.endOnce.Do(o.metrics.SessionEnded)
		return err
	}
	o.do(func() { o.tracker.SetLocalIdentity(o.manager.LocalIdentity()) })
	return nil
}

// Leave ends the session. The loop keeps running so the final view can be
// read; Close stops it.
func (o *Orchestrator) Leave() {
	o.manager.Leave()
}

func (o *Orchestrator) SetMicrophoneEnabled(enabled bool) error {
	if err := o.manager.SetMicrophoneEnabled(enabled); err != nil {
		return err
	}
	o.nudge()
	return nil
}

func (o *Orchestrator) DesktopConnecting() {
	o.post(desktopStatus{status: domain.DesktopConnecting})
}

func (o *Orchestrator) DesktopConnected() {
	o.post(desktopStatus{status: domain.DesktopConnected})
}

func (o *Orchestrator) DesktopDisconnected() {
	o.post(desktopStatus{status: domain.DesktopIdle})
}

// DesktopError only marks the desktop view; the avatar and the session are
// unaffected.
func (o *Orchestrator) DesktopError(msg string) {
	o.post(desktopStatus{status: domain.DesktopError, msg: msg})
}

func (o *Orchestrator) State() domain.ConnectionState { return o.manager.State() }

// View returns the latest published view.
func (o *Orchestrator) View() layout.View { return *o.view.Load() }

// Watch streams views, starting with the current one. Slow readers only see
// the newest view. The channel is closed by Close.
func (o *Orchestrator) Watch() (<-chan layout.View, func()) {
	ch := make(chan layout.View, 1)

	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	if o.closed {
		ch <- *o.view.Load()
		close(ch)
		return ch, func() {}
	}
	id := o.nextWatch
	o.nextWatch++
	o.watchers[id] = ch
	ch <- *o.view.Load()

	return ch, func() {
		o.watchMu.Lock()
		defer o.watchMu.Unlock()
		delete(o.watchers, id)
	}
}

// Close leaves the session and stops the loop. Safe to call more than once.
func (o *Orchestrator) Close() {
	o.manager.Leave()
	o.closeOnce.Do(func() {
		close(o.quit)
		<-o.done
		o.recompute()
		o.tracker.Close()

		o.watchMu.Lock()
		o.closed = true
		for id, ch := range o.watchers {
			close(ch)
			delete(o.watchers, id)
		}
		o.watchMu.Unlock()
		o.logger.Debug().Str("room", o.roomName).Msg("closed")
	})
}

// Done is closed once the loop has stopped.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

func (o *Orchestrator) onStateChange(s domain.ConnectionState) {
	o.metrics.ConnectionState(s.String())
	o.nudge()
}

func (o *Orchestrator) onDisconnect() {
	if o.started.Load() {
		o.endOnce.Do(o.metrics.SessionEnded)
	}
	o.nudge()
	if o.cfg.OnDisconnect != nil {
		o.cfg.OnDisconnect()
	}
}
