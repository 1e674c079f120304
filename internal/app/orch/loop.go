package orch

import (
	"errors"
	"sync/atomic"

	"github.com/Rana-X/nora/internal/app/control"
	"github.com/Rana-X/nora/internal/app/layout"
	"github.com/Rana-X/nora/internal/app/session"
	"github.com/Rana-X/nora/internal/core"
	"github.com/Rana-X/nora/internal/domain"
)

// input is an item delivered to the loop.
type input interface {
	isInput()
}

type transportEvent struct{ ev core.Event }

type quiescence struct{ gen uint64 }

type desktopStatus struct {
	status domain.DesktopStatus
	msg    string
}

type call struct{ fn func() }

func (transportEvent) isInput() {}
func (quiescence) isInput()     {}
func (desktopStatus) isInput()  {}
func (call) isInput()           {}

// subscription is one session-scoped listener. Events already queued when it
// is released are dropped.
type subscription struct {
	active atomic.Bool
}

type acquirer interface {
	Acquire(release func()) bool
}

func (s *subscription) acquire(scope acquirer) {
	s.active.Store(true)
	scope.Acquire(func() { s.active.Store(false) })
}

func (s *subscription) live() bool { return s.active.Load() }

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		select {
		case <-o.quit:
			return
		case <-o.wake:
		case in := <-o.inbox:
			o.handle(in)
		}
		o.recompute()
	}
}

// post enqueues in FIFO order. It blocks while the mailbox is full and gives
// up once the loop is stopping.
func (o *Orchestrator) post(in input) bool {
	select {
	case <-o.quit:
		return false
	default:
	}
	select {
	case o.inbox <- in:
		return true
	case <-o.quit:
		return false
	}
}

// do runs fn on the loop and waits for it. Never call it from the loop.
func (o *Orchestrator) do(fn func()) bool {
	ran := make(chan struct{})
	if !o.post(call{fn: func() { fn(); close(ran) }}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-o.quit:
		return false
	}
}

// nudge asks the loop to recompute without queueing behind events. It never
// blocks, so it is safe from the loop itself.
func (o *Orchestrator) nudge() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) handle(in input) {
	switch in := in.(type) {
	case transportEvent:
		o.dispatch(in.ev)
	case quiescence:
		o.tracker.Expire(in.gen)
	case desktopStatus:
		o.desktopStatus = in.status
		o.desktopErr = in.msg
		if in.status == domain.DesktopError {
			o.logger.Warn().Str("room", o.roomName).Str("error", in.msg).Msg("remote desktop failed")
		}
	case call:
		in.fn()
	}
}

func (o *Orchestrator) dispatch(ev core.Event) {
	switch ev := ev.(type) {
	case core.ConnectionStateChanged:
		o.manager.HandleState(ev.State)
	case core.ParticipantJoined:
		if o.roster.live() {
			o.tracker.Joined(ev.Identity)
		}
	case core.ParticipantLeft:
		if o.roster.live() {
			o.tracker.Left(ev.Identity)
		}
	case core.TrackSubscribed:
		if o.tracks.live() {
			o.tracker.TrackSubscribed(ev.Participant, ev.Track)
		}
	case core.TrackUnsubscribed:
		if o.tracks.live() {
			o.tracker.TrackUnsubscribed(ev.Participant, ev.Track)
		}
	case core.ActivityChanged:
		if o.activity.live() {
			o.tracker.Activity(ev.Participant, ev.Speaking)
		}
	case core.DataReceived:
		if !o.data.live() {
			return
		}
		_, msg, err := o.interp.Handle(ev.Sender, ev.Payload)
		switch {
		case err != nil:
			o.metrics.ControlMessageDropped(dropReason(err))
		case msg.Known():
			o.metrics.ControlMessage(msg.Type)
		}
	default:
		o.logger.Debug().Type("event", ev).Msg("unhandled transport event")
	}
}

func (o *Orchestrator) compose() layout.View {
	cs := o.interp.State()
	return layout.Compose(layout.Inputs{
		Connection:        o.manager.State(),
		RoomName:          o.roomName,
		Identity:          o.manager.LocalIdentity(),
		MicrophoneEnabled: o.manager.MicrophoneEnabled(),
		Agent:             o.tracker.Target(),
		Speaking:          o.tracker.Speaking(),
		Avatar:            o.tracker.Video(),
		TaskActive:        cs.TaskActive,
		Desktop:           cs.Desktop,
		DesktopStatus:     o.desktopStatus,
		DesktopError:      o.desktopErr,
	})
}

func (o *Orchestrator) recompute() {
	o.tracker.SetConnected(o.manager.State() == domain.Connected)
	v := o.compose()

	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	cur := o.view.Load()
	if cur.Equal(v) {
		return
	}
	if cur.Mode != v.Mode {
		o.logger.Info().Str("room", o.roomName).Stringer("from", cur.Mode).Stringer("to", v.Mode).Msg("display mode")
		o.metrics.DisplayMode(v.Mode.String())
	}
	o.view.Store(&v)
	for _, ch := range o.watchers {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, control.ErrNotUTF8):
		return "not_utf8"
	case errors.Is(err, control.ErrNotJSON):
		return "not_json"
	case errors.Is(err, control.ErrMissingType):
		return "missing_type"
	case errors.Is(err, control.ErrMissingField):
		return "missing_field"
	default:
		return "other"
	}
}

func failReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenEmpty), errors.Is(err, domain.ErrURLEmpty):
		return "invalid_credentials"
	case errors.Is(err, session.ErrLeft):
		return "left"
	default:
		return "transport"
	}
}
