// Package presence finds the agent participant and derives its speaking
// signal.
package presence

import (
	"slices"
	"time"

	"github.com/Rana-X/nora/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Quiescence time.Duration
	AfterFunc  AfterFunc
	// OnQuiescence is called from the timer goroutine. The owner must hand
	// gen back to Expire on its own loop.
	OnQuiescence func(gen uint64)
}

// Tracker locks onto the first remote participant it sees. It is not safe for
// concurrent use.
type Tracker struct {
	opts   Options
	logger zerolog.Logger

	local     string
	connected bool
	roster    []string // remote participants in join order
	target    string
	videos    map[string]core.TrackInfo
	speaking  speaking
}

func NewTracker(opts Options) *Tracker {
	if opts.Quiescence <= 0 {
		opts.Quiescence = DefaultQuiescence
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = RealAfterFunc
	}
	if opts.OnQuiescence == nil {
		opts.OnQuiescence = func(uint64) {}
	}
	return &Tracker{
		opts:   opts,
		logger: log.With().Str("module", "presence").Logger(),
		videos: make(map[string]core.TrackInfo),
	}
}

// SetLocalIdentity excludes the local participant from targeting.
func (t *Tracker) SetLocalIdentity(identity string) {
	t.local = identity
	if t.target == identity {
		t.retarget()
	}
}

// SetConnected masks the speaking signal while not connected. Losing an
// established connection also drops the raw signal; activity seen before the
// first connect is kept and shows once connected.
func (t *Tracker) SetConnected(connected bool) bool {
	if t.connected == connected {
		return false
	}
	t.connected = connected
	if !connected {
		return t.speaking.set(false)
	}
	return t.speaking.value
}

func (t *Tracker) Joined(identity string) bool {
	if identity == "" || identity == t.local || slices.Contains(t.roster, identity) {
		return false
	}
	t.roster = append(t.roster, identity)
	if t.target != "" {
		t.logger.Debug().Str("participant", identity).Str("target", t.target).Msg("ignoring later participant")
		return false
	}
	t.target = identity
	t.logger.Info().Str("participant", identity).Msg("tracking agent")
	return true
}

func (t *Tracker) Left(identity string) bool {
	delete(t.videos, identity)
	idx := slices.Index(t.roster, identity)
	if idx < 0 {
		return false
	}
	t.roster = slices.Delete(t.roster, idx, idx+1)
	if identity != t.target {
		return false
	}
	t.logger.Info().Str("participant", identity).Msg("agent left")
	t.speaking.set(false)
	t.retarget()
	return true
}

// retarget re-arms tracking on the earliest remaining remote participant,
// or waits for the next one to join.
func (t *Tracker) retarget() {
	t.target = ""
	for _, id := range t.roster {
		if id != t.local {
			t.target = id
			t.logger.Info().Str("participant", id).Msg("tracking agent")
			return
		}
	}
}

func (t *Tracker) TrackSubscribed(participant string, track core.TrackInfo) bool {
	if participant == t.local || !track.IsAvatarVideo() {
		return false
	}
	prev, ok := t.videos[participant]
	t.videos[participant] = track
	return participant == t.target && (!ok || prev != track)
}

func (t *Tracker) TrackUnsubscribed(participant string, track core.TrackInfo) bool {
	prev, ok := t.videos[participant]
	if !ok || prev.SID != track.SID {
		return false
	}
	delete(t.videos, participant)
	return participant == t.target
}

// Activity applies a voice-activity notification whatever the connection
// state; Speaking masks it. Rising edges apply at once, falling edges wait out
// the quiescence window. The result reports a change in Speaking.
func (t *Tracker) Activity(participant string, active bool) bool {
	if participant == "" || participant != t.target {
		return false
	}
	if active {
		return t.speaking.set(true) && t.connected
	}
	if t.speaking.value {
		t.speaking.clear(t.opts.AfterFunc, t.opts.Quiescence, t.opts.OnQuiescence)
	}
	return false
}

// Expire is the loop-side half of a quiescence timer firing.
func (t *Tracker) Expire(gen uint64) bool {
	return t.speaking.expire(gen)
}

func (t *Tracker) Target() string { return t.target }

func (t *Tracker) Speaking() bool { return t.connected && t.speaking.value }

// Video returns the target's avatar track, or nil while waiting for it.
func (t *Tracker) Video() *core.TrackInfo {
	if t.target == "" {
		return nil
	}
	v, ok := t.videos[t.target]
	if !ok {
		return nil
	}
	return &v
}

// Close stops the quiescence timer.
func (t *Tracker) Close() {
	t.speaking.set(false)
}
