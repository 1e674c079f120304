package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Rana-X/nora/internal/app/orch"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"
)

// ClientID identifies one browser client across requests.
type ClientID string

var ErrRateLimited = errors.New("too many session starts")

type Options struct {
	// Session is the template for every orchestrator; OnDisconnect is owned
	// by the registry.
	Session    orch.Config
	StartRate  rate.Limit
	StartBurst int
	// LimiterIdle is how long a client's start budget is kept after its last
	// start. Defaults to ten minutes.
	LimiterIdle time.Duration
	Now         func() time.Time
}

const defaultLimiterIdle = 10 * time.Minute

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Registry maps each client to at most one live session.
type Registry struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	wg     conc.WaitGroup

	mu       sync.RWMutex
	sessions map[ClientID]*orch.Orchestrator
	limiters  map[ClientID]*clientLimiter
	lastSweep time.Time
}

func NewRegistry(opts Options) *Registry {
	if opts.StartRate <= 0 {
		opts.StartRate = rate.Inf
	}
	if opts.StartBurst <= 0 {
		opts.StartBurst = 1
	}
	if opts.LimiterIdle <= 0 {
		opts.LimiterIdle = defaultLimiterIdle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		sessions: make(map[ClientID]*orch.Orchestrator),
		limiters: make(map[ClientID]*clientLimiter),
	}
}

// Allow spends one start from the client's budget.
func (r *Registry) Allow(id ClientID) bool {
	if r.opts.StartRate == rate.Inf {
		return true
	}
	now := r.opts.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastSweep) >= r.opts.LimiterIdle {
		r.sweepLimiters(now)
	}
	cl, ok := r.limiters[id]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(r.opts.StartRate, r.opts.StartBurst)}
		r.limiters[id] = cl
	}
	cl.lastSeen = now
	return cl.lim.AllowN(now, 1)
}

// sweepLimiters drops budgets that sat idle and have refilled, which makes
// them indistinguishable from a fresh one. Caller holds r.mu.
func (r *Registry) sweepLimiters(now time.Time) {
	r.lastSweep = now
	for id, cl := range r.limiters {
		if now.Sub(cl.lastSeen) < r.opts.LimiterIdle {
			continue
		}
		if cl.lim.TokensAt(now) < float64(r.opts.StartBurst) {
			continue
		}
		delete(r.limiters, id)
	}
}

// Start replaces the client's session with a new one joining creds. The join
// runs in the background; its outcome shows up in the session's view.
func (r *Registry) Start(id ClientID, creds domain.SessionCredentials) *orch.Orchestrator {
	cfg := r.opts.Session
	var o *orch.Orchestrator
	cfg.OnDisconnect = func() { r.release(id, o) }
	o = orch.New(cfg)

	r.mu.Lock()
	old := r.sessions[id]
	r.sessions[id] = o
	r.mu.Unlock()

	if old != nil {
		log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("replacing session")
		old.Close()
	}

	log.Info().Str("module", "app.registry").Str("client", string(id)).Str("room", creds.RoomName).Msg("starting session")
	r.wg.Go(func() {
		if err := o.Join(r.ctx, creds); err != nil {
			log.Warn().Str("module", "app.registry").Str("client", string(id)).Err(err).Msg("session did not connect")
		}
	})
	return o
}

func (r *Registry) Get(id ClientID) (*orch.Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.sessions[id]
	return o, ok
}

// Leave ends the client's session, if any.
func (r *Registry) Leave(id ClientID) bool {
	r.mu.Lock()
	o, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	o.Close()
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("left session")
	return true
}

// release drops o once its session ended on its own. It may run on o's loop
// goroutine, so closing happens elsewhere.
func (r *Registry) release(id ClientID, o *orch.Orchestrator) {
	r.mu.Lock()
	if cur, ok := r.sessions[id]; ok && cur == o {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	r.wg.Go(o.Close)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// LeaveAll ends every session and waits for background work.
func (r *Registry) LeaveAll() {
	r.cancel()

	r.mu.Lock()
	all := make([]*orch.Orchestrator, 0, len(r.sessions))
	for id, o := range r.sessions {
		all = append(all, o)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	var wg conc.WaitGroup
	for _, o := range all {
		wg.Go(o.Close)
	}
	wg.Wait()
	r.wg.Wait()
	log.Info().Str("module", "app.registry").Int("sessions", len(all)).Msg("all sessions closed")
}
