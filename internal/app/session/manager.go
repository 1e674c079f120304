// Package session owns the lifecycle of one real-time session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Rana-X/nora/internal/core"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrLeft           = errors.New("session left")
	ErrNotConnected   = errors.New("session not connected")
)

// DefaultDialOptions publishes audio only; this side receives video.
func DefaultDialOptions() core.DialOptions {
	return core.DialOptions{PublishAudio: true, PublishVideo: false, AutoSubscribe: true}
}

type Options struct {
	Dialer      core.Dialer
	DialOptions *core.DialOptions
	// OnStateChange observes every transition. It runs on whichever goroutine
	// caused the transition and must not block.
	OnStateChange func(domain.ConnectionState)
	// OnDisconnect is the host notification. It fires exactly once, for a
	// voluntary leave and for a transport loss alike.
	OnDisconnect func()
}

type Manager struct {
	dialer       core.Dialer
	dialOpts     core.DialOptions
	onState      func(domain.ConnectionState)
	onDisconnect func()
	notifyOnce   sync.Once

	state  atomic.Int32
	scope  Scope
	logger zerolog.Logger

	mu         sync.Mutex
	started    bool
	leaving    bool
	cancelDial context.CancelFunc
	conn       core.Conn
	identity   string
	mic        bool
}

func NewManager(opts Options) *Manager {
	dialOpts := DefaultDialOptions()
	if opts.DialOptions != nil {
		dialOpts = *opts.DialOptions
	}
	m := &Manager{
		dialer:       opts.Dialer,
		dialOpts:     dialOpts,
		onState:      opts.OnStateChange,
		onDisconnect: opts.OnDisconnect,
		logger:       log.With().Str("module", "session").Logger(),
	}
	m.state.Store(int32(domain.Disconnected))
	return m
}

func (m *Manager) State() domain.ConnectionState {
	return domain.ConnectionState(m.state.Load())
}

// Acquire ties release to this session's teardown.
func (m *Manager) Acquire(release func()) bool {
	return m.scope.Acquire(release)
}

// Connect establishes the session and blocks until it is joined or failed.
// Transport events flow to sink until teardown. A failed establishment ends
// in Disconnected and notifies the host.
func (m *Manager) Connect(ctx context.Context, creds domain.SessionCredentials, sink core.EventSink) error {
	m.mu.Lock()
	if m.leaving {
		m.mu.Unlock()
		return ErrLeft
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	ctx, cancel := context.WithCancel(ctx)
	m.cancelDial = cancel
	m.mu.Unlock()
	defer cancel()

	g := &gate{next: sink}
	m.scope.Acquire(g.close)

	if err := creds.Validate(); err != nil {
		m.shutdown("invalid credentials")
		return fmt.Errorf("connect: %w", err)
	}

	m.transition(domain.Connecting)
	m.logger.Info().Str("room", creds.RoomName).Str("url", creds.URL).Msg("connecting")

	conn, err := m.dialer.Dial(ctx, creds, m.dialOpts, g)
	if err != nil {
		m.logger.Error().Err(err).Str("room", creds.RoomName).Msg("session establishment failed")
		m.shutdown("establishment failed")
		return fmt.Errorf("connect to %s: %w", creds.URL, err)
	}

	m.mu.Lock()
	if m.leaving {
		m.mu.Unlock()
		conn.Disconnect()
		return ErrLeft
	}
	m.conn = conn
	m.identity = conn.LocalIdentity()
	m.mu.Unlock()

	if err := conn.SetMicrophoneEnabled(true); err != nil {
		m.logger.Warn().Err(err).Msg("enable microphone")
	} else {
		m.mu.Lock()
		m.mic = true
		m.mu.Unlock()
	}

	m.transition(domain.Connected)
	m.logger.Info().Str("room", creds.RoomName).Str("identity", m.LocalIdentity()).Msg("connected")
	return nil
}

// HandleState applies a transport-reported connection state. A transport
// Disconnected that the user did not ask for tears the session down.
func (m *Manager) HandleState(s domain.ConnectionState) {
	switch s {
	case domain.Disconnected:
		m.shutdown("transport disconnected")
	case domain.Connected:
		m.mu.Lock()
		established := m.conn != nil
		m.mu.Unlock()
		// Connect publishes the first Connected itself.
		if established {
			m.transition(s)
		}
	default:
		m.transition(s)
	}
}

// Leave tears the session down. Safe to call any number of times.
func (m *Manager) Leave() {
	m.shutdown("left")
}

func (m *Manager) shutdown(reason string) {
	m.mu.Lock()
	if m.leaving {
		m.mu.Unlock()
		return
	}
	m.leaving = true
	conn := m.conn
	m.conn = nil
	m.mic = false
	if m.cancelDial != nil {
		m.cancelDial()
	}
	m.mu.Unlock()

	m.scope.Close()
	if conn != nil {
		conn.Disconnect()
	}
	m.transition(domain.Disconnected)

	m.notifyOnce.Do(func() {
		m.logger.Info().Str("reason", reason).Msg("session ended")
		if m.onDisconnect != nil {
			m.onDisconnect()
		}
	})
}

func (m *Manager) transition(s domain.ConnectionState) {
	m.mu.Lock()
	if m.leaving && s != domain.Disconnected {
		m.mu.Unlock()
		return
	}
	prev := domain.ConnectionState(m.state.Swap(int32(s)))
	m.mu.Unlock()

	if prev == s {
		return
	}
	m.logger.Debug().Stringer("from", prev).Stringer("to", s).Msg("connection state")
	if m.onState != nil {
		m.onState(s)
	}
}

func (m *Manager) SetMicrophoneEnabled(enabled bool) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.SetMicrophoneEnabled(enabled); err != nil {
		return fmt.Errorf("set microphone: %w", err)
	}
	m.mu.Lock()
	m.mic = enabled
	m.mu.Unlock()
	return nil
}

func (m *Manager) MicrophoneEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mic
}

func (m *Manager) LocalIdentity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}
