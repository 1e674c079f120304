package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Rana-X/nora/internal/core"
	"github.com/Rana-X/nora/internal/core/coremock"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testCreds = domain.SessionCredentials{Token: "tok", URL: "wss://example.test", RoomName: "nora-room-1"}

type recorder struct {
	mu          sync.Mutex
	states      []domain.ConnectionState
	disconnects int
}

func (r *recorder) state(s domain.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects++
}

func (r *recorder) snapshot() ([]domain.ConnectionState, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ConnectionState(nil), r.states...), r.disconnects
}

func newTestManager(t *testing.T) (*Manager, *coremock.MockDialer, *recorder) {
	t.Helper()
	ctrl := gomock.NewController(t)
	dialer := coremock.NewMockDialer(ctrl)
	rec := &recorder{}
	m := NewManager(Options{
		Dialer:        dialer,
		OnStateChange: rec.state,
		OnDisconnect:  rec.disconnect,
	})
	return m, dialer, rec
}

func TestConnect_Success(t *testing.T) {
	m, dialer, rec := newTestManager(t)
	conn := coremock.NewMockConn(gomock.NewController(t))

	dialer.EXPECT().
		Dial(gomock.Any(), testCreds, DefaultDialOptions(), gomock.Any()).
		Return(conn, nil)
	conn.EXPECT().LocalIdentity().Return("user-abc")
	conn.EXPECT().SetMicrophoneEnabled(true).Return(nil)

	require.NoError(t, m.Connect(context.Background(), testCreds, core.EventSinkFunc(func(core.Event) {})))

	states, disconnects := rec.snapshot()
	assert.Equal(t, []domain.ConnectionState{domain.Connecting, domain.Connected}, states)
	assert.Zero(t, disconnects)
	assert.Equal(t, domain.Connected, m.State())
	assert.Equal(t, "user-abc", m.LocalIdentity())
	assert.True(t, m.MicrophoneEnabled())
}

func TestConnect_PublishesAudioOnly(t *testing.T) {
	opts := DefaultDialOptions()
	assert.True(t, opts.PublishAudio)
	assert.False(t, opts.PublishVideo)
	assert.True(t, opts.AutoSubscribe)
}

func TestConnect_DialFailureNotifiesOnce(t *testing.T) {
	m, dialer, rec := newTestManager(t)
	dialErr := errors.New("signal: 401")
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, dialErr)

	err := m.Connect(context.Background(), testCreds, core.EventSinkFunc(func(core.Event) {}))
	require.ErrorIs(t, err, dialErr)

	states, disconnects := rec.snapshot()
	assert.Equal(t, []domain.ConnectionState{domain.Connecting, domain.Disconnected}, states)
	assert.Equal(t, 1, disconnects)

	m.Leave()
	_, disconnects = rec.snapshot()
	assert.Equal(t, 1, disconnects)
}

func TestConnect_InvalidCredentials(t *testing.T) {
	m, _, rec := newTestManager(t)

	err := m.Connect(context.Background(), domain.SessionCredentials{URL: "wss://x"}, core.EventSinkFunc(func(core.Event) {}))
	require.ErrorIs(t, err, domain.ErrTokenEmpty)

	_, disconnects := rec.snapshot()
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, domain.Disconnected, m.State())
}

func TestConnect_Twice(t *testing.T) {
	m, dialer, _ := newTestManager(t)
	conn := coremock.NewMockConn(gomock.NewController(t))
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(conn, nil)
	conn.EXPECT().LocalIdentity().Return("user-abc")
	conn.EXPECT().SetMicrophoneEnabled(true).Return(nil)

	sink := core.EventSinkFunc(func(core.Event) {})
	require.NoError(t, m.Connect(context.Background(), testCreds, sink))
	assert.ErrorIs(t, m.Connect(context.Background(), testCreds, sink), ErrAlreadyStarted)
}

func TestConnect_MicrophoneFailureIsNotFatal(t *testing.T) {
	m, dialer, _ := newTestManager(t)
	conn := coremock.NewMockConn(gomock.NewController(t))
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(conn, nil)
	conn.EXPECT().LocalIdentity().Return("user-abc")
	conn.EXPECT().SetMicrophoneEnabled(true).Return(errors.New("no device"))

	require.NoError(t, m.Connect(context.Background(), testCreds, core.EventSinkFunc(func(core.Event) {})))
	assert.Equal(t, domain.Connected, m.State())
	assert.False(t, m.MicrophoneEnabled())
}

func TestLeave_Idempotent(t *testing.T) {
	m, dialer, rec := newTestManager(t)
	conn := coremock.NewMockConn(gomock.NewController(t))
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(conn, nil)
	conn.EXPECT().LocalIdentity().Return("user-abc")
	conn.EXPECT().SetMicrophoneEnabled(true).Return(nil)
	conn.EXPECT().Disconnect().Times(1)

	require.NoError(t, m.Connect(context.Background(), testCreds, core.EventSinkFunc(func(core.Event) {})))

	released := 0
	require.True(t, m.Acquire(func() { released++ }))

	m.Leave()
	m.Leave()

	states, disconnects := rec.snapshot()
	assert.Equal(t, domain.Disconnected, states[len(states)-1])
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, 1, released)
	assert.False(t, m.Acquire(func() { released++ }), "acquire after teardown releases at once")
	assert.Equal(t, 2, released)
	assert.ErrorIs(t, m.SetMicrophoneEnabled(true), ErrNotConnected)
}

func TestHandleState_TransportLoss(t *testing.T) {
	m, dialer, rec := newTestManager(t)
	conn := coremock.NewMockConn(gomock.NewController(t))
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(conn, nil)
	conn.EXPECT().LocalIdentity().Return("user-abc")
	conn.EXPECT().SetMicrophoneEnabled(true).Return(nil)
	conn.EXPECT().Disconnect().Times(1)

	require.NoError(t, m.Connect(context.Background(), testCreds, core.EventSinkFunc(func(core.Event) {})))

	m.HandleState(domain.Reconnecting)
	assert.Equal(t, domain.Reconnecting, m.State())
	m.HandleState(domain.Connected)
	assert.Equal(t, domain.Connected, m.State())

	m.HandleState(domain.Disconnected)
	m.Leave()

	states, disconnects := rec.snapshot()
	assert.Equal(t, []domain.ConnectionState{
		domain.Connecting, domain.Connected, domain.Reconnecting, domain.Connected, domain.Disconnected,
	}, states)
	assert.Equal(t, 1, disconnects)

	m.HandleState(domain.Reconnecting)
	assert.Equal(t, domain.Disconnected, m.State(), "no transitions after teardown")
}

func TestLeave_DuringDial(t *testing.T) {
	m, dialer, rec := newTestManager(t)
	conn := coremock.NewMockConn(gomock.NewController(t))

	dialing := make(chan struct{})
	proceed := make(chan struct{})
	dialer.EXPECT().
		Dial(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.SessionCredentials, _ core.DialOptions, _ core.EventSink) (core.Conn, error) {
			close(dialing)
			<-proceed
			assert.ErrorIs(t, ctx.Err(), context.Canceled)
			return conn, nil
		})
	conn.EXPECT().Disconnect().Times(1)

	errc := make(chan error, 1)
	go func() {
		errc <- m.Connect(context.Background(), testCreds, core.EventSinkFunc(func(core.Event) {}))
	}()

	<-dialing
	m.Leave()
	close(proceed)

	assert.ErrorIs(t, <-errc, ErrLeft)
	_, disconnects := rec.snapshot()
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, domain.Disconnected, m.State())
}

func TestGate_DropsAfterTeardown(t *testing.T) {
	m, dialer, _ := newTestManager(t)
	conn := coremock.NewMockConn(gomock.NewController(t))

	var sink core.EventSink
	dialer.EXPECT().
		Dial(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.SessionCredentials, _ core.DialOptions, s core.EventSink) (core.Conn, error) {
			sink = s
			return conn, nil
		})
	conn.EXPECT().LocalIdentity().Return("user-abc")
	conn.EXPECT().SetMicrophoneEnabled(true).Return(nil)
	conn.EXPECT().Disconnect()

	var got []core.Event
	require.NoError(t, m.Connect(context.Background(), testCreds, core.EventSinkFunc(func(ev core.Event) {
		got = append(got, ev)
	})))

	sink.Emit(core.ParticipantJoined{Identity: "agent"})
	m.Leave()
	sink.Emit(core.ParticipantJoined{Identity: "late"})

	assert.Equal(t, []core.Event{core.ParticipantJoined{Identity: "agent"}}, got)
}

func TestSetMicrophoneEnabled(t *testing.T) {
	m, dialer, _ := newTestManager(t)
	conn := coremock.NewMockConn(gomock.NewController(t))
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(conn, nil)
	conn.EXPECT().LocalIdentity().Return("user-abc")
	gomock.InOrder(
		conn.EXPECT().SetMicrophoneEnabled(true).Return(nil),
		conn.EXPECT().SetMicrophoneEnabled(false).Return(nil),
		conn.EXPECT().SetMicrophoneEnabled(true).Return(errors.New("boom")),
	)

	require.NoError(t, m.Connect(context.Background(), testCreds, core.EventSinkFunc(func(core.Event) {})))
	require.NoError(t, m.SetMicrophoneEnabled(false))
	assert.False(t, m.MicrophoneEnabled())
	require.Error(t, m.SetMicrophoneEnabled(true))
	assert.False(t, m.MicrophoneEnabled())
}
