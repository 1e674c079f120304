// Package livekit adapts the LiveKit Go SDK to the core transport ports.
package livekit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Rana-X/nora/internal/core"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const micTrackName = "microphone"

var ErrNoMicrophone = errors.New("microphone track not published")

// Dialer joins LiveKit rooms with a pre-issued token.
type Dialer struct {
	logger zerolog.Logger
}

func NewDialer() *Dialer {
	return &Dialer{logger: log.With().Str("module", "livekit").Logger()}
}

type connectResult struct {
	room *lksdk.Room
	err  error
}

func (d *Dialer) Dial(ctx context.Context, creds domain.SessionCredentials, opts core.DialOptions, sink core.EventSink) (core.Conn, error) {
	logger := d.logger.With().Str("room", creds.RoomName).Logger()
	h := &handler{sink: sink, logger: logger}

	done := make(chan connectResult, 1)
	go func() {
		room, err := lksdk.ConnectToRoomWithToken(creds.URL, creds.Token, h.callback(),
			lksdk.WithAutoSubscribe(opts.AutoSubscribe))
		done <- connectResult{room: room, err: err}
	}()

	var room *lksdk.Room
	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("join room %s: %w", creds.RoomName, r.err)
		}
		room = r.room
	case <-ctx.Done():
		// The SDK call cannot be interrupted; drop the room once it lands.
		go func() {
			if r := <-done; r.room != nil {
				r.room.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}

	c := &conn{room: room, logger: logger}
	h.setLocal(room.LocalParticipant.Identity())

	if opts.PublishVideo {
		logger.Warn().Msg("video publishing is not supported; receiving only")
	}
	if opts.PublishAudio {
		if err := c.publishMicrophone(); err != nil {
			logger.Warn().Err(err).Msg("publish microphone")
		}
	}

	h.replay(room)
	logger.Info().Str("identity", c.LocalIdentity()).Int("participants", len(room.GetRemoteParticipants())).Msg("joined room")
	return c, nil
}

type conn struct {
	room   *lksdk.Room
	logger zerolog.Logger

	mu   sync.Mutex
	mic  *lksdk.LocalTrackPublication
	once sync.Once
}

func (c *conn) LocalIdentity() string {
	return c.room.LocalParticipant.Identity()
}

func (c *conn) publishMicrophone() error {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		micTrackName, c.LocalIdentity(),
	)
	if err != nil {
		return fmt.Errorf("create audio track: %w", err)
	}
	pub, err := c.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   micTrackName,
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		return fmt.Errorf("publish audio track: %w", err)
	}
	pub.SetMuted(true)

	c.mu.Lock()
	c.mic = pub
	c.mu.Unlock()
	c.logger.Debug().Str("track", pub.SID()).Msg("microphone published")
	return nil
}

func (c *conn) SetMicrophoneEnabled(enabled bool) error {
	c.mu.Lock()
	pub := c.mic
	c.mu.Unlock()
	if pub == nil {
		return ErrNoMicrophone
	}
	pub.SetMuted(!enabled)
	return nil
}

func (c *conn) Disconnect() {
	c.once.Do(func() {
		c.room.Disconnect()
		c.logger.Info().Msg("left room")
	})
}
