//go:generate mockgen -source=transport.go -destination=coremock/transport_mock.go -package=coremock

package core

import (
	"context"

	"github.com/Rana-X/nora/internal/domain"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

type TrackSource string

const (
	SourceUnknown     TrackSource = "unknown"
	SourceCamera      TrackSource = "camera"
	SourceMicrophone  TrackSource = "microphone"
	SourceScreenShare TrackSource = "screen_share"
)

// TrackInfo is a handle the renderer can subscribe to. No media flows
// through it.
type TrackInfo struct {
	SID    string      `json:"sid"`
	Kind   TrackKind   `json:"kind"`
	Source TrackSource `json:"source"`
}

// IsAvatarVideo reports whether the track can carry the avatar feed.
func (t TrackInfo) IsAvatarVideo() bool {
	return t.Kind == TrackKindVideo && (t.Source == SourceCamera || t.Source == SourceUnknown)
}

// DialOptions controls what the local side publishes.
type DialOptions struct {
	PublishAudio  bool
	PublishVideo  bool
	AutoSubscribe bool
}

// Conn is an established real-time session.
type Conn interface {
	LocalIdentity() string
	SetMicrophoneEnabled(enabled bool) error
	// Disconnect is user initiated. It is safe to call more than once.
	Disconnect()
}

// Dialer establishes sessions. Dial blocks until the session is joined or
// fails; events may reach sink before Dial returns.
type Dialer interface {
	Dial(ctx context.Context, creds domain.SessionCredentials, opts DialOptions, sink EventSink) (Conn, error)
}
