package livekit

import (
	"testing"

	"github.com/Rana-X/nora/internal/core"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTrackInfo(t *testing.T) {
	tests := []struct {
		name   string
		kind   lksdk.TrackKind
		source livekit.TrackSource
		want   core.TrackInfo
		avatar bool
	}{
		{"camera", lksdk.TrackKindVideo, livekit.TrackSource_CAMERA, core.TrackInfo{SID: "TR", Kind: core.TrackKindVideo, Source: core.SourceCamera}, true},
		{"unknown video", lksdk.TrackKindVideo, livekit.TrackSource_UNKNOWN, core.TrackInfo{SID: "TR", Kind: core.TrackKindVideo, Source: core.SourceUnknown}, true},
		{"screen share", lksdk.TrackKindVideo, livekit.TrackSource_SCREEN_SHARE, core.TrackInfo{SID: "TR", Kind: core.TrackKindVideo, Source: core.SourceScreenShare}, false},
		{"microphone", lksdk.TrackKindAudio, livekit.TrackSource_MICROPHONE, core.TrackInfo{SID: "TR", Kind: core.TrackKindAudio, Source: core.SourceMicrophone}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trackInfo("TR", tt.kind, tt.source)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.avatar, got.IsAvatarVideo())
		})
	}
}

func TestHandler_Callbacks(t *testing.T) {
	var got []core.Event
	h := &handler{
		sink:   core.EventSinkFunc(func(ev core.Event) { got = append(got, ev) }),
		logger: zerolog.Nop(),
	}
	cb := h.callback()

	cb.OnReconnecting()
	cb.OnReconnected()
	cb.OnDisconnected()

	assert.Equal(t, []core.Event{
		core.ConnectionStateChanged{State: domain.Reconnecting},
		core.ConnectionStateChanged{State: domain.Connected},
		core.ConnectionStateChanged{State: domain.Disconnected},
	}, got)
}

func TestHandler_IsLocal(t *testing.T) {
	h := &handler{}
	assert.False(t, h.isLocal(""))
	h.setLocal("user-abc")
	assert.True(t, h.isLocal("user-abc"))
	assert.False(t, h.isLocal("agent"))
}
