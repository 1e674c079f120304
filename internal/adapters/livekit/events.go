package livekit

import (
	"sync"

	"github.com/Rana-X/nora/internal/core"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// handler turns SDK callbacks into core events.
type handler struct {
	sink   core.EventSink
	logger zerolog.Logger

	mu    sync.RWMutex
	local string
}

func (h *handler) setLocal(identity string) {
	h.mu.Lock()
	h.local = identity
	h.mu.Unlock()
}

func (h *handler) isLocal(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.local != "" && identity == h.local
}

func (h *handler) callback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				h.sink.Emit(core.TrackSubscribed{Participant: rp.Identity(), Track: trackInfo(pub.SID(), pub.Kind(), pub.Source())})
			},
			OnTrackUnsubscribed: func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				h.sink.Emit(core.TrackUnsubscribed{Participant: rp.Identity(), Track: trackInfo(pub.SID(), pub.Kind(), pub.Source())})
			},
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				user := data.ToProto().GetUser()
				if user == nil {
					return
				}
				h.sink.Emit(core.DataReceived{
					Sender:  params.SenderIdentity,
					Topic:   user.GetTopic(),
					Payload: user.GetPayload(),
				})
			},
			OnIsSpeakingChanged: func(p lksdk.Participant) {
				if _, remote := p.(*lksdk.RemoteParticipant); !remote {
					return
				}
				h.sink.Emit(core.ActivityChanged{Participant: p.Identity(), Speaking: p.IsSpeaking()})
			},
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			h.logger.Debug().Str("participant", rp.Identity()).Msg("participant connected")
			h.sink.Emit(core.ParticipantJoined{Identity: rp.Identity()})
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			h.logger.Debug().Str("participant", rp.Identity()).Msg("participant disconnected")
			h.sink.Emit(core.ParticipantLeft{Identity: rp.Identity()})
		},
		OnReconnecting: func() {
			h.logger.Info().Msg("reconnecting to room")
			h.sink.Emit(core.ConnectionStateChanged{State: domain.Reconnecting})
		},
		OnReconnected: func() {
			h.logger.Info().Msg("reconnected to room")
			h.sink.Emit(core.ConnectionStateChanged{State: domain.Connected})
		},
		OnDisconnected: func() {
			h.logger.Info().Msg("disconnected from room")
			h.sink.Emit(core.ConnectionStateChanged{State: domain.Disconnected})
		},
	}
}

// replay reports participants and tracks that were already in the room when
// the join completed. Duplicates of live callbacks are harmless downstream.
func (h *handler) replay(room *lksdk.Room) {
	for _, rp := range room.GetRemoteParticipants() {
		if h.isLocal(rp.Identity()) {
			continue
		}
		h.sink.Emit(core.ParticipantJoined{Identity: rp.Identity()})
		for _, pub := range rp.TrackPublications() {
			remote, ok := pub.(*lksdk.RemoteTrackPublication)
			if !ok || remote.TrackRemote() == nil {
				continue
			}
			h.sink.Emit(core.TrackSubscribed{
				Participant: rp.Identity(),
				Track:       trackInfo(remote.SID(), remote.Kind(), remote.Source()),
			})
		}
	}
}

func trackInfo(sid string, kind lksdk.TrackKind, source livekit.TrackSource) core.TrackInfo {
	info := core.TrackInfo{SID: sid, Kind: core.TrackKindAudio, Source: core.SourceUnknown}
	if kind == lksdk.TrackKindVideo {
		info.Kind = core.TrackKindVideo
	}
	switch source {
	case livekit.TrackSource_CAMERA:
		info.Source = core.SourceCamera
	case livekit.TrackSource_MICROPHONE:
		info.Source = core.SourceMicrophone
	case livekit.TrackSource_SCREEN_SHARE, livekit.TrackSource_SCREEN_SHARE_AUDIO:
		info.Source = core.SourceScreenShare
	}
	return info
}
