// Package layout maps orchestration state onto what the renderer shows.
package layout

import (
	"fmt"

	"github.com/Rana-X/nora/internal/core"
	"github.com/Rana-X/nora/internal/domain"
)

// Reconcile picks the display mode. An active task without desktop
// credentials falls back to the avatar rather than an empty desktop.
func Reconcile(state domain.ConnectionState, taskActive, hasDesktop bool) domain.DisplayMode {
	if state != domain.Connected {
		return domain.PreSession
	}
	if taskActive && hasDesktop {
		return domain.DesktopFullAvatarPiP
	}
	return domain.AvatarFull
}

// Inputs is everything Compose reads.
type Inputs struct {
	Connection        domain.ConnectionState
	RoomName          string
	Identity          string
	MicrophoneEnabled bool

	Agent    string
	Speaking bool
	Avatar   *core.TrackInfo

	TaskActive bool
	Desktop    *domain.DesktopCredentials

	DesktopStatus domain.DesktopStatus
	DesktopError  string
}

// View is one render of the session. Views are values; a published View is
// never mutated.
type View struct {
	Mode       domain.DisplayMode     `json:"mode"`
	Connection domain.ConnectionState `json:"connection"`
	Status     string                 `json:"status"`
	RoomName   string                 `json:"roomName,omitempty"`
	Identity   string                 `json:"identity,omitempty"`
	Microphone bool                   `json:"microphoneEnabled"`

	Agent         string          `json:"agent,omitempty"`
	Speaking      bool            `json:"speaking"`
	Avatar        *core.TrackInfo `json:"avatar,omitempty"`
	AvatarWaiting bool            `json:"avatarWaiting"`

	TaskActive     bool                       `json:"taskActive"`
	Desktop        *domain.DesktopCredentials `json:"desktop,omitempty"`
	DesktopWaiting bool                       `json:"desktopWaiting"`
	DesktopStatus  domain.DesktopStatus       `json:"desktopStatus"`
	DesktopError   string                     `json:"desktopError,omitempty"`
}

func Compose(in Inputs) View {
	connected := in.Connection == domain.Connected
	v := View{
		Mode:       Reconcile(in.Connection, in.TaskActive, in.Desktop != nil),
		Connection: in.Connection,
		Status:     StatusLabel(in.Connection, in.Identity),
		RoomName:   in.RoomName,
		Identity:   in.Identity,
		Microphone: in.MicrophoneEnabled,

		Agent:         in.Agent,
		Speaking:      connected && in.Speaking,
		AvatarWaiting: in.Avatar == nil,

		TaskActive:     in.TaskActive,
		DesktopWaiting: in.TaskActive && in.Desktop == nil,
		DesktopStatus:  in.DesktopStatus,
		DesktopError:   in.DesktopError,
	}
	if in.Avatar != nil {
		a := *in.Avatar
		v.Avatar = &a
	}
	if in.Desktop != nil {
		d := *in.Desktop
		v.Desktop = &d
	}
	return v
}

// StatusLabel is the connection indicator text.
func StatusLabel(state domain.ConnectionState, identity string) string {
	if state == domain.Connected && identity != "" {
		return fmt.Sprintf("Connected as %s", identity)
	}
	return state.String()
}

// Equal compares by value, following pointers.
func (v View) Equal(o View) bool {
	if !equalPtr(v.Avatar, o.Avatar) || !equalPtr(v.Desktop, o.Desktop) {
		return false
	}
	v.Avatar, o.Avatar = nil, nil
	v.Desktop, o.Desktop = nil, nil
	return v == o
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
