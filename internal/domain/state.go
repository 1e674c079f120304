package domain

// ConnectionState of the real-time session.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DisplayMode is what the renderer shows. It is always derived, never stored.
type DisplayMode int

const (
	PreSession DisplayMode = iota
	AvatarFull
	DesktopFullAvatarPiP
)

func (m DisplayMode) String() string {
	switch m {
	case PreSession:
		return "pre_session"
	case AvatarFull:
		return "avatar_full"
	case DesktopFullAvatarPiP:
		return "desktop_full_avatar_pip"
	default:
		return "unknown"
	}
}

func (m DisplayMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// DesktopStatus mirrors the remote-desktop widget callbacks.
type DesktopStatus int

const (
	DesktopIdle DesktopStatus = iota
	DesktopConnecting
	DesktopConnected
	DesktopError
)

func (s DesktopStatus) String() string {
	switch s {
	case DesktopIdle:
		return "idle"
	case DesktopConnecting:
		return "connecting"
	case DesktopConnected:
		return "connected"
	case DesktopError:
		return "error"
	default:
		return "unknown"
	}
}

func (s DesktopStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
