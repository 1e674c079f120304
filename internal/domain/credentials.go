package domain

import "errors"

var (
	ErrTokenEmpty = errors.New("join token empty")
	ErrURLEmpty   = errors.New("transport endpoint empty")
)

// SessionCredentials is what the issuance endpoint hands out for one join.
// It is never persisted; a disconnect discards it.
type SessionCredentials struct {
	Token    string `json:"token"`
	URL      string `json:"wsUrl"`
	RoomName string `json:"roomName"`
}

func (c SessionCredentials) Validate() error {
	if c.Token == "" {
		return ErrTokenEmpty
	}
	if c.URL == "" {
		return ErrURLEmpty
	}
	return nil
}

// DesktopCredentials addresses the remote browser the agent drives.
// A nil *DesktopCredentials means "not yet available".
type DesktopCredentials struct {
	Hostname string `json:"hostname"`
	Password string `json:"password"`
}
