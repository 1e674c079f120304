// Package control interprets the agent's out-of-band messages on the data
// channel.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Rana-X/nora/internal/domain"
)

const (
	TypeBrowserReady         = "browser_ready"
	TypeBrowserTaskStarted   = "browser_task_started"
	TypeBrowserTaskCompleted = "browser_task_completed"
)

var (
	ErrNotUTF8      = errors.New("payload is not valid utf-8")
	ErrNotJSON      = errors.New("payload is not a json object")
	ErrMissingType  = errors.New("missing type")
	ErrMissingField = errors.New("missing required field")
)

// Message is a decoded control message. Hostname and Password are only set
// for browser_ready.
type Message struct {
	Type     string
	Hostname string
	Password string
}

// Known reports whether the interpreter acts on this type.
func (m Message) Known() bool {
	switch m.Type {
	case TypeBrowserReady, TypeBrowserTaskStarted, TypeBrowserTaskCompleted:
		return true
	}
	return false
}

func (m Message) Desktop() *domain.DesktopCredentials {
	return &domain.DesktopCredentials{Hostname: m.Hostname, Password: m.Password}
}

// Decode parses one data-channel payload. Unknown types decode fine; only
// structural problems are errors.
func Decode(payload []byte) (Message, error) {
	if !utf8.Valid(payload) {
		return Message{}, ErrNotUTF8
	}

	var env struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if env.Type == nil || *env.Type == "" {
		return Message{}, ErrMissingType
	}

	msg := Message{Type: *env.Type}
	if msg.Type != TypeBrowserReady {
		return msg, nil
	}

	var ready struct {
		Hostname string `json:"hostname"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(payload, &ready); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if ready.Hostname == "" {
		return Message{}, fmt.Errorf("%w: hostname", ErrMissingField)
	}
	if ready.Password == "" {
		return Message{}, fmt.Errorf("%w: password", ErrMissingField)
	}
	msg.Hostname = ready.Hostname
	msg.Password = ready.Password
	return msg, nil
}
