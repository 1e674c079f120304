// Package domain contains session entities without transport logic.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxRoomNameLen    = 64
	MaxParticipantLen = 64

	roomPrefix        = "nora-room-"
	participantPrefix = "user-"
)

var (
	ErrRoomNameEmpty      = errors.New("room name empty")
	ErrRoomNameTooLong    = errors.New("room name too long")
	ErrParticipantEmpty   = errors.New("participant name empty")
	ErrParticipantTooLong = errors.New("participant name too long")
)

// NewRoomName derives a session identifier from the wall clock. Two starts in
// the same millisecond collide; that is accepted.
func NewRoomName(now time.Time) string {
	return fmt.Sprintf("%s%d", roomPrefix, now.UnixMilli())
}

// NewParticipantIdentity returns a short random identity for the local user.
func NewParticipantIdentity() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return participantPrefix + id[:8]
}

// ValidateJoinRequest checks the two inputs the issuance endpoint requires.
func ValidateJoinRequest(roomName, participant string) error {
	switch {
	case roomName == "":
		return ErrRoomNameEmpty
	case len(roomName) > MaxRoomNameLen:
		return ErrRoomNameTooLong
	case participant == "":
		return ErrParticipantEmpty
	case len(participant) > MaxParticipantLen:
		return ErrParticipantTooLong
	}
	return nil
}
