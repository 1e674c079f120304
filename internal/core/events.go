package core

import "github.com/Rana-X/nora/internal/domain"

// Event is something the transport observed. Events are delivered to the
// EventSink in the order the transport saw them.
type Event interface {
	isEvent()
}

type ConnectionStateChanged struct {
	State domain.ConnectionState
}

// ParticipantJoined is emitted for remote participants only, including the
// ones already present when the session was established.
type ParticipantJoined struct {
	Identity string
}

type ParticipantLeft struct {
	Identity string
}

type TrackSubscribed struct {
	Participant string
	Track       TrackInfo
}

type TrackUnsubscribed struct {
	Participant string
	Track       TrackInfo
}

// DataReceived carries one data-channel message, untouched.
type DataReceived struct {
	Sender  string
	Topic   string
	Payload []byte
}

// ActivityChanged reports voice activity of a remote participant.
type ActivityChanged struct {
	Participant string
	Speaking    bool
}

func (ConnectionStateChanged) isEvent() {}
func (ParticipantJoined) isEvent()      {}
func (ParticipantLeft) isEvent()        {}
func (TrackSubscribed) isEvent()        {}
func (TrackUnsubscribed) isEvent()      {}
func (DataReceived) isEvent()           {}
func (ActivityChanged) isEvent()        {}

// EventSink receives transport events. Emit may block; it must not be called
// after the owning session released its subscription.
type EventSink interface {
	Emit(Event)
}

type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(ev Event) { f(ev) }
