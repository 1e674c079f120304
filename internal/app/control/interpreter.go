package control

import (
	"github.com/Rana-X/nora/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the part of the orchestration state the control channel owns.
type State struct {
	TaskActive bool
	Desktop    *domain.DesktopCredentials
}

// Interpreter applies control messages in arrival order. It is not safe for
// concurrent use; the orchestrator loop is its only caller.
type Interpreter struct {
	state  State
	logger zerolog.Logger
}

func NewInterpreter() *Interpreter {
	return &Interpreter{
		logger: log.With().Str("module", "control").Logger(),
	}
}

// Handle decodes and applies one payload. Malformed payloads are logged and
// returned as an error; state is left untouched. The bool reports whether
// state changed.
func (in *Interpreter) Handle(sender string, payload []byte) (bool, Message, error) {
	msg, err := Decode(payload)
	if err != nil {
		in.logger.Warn().Err(err).Str("sender", sender).Int("size", len(payload)).Msg("dropping control message")
		return false, msg, err
	}
	if !msg.Known() {
		in.logger.Debug().Str("sender", sender).Str("type", msg.Type).Msg("ignoring unknown control message")
		return false, msg, nil
	}
	changed := in.Apply(msg)
	in.logger.Info().Str("sender", sender).Str("type", msg.Type).Bool("changed", changed).Msg("control message")
	return changed, msg, nil
}

// Apply is idempotent for repeated messages.
func (in *Interpreter) Apply(msg Message) bool {
	switch msg.Type {
	case TypeBrowserReady:
		// Last write wins: the agent may hand out fresh credentials.
		next := msg.Desktop()
		if in.state.Desktop != nil && *in.state.Desktop == *next {
			return false
		}
		in.state.Desktop = next
		return true
	case TypeBrowserTaskStarted:
		return in.setTaskActive(true)
	case TypeBrowserTaskCompleted:
		return in.setTaskActive(false)
	}
	return false
}

func (in *Interpreter) setTaskActive(v bool) bool {
	if in.state.TaskActive == v {
		return false
	}
	in.state.TaskActive = v
	return true
}

// State returns a copy callers may keep.
func (in *Interpreter) State() State {
	out := State{TaskActive: in.state.TaskActive}
	if in.state.Desktop != nil {
		d := *in.state.Desktop
		out.Desktop = &d
	}
	return out
}
