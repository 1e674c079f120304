package signal

import (
	"encoding/json"

	"github.com/Rana-X/nora/internal/app"
	"github.com/Rana-X/nora/internal/app/orch"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/rs/zerolog/log"
)

// handlePing echoes the session's connection state and display mode.
func (ctl *SignalWSController) handlePing(sess *orch.Orchestrator, conn *WsSignalConn) {
	v := sess.View()
	ctl.sendJSON(conn, struct {
		Type       string                 `json:"type"`
		Connection domain.ConnectionState `json:"connection"`
		Mode       domain.DisplayMode     `json:"mode"`
	}{
		Type:       "pong",
		Connection: v.Connection,
		Mode:       v.Mode,
	})
}

func (ctl *SignalWSController) handleLeave(
	sid app.ClientID,
	conn *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	if !ctl.Registry.Leave(sid) {
		ctl.sendError(conn, "no_session")
	}
}

func (ctl *SignalWSController) handleMicrophone(
	sid app.ClientID,
	sess *orch.Orchestrator,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Enabled == nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := sess.SetMicrophoneEnabled(*p.Enabled); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("microphone toggle")
		ctl.sendError(conn, "microphone_unavailable")
	}
}

// handleDesktop relays the remote-desktop widget's callbacks. They only
// affect the desktop indicator.
func (ctl *SignalWSController) handleDesktop(
	sid app.ClientID,
	sess *orch.Orchestrator,
	conn *WsSignalConn,
	kind string,
	data []byte,
) {
	switch kind {
	case "desktop_connecting":
		sess.DesktopConnecting()
	case "desktop_connected":
		sess.DesktopConnected()
	case "desktop_disconnected":
		sess.DesktopDisconnected()
	case "desktop_error":
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			ctl.sendError(conn, "bad_payload")
			return
		}
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("error", p.Message).Msg("desktop widget error")
		sess.DesktopError(p.Message)
	}
}
