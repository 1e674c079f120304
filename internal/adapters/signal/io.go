package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Rana-X/nora/internal/app"
	"github.com/Rana-X/nora/internal/app/layout"
	"github.com/Rana-X/nora/internal/app/orch"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	var ping <-chan time.Time
	if ctl.PingPeriod > 0 {
		t := time.NewTicker(ctl.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				_ = c.conn.Close()
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// forwardViews sends every published view. The session closing ends the
// stream and the socket with it.
func (ctl *SignalWSController) forwardViews(ctx context.Context, c *WsSignalConn, views <-chan layout.View) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				ctl.sendJSON(c, struct {
					Type string `json:"type"`
				}{Type: "session_ended"})
				c.Finish()
				return
			}
			ctl.sendView(c, v)
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid app.ClientID, sess *orch.Orchestrator, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			if !c.limiter.Allow() {
				log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("rate limited")
				ctl.sendError(c, "rate_limited")
				continue
			}
			ctl.handleSignal(sid, sess, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid app.ClientID, sess *orch.Orchestrator, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Type {
	case "ping":
		ctl.handlePing(sess, c)
	case "leave":
		ctl.handleLeave(sid, c)
	case "microphone":
		ctl.handleMicrophone(sid, sess, c, data)
	case "desktop_connecting", "desktop_connected", "desktop_disconnected", "desktop_error":
		ctl.handleDesktop(sid, sess, c, env.Type, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, "unknown_type")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendView(c *WsSignalConn, v layout.View) {
	ctl.sendJSON(c, struct {
		Type string      `json:"type"`
		View layout.View `json:"view"`
	}{Type: "view", View: v})
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": code,
	})
}
