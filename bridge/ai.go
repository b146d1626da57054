package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentplexus/voicebridge/internal/metrics"
	"github.com/agentplexus/voicebridge/transfer"
)

// agentConn owns the outbound socket to the conversational-AI service.
type agentConn struct {
	ws           *websocket.Conn
	logger       *slog.Logger
	writeTimeout time.Duration

	writeMu sync.Mutex
}

// dialAgent opens the agent socket. This happens when the telephony
// connection is accepted, so the agent is already negotiating while stream
// setup completes on the Twilio side.
func dialAgent(ctx context.Context, base, agentID string, logger *slog.Logger, writeTimeout time.Duration) (*agentConn, error) {
	wsURL, err := agentWSURL(base, agentID)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}

	return &agentConn{
		ws:           ws,
		logger:       logger,
		writeTimeout: writeTimeout,
	}, nil
}

func agentWSURL(base, agentID string) (string, error) {
	if agentID == "" {
		return "", fmt.Errorf("agent id is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid agent ws base url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sendUserAudio relays one caller audio frame, base64 payload untouched.
func (a *agentConn) sendUserAudio(payload string) error {
	return a.writeJSON(userAudioChunk{UserAudioChunk: payload})
}

func (a *agentConn) sendPong(eventID json.RawMessage) error {
	return a.writeJSON(pongMessage{Type: "pong", EventID: eventID})
}

func (a *agentConn) sendToolResult(inv toolInvocation, result transfer.Result) error {
	return a.writeJSON(inv.response(result))
}

func (a *agentConn) writeJSON(v any) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = a.ws.SetWriteDeadline(time.Now().Add(a.writeTimeout))
	return a.ws.WriteJSON(v)
}

func (a *agentConn) close() {
	_ = a.ws.Close()
}

// readLoop processes agent messages one at a time in arrival order. Tool
// invocations run on their own goroutine so in-flight control-plane calls
// never stall the audio path.
func (a *agentConn) readLoop(ctx context.Context, b *Bridge) {
	for {
		_, data, err := a.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Warn("agent socket closed", "error", err)
			}
			return
		}
		a.handleMessage(ctx, b, data)
	}
}

// handleMessage dispatches one agent frame. A malformed frame is logged and
// dropped; it never ends the session.
func (a *agentConn) handleMessage(ctx context.Context, b *Bridge, data []byte) {
	var msg agentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.DecodeFailures.WithLabelValues("agent").Inc()
		a.logger.Warn("undecodable agent message", "error", err, "data", truncate(data, 200))
		return
	}

	switch msg.Type {
	case "conversation_initiation_metadata":
		a.logger.Info("conversation initiated")

	case "audio":
		if msg.AudioEvent == nil || msg.AudioEvent.AudioBase64 == "" {
			return
		}
		// Unroutable until the start event supplies a stream SID; such
		// frames are dropped, not queued.
		if err := b.tel.sendMedia(msg.AudioEvent.AudioBase64); err != nil {
			metrics.FramesDropped.WithLabelValues(metrics.DirectionOutbound).Inc()
			a.logger.Debug("dropped outbound frame", "error", err)
			return
		}
		metrics.FramesRelayed.WithLabelValues(metrics.DirectionOutbound).Inc()

	case "interruption":
		if err := b.tel.sendClear(); err != nil {
			a.logger.Debug("dropped clear event", "error", err)
			return
		}
		a.logger.Info("interruption, cleared playback buffer")

	case "ping":
		if msg.PingEvent == nil || len(msg.PingEvent.EventID) == 0 {
			return
		}
		if err := a.sendPong(msg.PingEvent.EventID); err != nil {
			a.logger.Warn("failed to answer ping", "error", err)
		}

	case "tool_request", "client_tool_call":
		inv, ok := decodeToolInvocation(&msg)
		if !ok {
			a.logger.Warn("tool invocation without payload", "type", msg.Type)
			return
		}
		a.handleToolInvocation(ctx, b, inv)

	default:
		a.logger.Debug("unhandled agent message type", "type", msg.Type)
	}
}

func (a *agentConn) handleToolInvocation(ctx context.Context, b *Bridge, inv toolInvocation) {
	if inv.Name != b.cfg.TransferTool {
		a.logger.Debug("unhandled tool invocation", "tool", inv.Name)
		return
	}

	_, callSID := b.tel.ids()
	if callSID == "" {
		// The start event has not arrived yet, so there is no call to
		// transfer. Dropped without a response; the agent gets no reply.
		a.logger.Error("transfer requested before call sid is known", "tool", inv.Name)
		return
	}

	operatorNumber := inv.operatorNumber(b.cfg.TransferParamKeys, b.cfg.DefaultOperatorNumber)
	a.logger.Info("transfer tool invoked", "call_sid", callSID, "operator", operatorNumber)

	// The orchestrator blocks on control-plane round trips; keep the read
	// loop free so audio keeps flowing while the transfer is in flight.
	go func() {
		result := b.transfers.Transfer(ctx, callSID, operatorNumber)
		if err := a.sendToolResult(inv, result); err != nil {
			a.logger.Warn("failed to send tool result", "error", err)
			return
		}
		a.logger.Info("tool result sent", "success", result.OK)
	}()
}
