package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentplexus/voicebridge/internal/metrics"
)

// Telephony connection states. Media is only routable while streaming;
// stopped is terminal.
type telephonyState int

const (
	stateAwaitingStart telephonyState = iota
	stateStreaming
	stateStopped
)

// telephonyConn owns the inbound Media Streams socket for one call.
type telephonyConn struct {
	ws           *websocket.Conn
	logger       *slog.Logger
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu        sync.Mutex
	state     telephonyState
	streamSID string
	callSID   string
}

func newTelephonyConn(ws *websocket.Conn, logger *slog.Logger, writeTimeout time.Duration) *telephonyConn {
	return &telephonyConn{
		ws:           ws,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

func (t *telephonyConn) setStarted(streamSID, callSID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = stateStreaming
	t.streamSID = streamSID
	t.callSID = callSID
}

func (t *telephonyConn) setStopped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = stateStopped
}

func (t *telephonyConn) ids() (streamSID, callSID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streamSID, t.callSID
}

func (t *telephonyConn) currentState() telephonyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// sendMedia forwards an agent audio frame to the caller. The frame is
// unroutable until the start event has supplied a stream SID.
func (t *telephonyConn) sendMedia(payload string) error {
	streamSID, _ := t.ids()
	if streamSID == "" {
		return fmt.Errorf("no stream sid yet")
	}
	return t.writeJSON(telephonyMessage{
		Event:     "media",
		StreamSID: streamSID,
		Media:     &mediaPayload{Payload: payload},
	})
}

// sendClear tells the transport to flush any audio queued for playback.
func (t *telephonyConn) sendClear() error {
	streamSID, _ := t.ids()
	if streamSID == "" {
		return fmt.Errorf("no stream sid yet")
	}
	return t.writeJSON(telephonyMessage{
		Event:     "clear",
		StreamSID: streamSID,
	})
}

func (t *telephonyConn) writeJSON(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.ws.WriteJSON(v)
}

func (t *telephonyConn) close() {
	_ = t.ws.Close()
}

// readLoop processes telephony messages one at a time in arrival order. It
// returns when the stop event arrives or the socket closes; either way the
// bridge tears the agent side down with it.
func (t *telephonyConn) readLoop(b *Bridge) {
	for {
		_, data, err := t.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("telephony socket closed", "error", err)
			}
			// Implicit stop. Registry cleanup only happens if the call
			// SID was learned from a start event.
			if _, callSID := t.ids(); callSID != "" {
				b.registry.Remove(callSID)
			}
			return
		}
		if !t.handleMessage(b, data) {
			return
		}
	}
}

// handleMessage dispatches one telephony frame. It reports false when the
// connection is done. A malformed frame is logged and dropped; it never
// ends the session.
func (t *telephonyConn) handleMessage(b *Bridge, data []byte) bool {
	var msg telephonyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.DecodeFailures.WithLabelValues("telephony").Inc()
		t.logger.Warn("undecodable telephony message", "error", err, "data", truncate(data, 200))
		return true
	}

	switch msg.Event {
	case "connected":
		t.logger.Debug("telephony transport connected")

	case "start":
		if msg.Start == nil {
			t.logger.Warn("start event without start payload")
			return true
		}
		t.setStarted(msg.Start.StreamSID, msg.Start.CallSID)
		b.registry.AttachStream(msg.Start.CallSID, msg.Start.StreamSID)
		t.logger.Info("stream started",
			"stream_sid", msg.Start.StreamSID,
			"call_sid", msg.Start.CallSID,
		)

	case "media":
		if t.currentState() != stateStreaming || msg.Media == nil {
			return true
		}
		// Fire-and-forget: if the agent socket is not writable the frame
		// is dropped, never buffered. Loss is acceptable, a stalled
		// bridge is not.
		if err := b.agent.sendUserAudio(msg.Media.Payload); err != nil {
			metrics.FramesDropped.WithLabelValues(metrics.DirectionInbound).Inc()
			t.logger.Debug("dropped inbound frame", "error", err)
			return true
		}
		metrics.FramesRelayed.WithLabelValues(metrics.DirectionInbound).Inc()

	case "stop":
		t.setStopped()
		if _, callSID := t.ids(); callSID != "" {
			t.logger.Info("stream stopped", "call_sid", callSID)
			b.registry.Remove(callSID)
		}
		return false

	case "mark":
		// Playback checkpoint; nothing to synchronize against.

	default:
		t.logger.Debug("unhandled telephony event", "event", msg.Event)
	}
	return true
}
