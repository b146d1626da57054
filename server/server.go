// Package server exposes the HTTP surfaces: the inbound-call webhook, the
// media-stream WebSocket endpoint, the manual transfer trigger, and the
// operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentplexus/voicebridge/bridge"
	"github.com/agentplexus/voicebridge/config"
	"github.com/agentplexus/voicebridge/internal/twilio"
	"github.com/agentplexus/voicebridge/session"
	"github.com/agentplexus/voicebridge/transfer"
)

// Transferrer starts a handoff to a human operator.
type Transferrer interface {
	Transfer(ctx context.Context, callSID, operatorNumber string) transfer.Result
}

// Server routes HTTP traffic to the bridge and transfer machinery.
type Server struct {
	cfg       config.Config
	registry  *session.Registry
	transfers Transferrer
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// New creates a Server.
func New(cfg config.Config, registry *session.Registry, transfers Transferrer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		registry:  registry,
		transfers: transfers,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/voice/inbound", s.handleInbound)
	mux.HandleFunc("/media-stream", s.handleMediaStream)
	mux.HandleFunc("/transfer", s.handleTransfer)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleInbound answers the Twilio incoming-call webhook with TwiML that
// redirects the call's media onto this server's /media-stream socket.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	callSID := r.FormValue("CallSid")
	if callSID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	to := r.FormValue("To")
	s.registry.Create(callSID, from, to)
	s.logger.Info("incoming call", "call_sid", callSID, "from", from, "to", to)

	host := s.cfg.PublicHost
	if host == "" {
		host = r.Host
	}

	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(twilio.MediaStreamTwiML("wss://" + host + "/media-stream")))
}

// handleMediaStream upgrades the Twilio media-stream socket and runs one
// bridge for its lifetime. The agent connection is dialed inside Run,
// before the start event arrives.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("media-stream upgrade failed", "error", err)
		return
	}
	s.logger.Info("telephony transport connected")

	b := bridge.New(bridge.Config{
		AgentID:               s.cfg.AgentID,
		AgentWSBase:           s.cfg.AgentWSBase,
		TransferTool:          s.cfg.TransferTool,
		TransferParamKeys:     s.cfg.TransferParamKeys,
		DefaultOperatorNumber: s.cfg.DefaultOperatorNumber,
	}, s.registry, s.transfers, s.logger)

	// Run blocks until either side closes; failures stay local to this
	// call's bridge.
	_ = b.Run(r.Context(), ws)
}

type transferRequest struct {
	CallSID        string `json:"callSid"`
	OperatorNumber string `json:"operatorNumber"`
}

// handleTransfer is the manual trigger: it runs the same orchestration the
// agent's tool invocation does and returns the structured result.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.CallSID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing callSid parameter"})
		return
	}

	operatorNumber := req.OperatorNumber
	if operatorNumber == "" {
		operatorNumber = s.cfg.DefaultOperatorNumber
	}

	s.logger.Info("manual transfer requested", "call_sid", req.CallSID, "operator", operatorNumber)
	result := s.transfers.Transfer(r.Context(), req.CallSID, operatorNumber)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"live_sessions": s.registry.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
