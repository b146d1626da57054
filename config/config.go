// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/agentplexus/voicebridge"
)

// Config holds everything the server needs to run.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// PublicHost is the externally reachable host (no scheme) Twilio uses
	// to open the media-stream WebSocket back to this process.
	PublicHost string

	// Twilio REST credentials.
	AccountSID string
	AuthToken  string
	APIBaseURL string

	// AgentID selects the conversational agent dialed per call.
	AgentID string
	// AgentWSBase is the agent WebSocket endpoint base URL.
	AgentWSBase string

	// TransferTool is the tool name that triggers a handoff. The agent may
	// carry the target number under any of TransferParamKeys.
	TransferTool      string
	TransferParamKeys []string

	// DefaultOperatorNumber is dialed when a transfer request names no
	// target.
	DefaultOperatorNumber string

	// HoldMusicURL plays to a parked caller waiting for the operator.
	HoldMusicURL string

	// ControlTimeout bounds each call-control round trip during a transfer.
	ControlTimeout time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// LoadFromEnv builds a Config from environment variables, applying defaults
// and validating required credentials.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                  envOr("VOICEBRIDGE_ADDR", ":8080"),
		PublicHost:            os.Getenv("VOICEBRIDGE_PUBLIC_HOST"),
		AccountSID:            os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:             os.Getenv("TWILIO_AUTH_TOKEN"),
		APIBaseURL:            envOr("TWILIO_API_BASE_URL", voicebridge.DefaultAPIBaseURL),
		AgentID:               os.Getenv("ELEVENLABS_AGENT_ID"),
		AgentWSBase:           envOr("ELEVENLABS_WS_BASE_URL", voicebridge.DefaultAgentWSBase),
		TransferTool:          envOr("TRANSFER_TOOL_NAME", voicebridge.DefaultTransferTool),
		TransferParamKeys:     []string{"agent_number", "phone_number"},
		DefaultOperatorNumber: envOr("DEFAULT_OPERATOR_NUMBER", "+12345"),
		HoldMusicURL:          envOr("HOLD_MUSIC_URL", voicebridge.DefaultHoldMusicURL),
		ControlTimeout:        10 * time.Second,
		LogLevel:              envOr("LOG_LEVEL", "info"),
	}

	if v := os.Getenv("CONTROL_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("invalid CONTROL_TIMEOUT_SECONDS %q", v)
		}
		cfg.ControlTimeout = time.Duration(secs) * time.Second
	}

	if cfg.AccountSID == "" {
		return Config{}, fmt.Errorf("TWILIO_ACCOUNT_SID is required")
	}
	if cfg.AuthToken == "" {
		return Config{}, fmt.Errorf("TWILIO_AUTH_TOKEN is required")
	}
	if cfg.AgentID == "" {
		return Config{}, fmt.Errorf("ELEVENLABS_AGENT_ID is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
