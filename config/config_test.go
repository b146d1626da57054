package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("ELEVENLABS_AGENT_ID", "agent-1")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr=%q, want :8080", cfg.Addr)
	}
	if cfg.TransferTool != "transfer_to_agent" {
		t.Fatalf("tool=%q", cfg.TransferTool)
	}
	if cfg.DefaultOperatorNumber != "+12345" {
		t.Fatalf("operator=%q", cfg.DefaultOperatorNumber)
	}
	if cfg.ControlTimeout != 10*time.Second {
		t.Fatalf("timeout=%v", cfg.ControlTimeout)
	}
	if len(cfg.TransferParamKeys) != 2 {
		t.Fatalf("param keys=%v", cfg.TransferParamKeys)
	}
	if !strings.HasPrefix(cfg.AgentWSBase, "wss://") {
		t.Fatalf("agent ws base=%q", cfg.AgentWSBase)
	}
}

func TestLoadFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("ELEVENLABS_AGENT_ID", "agent-1")

	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "TWILIO_ACCOUNT_SID") {
		t.Fatalf("err=%v, want missing account SID", err)
	}

	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("ELEVENLABS_AGENT_ID", "")
	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "ELEVENLABS_AGENT_ID") {
		t.Fatalf("err=%v, want missing agent id", err)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("VOICEBRIDGE_ADDR", ":9999")
	t.Setenv("TRANSFER_TOOL_NAME", "handoff")
	t.Setenv("CONTROL_TIMEOUT_SECONDS", "3")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.TransferTool != "handoff" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.ControlTimeout != 3*time.Second {
		t.Fatalf("timeout=%v", cfg.ControlTimeout)
	}
}

func TestLoadFromEnv_BadTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("CONTROL_TIMEOUT_SECONDS", "soon")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected error for non-numeric timeout")
	}
}
