// Package bridge pairs one Twilio media-stream connection with one
// conversational-agent connection and relays events between their
// vocabularies for the lifetime of a call.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentplexus/voicebridge/internal/metrics"
	"github.com/agentplexus/voicebridge/session"
	"github.com/agentplexus/voicebridge/transfer"
)

// Transferrer starts a handoff to a human operator.
type Transferrer interface {
	Transfer(ctx context.Context, callSID, operatorNumber string) transfer.Result
}

// Config configures a bridge.
type Config struct {
	// AgentID selects the conversational agent dialed per call.
	AgentID string
	// AgentWSBase is the agent WebSocket endpoint base URL.
	AgentWSBase string

	// TransferTool names the tool invocation that triggers a handoff;
	// TransferParamKeys are checked in order for the target number.
	TransferTool      string
	TransferParamKeys []string
	// DefaultOperatorNumber is dialed when the invocation names no target.
	DefaultOperatorNumber string

	// DialTimeout bounds the agent dial; WriteTimeout bounds each socket
	// write.
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// Bridge is the paired-lifetime unit of one telephony connection and one
// agent connection for a single call. Neither half outlives the other.
type Bridge struct {
	id        string
	cfg       Config
	registry  *session.Registry
	transfers Transferrer
	logger    *slog.Logger

	tel   *telephonyConn
	agent *agentConn

	closeOnce sync.Once
}

// New creates a bridge for one accepted telephony socket.
func New(cfg Config, registry *session.Registry, transfers Transferrer, logger *slog.Logger) *Bridge {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if len(cfg.TransferParamKeys) == 0 {
		cfg.TransferParamKeys = []string{"agent_number", "phone_number"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	return &Bridge{
		id:        id,
		cfg:       cfg,
		registry:  registry,
		transfers: transfers,
		logger:    logger.With("bridge_id", id),
	}
}

// ID returns the bridge correlation id.
func (b *Bridge) ID() string {
	return b.id
}

// Run services an accepted telephony socket until either side closes. The
// agent connection is dialed immediately, before the start event, so it is
// already negotiating while Twilio finishes stream setup. Run takes
// ownership of telWS and closes it in every path.
func (b *Bridge) Run(ctx context.Context, telWS *websocket.Conn) error {
	b.tel = newTelephonyConn(telWS, b.logger.With("socket", "telephony"), b.cfg.WriteTimeout)

	dialCtx, cancel := context.WithTimeout(ctx, b.cfg.DialTimeout)
	agent, err := dialAgent(dialCtx, b.cfg.AgentWSBase, b.cfg.AgentID, b.logger.With("socket", "agent"), b.cfg.WriteTimeout)
	cancel()
	if err != nil {
		b.logger.Error("failed to dial agent", "error", err)
		_ = telWS.Close()
		return err
	}
	b.agent = agent
	b.logger.Info("bridge established")

	metrics.ActiveBridges.Inc()
	defer metrics.ActiveBridges.Dec()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer b.shutdown()
		b.tel.readLoop(b)
	}()
	go func() {
		defer wg.Done()
		defer b.shutdown()
		b.agent.readLoop(ctx, b)
	}()
	wg.Wait()

	b.logger.Info("bridge closed")
	return nil
}

// shutdown enforces the paired lifetime: the first side to finish closes
// both sockets, which unblocks the other read loop.
func (b *Bridge) shutdown() {
	b.closeOnce.Do(func() {
		b.tel.close()
		b.agent.close()
	})
}
