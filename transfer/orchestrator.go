// Package transfer drives the handoff of a live call to a human operator.
package transfer

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentplexus/voicebridge/internal/metrics"
	"github.com/agentplexus/voicebridge/internal/twilio"
	"github.com/agentplexus/voicebridge/session"
)

// ConferenceName derives the conference room for a call. Both legs of the
// transfer compute it independently, so it must be stable for the lifetime
// of the call: a fixed prefix plus the call SID, which Twilio guarantees
// unique among live calls.
func ConferenceName(callSID string) string {
	return "transfer_" + callSID
}

// ControlPlane is the slice of the Twilio client the orchestrator needs.
type ControlPlane interface {
	GetCall(ctx context.Context, callSID string) (*twilio.Call, error)
	UpdateCall(ctx context.Context, callSID, twiml string) (*twilio.Call, error)
	MakeCall(ctx context.Context, to, from, twiml string) (*twilio.Call, error)
}

// Result is the structured outcome of a transfer attempt. The JSON shape is
// what the agent receives in its tool response and what the manual trigger
// endpoint returns.
type Result struct {
	OK              bool   `json:"success"`
	OperatorCallSID string `json:"agentCallSid,omitempty"`
	Reason          string `json:"error,omitempty"`
}

// Option configures the Orchestrator.
type Option func(*options)

type options struct {
	holdMusicURL string
	timeout      time.Duration
	logger       *slog.Logger
}

// WithHoldMusicURL sets the wait music played to a parked caller.
func WithHoldMusicURL(url string) Option {
	return func(o *options) {
		o.holdMusicURL = url
	}
}

// WithTimeout bounds each control-plane round trip.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Orchestrator moves a caller into a conference and dials the operator in.
type Orchestrator struct {
	control      ControlPlane
	registry     *session.Registry
	holdMusicURL string
	timeout      time.Duration
	logger       *slog.Logger
}

// New creates an Orchestrator.
func New(control ControlPlane, registry *session.Registry, opts ...Option) *Orchestrator {
	cfg := &options{
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Orchestrator{
		control:      control,
		registry:     registry,
		holdMusicURL: cfg.holdMusicURL,
		timeout:      cfg.timeout,
		logger:       cfg.logger,
	}
}

// Transfer parks the caller of callSID in a conference and dials
// operatorNumber into it. Every failure is converted into a Result; nothing
// escapes to tear down the surrounding bridge. Two concurrent transfers for
// the same call each reach the control plane independently; there is no
// idempotency guard.
func (o *Orchestrator) Transfer(ctx context.Context, callSID, operatorNumber string) Result {
	log := o.logger.With("call_sid", callSID, "operator", operatorNumber)
	log.Info("initiating transfer")

	call, err := o.getCall(ctx, callSID)
	if err != nil {
		log.Error("transfer failed fetching call", "error", err)
		return o.fail(err)
	}

	conferenceName := ConferenceName(callSID)

	// Park the caller first. If this fails the original leg may be
	// degraded; surface the failure instead of retrying against a leg in
	// an unknown state.
	if err := o.parkCaller(ctx, callSID, conferenceName); err != nil {
		log.Error("transfer failed parking caller", "conference", conferenceName, "error", err)
		return o.fail(err)
	}
	log.Info("caller parked in conference", "conference", conferenceName)

	operatorCall, err := o.dialOperator(ctx, operatorNumber, call.From, conferenceName)
	if err != nil {
		log.Error("transfer failed dialing operator", "conference", conferenceName, "error", err)
		return o.fail(err)
	}
	log.Info("operator call created", "operator_call_sid", operatorCall.SID)

	if !o.registry.MarkTransferring(callSID, conferenceName, operatorCall.SID, operatorNumber) {
		log.Warn("call no longer tracked while marking transfer")
	}

	metrics.TransferAttempts.WithLabelValues("ok").Inc()
	return Result{OK: true, OperatorCallSID: operatorCall.SID}
}

func (o *Orchestrator) getCall(ctx context.Context, callSID string) (*twilio.Call, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.control.GetCall(ctx, callSID)
}

func (o *Orchestrator) parkCaller(ctx context.Context, callSID, conferenceName string) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	_, err := o.control.UpdateCall(ctx, callSID, twilio.CallerHoldTwiML(conferenceName, o.holdMusicURL))
	return err
}

func (o *Orchestrator) dialOperator(ctx context.Context, to, from, conferenceName string) (*twilio.Call, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.control.MakeCall(ctx, to, from, twilio.OperatorJoinTwiML(conferenceName))
}

func (o *Orchestrator) fail(err error) Result {
	metrics.TransferAttempts.WithLabelValues("failed").Inc()
	return Result{OK: false, Reason: err.Error()}
}
