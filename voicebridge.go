// Package voicebridge bridges Twilio Media Streams to a conversational-AI
// voice agent and lets the agent hand a caller off to a human operator
// mid-call.
//
// A single process hosts three HTTP surfaces:
//   - the inbound-call webhook that answers with <Connect><Stream> TwiML
//   - the /media-stream WebSocket endpoint Twilio connects back to
//   - a manual /transfer trigger for operations use
//
// Each accepted media stream becomes one bridge: the Twilio socket on one
// side, a freshly dialed agent socket on the other. Audio passes through
// base64-opaque in both directions. When the agent invokes the transfer
// tool, the caller is parked in a Twilio conference and the operator is
// dialed into it.
//
// # Environment Variables
//
//	TWILIO_ACCOUNT_SID  - Twilio Account SID
//	TWILIO_AUTH_TOKEN   - Twilio Auth Token
//	ELEVENLABS_AGENT_ID - Conversational agent to dial per call
package voicebridge

// Version is the release version.
const Version = "0.1.0"

// DefaultAPIBaseURL is the Twilio REST API base URL.
const DefaultAPIBaseURL = "https://api.twilio.com/2010-04-01"

// DefaultAgentWSBase is the conversational agent WebSocket endpoint. The
// agent id is appended as the agent_id query parameter when dialing.
const DefaultAgentWSBase = "wss://api.elevenlabs.io/v1/convai/conversation"

// DefaultHoldMusicURL plays for a parked caller while the operator leg is
// still ringing.
const DefaultHoldMusicURL = "http://twimlets.com/holdmusic?Bucket=com.twilio.music.classical"

// DefaultTransferTool is the tool name the agent uses to request a handoff.
const DefaultTransferTool = "transfer_to_agent"
