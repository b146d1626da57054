package twilio

import (
	"encoding/xml"
	"fmt"
)

// TwiML document elements. Field order matters: verbs execute in the order
// they are marshaled.

// Response is the TwiML document root.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Say     *Say
	Dial    *Dial
	Connect *Connect
}

// Say speaks a message to the call leg.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Dial connects the leg to another party.
type Dial struct {
	XMLName    xml.Name `xml:"Dial"`
	Conference *Conference
}

// Conference joins the leg to a named conference room.
type Conference struct {
	XMLName                xml.Name `xml:"Conference"`
	StartConferenceOnEnter bool     `xml:"startConferenceOnEnter,attr"`
	EndConferenceOnExit    bool     `xml:"endConferenceOnExit,attr"`
	Beep                   string   `xml:"beep,attr,omitempty"`
	WaitURL                string   `xml:"waitUrl,attr,omitempty"`
	Name                   string   `xml:",chardata"`
}

// Connect hands the call to a bidirectional media stream.
type Connect struct {
	XMLName xml.Name `xml:"Connect"`
	Stream  *Stream
}

// Stream opens a Media Streams WebSocket to the given URL.
type Stream struct {
	XMLName xml.Name `xml:"Stream"`
	URL     string   `xml:"url,attr"`
}

// CallerHoldTwiML parks the caller in the named conference. The caller
// neither starts nor ends the conference, so sitting in it alone does not
// tear it down while the operator leg is still ringing.
func CallerHoldTwiML(conferenceName, holdMusicURL string) string {
	return marshalTwiML(&Response{
		Say: &Say{Text: "Please hold while we connect you to an agent."},
		Dial: &Dial{
			Conference: &Conference{
				StartConferenceOnEnter: false,
				EndConferenceOnExit:    false,
				WaitURL:                holdMusicURL,
				Name:                   conferenceName,
			},
		},
	})
}

// OperatorJoinTwiML briefs the operator and joins them to the conference.
// The operator is the deciding party: their entry starts the conference and
// their exit ends it, so the room cleans up once they hang up.
func OperatorJoinTwiML(conferenceName string) string {
	return marshalTwiML(&Response{
		Say: &Say{Text: "You are being connected to a caller who was speaking with our AI assistant."},
		Dial: &Dial{
			Conference: &Conference{
				StartConferenceOnEnter: true,
				EndConferenceOnExit:    true,
				Beep:                   "false",
				Name:                   conferenceName,
			},
		},
	})
}

// MediaStreamTwiML answers an inbound call by connecting it to the given
// media-stream WebSocket URL.
func MediaStreamTwiML(streamURL string) string {
	return marshalTwiML(&Response{
		Connect: &Connect{
			Stream: &Stream{URL: streamURL},
		},
	})
}

func marshalTwiML(resp *Response) string {
	out, err := xml.MarshalIndent(resp, "", "    ")
	if err != nil {
		return fmt.Sprintf("%s<Response/>", xml.Header)
	}
	return xml.Header + string(out)
}
