package stream

import "encoding/json"

// Discriminator values carried in the "type" field of a data payload.
const (
	TypeMessage = "message"
	TypeSession = "session"
	TypeThread  = "thread"
	TypeError   = "error"
)

// Frame is one decoded record of the event stream. The concrete type is one
// of MessageFrame, SessionFrame, ThreadFrame or ErrorFrame.
type Frame interface {
	// Type returns the discriminator value.
	Type() string
	// Payload returns the decoded record exactly as received.
	Payload() json.RawMessage

	frame()
}

type MessageFrame struct{ Data json.RawMessage }

type SessionFrame struct{ Data json.RawMessage }

type ThreadFrame struct{ Data json.RawMessage }

type ErrorFrame struct{ Data json.RawMessage }

func (MessageFrame) Type() string { return TypeMessage }
func (SessionFrame) Type() string { return TypeSession }
func (ThreadFrame) Type() string  { return TypeThread }
func (ErrorFrame) Type() string   { return TypeError }

func (f MessageFrame) Payload() json.RawMessage { return f.Data }
func (f SessionFrame) Payload() json.RawMessage { return f.Data }
func (f ThreadFrame) Payload() json.RawMessage  { return f.Data }
func (f ErrorFrame) Payload() json.RawMessage   { return f.Data }

func (MessageFrame) frame() {}
func (SessionFrame) frame() {}
func (ThreadFrame) frame()  {}
func (ErrorFrame) frame()   {}

// envelope holds the only field the codec looks at.
type envelope struct {
	Type string `json:"type"`
}
