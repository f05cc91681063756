package terminal

// MessageKind distinguishes the payload types a Channel can deliver.
type MessageKind int

const (
	BinaryMessage MessageKind = iota + 1
	TextMessage
)

func (k MessageKind) String() string {
	switch k {
	case BinaryMessage:
		return "binary"
	case TextMessage:
		return "text"
	default:
		return "unknown"
	}
}

// Message is one inbound payload from the remote client.
type Message struct {
	Kind MessageKind
	Data []byte
}

// Bytes returns the payload as terminal input. Text payloads arrive as
// UTF-8 and are written unchanged.
func (m Message) Bytes() []byte {
	return m.Data
}

// Channel is the duplex connection to the remote client. It belongs to the
// transport layer; a session only references it.
//
// Receive is called from a single goroutine and Send from a single,
// different goroutine. Close and CloseWithError may be called from any
// goroutine, more than once, and must tolerate an already closed
// connection.
type Channel interface {
	// Receive blocks for the next inbound message. Any error, including a
	// clean disconnect, ends the session.
	Receive() (Message, error)
	// Send delivers terminal output to the client.
	Send(p []byte) error
	// Close ends the connection normally.
	Close() error
	// CloseWithError ends the connection and reports err to the client.
	CloseWithError(err error) error
}
