package conversation

import "context"

// ReplyType tells the chat frontend how to render a reply.
type ReplyType string

const (
	ReplyText     ReplyType = "text"
	ReplyOptions  ReplyType = "options"
	ReplyDecision ReplyType = "decision"
	ReplyDocument ReplyType = "document"
	ReplyError    ReplyType = "error"
)

// EventRequest is one inbound event addressed to a session.
type EventRequest struct {
	SessionID string `json:"sessionId"`
	Event     Event  `json:"event"`
}

// Reply is the customer-facing outcome of processing one event.
type Reply struct {
	SessionID   string            `json:"sessionId"`
	Message     string            `json:"message"`
	MessageType ReplyType         `json:"messageType"`
	Stage       Stage             `json:"stage"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Service processes conversation events. Implementations must serialize
// events addressed to the same session; events for different sessions may
// interleave freely.
type Service interface {
	HandleEvent(ctx context.Context, req EventRequest) (*Reply, error)
}

// Dispatcher is a Service with a lifecycle, for queue-backed implementations
// that own worker goroutines.
type Dispatcher interface {
	Service
	Shutdown(ctx context.Context) error
}
