// Package events implements the Event Stream (spec.md §4.7): a
// discriminated event union delivered in emission order to a
// caller-supplied sink, with back-pressure via blocking sends.
//
// Grounded on the teacher's agent.Event / pkg/session memoryEvents
// shape (a single typed event value flowing through an iterator-like
// sink) generalized into an explicit discriminated union per the
// REDESIGN FLAGS (spec.md §9): a tagged Kind field plus one payload
// struct per variant, rather than duck-typed fields on one struct.
package events

import "time"

// Kind discriminates an Event's payload.
type Kind string

const (
	KindThinking   Kind = "thinking"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindText       Kind = "text"
	KindError      Kind = "error"
)

// Event is one entry in the stream for a single processMessage call.
type Event struct {
	Kind           Kind      `json:"type"`
	ConversationID string    `json:"conversationId"`
	TurnID         string    `json:"turnId"`
	Timestamp      time.Time `json:"timestamp"`

	// Thinking
	Content string `json:"content,omitempty"`

	// ToolCall
	ToolName   string         `json:"toolName,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// ToolResult
	Success  bool           `json:"success,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Error
	Code string `json:"code,omitempty"`
}

// Thinking builds a thinking event.
func Thinking(conversationID, turnID, content string) Event {
	return Event{Kind: KindThinking, ConversationID: conversationID, TurnID: turnID, Timestamp: time.Now(), Content: content}
}

// ToolCall builds a tool_call event.
func ToolCall(conversationID, turnID, toolName string, parameters map[string]any) Event {
	return Event{Kind: KindToolCall, ConversationID: conversationID, TurnID: turnID, Timestamp: time.Now(), ToolName: toolName, Parameters: parameters}
}

// ToolResult builds a tool_result event.
func ToolResult(conversationID, turnID, toolName string, success bool, content string, metadata map[string]any) Event {
	return Event{Kind: KindToolResult, ConversationID: conversationID, TurnID: turnID, Timestamp: time.Now(), ToolName: toolName, Success: success, Content: content, Metadata: metadata}
}

// Text builds a text event.
func Text(conversationID, turnID, content string) Event {
	return Event{Kind: KindText, ConversationID: conversationID, TurnID: turnID, Timestamp: time.Now(), Content: content}
}

// Err builds an error event.
func Err(conversationID, turnID, content, code string) Event {
	return Event{Kind: KindError, ConversationID: conversationID, TurnID: turnID, Timestamp: time.Now(), Content: content, Code: code}
}

// Sink receives events in emission order. Implementations may block to
// apply back-pressure; a blocking Send pauses the emitting pipeline
// without reordering events, per spec.md §4.7.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }

// ChannelSink delivers events onto a buffered channel, blocking once
// full — the channel's capacity is the back-pressure budget. Grounded
// on the teacher's runner event-channel plumbing (pkg/runner), which
// streams agent.Event values to a caller over a channel rather than a
// callback.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink builds a ChannelSink with the given buffer capacity.
func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, capacity)}
}

// Send blocks until the channel accepts e or ctx-less callers simply
// block; Close must be called by the producer once the turn completes.
func (c *ChannelSink) Send(e Event) error {
	c.ch <- e
	return nil
}

// Events exposes the receive side for callers to range over.
func (c *ChannelSink) Events() <-chan Event {
	return c.ch
}

// Close signals no further events will be sent. Must only be called by
// the producer, exactly once, after the pipeline completes.
func (c *ChannelSink) Close() {
	close(c.ch)
}

// NullSink discards every event; useful for plan-only calls that never
// want the full event stream (spec.md §8 scenario S1).
type NullSink struct{}

func (NullSink) Send(Event) error { return nil }

// CollectingSink accumulates events in order; used by tests and by
// non-streaming callers that want the whole turn's events at once.
type CollectingSink struct {
	Events []Event
}

func (c *CollectingSink) Send(e Event) error {
	c.Events = append(c.Events, e)
	return nil
}
