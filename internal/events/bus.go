// Package events implements the publish-only EventBus the core depends on.
// Grounded on internal/agent/event_emitter.go's atomic-sequence-number
// pattern and internal/agent/event_sink.go's EventSink abstraction, adapted
// from a streaming-chat event vocabulary to the canonical task/tool event
// names this spec emits.
package events

import (
	"context"
	"sync/atomic"
	"time"
)

// Name enumerates the canonical event strings emitted by the core.
type Name string

const (
	TaskStarted         Name = "TASK_STARTED"
	TaskCompleted       Name = "TASK_COMPLETED"
	TaskFailed          Name = "TASK_FAILED"
	AgentThinking       Name = "AGENT_THINKING"
	ToolStart           Name = "TOOL_START"
	ToolEnd             Name = "TOOL_END"
	ToolError           Name = "TOOL_ERROR"
	UserConfirmRequired Name = "USER_CONFIRM_REQUIRED"
	CheckpointSaved     Name = "CHECKPOINT_SAVED"
)

// Event is one entry published to the bus. Sequence is a monotonic,
// process-wide counter assigned at publish time so subscribers can detect
// gaps or reorder delivery.
type Event struct {
	Name      Name           `json:"name"`
	TaskID    string         `json:"task_id"`
	Sequence  uint64         `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Sink receives events during processing. Implementations must be safe to
// call from multiple goroutines and must not block the publisher.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// EventBus is the publish-only interface the core depends on.
type EventBus interface {
	Publish(ctx context.Context, name Name, taskID string, data map[string]any)
}

// Bus fans events out to one or more Sinks with a monotonic sequence number,
// mirroring EventEmitter.base/emit's nextSeq + dispatch shape.
type Bus struct {
	sequence uint64
	sink     Sink
}

// New builds a Bus dispatching to sink. A nil sink is replaced with NopSink.
func New(sink Sink) *Bus {
	if sink == nil {
		sink = NopSink{}
	}
	return &Bus{sink: sink}
}

func (b *Bus) Publish(ctx context.Context, name Name, taskID string, data map[string]any) {
	event := Event{
		Name:      name,
		TaskID:    taskID,
		Sequence:  atomic.AddUint64(&b.sequence, 1),
		Timestamp: time.Now(),
		Data:      data,
	}
	b.sink.Emit(ctx, event)
}

// NopSink discards every event. Useful in tests and headless runs with no
// subscriber attached.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// ChanSink sends events to a buffered channel, dropping the event rather
// than blocking the publisher when the channel is full.
type ChanSink struct {
	ch chan<- Event
}

func NewChanSink(ch chan<- Event) *ChanSink {
	return &ChanSink{ch: ch}
}

func (s *ChanSink) Emit(ctx context.Context, e Event) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// MultiSink fans one event out to several Sinks, e.g. an in-process
// subscriber channel plus a websocket transport.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m.sinks {
		s.Emit(ctx, e)
	}
}
