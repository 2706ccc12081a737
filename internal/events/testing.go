package events

import (
	"context"
	"sync"
)

// Recorder is an in-memory Publisher that keeps every message in send order.
// FailOn makes Publish return the given error for a routing key instead of
// recording the message.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	FailOn   map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{FailOn: map[string]error{}}
}

func (r *Recorder) Publish(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailOn[msg.RoutingKey]; ok {
		return err
	}
	body := append([]byte(nil), msg.Body...)
	r.messages = append(r.messages, Message{RoutingKey: msg.RoutingKey, Key: msg.Key, Body: body})
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// RoutingKeys returns the recorded routing keys in send order.
func (r *Recorder) RoutingKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		keys = append(keys, m.RoutingKey)
	}
	return keys
}

// Reset drops recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
