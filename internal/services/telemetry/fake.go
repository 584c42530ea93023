package telemetry

import "sync"

// FakePublisher records published messages for tests.
type FakePublisher struct {
	mu       sync.Mutex
	messages []FakeMessage
	closed   bool
}

// FakeMessage is one recorded publish.
type FakeMessage struct {
	Topic   string
	Payload []byte
}

// NewFakePublisher creates an empty fake.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish implements Publisher.
func (f *FakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	body := make([]byte, len(payload))
	copy(body, payload)
	f.messages = append(f.messages, FakeMessage{Topic: topic, Payload: body})
	return nil
}

// Close implements Publisher.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Messages returns a copy of the recorded messages.
func (f *FakePublisher) Messages() []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeMessage, len(f.messages))
	copy(out, f.messages)
	return out
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
