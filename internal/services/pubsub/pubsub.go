// Package pubsub provides a simple in-process publish-subscribe bus linking
// the scheduler to the telemetry bridge and other runtime consumers.
package pubsub

import (
	"sync"
	"time"
)

// Topic represents a subscription topic.
type Topic string

const (
	TopicShotFired     Topic = "SHOT_FIRED"
	TopicSensorReading Topic = "SENSOR_READING"
	TopicKillSwitch    Topic = "KILL_SWITCH_CHANGED"
)

// ShotFired is published after a shot completes successfully.
type ShotFired struct {
	Timestamp   time.Time
	RoomName    string
	ZoneName    string
	Phase       string
	DurationSec float64
	TotalMl     float64
	PerPlantMl  float64
}

// SensorReading is published when the poller records a sensor point.
type SensorReading struct {
	Timestamp time.Time
	EntityID  string
	Value     float64
}

// KillSwitch is published when the kill switch is toggled.
type KillSwitch struct {
	Timestamp time.Time
	Active    bool
}

// Subscriber represents a subscription channel.
type Subscriber struct {
	ID      int
	Topic   Topic
	Channel chan interface{}
}

// PubSub manages subscriptions and message distribution.
type PubSub struct {
	mu          sync.RWMutex
	subscribers map[Topic][]*Subscriber
	nextID      int
}

// New creates a new PubSub instance.
func New() *PubSub {
	return &PubSub{
		subscribers: make(map[Topic][]*Subscriber),
	}
}

// Subscribe creates a new subscription for a topic.
func (ps *PubSub) Subscribe(topic Topic, bufferSize int) *Subscriber {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.nextID++
	sub := &Subscriber{
		ID:      ps.nextID,
		Topic:   topic,
		Channel: make(chan interface{}, bufferSize),
	}

	ps.subscribers[topic] = append(ps.subscribers[topic], sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (ps *PubSub) Unsubscribe(sub *Subscriber) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	subs := ps.subscribers[sub.Topic]
	for i, s := range subs {
		if s.ID == sub.ID {
			close(s.Channel)
			ps.subscribers[sub.Topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish sends a message to all subscribers of a topic. Slow subscribers
// are skipped rather than blocking the scheduler.
func (ps *PubSub) Publish(topic Topic, message interface{}) {
	ps.mu.RLock()
	subs := ps.subscribers[topic]
	ps.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.Channel <- message:
			// Message sent
		default:
			// Channel full, skip (non-blocking)
		}
	}
}

// SubscriberCount returns the number of subscribers for a topic.
func (ps *PubSub) SubscriberCount(topic Topic) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}
