// Package telemetry bridges scheduler events onto MQTT so dashboards and
// automations outside this process can react to shots and sensor readings.
package telemetry

import (
	"encoding/json"
	"log"
	"time"

	"github.com/goatboynz/ha-WaterME/internal/services/pubsub"
)

// MQTT topics.
const (
	TopicShots   = "waterme/shots"
	TopicSensors = "waterme/sensors"
	TopicSystem  = "waterme/system"
)

// Publisher publishes telemetry messages to a broker.
type Publisher interface {
	// Publish sends a payload to a topic. Failures must not crash the process.
	Publish(topic string, payload []byte) error
	// Close disconnects from the broker.
	Close() error
}

// ShotPayload is the JSON body published for a completed shot.
type ShotPayload struct {
	Timestamp   string  `json:"timestamp"`
	Room        string  `json:"room"`
	Zone        string  `json:"zone"`
	Phase       string  `json:"phase"`
	DurationSec float64 `json:"duration_sec"`
	TotalMl     float64 `json:"total_ml"`
	PerPlantMl  float64 `json:"per_plant_ml"`
}

// SensorPayload is the JSON body published for a recorded sensor point.
type SensorPayload struct {
	Timestamp string  `json:"timestamp"`
	EntityID  string  `json:"entity_id"`
	Value     float64 `json:"value"`
}

// SystemPayload is the JSON body for lifecycle and kill-switch events.
type SystemPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
}

// Bridge subscribes to the in-process bus and republishes events to MQTT.
type Bridge struct {
	bus       *pubsub.PubSub
	publisher Publisher
	stopChan  chan struct{}
	shotSub   *pubsub.Subscriber
	sensorSub *pubsub.Subscriber
	killSub   *pubsub.Subscriber
}

// NewBridge creates a bridge; it does nothing until Start is called.
func NewBridge(bus *pubsub.PubSub, publisher Publisher) *Bridge {
	return &Bridge{bus: bus, publisher: publisher}
}

// Start subscribes and begins forwarding events.
func (b *Bridge) Start() {
	b.stopChan = make(chan struct{})
	b.shotSub = b.bus.Subscribe(pubsub.TopicShotFired, 16)
	b.sensorSub = b.bus.Subscribe(pubsub.TopicSensorReading, 64)
	b.killSub = b.bus.Subscribe(pubsub.TopicKillSwitch, 4)
	go b.forward()
}

// Stop unsubscribes and disconnects from the broker.
func (b *Bridge) Stop() {
	if b.stopChan == nil {
		return
	}
	close(b.stopChan)
	b.bus.Unsubscribe(b.shotSub)
	b.bus.Unsubscribe(b.sensorSub)
	b.bus.Unsubscribe(b.killSub)
	if err := b.publisher.Close(); err != nil {
		log.Printf("Telemetry close: %v", err)
	}
	b.stopChan = nil
}

func (b *Bridge) forward() {
	for {
		select {
		case <-b.stopChan:
			return
		case msg, ok := <-b.shotSub.Channel:
			if !ok {
				return
			}
			if shot, ok := msg.(pubsub.ShotFired); ok {
				b.publish(TopicShots, ShotPayload{
					Timestamp:   shot.Timestamp.UTC().Format(time.RFC3339),
					Room:        shot.RoomName,
					Zone:        shot.ZoneName,
					Phase:       shot.Phase,
					DurationSec: shot.DurationSec,
					TotalMl:     shot.TotalMl,
					PerPlantMl:  shot.PerPlantMl,
				})
			}
		case msg, ok := <-b.sensorSub.Channel:
			if !ok {
				return
			}
			if reading, ok := msg.(pubsub.SensorReading); ok {
				b.publish(TopicSensors, SensorPayload{
					Timestamp: reading.Timestamp.UTC().Format(time.RFC3339),
					EntityID:  reading.EntityID,
					Value:     reading.Value,
				})
			}
		case msg, ok := <-b.killSub.Channel:
			if !ok {
				return
			}
			if ks, ok := msg.(pubsub.KillSwitch); ok {
				event := "KILL_SWITCH_CLEARED"
				if ks.Active {
					event = "KILL_SWITCH_ACTIVE"
				}
				b.publish(TopicSystem, SystemPayload{
					Timestamp: ks.Timestamp.UTC().Format(time.RFC3339),
					Event:     event,
				})
			}
		}
	}
}

func (b *Bridge) publish(topic string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Telemetry marshal %s: %v", topic, err)
		return
	}
	if err := b.publisher.Publish(topic, body); err != nil {
		log.Printf("Telemetry publish %s: %v", topic, err)
	}
}
