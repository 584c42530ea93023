package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goatboynz/ha-WaterME/internal/services/pubsub"
)

func waitForMessages(t *testing.T, pub *FakePublisher, n int) []FakeMessage {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(pub.Messages()) >= n
	}, 2*time.Second, 5*time.Millisecond, "expected %d telemetry messages", n)
	return pub.Messages()
}

func TestBridgeForwardsShotEvents(t *testing.T) {
	bus := pubsub.New()
	pub := NewFakePublisher()
	bridge := NewBridge(bus, pub)
	bridge.Start()
	defer bridge.Stop()

	fired := time.Date(2025, 6, 15, 8, 30, 0, 0, time.UTC)
	bus.Publish(pubsub.TopicShotFired, pubsub.ShotFired{
		Timestamp:   fired,
		RoomName:    "Veg",
		ZoneName:    "Zone 1",
		Phase:       "P1",
		DurationSec: 10,
		TotalMl:     33.3,
		PerPlantMl:  5.6,
	})

	msgs := waitForMessages(t, pub, 1)
	assert.Equal(t, TopicShots, msgs[0].Topic)

	var payload ShotPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, "2025-06-15T08:30:00Z", payload.Timestamp)
	assert.Equal(t, "Veg", payload.Room)
	assert.Equal(t, "Zone 1", payload.Zone)
	assert.Equal(t, "P1", payload.Phase)
	assert.Equal(t, 33.3, payload.TotalMl)
}

func TestBridgeForwardsSensorReadings(t *testing.T) {
	bus := pubsub.New()
	pub := NewFakePublisher()
	bridge := NewBridge(bus, pub)
	bridge.Start()
	defer bridge.Stop()

	bus.Publish(pubsub.TopicSensorReading, pubsub.SensorReading{
		Timestamp: time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC),
		EntityID:  "sensor.moisture1",
		Value:     58.2,
	})

	msgs := waitForMessages(t, pub, 1)
	assert.Equal(t, TopicSensors, msgs[0].Topic)

	var payload SensorPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, "sensor.moisture1", payload.EntityID)
	assert.Equal(t, 58.2, payload.Value)
}

func TestBridgeForwardsKillSwitch(t *testing.T) {
	bus := pubsub.New()
	pub := NewFakePublisher()
	bridge := NewBridge(bus, pub)
	bridge.Start()
	defer bridge.Stop()

	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	bus.Publish(pubsub.TopicKillSwitch, pubsub.KillSwitch{Timestamp: now, Active: true})
	bus.Publish(pubsub.TopicKillSwitch, pubsub.KillSwitch{Timestamp: now, Active: false})

	msgs := waitForMessages(t, pub, 2)
	var first, second SystemPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &first))
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &second))
	assert.Equal(t, "KILL_SWITCH_ACTIVE", first.Event)
	assert.Equal(t, "KILL_SWITCH_CLEARED", second.Event)
}

func TestBridgeStopClosesPublisher(t *testing.T) {
	bus := pubsub.New()
	pub := NewFakePublisher()
	bridge := NewBridge(bus, pub)
	bridge.Start()

	bridge.Stop()
	assert.True(t, pub.Closed())
	assert.Zero(t, bus.SubscriberCount(pubsub.TopicShotFired))

	// Stop twice is safe.
	bridge.Stop()
}
