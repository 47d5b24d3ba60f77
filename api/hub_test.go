package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-analytics/utils"
)

func TestRegisterOrdersGreetingBeforeConcurrentBroadcast(t *testing.T) {
	hub := NewHub(utils.NopLogger(), NewMetrics())
	done := make(chan struct{})
	hub.greeting = func() *Event {
		go func() {
			defer close(done)
			hub.Broadcast(Event{Type: EventDatasetLoaded, Dataset: &DatasetInfo{Generation: 2}})
		}()
		// Give the broadcast a chance to run before the client is in the set.
		time.Sleep(20 * time.Millisecond)
		return &Event{Type: EventDatasetLoaded, Dataset: &DatasetInfo{Generation: 1}}
	}

	c := &client{addr: "test", send: make(chan []byte, sendBuffer)}
	hub.register(c)
	<-done

	require.Len(t, c.send, 2)
	var generations []uint64
	for i := 0; i < 2; i++ {
		var ev Event
		require.NoError(t, json.Unmarshal(<-c.send, &ev))
		generations = append(generations, ev.Dataset.Generation)
	}
	assert.Equal(t, []uint64{1, 2}, generations)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestRegisterWithoutGreeting(t *testing.T) {
	hub := NewHub(utils.NopLogger(), NewMetrics())
	hub.greeting = func() *Event { return nil }

	c := &client{addr: "test", send: make(chan []byte, sendBuffer)}
	hub.register(c)

	assert.Empty(t, c.send)
	hub.unregister(c)
	assert.Zero(t, hub.ClientCount())
}
