package events

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	logger := zerolog.New(io.Discard)
	return NewBus(&logger)
}

func TestBusPublishOrder(t *testing.T) {
	bus := newTestBus()

	var got []string
	bus.Subscribe(func(event string, _ any) {
		got = append(got, "first:"+event)
	})
	bus.Subscribe(func(event string, _ any) {
		got = append(got, "second:"+event)
	})

	bus.Publish("online", nil)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"first:online", "second:online"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := newTestBus()

	calls := 0
	unsubscribe := bus.Subscribe(func(string, any) { calls++ })

	bus.Publish("queued", nil)
	unsubscribe()
	bus.Publish("queued", nil)

	assert.Equal(t, 1, calls)

	// Unsubscribing twice is harmless
	assert.NotPanics(t, unsubscribe)
}

func TestBusIsolatesPanickingListener(t *testing.T) {
	bus := newTestBus()

	bus.Subscribe(func(string, any) {
		panic("listener bug")
	})

	var gotData any
	bus.Subscribe(func(_ string, data any) {
		gotData = data
	})

	assert.NotPanics(t, func() {
		bus.Publish("synced", 7)
	})
	assert.Equal(t, 7, gotData)
}

func TestBusPassesEventData(t *testing.T) {
	bus := newTestBus()

	var gotEvent string
	var gotData any
	bus.Subscribe(func(event string, data any) {
		gotEvent = event
		gotData = data
	})

	bus.Publish("offline", "probe")

	assert.Equal(t, "offline", gotEvent)
	assert.Equal(t, "probe", gotData)
}
