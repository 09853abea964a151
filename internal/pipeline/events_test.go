package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(16, logger.NewNop())
	rec := &recorder{}
	bus.Subscribe("recorder", rec)

	bus.Publish(contracts.Event{Type: contracts.EventRunStarted})
	bus.Publish(contracts.Event{Type: contracts.EventGateDecided})
	bus.Publish(contracts.Event{Type: contracts.EventRunFinished})
	bus.Close()

	assert.Equal(t, []contracts.EventType{
		contracts.EventRunStarted,
		contracts.EventGateDecided,
		contracts.EventRunFinished,
	}, rec.types())
}

func TestBusContainsObserverPanic(t *testing.T) {
	bus := NewBus(16, logger.NewNop())
	rec := &recorder{}
	bus.Subscribe("broken", ObserverFunc(func(contracts.Event) { panic("boom") }))
	bus.Subscribe("recorder", rec)

	bus.Publish(contracts.Event{Type: contracts.EventRunStarted})
	bus.Publish(contracts.Event{Type: contracts.EventRunFinished})
	bus.Close()

	assert.Len(t, rec.types(), 2, "later observers still receive every event")
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(1, logger.NewNop())
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.Subscribe("slow", ObserverFunc(func(contracts.Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}))

	bus.Publish(contracts.Event{Type: contracts.EventRunStarted})
	<-started // dispatcher is now blocked inside the observer

	bus.Publish(contracts.Event{Type: contracts.EventStageCompleted}) // fills the queue
	bus.Publish(contracts.Event{Type: contracts.EventRunFinished})   // dropped

	assert.Equal(t, int64(1), bus.Dropped())
	close(release)
	bus.Close()
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(4, logger.NewNop())
	bus.Close()

	require.NotPanics(t, func() {
		bus.Publish(contracts.Event{Type: contracts.EventRunStarted})
	})
	bus.Close()
}
