package pipeline

import (
	"fmt"
	"sync"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// DefaultBusBuffer is the number of events queued before Publish starts dropping
const DefaultBusBuffer = 256

type subscriber struct {
	name     string
	observer contracts.Observer
}

// Bus fans events out to observers on a single dispatcher goroutine.
// Publish never blocks the caller: a full queue drops the event.
// A panicking observer is logged and skipped; the others still receive the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	queue       chan contracts.Event
	done        chan struct{}
	closeOnce   sync.Once
	dropped     int64
	logger      *logger.Logger
}

// NewBus starts the dispatcher
func NewBus(buffer int, log *logger.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBusBuffer
	}
	b := &Bus{
		queue:  make(chan contracts.Event, buffer),
		done:   make(chan struct{}),
		logger: log.WithComponent("event_bus"),
	}
	go b.dispatch()
	return b
}

// Subscribe registers an observer. Observers added later miss earlier events.
func (b *Bus) Subscribe(name string, obs contracts.Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber{name: name, observer: obs})
}

// OnEvent lets the bus itself be passed where an Observer is expected
func (b *Bus) OnEvent(e contracts.Event) {
	b.Publish(e)
}

// Publish enqueues an event. Events published after Close are discarded.
func (b *Bus) Publish(e contracts.Event) {
	defer func() {
		// send on closed channel
		_ = recover()
	}()

	select {
	case b.queue <- e:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		b.logger.WithFields(map[string]interface{}{
			"type":   string(e.Type),
			"run_id": e.RunID,
		}).Warn("Event queue full, event dropped")
	}
}

// Dropped returns the number of events discarded because the queue was full
func (b *Bus) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Close stops accepting events and waits until queued events are delivered
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.queue)
		<-b.done
	})
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.queue {
		b.mu.RLock()
		subs := make([]subscriber, len(b.subscribers))
		copy(subs, b.subscribers)
		b.mu.RUnlock()

		for _, s := range subs {
			b.deliver(s, e)
		}
	}
}

func (b *Bus) deliver(s subscriber, e contracts.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(map[string]interface{}{
				"observer": s.name,
				"type":     string(e.Type),
			}).WithError(fmt.Errorf("panic: %v", r)).Error("Observer panicked")
		}
	}()
	s.observer.OnEvent(e)
}

// ObserverFunc adapts a function to contracts.Observer
type ObserverFunc func(e contracts.Event)

// OnEvent calls f
func (f ObserverFunc) OnEvent(e contracts.Event) {
	f(e)
}

// LogObserver writes every event as a debug line
type LogObserver struct {
	logger *logger.Logger
}

// NewLogObserver creates a new log observer
func NewLogObserver(log *logger.Logger) *LogObserver {
	return &LogObserver{logger: log.WithComponent("events")}
}

// OnEvent logs e
func (l *LogObserver) OnEvent(e contracts.Event) {
	fields := map[string]interface{}{
		"type":   string(e.Type),
		"run_id": e.RunID,
	}
	if e.Stage != "" {
		fields["stage"] = string(e.Stage)
	}
	for k, v := range e.Data {
		fields[k] = v
	}
	l.logger.WithFields(fields).Debug("Event")
}
