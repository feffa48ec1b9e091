package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const backgroundSendTimeout = 5 * time.Second

// DeliveryObserver is told about every sink delivery attempt.
type DeliveryObserver func(sink, event string, err error)

// Fanout is a registry of sinks. Foreground sinks are called inline by
// Publish and their errors are returned; background sinks are fed through a
// bounded queue drained by a worker pool, and a full queue drops the event.
type Fanout struct {
	foreground []Sink
	background []Sink
	queue      chan Event
	observe    DeliveryObserver
	closed     bool
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

func NewFanout(workers, queueSize int) *Fanout {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())

	f := &Fanout{
		queue:  make(chan Event, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		f.wg.Add(1)
		go f.processEvents()
	}

	return f
}

func (f *Fanout) SetObserver(observe DeliveryObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe = observe
}

// Subscribe registers a sink. A sink registered twice under the same name
// replaces the earlier one.
func (f *Fanout) Subscribe(sink Sink, background bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.foreground = without(f.foreground, sink.Name())
	f.background = without(f.background, sink.Name())
	if background {
		f.background = append(f.background, sink)
	} else {
		f.foreground = append(f.foreground, sink)
	}
	log.Printf("Realtime sink %s subscribed (background=%t)", sink.Name(), background)
}

func (f *Fanout) Unsubscribe(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.foreground = without(f.foreground, name)
	f.background = without(f.background, name)
	log.Printf("Realtime sink %s unsubscribed", name)
}

func without(sinks []Sink, name string) []Sink {
	out := sinks[:0:0]
	for _, s := range sinks {
		if s.Name() != name {
			out = append(out, s)
		}
	}
	return out
}

func (f *Fanout) Sinks() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.foreground)+len(f.background))
	for _, s := range f.foreground {
		names = append(names, s.Name())
	}
	for _, s := range f.background {
		names = append(names, s.Name())
	}
	return names
}

func (f *Fanout) Publish(ctx context.Context, topic, event string, payload interface{}) error {
	ev, err := NewEvent(topic, event, payload)
	if err != nil {
		return err
	}

	f.mu.RLock()
	sinks := append([]Sink(nil), f.foreground...)
	f.mu.RUnlock()

	var errs []error
	for _, sink := range sinks {
		if err := f.deliver(ctx, sink, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}

	f.PublishAsync(ev)
	return errors.Join(errs...)
}

// PublishAsync queues ev for the background sinks without blocking.
func (f *Fanout) PublishAsync(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed || len(f.background) == 0 {
		return
	}

	select {
	case f.queue <- ev:
	default:
		log.Printf("Realtime queue full, dropping %s on %s", ev.Event, ev.Topic)
	}
}

func (f *Fanout) deliver(ctx context.Context, sink Sink, ev Event) error {
	err := sink.Send(ctx, ev)
	f.mu.RLock()
	observe := f.observe
	f.mu.RUnlock()
	if observe != nil {
		observe(sink.Name(), ev.Event, err)
	}
	return err
}

func (f *Fanout) processEvents() {
	defer f.wg.Done()

	for ev := range f.queue {
		f.mu.RLock()
		sinks := append([]Sink(nil), f.background...)
		f.mu.RUnlock()

		for _, sink := range sinks {
			ctx, cancel := context.WithTimeout(f.ctx, backgroundSendTimeout)
			if err := f.deliver(ctx, sink, ev); err != nil {
				log.Printf("Realtime sink %s failed for %s on %s: %v", sink.Name(), ev.Event, ev.Topic, err)
			}
			cancel()
		}
	}
}

// Shutdown stops accepting background events, waits for queued ones to be
// delivered and then cancels any delivery still in flight.
func (f *Fanout) Shutdown() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	f.wg.Wait()
	f.cancel()
	log.Println("Realtime fanout shutdown complete")
}
