package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/apex/log"
	"github.com/google/uuid"
)

var ErrBusFull = errors.New("event bus full")

// LocalBus delivers events in-process when no broker is configured.
type LocalBus struct {
	handler Handler
	queue   chan Delivery
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewLocalBus(handler Handler, size int) *LocalBus {
	if size <= 0 {
		size = 100
	}
	return &LocalBus{
		handler: handler,
		queue:   make(chan Delivery, size),
		done:    make(chan struct{}),
	}
}

// Publish never blocks the caller; events are dropped when the queue is
// full.
func (b *LocalBus) Publish(_ context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	select {
	case b.queue <- Delivery{MessageID: uuid.NewString(), RoutingKey: routingKey, Body: body}:
		return nil
	default:
		return ErrBusFull
	}
}

func (b *LocalBus) Start() {
	b.wg.Add(1)
	go b.run()
}

func (b *LocalBus) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			b.drain()
			return
		case d := <-b.queue:
			b.deliver(d)
		}
	}
}

func (b *LocalBus) drain() {
	for {
		select {
		case d := <-b.queue:
			b.deliver(d)
		default:
			return
		}
	}
}

func (b *LocalBus) deliver(d Delivery) {
	if err := b.handler.Handle(context.Background(), d); err != nil {
		log.WithError(err).WithField("routing_key", d.RoutingKey).Error("bus: dropped event")
	}
}

// Stop delivers whatever is queued and returns.
func (b *LocalBus) Stop() {
	close(b.done)
	b.wg.Wait()
}
