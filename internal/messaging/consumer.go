package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

const consumeRetryDelay = 5 * time.Second

// Consumer feeds RabbitMQ deliveries into a Handler and acks or
// dead-letters each one.
type Consumer struct {
	rmq     *RabbitMQ
	handler Handler
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewConsumer(rmq *RabbitMQ, handler Handler) *Consumer {
	return &Consumer{
		rmq:     rmq,
		handler: handler,
		done:    make(chan struct{}),
	}
}

func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.consume()
	log.Info("consumer: started")
}

func (c *Consumer) consume() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		msgs, err := c.rmq.Consume()
		if err != nil {
			log.WithError(err).Warnf("consumer: retrying in %v", consumeRetryDelay)
			select {
			case <-c.done:
				return
			case <-time.After(consumeRetryDelay):
			}
			continue
		}

		c.processMessages(msgs)
	}
}

func (c *Consumer) processMessages(msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Warn("consumer: channel closed, reconnecting")
				return
			}
			c.handleMessage(msg)
		}
	}
}

func (c *Consumer) handleMessage(msg amqp.Delivery) {
	messageID := msg.MessageId
	if messageID == "" {
		messageID = fmt.Sprintf("%x", msg.Body[:min(32, len(msg.Body))])
	}

	err := c.handler.Handle(context.Background(), Delivery{
		MessageID:  messageID,
		RoutingKey: msg.RoutingKey,
		Body:       msg.Body,
	})
	if err != nil {
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

func (c *Consumer) Stop() {
	close(c.done)
	c.wg.Wait()
	log.Info("consumer: stopped")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
