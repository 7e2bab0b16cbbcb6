// internal/consumer/consumer.go
package consumer

import (
	"fmt"

	"github.com/streadway/amqp"

	"hr-toolkit/internal/logger"
)

type HandlerFunc func(delivery amqp.Delivery)

// Channel is the part of *amqp.Channel a running consumer needs to stop.
type Channel interface {
	Cancel(consumer string, noWait bool) error
	Close() error
}

// Consumer holds control channels and metadata for one running AMQP consumer.
type Consumer struct {
	Queue       string
	ConsumerTag string
	Channel     Channel
	StopChan    chan struct{}
	DoneChan    chan struct{}
	Handler     HandlerFunc

	log *logger.Logger
}

// StartConsumer opens a channel on conn and consumes queue with manual acks.
// At most prefetch deliveries are in flight at once.
func StartConsumer(conn *amqp.Connection, queue, tag string, prefetch int, handler HandlerFunc, log *logger.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("consumer %s: failed to open channel: %w", tag, err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			return nil, fmt.Errorf("consumer %s: set qos: %w", tag, err)
		}
	}

	msgs, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consumer %s: failed to start consuming: %w", tag, err)
	}

	c := Start(ch, msgs, queue, tag, handler, log)
	c.log.Info("started consumer")
	return c, nil
}

// Start runs the delivery loop over msgs in a new goroutine.
func Start(ch Channel, msgs <-chan amqp.Delivery, queue, tag string, handler HandlerFunc, log *logger.Logger) *Consumer {
	c := &Consumer{
		Queue:       queue,
		ConsumerTag: tag,
		Channel:     ch,
		StopChan:    make(chan struct{}),
		DoneChan:    make(chan struct{}),
		Handler:     handler,
		log:         log.With("queue", queue, "consumer", tag),
	}
	go c.consumeLoop(msgs)
	return c
}

// consumeLoop processes messages until StopChan is closed
func (c *Consumer) consumeLoop(msgs <-chan amqp.Delivery) {
	defer close(c.DoneChan)

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("delivery channel closed")
				return
			}
			c.Handler(msg)

		case <-c.StopChan:
			c.log.Debug("stopping consumer")
			_ = c.Channel.Cancel(c.ConsumerTag, false)
			return
		}
	}
}

// Stop signals the consumer to stop and waits for the in-flight delivery.
func (c *Consumer) Stop() {
	select {
	case <-c.StopChan:
	default:
		close(c.StopChan)
	}
	<-c.DoneChan
	_ = c.Channel.Close()
	c.log.Info("stopped consumer")
}
