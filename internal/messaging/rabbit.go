// internal/messaging/rabbit.go
package messaging

import (
	"fmt"

	"github.com/streadway/amqp"

	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/metrics"
)

type RabbitClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *logger.Logger
}

func NewRabbitClient(url string, log *logger.Logger) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return &RabbitClient{
		conn:    conn,
		channel: ch,
		log:     log.Named("rabbit"),
	}, nil
}

func (r *RabbitClient) Connection() *amqp.Connection {
	return r.conn
}

// DeadLetterQueue names the queue that receives rejected deliveries of queue.
func DeadLetterQueue(queue string) string {
	return queue + "_dlq"
}

// DeclareQueue creates a durable queue and its dead-letter queue.
func (r *RabbitClient) DeclareQueue(queue string) error {
	dlq := DeadLetterQueue(queue)

	if _, err := r.channel.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}
	if _, err := r.channel.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	r.log.Info("queues declared", "queue", queue, "dlq", dlq)
	return nil
}

// Publish sends a persistent JSON message to queue via the default exchange.
func (r *RabbitClient) Publish(queue string, body []byte) error {
	err := r.channel.Publish(
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queue, err)
	}
	return nil
}

func (r *RabbitClient) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}

// UpdateQueueDepth refreshes the queue depth gauge for queue.
func (r *RabbitClient) UpdateQueueDepth(queue string) {
	q, err := r.channel.QueueInspect(queue)
	if err != nil {
		r.log.Warn("failed to inspect queue", "queue", queue, "error", err)
		return
	}
	metrics.QueueDepth.WithLabelValues(queue).Set(float64(q.Messages))
}
