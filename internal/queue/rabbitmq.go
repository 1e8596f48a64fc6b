package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const DefaultRabbitQueue = "evaluation_queue"

// RabbitMQ publishes jobs to a durable queue. Each Consume call opens its own
// channel with prefetch 1 and acks after the handler returns.
type RabbitMQ struct {
	conn  *amqp.Connection
	queue string
	log   logrus.FieldLogger

	mu      sync.Mutex // guards pubCh; amqp channels are not safe for concurrent publishes
	pubCh   *amqp.Channel
	closing bool
}

func NewRabbitMQ(conn *amqp.Connection, queueName string, log logrus.FieldLogger) (*RabbitMQ, error) {
	if conn == nil {
		return nil, errors.New("rabbitmq: connection is required")
	}
	if queueName == "" {
		queueName = DefaultRabbitQueue
	}
	if log == nil {
		log = logrus.New()
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := declare(ch, queueName); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &RabbitMQ{conn: conn, queue: queueName, log: log, pubCh: ch}, nil
}

func declare(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue %q: %w", name, err)
	}
	return nil
}

func (q *RabbitMQ) Publish(ctx context.Context, job Job) error {
	body, err := encode(job)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closing {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return q.pubCh.PublishWithContext(ctx,
		"",      // exchange
		q.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.EvaluationID,
			Body:         body,
		},
	)
}

func (q *RabbitMQ) Consume(ctx context.Context, h Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	defer ch.Close()

	if err := declare(ch, q.queue); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: qos: %w", err)
	}

	deliveries, err := ch.Consume(
		q.queue,
		"",
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq: delivery channel closed")
			}
			q.deliver(ctx, d, h)
		}
	}
}

func (q *RabbitMQ) deliver(ctx context.Context, d amqp.Delivery, h Handler) {
	job, err := decode(d.Body)
	if err != nil {
		q.log.WithError(err).Error("dropping malformed job")
		_ = d.Ack(false)
		return
	}
	if err := h(ctx, job); err != nil {
		q.log.WithError(err).WithField("evaluation_id", job.EvaluationID).Warn("job handler failed")
		// a job cut short by shutdown goes back on the queue
		_ = d.Nack(false, ctx.Err() != nil)
		return
	}
	_ = d.Ack(false)
}

// Close closes the publishing channel. The connection is owned by the caller.
func (q *RabbitMQ) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closing {
		return nil
	}
	q.closing = true
	return q.pubCh.Close()
}
