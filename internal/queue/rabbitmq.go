package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueueName is the default work queue name
	DefaultQueueName = "tutor_jobs"
	// DefaultDLQName is the default dead letter queue name
	DefaultDLQName = "tutor_jobs_dlq"
	// DefaultExchangeName is the topic exchange jobs are published to
	DefaultExchangeName = "tutor"
	// DefaultDelayedExchangeName is the delayed exchange (requires plugin)
	DefaultDelayedExchangeName = "tutor_delayed"

	routingPrefix  = "jobs."
	bindingPattern = "jobs.#"
	dlqRoutingKey  = "dlq"
)

// RoutingKey is the topic a job of type t is published under.
func RoutingKey(t JobType) string {
	return routingPrefix + string(t)
}

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn                *amqp.Connection
	channel             *amqp.Channel
	publishMu           sync.Mutex
	queueName           string
	dlqName             string
	exchangeName        string
	delayedExchangeName string
	delayed             bool
	logger              *zap.Logger
}

// NewRabbitMQQueue dials the broker and declares the exchanges and queues.
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &RabbitMQQueue{
		conn:                conn,
		channel:             ch,
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
		logger:              logger,
	}
	if err := q.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}
	return q, nil
}

// setup declares the topic exchange, the optional delayed exchange, the
// dead letter queue and the work queue.
func (q *RabbitMQQueue) setup() error {
	err := q.channel.ExchangeDeclare(
		q.delayedExchangeName,
		"x-delayed-message",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "topic"},
	)
	if err != nil {
		// A failed declare closes the channel.
		if q.channel.IsClosed() {
			ch, openErr := q.conn.Channel()
			if openErr != nil {
				return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", openErr)
			}
			q.channel = ch
		}
		q.logger.Warn("delayed_exchange_unavailable", zap.Error(err))
	} else {
		q.delayed = true
	}

	if err := q.channel.ExchangeDeclare(q.exchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := q.channel.QueueDeclare(q.dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := q.channel.QueueBind(q.dlqName, dlqRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	_, err = q.channel.QueueDeclare(q.queueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": dlqRoutingKey,
	})
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := q.channel.QueueBind(q.queueName, bindingPattern, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}
	if q.delayed {
		if err := q.channel.QueueBind(q.queueName, bindingPattern, q.delayedExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to delayed exchange: %w", err)
		}
	}
	return nil
}

// publishing builds the AMQP message for job, choosing the delayed
// exchange when NotBefore is in the future and the plugin is present.
func publishing(job *Job, delayedAvailable bool, now time.Time) (amqp.Publishing, bool, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, false, fmt.Errorf("failed to marshal job: %w", err)
	}
	p := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
		Type:         string(job.Type),
	}
	if job.NotAfter != nil {
		if ttl := job.NotAfter.Sub(now); ttl > 0 {
			p.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}
	delayed := false
	if job.NotBefore != nil && delayedAvailable {
		if delay := job.NotBefore.Sub(now); delay > 0 {
			p.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
			delayed = true
		}
	}
	return p, delayed, nil
}

// Enqueue publishes a job under its type's routing key
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	p, delayed, err := publishing(job, q.delayed, time.Now())
	if err != nil {
		return err
	}
	exchange := q.exchangeName
	if delayed {
		exchange = q.delayedExchangeName
	}

	q.publishMu.Lock()
	defer q.publishMu.Unlock()
	if err := q.channel.PublishWithContext(ctx, exchange, RoutingKey(job.Type), false, false, p); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// Consume delivers decoded jobs on a dedicated channel. Undecodable or
// invalid messages are dead-lettered; jobs not yet due are requeued.
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan Message, <-chan error, error) {
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}
	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := consumeCh.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- errors.New("delivery channel closed")
					return
				}

				var job Job
				if err := json.Unmarshal(delivery.Body, &job); err != nil {
					_ = delivery.Nack(false, false)
					q.logger.Warn("job_decode_failed", zap.Error(err))
					continue
				}
				if err := job.Validate(); err != nil {
					_ = delivery.Nack(false, false)
					q.logger.Warn("job_invalid", zap.String("job_id", job.ID.String()), zap.Error(err))
					continue
				}
				if job.IsExpired() {
					_ = delivery.Ack(false)
					q.logger.Info("job_expired", zap.String("job_id", job.ID.String()))
					continue
				}
				if !job.ShouldProcess() {
					_ = delivery.Nack(false, true)
					continue
				}

				msg := jobDelivery{job: &job, d: delivery}
				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// PurgeOlderThan removes dead-lettered messages published before
// now-retention. The DLQ is FIFO, so it stops at the first newer message.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("failed to open purge channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	cutoff := time.Now().Add(-retention)
	purged := 0
	for ctx.Err() == nil {
		d, ok, err := ch.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			break
		}
		if d.Timestamp.IsZero() || !d.Timestamp.Before(cutoff) {
			_ = d.Nack(false, true)
			break
		}
		if err := d.Ack(false); err != nil {
			return purged, fmt.Errorf("failed to ack DLQ message: %w", err)
		}
		purged++
	}
	return purged, ctx.Err()
}

// HealthCheck reports whether the connection and publish channel are open
func (q *RabbitMQQueue) HealthCheck(_ context.Context) error {
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	if q.channel == nil || q.channel.IsClosed() {
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// Ensure interfaces are satisfied
var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
	_ Message   = jobDelivery{}
)

// jobDelivery pairs a decoded job with the broker delivery it arrived in.
type jobDelivery struct {
	job *Job
	d   amqp.Delivery
}

func (m jobDelivery) Ack() error { return m.d.Ack(false) }

// Nack without requeue dead-letters the message.
func (m jobDelivery) Nack(requeue bool) error { return m.d.Nack(false, requeue) }

func (m jobDelivery) GetJob() *Job { return m.job }
