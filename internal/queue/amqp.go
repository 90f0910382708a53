package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/sendloop/sendloop-backend/internal/model"
)

const (
	JobQueueName    = "campaign_sends"
	FailedQueueName = "campaign_sends_failed"

	attemptsHeader = "x-attempts"
	errorHeader    = "x-last-error"
)

// AMQPQueue is the RabbitMQ-backed dispatch queue used by the
// standalone worker deployment. Jobs are published persistent to a
// durable queue; terminally failed jobs are moved to a durable failed
// queue instead of being dropped, so an operator can republish them.
type AMQPQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	retry RetryConfig

	mu         sync.Mutex
	inflight   map[string]amqp.Delivery
	deliveries <-chan amqp.Delivery
}

func NewAMQPQueue(url string, retry RetryConfig) (*AMQPQueue, error) {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	for _, name := range []string{JobQueueName, FailedQueueName} {
		if _, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
	}

	return &AMQPQueue{
		conn:     conn,
		ch:       ch,
		retry:    retry,
		inflight: make(map[string]amqp.Delivery),
	}, nil
}

// StartConsuming registers the consumer. Must be called before Dequeue.
func (q *AMQPQueue) StartConsuming() error {
	msgs, err := q.ch.Consume(
		JobQueueName,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	q.deliveries = msgs
	return nil
}

func (q *AMQPQueue) Enqueue(job model.Job) (string, error) {
	id := uuid.NewString()
	body, err := json.Marshal(job)
	if err != nil {
		return "", err
	}

	err = q.ch.Publish(
		"",
		JobQueueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    id,
			Headers:      amqp.Table{attemptsHeader: int32(0)},
			Body:         body,
		},
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (q *AMQPQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	if q.deliveries == nil {
		return nil, fmt.Errorf("consumer not started")
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case d, ok := <-q.deliveries:
			if !ok {
				return nil, fmt.Errorf("delivery channel closed")
			}
			var job model.Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Println("invalid job payload, discarding:", err)
				d.Ack(false)
				continue
			}
			id := d.MessageId
			if id == "" {
				id = uuid.NewString()
			}
			q.mu.Lock()
			q.inflight[id] = d
			q.mu.Unlock()
			return &Delivery{ID: id, Job: job, Attempt: headerInt(d.Headers, attemptsHeader) + 1}, nil
		}
	}
}

func (q *AMQPQueue) Ack(id string) error {
	d, err := q.take(id)
	if err != nil {
		return err
	}
	return d.Ack(false)
}

// Fail re-publishes the job with an incremented attempt header once the
// backoff delay has passed, or moves it to the failed queue when the
// attempt budget is spent. The original delivery is always acked so it
// does not bounce back immediately.
func (q *AMQPQueue) Fail(id string, cause error) (bool, error) {
	d, err := q.take(id)
	if err != nil {
		return false, err
	}

	attempts := headerInt(d.Headers, attemptsHeader) + 1
	if attempts >= q.retry.MaxAttempts {
		if err := q.publishFailed(d, attempts, cause); err != nil {
			return false, err
		}
		return false, d.Ack(false)
	}

	delay := q.retry.Backoff(attempts)
	body := make([]byte, len(d.Body))
	copy(body, d.Body)
	time.AfterFunc(delay, func() {
		err := q.ch.Publish("", JobQueueName, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    id,
			Headers:      amqp.Table{attemptsHeader: int32(attempts), errorHeader: cause.Error()},
			Body:         body,
		})
		if err != nil {
			log.Println("failed to republish job", id, ":", err)
		}
	})
	return true, d.Ack(false)
}

func (q *AMQPQueue) Reject(id string, cause error) error {
	d, err := q.take(id)
	if err != nil {
		return err
	}
	attempts := headerInt(d.Headers, attemptsHeader) + 1
	if err := q.publishFailed(d, attempts, cause); err != nil {
		return err
	}
	return d.Ack(false)
}

func (q *AMQPQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

func (q *AMQPQueue) take(id string) (amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	d, ok := q.inflight[id]
	if !ok {
		return amqp.Delivery{}, fmt.Errorf("unknown job %s", id)
	}
	delete(q.inflight, id)
	return d, nil
}

func (q *AMQPQueue) publishFailed(d amqp.Delivery, attempts int, cause error) error {
	return q.ch.Publish("", FailedQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Headers:      amqp.Table{attemptsHeader: int32(attempts), errorHeader: cause.Error()},
		Body:         d.Body,
	})
}

// headerInt reads an integer header; amqp hands them back as int32 or
// int64 depending on the writer.
func headerInt(t amqp.Table, key string) int {
	if t == nil {
		return 0
	}
	switch v := t[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

var _ Queue = (*AMQPQueue)(nil)
