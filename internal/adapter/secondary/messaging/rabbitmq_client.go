package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rentflow/payment-gateway/internal/port/output"
)

const (
	ExchangeName = "payments"

	NotificationQueue = "payment_notifications"
	ScoreQueue        = "payer_score_recompute"
	RetryQueue        = "callback_retries"

	NotificationKey = "payment.notify"
	ScoreKey        = "payment.score"
	RetryKey        = "payment.retry"

	PrefetchCount = 1 // Process one message at a time per worker
)

// RabbitMQClient is a secondary adapter that implements the PaymentMessaging
// output port over one exchange with three durable queues: tenant
// notifications, payer-score recomputes and callback retry tasks.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQClient creates a new RabbitMQ client (returns interface for ports)
func NewRabbitMQClient(amqpURL string) (output.PaymentMessaging, error) {
	return NewRabbitMQClientConcrete(amqpURL)
}

// NewRabbitMQClientConcrete creates a new RabbitMQ client (returns concrete type for workers)
func NewRabbitMQClientConcrete(amqpURL string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	for queue, key := range map[string]string{
		NotificationQueue: NotificationKey,
		ScoreQueue:        ScoreKey,
		RetryQueue:        RetryKey,
	} {
		if _, err := channel.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
		if err := channel.QueueBind(queue, key, ExchangeName, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue %s: %w", queue, err)
		}
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
	}, nil
}

func (c *RabbitMQClient) publish(routingKey string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	err = c.channel.Publish(
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// PublishNotification enqueues a tenant notification
func (c *RabbitMQClient) PublishNotification(msg output.NotificationMessage) error {
	return c.publish(NotificationKey, msg)
}

// PublishScoreRecompute enqueues a payer-score recompute
func (c *RabbitMQClient) PublishScoreRecompute(msg output.ScoreRecomputeMessage) error {
	return c.publish(ScoreKey, msg)
}

// PublishRetryTask enqueues a callback retry
func (c *RabbitMQClient) PublishRetryTask(task output.RetryTask) error {
	return c.publish(RetryKey, task)
}

// consume drives one queue: unmarshal, handle, ack on success or on a
// permanent handler error, requeue otherwise.
func (c *RabbitMQClient) consume(queue string, handle func([]byte) (requeue bool, err error)) error {
	if err := c.channel.Qos(PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	msgs, err := c.channel.Consume(
		queue,
		"",    // consumer tag
		false, // auto-ack (we'll manually ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}

	go func() {
		for msg := range msgs {
			requeue, err := handle(msg.Body)
			if err != nil {
				log.Printf("error handling %s message: %v", queue, err)
				if requeue {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
				continue
			}
			msg.Ack(false)
		}
	}()
	return nil
}

// ConsumeRetryTasks delivers callback retry tasks. The handler's returned
// requeue flag decides whether a failed task goes back on the queue.
func (c *RabbitMQClient) ConsumeRetryTasks(handler func(output.RetryTask) (bool, error)) error {
	return c.consume(RetryQueue, func(body []byte) (bool, error) {
		var task output.RetryTask
		if err := json.Unmarshal(body, &task); err != nil {
			return false, fmt.Errorf("unmarshal retry task: %w", err)
		}
		return handler(task)
	})
}

// ConsumeNotifications delivers tenant notification messages.
func (c *RabbitMQClient) ConsumeNotifications(handler func(output.NotificationMessage) error) error {
	return c.consume(NotificationQueue, func(body []byte) (bool, error) {
		var msg output.NotificationMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return false, fmt.Errorf("unmarshal notification: %w", err)
		}
		// Notification dispatch is fire-and-forget: never requeue.
		return false, handler(msg)
	})
}

// ConsumeScoreRecomputes delivers payer-score recompute messages.
func (c *RabbitMQClient) ConsumeScoreRecomputes(handler func(output.ScoreRecomputeMessage) error) error {
	return c.consume(ScoreQueue, func(body []byte) (bool, error) {
		var msg output.ScoreRecomputeMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return false, fmt.Errorf("unmarshal score recompute: %w", err)
		}
		// Score recompute failure is logged only.
		return false, handler(msg)
	})
}

// Close closes the RabbitMQ connection
func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
