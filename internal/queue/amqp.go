package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/streadway/amqp"
)

const maxRequeues = 3

// AMQPQueue fans dispatch jobs out over RabbitMQ so multiple worker
// processes can share one due scan. The pending->sending claim in the engine
// makes duplicate deliveries harmless.
type AMQPQueue struct {
	URL       string
	QueueName string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPQueue(url, queueName string) *AMQPQueue {
	if queueName == "" {
		queueName = "email_dispatch"
	}
	return &AMQPQueue{URL: url, QueueName: queueName}
}

// Connect dials the broker, retrying with exponential backoff until it
// succeeds.
func (q *AMQPQueue) Connect() error {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    30 * time.Second,
		Jitter: true,
	}
	for {
		if err := q.dial(); err != nil {
			d := b.Duration()
			log.Printf("amqp connect failed, retrying in %s: %v", d, err)
			time.Sleep(d)
			continue
		}
		return nil
	}
}

func (q *AMQPQueue) dial() error {
	conn, err := amqp.Dial(q.URL)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if _, err := ch.QueueDeclare(
		q.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	q.mu.Lock()
	q.conn = conn
	q.ch = ch
	q.mu.Unlock()
	return nil
}

func (q *AMQPQueue) Publish(job DispatchJob) error {
	if job.CorrelationID == "" {
		job.CorrelationID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	q.mu.Lock()
	ch := q.ch
	q.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("amqp: not connected")
	}

	return ch.Publish(
		"",          // default exchange
		q.QueueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: job.CorrelationID,
			DeliveryMode:  amqp.Persistent,
			Body:          body,
		},
	)
}

// Consume processes jobs until the channel dies, then reconnects and
// resumes. Handler errors requeue the delivery up to maxRequeues times.
func (q *AMQPQueue) Consume(handler func(job DispatchJob) error) error {
	for {
		q.mu.Lock()
		ch := q.ch
		q.mu.Unlock()
		if ch == nil {
			return fmt.Errorf("amqp: not connected")
		}

		msgs, err := ch.Consume(
			q.QueueName,
			"",    // consumer tag
			false, // autoAck off for reliability
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return err
		}

		for d := range msgs {
			var job DispatchJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Printf("amqp: invalid job payload: %v", err)
				d.Ack(false)
				continue
			}

			if err := handler(job); err != nil {
				log.Printf("amqp: job %s failed: %v", job.CorrelationID, err)
				retries := int32(0)
				if v, ok := d.Headers["x-retry-count"].(int32); ok {
					retries = v
				}
				// Requeue by republishing so the retry count survives;
				// a plain nack would keep the original headers forever.
				if retries < maxRequeues {
					if err := q.republish(d.Body, job.CorrelationID, retries+1); err != nil {
						log.Printf("amqp: requeue job %s: %v", job.CorrelationID, err)
						d.Nack(false, true)
						continue
					}
				} else {
					log.Printf("amqp: job %s dropped after %d requeues", job.CorrelationID, retries)
				}
			}
			d.Ack(false)
		}

		log.Println("amqp: delivery channel closed, reconnecting")
		if err := q.Connect(); err != nil {
			return err
		}
	}
}

func (q *AMQPQueue) republish(body []byte, correlationID string, retries int32) error {
	q.mu.Lock()
	ch := q.ch
	q.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("amqp: not connected")
	}
	return ch.Publish(
		"",
		q.QueueName,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			DeliveryMode:  amqp.Persistent,
			Headers:       amqp.Table{"x-retry-count": retries},
			Body:          body,
		},
	)
}

func (q *AMQPQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}

var _ Queue = (*AMQPQueue)(nil)
