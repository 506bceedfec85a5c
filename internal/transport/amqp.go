package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/streadway/amqp"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AMQPConfig configures publishing mail to a queue for an external delivery worker
type AMQPConfig struct {
	URL   string
	Queue string
}

// Publisher is the subset of *amqp.Channel the transport uses
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPTransport publishes outgoing mail as persistent JSON messages
type AMQPTransport struct {
	mu      sync.Mutex
	queue   string
	channel Publisher
	conn    *amqp.Connection
}

// DialAMQP connects to the broker and declares the durable queue
func DialAMQP(cfg AMQPConfig) (*AMQPTransport, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := channel.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp declare queue %q: %w", cfg.Queue, err)
	}

	t := NewAMQPWithPublisher(cfg.Queue, channel)
	t.conn = conn
	return t, nil
}

// NewAMQPWithPublisher creates an AMQP transport publishing on p
func NewAMQPWithPublisher(queue string, p Publisher) *AMQPTransport {
	return &AMQPTransport{queue: queue, channel: p}
}

// Send publishes mail to the queue through the default exchange
func (t *AMQPTransport) Send(ctx context.Context, mail *email.OutgoingMail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	t.mu.Lock()
	defer t.mu.Unlock()

	err = t.channel.Publish("", t.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    mail.MessageID,
		Timestamp:    time.Now().UTC(),
		Type:         "mailfunnel.outgoing_mail",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Name returns the transport name
func (t *AMQPTransport) Name() string {
	return "amqp"
}

// Close closes the broker connection, if the transport owns one
func (t *AMQPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
