package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/potooio/herald/internal/types"
)

// Publisher is the subset of *amqp.Channel used by AMQPTransport.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPOptions configures an AMQPTransport.
type AMQPOptions struct {
	URL        string
	Exchange   string
	RoutingKey string
	From       string
}

// DefaultAMQPOptions returns sensible defaults. URL must still be set.
func DefaultAMQPOptions() AMQPOptions {
	return AMQPOptions{
		Exchange:   "herald.email",
		RoutingKey: "send",
	}
}

// AMQPTransport hands email envelopes to a broker for an out-of-process mailer.
type AMQPTransport struct {
	logger    *zap.Logger
	opts      AMQPOptions
	publisher Publisher
	closeFn   func() error
}

// NewAMQPTransport wraps an existing publisher, typically an *amqp.Channel.
func NewAMQPTransport(logger *zap.Logger, publisher Publisher, opts AMQPOptions) *AMQPTransport {
	return &AMQPTransport{
		logger:    logger.Named("amqp-transport"),
		opts:      opts,
		publisher: publisher,
	}
}

// DialAMQP connects to the broker, declares a durable direct exchange and returns
// a transport that owns the connection.
func DialAMQP(logger *zap.Logger, opts AMQPOptions) (*AMQPTransport, error) {
	if opts.URL == "" {
		return nil, errors.New("amqp URL is required")
	}
	conn, err := amqp.Dial(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", RedactURL(opts.URL), err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(opts.Exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", opts.Exchange, err)
	}

	t := NewAMQPTransport(logger, ch, opts)
	t.closeFn = func() error {
		return errors.Join(ch.Close(), conn.Close())
	}
	t.logger.Info("AMQP transport connected",
		zap.String("url", RedactURL(opts.URL)),
		zap.String("exchange", opts.Exchange),
	)
	return t, nil
}

// Name implements types.Transport.
func (at *AMQPTransport) Name() string { return "amqp" }

// Send implements types.Transport. The receipt's message id is the envelope id.
func (at *AMQPTransport) Send(ctx context.Context, email types.Email) (types.SendReceipt, error) {
	start := time.Now()
	receipt, err := at.send(ctx, email)
	observe(at.Name(), start, err)
	return receipt, err
}

func (at *AMQPTransport) send(ctx context.Context, email types.Email) (types.SendReceipt, error) {
	if err := validateEmail(email); err != nil {
		return types.SendReceipt{}, err
	}
	envelope := newEnvelope(at.opts.From, email)
	body, err := json.Marshal(envelope)
	if err != nil {
		return types.SendReceipt{}, fmt.Errorf("marshal envelope: %w", err)
	}

	err = at.publisher.PublishWithContext(ctx, at.opts.Exchange, at.opts.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    envelope.MessageID,
		Type:         EnvelopeType,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return types.SendReceipt{}, fmt.Errorf("publish to %q: %w", at.opts.Exchange, err)
	}
	return types.SendReceipt{MessageID: envelope.MessageID}, nil
}

// Close releases the broker connection if this transport owns one.
func (at *AMQPTransport) Close() error {
	if at.closeFn == nil {
		return nil
	}
	return at.closeFn()
}
