package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/proxymachine-go/internal/rabbitmq"
)

// Defaults of the RabbitMQ publisher
const (
	DefaultExchange   = "proxymachine.audit"
	DefaultRoutingKey = "calls"
	RecordType        = "proxymachine.audit.record"
)

// confirmPublisher is satisfied by *rabbitmq.Publisher
type confirmPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes records as JSON to a topic exchange. The routing
// key is the configured prefix followed by the method name.
type RabbitMQPublisher struct {
	publisher  confirmPublisher
	connection *rabbitmq.ConnectionManager
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type rabbitMQConfig struct {
	exchange       string
	routingKey     string
	declare        bool
	dialTimeout    time.Duration
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// RabbitMQOption configures a RabbitMQPublisher
type RabbitMQOption func(*rabbitMQConfig)

// WithExchange sets the exchange records are published to
func WithExchange(exchange string) RabbitMQOption {
	return func(c *rabbitMQConfig) {
		c.exchange = exchange
	}
}

// WithRoutingKey sets the routing key prefix
func WithRoutingKey(prefix string) RabbitMQOption {
	return func(c *rabbitMQConfig) {
		c.routingKey = prefix
	}
}

// WithDeclareExchange controls whether the exchange is declared on connect
func WithDeclareExchange(declare bool) RabbitMQOption {
	return func(c *rabbitMQConfig) {
		c.declare = declare
	}
}

// WithDialTimeout bounds connecting to the broker
func WithDialTimeout(timeout time.Duration) RabbitMQOption {
	return func(c *rabbitMQConfig) {
		c.dialTimeout = timeout
	}
}

// WithConfirmTimeout bounds waiting for the broker's confirmation
func WithConfirmTimeout(timeout time.Duration) RabbitMQOption {
	return func(c *rabbitMQConfig) {
		c.confirmTimeout = timeout
	}
}

// WithPublisherLogger sets the logger of the publisher and its connection
func WithPublisherLogger(logger *slog.Logger) RabbitMQOption {
	return func(c *rabbitMQConfig) {
		c.logger = logger
	}
}

// NewRabbitMQPublisher connects to url, declares the audit exchange and
// returns a publisher using confirmed deliveries
func NewRabbitMQPublisher(ctx context.Context, url string, options ...RabbitMQOption) (*RabbitMQPublisher, error) {
	cfg := &rabbitMQConfig{
		exchange:       DefaultExchange,
		routingKey:     DefaultRoutingKey,
		declare:        true,
		dialTimeout:    30 * time.Second,
		confirmTimeout: 5 * time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	conn := rabbitmq.NewConnectionManager(url,
		rabbitmq.WithLogger(cfg.logger),
		rabbitmq.WithDialTimeout(cfg.dialTimeout),
	)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect audit publisher: %w", err)
	}

	if cfg.declare {
		if err := rabbitmq.DeclareExchange(ctx, conn, rabbitmq.ExchangeDeclaration{
			Name:    cfg.exchange,
			Type:    "topic",
			Durable: true,
		}); err != nil {
			conn.Close()
			return nil, err
		}
	}

	publisher := rabbitmq.NewPublisher(conn,
		rabbitmq.WithConfirmTimeout(cfg.confirmTimeout),
		rabbitmq.WithPublisherLogger(cfg.logger),
	)

	p := newRabbitMQPublisher(publisher, cfg)
	p.connection = conn
	return p, nil
}

func newRabbitMQPublisher(publisher confirmPublisher, cfg *rabbitMQConfig) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		publisher:  publisher,
		exchange:   cfg.exchange,
		routingKey: cfg.routingKey,
		logger:     cfg.logger,
	}
}

// Publish implements Publisher
func (p *RabbitMQPublisher) Publish(ctx context.Context, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		MessageId:     record.ID,
		CorrelationId: record.CallID,
		Timestamp:     record.Timestamp,
		Type:          RecordType,
		Headers: amqp.Table{
			"method": record.Method,
			"phase":  record.Phase,
		},
	}
	if record.Source != "" {
		msg.AppId = record.Source
	}

	return p.publisher.Publish(ctx, p.exchange, p.routingKeyFor(record), msg)
}

func (p *RabbitMQPublisher) routingKeyFor(record Record) string {
	if p.routingKey == "" {
		return record.Method
	}
	return p.routingKey + "." + record.Method
}

// Close closes the publisher and its connection
func (p *RabbitMQPublisher) Close() error {
	err := p.publisher.Close()
	if p.connection != nil {
		if closeErr := p.connection.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
