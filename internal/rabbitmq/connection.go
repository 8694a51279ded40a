package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher and topology helpers use
type Channel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	NotifyReturn(c chan amqp.Return) chan amqp.Return
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Close() error
}

// ChannelSource opens channels
type ChannelSource interface {
	Channel(ctx context.Context) (Channel, error)
}

// ConnectionManager dials RabbitMQ and opens channels on the connection. A
// dropped connection is redialed by the next Channel call.
type ConnectionManager struct {
	url         string
	conn        *amqp.Connection
	mu          sync.Mutex
	dialTimeout time.Duration
	logger      *slog.Logger
	closed      bool
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithDialTimeout bounds how long establishing the connection may take
func WithDialTimeout(timeout time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.dialTimeout = timeout
	}
}

// NewConnectionManager creates a new connection manager. No connection is
// made until Connect or Channel is called.
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:         url,
		dialTimeout: 30 * time.Second,
		logger:      slog.Default(),
	}

	for _, opt := range options {
		opt(cm)
	}
	if cm.logger == nil {
		cm.logger = slog.Default()
	}

	return cm
}

// Connect establishes the connection if it is not already open
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	_, err := cm.connect(ctx)
	return err
}

func (cm *ConnectionManager) connect(ctx context.Context) (*amqp.Connection, error) {
	if cm.closed {
		return nil, ErrConnectionClosed
	}
	if cm.conn != nil && !cm.conn.IsClosed() {
		return cm.conn, nil
	}

	connCtx, cancel := context.WithTimeout(ctx, cm.dialTimeout)
	defer cancel()

	connChan := make(chan *amqp.Connection, 1)
	errChan := make(chan error, 1)

	go func() {
		conn, err := amqp.DialConfig(cm.url, amqp.Config{
			Dial: amqp.DefaultDial(cm.dialTimeout),
		})
		if err != nil {
			errChan <- err
			return
		}
		connChan <- conn
	}()

	select {
	case conn := <-connChan:
		cm.conn = conn
		cm.logger.Info("connected to RabbitMQ", "url", SanitizeURL(cm.url))
		return conn, nil

	case err := <-errChan:
		return nil, &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
		}

	case <-connCtx.Done():
		// A dial finishing after the deadline must not leak its connection
		go func() {
			select {
			case conn := <-connChan:
				conn.Close()
			case <-errChan:
			}
		}()
		return nil, &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       ErrConnectionTimeout,
			Timestamp: time.Now(),
		}
	}
}

// Channel implements ChannelSource, connecting first when needed
func (cm *ConnectionManager) Channel(ctx context.Context) (Channel, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, err := cm.connect(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// IsConnected returns the connection status
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.conn != nil && !cm.conn.IsClosed()
}

// Close closes the connection. The manager cannot be reused afterwards.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		return nil
	}
	cm.closed = true

	if cm.conn != nil && !cm.conn.IsClosed() {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}
	return nil
}
