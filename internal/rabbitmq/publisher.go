package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes messages on one confirm-mode channel and waits for the
// broker to confirm each of them. Publishes are serialized. Any failure drops
// the channel so the next publish starts on a fresh one.
type Publisher struct {
	source         ChannelSource
	confirmTimeout time.Duration
	publishTimeout time.Duration
	mandatory      bool
	logger         *slog.Logger

	mu       sync.Mutex
	channel  Channel
	confirms chan amqp.Confirmation
	returns  chan amqp.Return
	closed   bool
}

// PublisherOption configures the publisher
type PublisherOption func(*Publisher)

// WithConfirmTimeout sets how long to wait for the broker's confirmation
func WithConfirmTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.confirmTimeout = timeout
	}
}

// WithPublishTimeout bounds publishes whose context has no deadline
func WithPublishTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.publishTimeout = timeout
	}
}

// WithMandatory makes unroutable messages fail with ErrMandatoryFailed
func WithMandatory(mandatory bool) PublisherOption {
	return func(p *Publisher) {
		p.mandatory = mandatory
	}
}

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a new publisher
func NewPublisher(source ChannelSource, options ...PublisherOption) *Publisher {
	p := &Publisher{
		source:         source,
		confirmTimeout: 5 * time.Second,
		publishTimeout: 10 * time.Second,
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Publish publishes msg and waits for its confirmation
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.publishTimeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.publishWithConfirm(ctx, exchange, routingKey, msg); err != nil {
		p.reset()
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Mandatory:  p.mandatory,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}
	return nil
}

func (p *Publisher) publishWithConfirm(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if err := p.ensureChannel(ctx); err != nil {
		return err
	}

	p.drainReturns()
	if err := p.channel.PublishWithContext(ctx, exchange, routingKey, p.mandatory, false, msg); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	timer := time.NewTimer(p.confirmTimeout)
	defer timer.Stop()

	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			return ErrChannelClosed
		}
		if !confirm.Ack {
			return ErrPublishNotConfirmed
		}
		// The broker sends basic.return before the ack of an unroutable
		// mandatory message, so the return is already queued here.
		select {
		case ret := <-p.returns:
			return fmt.Errorf("%w: %s", ErrMandatoryFailed, ret.ReplyText)
		default:
			return nil
		}

	case ret := <-p.returns:
		return fmt.Errorf("%w: %s", ErrMandatoryFailed, ret.ReplyText)

	case <-timer.C:
		return ErrPublishTimeout

	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainReturns drops returns left over from earlier publishes
func (p *Publisher) drainReturns() {
	for {
		select {
		case ret := <-p.returns:
			p.logger.Debug("dropping stale returned message", "replyText", ret.ReplyText)
		default:
			return
		}
	}
}

func (p *Publisher) ensureChannel(ctx context.Context) error {
	if p.closed {
		return ErrPublisherClosed
	}
	if p.channel != nil {
		return nil
	}

	ch, err := p.source.Channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return fmt.Errorf("failed to enable confirms: %w", err)
	}

	p.channel = ch
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returns = ch.NotifyReturn(make(chan amqp.Return, 1))
	return nil
}

func (p *Publisher) reset() {
	if p.channel == nil {
		return
	}
	if err := p.channel.Close(); err != nil {
		p.logger.Debug("closing publisher channel failed", "error", err)
	}
	p.channel = nil
	p.confirms = nil
	p.returns = nil
}

// Close releases the channel. The connection is managed separately.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.reset()
	return nil
}
