package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeDeclaration defines an exchange to be declared
type ExchangeDeclaration struct {
	Name       string
	Type       string
	Durable    bool
	AutoDelete bool
	Arguments  amqp.Table
}

// DeclareExchange declares exchange on a channel of its own
func DeclareExchange(ctx context.Context, source ChannelSource, exchange ExchangeDeclaration) error {
	if exchange.Name == "" || exchange.Type == "" {
		return &TopologyError{Component: "exchange", Name: exchange.Name, Op: "declare", Err: ErrInvalidTopology}
	}

	ch, err := source.Channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange.Name,
		exchange.Type,
		exchange.Durable,
		exchange.AutoDelete,
		false, // internal
		false, // noWait
		exchange.Arguments,
	); err != nil {
		return &TopologyError{Component: "exchange", Name: exchange.Name, Op: "declare", Err: err}
	}
	return nil
}
