// Package rabbitmq provides the RabbitMQ plumbing behind the audit publisher.
//
// This package includes:
//   - ConnectionManager: Dials the broker and hands out channels, redialing when the connection dropped
//   - Publisher: Publishes on a single confirm-mode channel and waits for the broker's ack
//   - DeclareExchange: Declares the exchange audit records are sent to
package rabbitmq
