package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Record describes one intercepted call as seen from one phase
type Record struct {
	ID        string    `json:"id"`
	CallID    string    `json:"callId"`
	Source    string    `json:"source,omitempty"`
	Target    string    `json:"target"`
	Method    string    `json:"method"`
	Phase     string    `json:"phase"`
	Scope     string    `json:"scope"`
	ArgCount  int       `json:"argCount"`
	Args      []string  `json:"args,omitempty"`
	Delegated bool      `json:"delegated"`
	Result    string    `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers audit records
type Publisher interface {
	Publish(ctx context.Context, record Record) error
}

// PublisherFunc is a function adapter for Publisher
type PublisherFunc func(ctx context.Context, record Record) error

// Publish implements Publisher
func (f PublisherFunc) Publish(ctx context.Context, record Record) error {
	return f(ctx, record)
}

// LogPublisher writes records to a logger
type LogPublisher struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogPublisher creates a publisher logging records at level
func NewLogPublisher(logger *slog.Logger, level slog.Level) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger, level: level}
}

// Publish implements Publisher
func (p *LogPublisher) Publish(ctx context.Context, record Record) error {
	p.logger.Log(ctx, p.level, "audit record",
		"auditId", record.ID,
		"callId", record.CallID,
		"source", record.Source,
		"target", record.Target,
		"method", record.Method,
		"phase", record.Phase,
		"scope", record.Scope,
		"argCount", record.ArgCount,
		"delegated", record.Delegated,
	)
	return nil
}

func render(v any) string {
	return fmt.Sprintf("%v", v)
}
