package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/glimte/proxymachine-go/interceptors"
)

// Handler is an interceptors.Handler publishing one Record per call it sees.
// It never has an opinion about the call's result.
type Handler struct {
	publisher    Publisher
	logger       *slog.Logger
	source       string
	includeArgs  bool
	includeValue bool
	failOnError  bool
	timeout      time.Duration
	now          func() time.Time
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithSource names the component records originate from
func WithSource(source string) Option {
	return func(h *Handler) {
		h.source = source
	}
}

// WithArgs includes rendered call arguments in records
func WithArgs(include bool) Option {
	return func(h *Handler) {
		h.includeArgs = include
	}
}

// WithResults includes the rendered delegated result in after-phase records
func WithResults(include bool) Option {
	return func(h *Handler) {
		h.includeValue = include
	}
}

// WithFailOnError makes publishing failures fail the intercepted call
func WithFailOnError(fail bool) Option {
	return func(h *Handler) {
		h.failOnError = fail
	}
}

// WithTimeout bounds each publish
func WithTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		h.timeout = timeout
	}
}

// NewHandler creates a new audit handler
func NewHandler(publisher Publisher, options ...Option) *Handler {
	h := &Handler{
		publisher: publisher,
		logger:    slog.Default(),
		timeout:   5 * time.Second,
		now:       time.Now,
	}
	for _, opt := range options {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Handle implements interceptors.Handler
func (h *Handler) Handle(call *interceptors.Call) (any, error) {
	record := h.record(call)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.publisher.Publish(ctx, record); err != nil {
		h.logger.Error("failed to publish audit record",
			"auditId", record.ID,
			"callId", call.ID,
			"method", call.Method,
			"error", err,
		)
		if h.failOnError {
			return interceptors.Absent, fmt.Errorf("audit: %w", err)
		}
	}
	return interceptors.Absent, nil
}

// Name returns the handler name for logging and debugging
func (h *Handler) Name() string {
	return "AuditHandler"
}

func (h *Handler) record(call *interceptors.Call) Record {
	record := Record{
		ID:        uuid.New().String(),
		CallID:    call.ID,
		Source:    h.source,
		Target:    fmt.Sprintf("%T", call.Target),
		Method:    call.Method,
		Phase:     call.Phase.String(),
		Scope:     call.Scope.String(),
		ArgCount:  len(call.Args),
		Timestamp: h.now().UTC(),
	}

	if h.includeArgs && len(call.Args) > 0 {
		record.Args = make([]string, len(call.Args))
		for i, arg := range call.Args {
			record.Args[i] = render(arg)
		}
	}

	if call.Phase == interceptors.PhaseAfter && !interceptors.IsAbsent(call.Result) {
		record.Delegated = true
		if h.includeValue {
			record.Result = render(call.Result)
		}
	}
	return record
}
