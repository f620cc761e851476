package notifications

import (
	"context"
	"log/slog"

	"scribe/internal/jobs"
	"scribe/internal/logging"
)

// Publisher adapts Service to the fire-and-forget hooks the pipeline and
// consumer expect. Delivery failures are logged and swallowed; notifications
// never affect job outcomes.
type Publisher struct {
	service Service
	logger  *slog.Logger
}

// NewPublisher wraps a service. Logger may be nil.
func NewPublisher(service Service, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		service: service,
		logger:  logger.With(logging.String(logging.FieldComponent, "notifications")),
	}
}

// JobCompleted publishes a completion event.
func (p *Publisher) JobCompleted(ctx context.Context, job *jobs.Job) {
	if err := p.service.NotifyJobCompleted(ctx, job); err != nil {
		p.logger.Warn("job completed notification failed", logging.Error(err))
	}
}

// JobFailed publishes a failure event.
func (p *Publisher) JobFailed(ctx context.Context, jobID, message string) {
	if err := p.service.NotifyJobFailed(ctx, jobID, message); err != nil {
		p.logger.Warn("job failed notification failed", logging.Error(err))
	}
}

// QueueDrained publishes a queue-empty event.
func (p *Publisher) QueueDrained(ctx context.Context) {
	if err := p.service.NotifyQueueDrained(ctx); err != nil {
		p.logger.Warn("queue drained notification failed", logging.Error(err))
	}
}
