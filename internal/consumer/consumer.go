package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
)

// Handler processes one queued message end to end.
type Handler interface {
	Handle(ctx context.Context, msg queue.Message) error
}

// Source delivers message batches. Receiving from an empty source yields an
// empty batch rather than blocking.
type Source interface {
	Receive(ctx context.Context, max int) (*queue.Batch, error)
}

// DrainNotifier is told when the consumer empties a previously busy queue.
type DrainNotifier interface {
	QueueDrained(ctx context.Context)
}

// Options tunes the consumer loop. Zero values fall back to defaults.
type Options struct {
	BatchSize     int
	PollInterval  time.Duration
	ErrorInterval time.Duration
}

const (
	defaultBatchSize     = 5
	defaultPollInterval  = 2 * time.Second
	defaultErrorInterval = 5 * time.Second
)

// Consumer pulls batches from a source and settles each message by handler
// outcome: success and non-retriable failures acknowledge, everything else
// requests redelivery. Message outcomes are independent; one failure never
// blocks settling its batch siblings.
type Consumer struct {
	source  Source
	handler Handler
	drain   DrainNotifier
	logger  *slog.Logger
	opts    Options

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	sawWork bool
}

// New assembles a consumer. Drain notifier and logger may be nil.
func New(source Source, handler Handler, drain DrainNotifier, logger *slog.Logger, opts Options) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ErrorInterval <= 0 {
		opts.ErrorInterval = defaultErrorInterval
	}
	return &Consumer{
		source:  source,
		handler: handler,
		drain:   drain,
		logger:  logger.With(logging.String(logging.FieldComponent, "consumer")),
		opts:    opts,
	}
}

// Start begins background consumption.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("consumer already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Stop terminates background consumption and waits for the loop to exit.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := c.source.Receive(ctx, c.opts.BatchSize)
		if err != nil {
			c.logger.Error("failed to receive message batch", logging.Error(err))
			c.sleep(ctx, c.opts.ErrorInterval)
			continue
		}
		if batch.Empty() {
			if c.sawWork {
				c.sawWork = false
				if c.drain != nil {
					c.drain.QueueDrained(ctx)
				}
			}
			c.sleep(ctx, c.opts.PollInterval)
			continue
		}

		c.sawWork = true
		c.ProcessBatch(ctx, batch)
	}
}

// ProcessBatch handles and settles every message in the batch. Settlement
// failures are logged; the queue's lease expiry covers messages left
// unsettled.
func (c *Consumer) ProcessBatch(ctx context.Context, batch *queue.Batch) {
	for _, envelope := range batch.Messages {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx, envelope)
	}
}

func (c *Consumer) processMessage(ctx context.Context, envelope queue.Envelope) {
	msg := envelope.Body()
	requestID := uuid.NewString()
	msgCtx := services.WithRequestID(services.WithJobID(ctx, msg.JobID), requestID)
	msgCtx = services.WithAction(msgCtx, msg.Action)
	logger := logging.WithContext(msgCtx, c.logger)

	err := c.handler.Handle(msgCtx, msg)
	switch {
	case err == nil:
		if ackErr := envelope.Acknowledge(msgCtx); ackErr != nil {
			logger.Error("failed to acknowledge message", logging.Error(ackErr))
		}
	case !services.Retriable(err):
		logger.Warn("acknowledging unprocessable message", logging.Error(err))
		if ackErr := envelope.Acknowledge(msgCtx); ackErr != nil {
			logger.Error("failed to acknowledge message", logging.Error(ackErr))
		}
	default:
		logger.Warn("requesting redelivery after failure", logging.Error(err))
		if redeliverErr := envelope.RequestRedelivery(msgCtx); redeliverErr != nil {
			logger.Error("failed to request redelivery", logging.Error(redeliverErr))
		}
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
