package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduler/pkg/repository"
)

type OutboxProcessorConfig struct {
	BatchSize int
	// RetryAttempts is the total number of publish attempts per event.
	RetryAttempts int
	// RetryDelay is multiplied by the attempt number to get the backoff.
	RetryDelay time.Duration
	// Retention is how long processed events are kept before Cleanup drops them.
	Retention time.Duration
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("outbox batch size must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("outbox retry attempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("outbox retry delay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// ProcessOnce relays one batch of due events and returns how many were
// published.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.OutboxQueueSize.Set(float64(len(events)))

	published := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"attempt", event.RetryCount+1)
			continue
		}
		published++
	}
	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg, err := messaging.Encode(event.ID.String(), event.EventType, event.Payload, event.CreatedAt)
	if err == nil {
		err = p.broker.Publish(ctx, event.EventType, msg)
	}
	if err == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		if err := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}
		return nil
	}

	errStr := err.Error()
	attempt := event.RetryCount + 1
	if attempt >= p.config.RetryAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		if updateErr := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusFailed, &errStr, nil); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.config.RetryDelay * time.Duration(attempt))
	if updateErr := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusRetry, &errStr, &retryAt); updateErr != nil {
		p.logger.Error(updateErr, "Failed to schedule event retry", "event_id", event.ID.String())
	}
	return err
}

// Cleanup drops processed events older than the retention period.
func (p *OutboxProcessor) Cleanup(ctx context.Context) (int64, error) {
	if p.config.Retention <= 0 {
		return 0, nil
	}
	n, err := p.repo.DeleteProcessedBefore(ctx, p.now().Add(-p.config.Retention))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up outbox: %w", err)
	}
	if n > 0 {
		p.logger.Info("Outbox cleaned up", "deleted", n)
	}
	return n, nil
}
