// Package event writes domain events to the transactional outbox. The
// worker relays them to the broker.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
)

type Service struct {
	outboxRepo repository.OutboxRepository
	log        *logger.Logger
	now        func() time.Time
}

func NewService(outboxRepo repository.OutboxRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{outboxRepo: outboxRepo, log: log, now: time.Now}
}

// New builds a pending outbox event for callers that store it alongside
// their own write.
func (s *Service) New(eventType string, payload interface{}) (*model.OutboxEvent, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
		CreatedAt: s.now(),
	}, nil
}

// Publish stores payload as a pending outbox event of the given type.
func (s *Service) Publish(ctx context.Context, eventType string, payload interface{}) error {
	event, err := s.New(eventType, payload)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.log.WithContext(ctx).Debug("event queued",
		"event_id", event.ID.String(),
		"event_type", eventType,
	)
	return nil
}
