package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type outboxRepository struct {
	*db
}

func (r *outboxRepository) Create(_ context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	r.queue(event)
	return nil
}

// queue stores events as pending. The caller holds the write lock.
func (d *db) queue(events ...*model.OutboxEvent) {
	for _, event := range events {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		event.CreatedAt = now()
		event.Status = model.OutboxStatusPending
		d.outbox[event.ID] = *event
	}
}

func (r *outboxRepository) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	t := now()
	var out []*model.OutboxEvent
	for _, e := range r.outbox {
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(t) {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *outboxRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	e, ok := r.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = status
	e.ErrorMessage = errMsg
	e.RetryAt = retryAt
	if status == model.OutboxStatusRetry {
		e.RetryCount++
	}
	if status == model.OutboxStatusProcessed {
		t := now()
		e.ProcessedAt = &t
	}
	r.outbox[id] = e
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}

	var n int64
	for id, e := range r.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.outbox, id)
			n++
		}
	}
	return n, nil
}
