package revision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"hrms/internal/attendance"
	"hrms/internal/metrics"
	"hrms/internal/queue"
)

// MessageType tags change notifications on the queue.
const MessageType = "change"

// Publisher puts acknowledged changes on a queue. It satisfies
// attendance.Publisher.
type Publisher struct {
	q queue.Queue
}

func NewPublisher(q queue.Queue) *Publisher {
	return &Publisher{q: q}
}

func (p *Publisher) Publish(ctx context.Context, change attendance.Change) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	return p.q.Publish(ctx, queue.Message{Type: MessageType, Body: body})
}

// Projector consumes the change feed and advances revision counters.
type Projector struct {
	q       queue.Queue
	tracker Tracker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewProjector(q queue.Queue, tracker Tracker, logger *slog.Logger, m *metrics.Metrics) *Projector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Projector{q: q, tracker: tracker, logger: logger, metrics: m}
}

// Run blocks until ctx is cancelled. A message that cannot be decoded or
// applied is logged and skipped.
func (p *Projector) Run(ctx context.Context) error {
	messages, err := p.q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume changes: %w", err)
	}

	p.logger.Info("projector started")
	for msg := range messages {
		if msg.Type != MessageType {
			p.logger.Warn("unknown message type", "type", msg.Type)
			continue
		}

		var change attendance.Change
		if err := json.Unmarshal(msg.Body, &change); err != nil {
			p.logger.Warn("invalid change payload", "error", err)
			continue
		}
		if err := p.Apply(ctx, change); err != nil {
			p.logger.Error("apply change failed",
				"entity", change.Entity, "op", change.Op, "id", change.ID, "error", err)
		}
	}
	p.logger.Info("projector stopped")
	return nil
}

// Apply bumps the revisions a change affects. Deleting an employee also
// removes its attendance records, so it invalidates both entities.
func (p *Projector) Apply(ctx context.Context, change attendance.Change) error {
	entities := []attendance.Entity{change.Entity}
	if change.Entity == attendance.EntityEmployees && change.Op == attendance.OpDeleted {
		entities = append(entities, attendance.EntityAttendance)
	}

	for _, entity := range entities {
		rev, err := p.tracker.Bump(ctx, entity)
		if err != nil {
			return err
		}
		p.metrics.IncChangeApplied(string(entity))
		p.logger.Debug("revision bumped", "entity", entity, "revision", rev)
	}
	return nil
}
