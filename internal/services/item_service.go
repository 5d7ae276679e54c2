package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/ports"
)

// Storage is what ItemService needs from a backing store.
type Storage interface {
	ports.SessionOpener
	ports.Pinger
	Close() error
}

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishItemEvent(ctx context.Context, event *amqp.ItemEvent) error
	Close() error
}

// ItemService hands out storage sessions and announces writes on the event bus.
type ItemService struct {
	storage   Storage
	publisher EventPublisher
}

// NewItemService accepts a nil publisher; events are then skipped.
func NewItemService(storage Storage, publisher EventPublisher) *ItemService {
	return &ItemService{
		storage:   storage,
		publisher: publisher,
	}
}

// OpenSession implements ports.SessionOpener
func (s *ItemService) OpenSession(ctx context.Context) (ports.ItemSession, error) {
	sess, err := s.storage.OpenSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open storage session: %w", err)
	}
	if s.publisher == nil {
		return sess, nil
	}
	return &publishingSession{ItemSession: sess, service: s}, nil
}

// Ping implements ports.Pinger
func (s *ItemService) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

// publish never fails the caller: the write is already committed.
func (s *ItemService) publish(ctx context.Context, event *amqp.ItemEvent) {
	if err := s.publisher.PublishItemEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish item event",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldOperation, log.OpPublish,
			log.FieldEventKind, event.Kind,
			log.FieldItemID, event.ItemID,
			log.FieldError, err)
	}
}

// Close closes both storage and AMQP connections
func (s *ItemService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close item service: %w", err)
	}

	return nil
}

type publishingSession struct {
	ports.ItemSession
	service *ItemService
}

func (p *publishingSession) Insert(ctx context.Context, in core.ItemInput) (core.BudgetItem, error) {
	item, err := p.ItemSession.Insert(ctx, in)
	if err != nil {
		return item, err
	}
	p.service.publish(ctx, amqp.NewItemCreatedEvent(item))
	return item, nil
}

func (p *publishingSession) Delete(ctx context.Context, id int64) error {
	if err := p.ItemSession.Delete(ctx, id); err != nil {
		return err
	}
	p.service.publish(ctx, amqp.NewItemDeletedEvent(id))
	return nil
}
