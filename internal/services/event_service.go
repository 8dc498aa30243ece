package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/tweeter-be/internal/broker"
	"github.com/isdelr/tweeter-be/internal/metrics"
	"github.com/isdelr/tweeter-be/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Event types recorded by the services.
const (
	EventUserRegistered = "user.registered"
	EventUserFollowed   = "user.followed"
	EventUserUnfollowed = "user.unfollowed"
	EventTweetCreated   = "tweet.created"
	EventTweetUpdated   = "tweet.updated"
	EventTweetDeleted   = "tweet.deleted"
	EventTweetLiked     = "tweet.liked"
	EventTweetUnliked   = "tweet.unliked"
)

const maxEventLimit = 100

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType string, actorID, targetID *uint, message string) error
	GetRecentEvents(ctx context.Context, actorID uint, limit int) ([]models.Event, error)
}

// EventService stores the activity log and forwards every event to a publisher.
type EventService struct {
	db        *gorm.DB
	publisher broker.Publisher
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewEventService creates a new EventService. A nil publisher disables forwarding.
func NewEventService(db *gorm.DB, publisher broker.Publisher, log zerolog.Logger) *EventService {
	if publisher == nil {
		publisher = broker.NoopPublisher{}
	}
	return &EventService{db: db, publisher: publisher, log: log}
}

// CreateEvent logs a new event to the database and publishes it in the background.
func (s *EventService) CreateEvent(ctx context.Context, eventType string, actorID, targetID *uint, message string) error {
	event := models.Event{
		ID:       uuid.New().String(),
		Type:     eventType,
		ActorID:  actorID,
		TargetID: targetID,
		Message:  message,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return err
	}
	metrics.DomainEventsTotal.WithLabelValues(eventType).Inc()

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.publisher.Publish(pubCtx, broker.Message{Key: eventType, Body: body}); err != nil {
			s.log.Warn().Err(err).Str("event_type", eventType).Str("event_id", event.ID).Msg("Failed to publish event")
		}
	}()
	return nil
}

// GetRecentEvents retrieves the most recent events performed by a user.
func (s *EventService) GetRecentEvents(ctx context.Context, actorID uint, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events := []models.Event{}
	err := s.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Wait blocks until in-flight publishes finish.
func (s *EventService) Wait() {
	s.wg.Wait()
}

// recordEvent stores an event without failing the caller's request.
func recordEvent(ctx context.Context, events EventServiceProvider, eventType string, actorID, targetID uint, message string) {
	if events == nil {
		return
	}
	if err := events.CreateEvent(ctx, eventType, &actorID, &targetID, message); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event_type", eventType).Msg("Failed to record event")
	}
}
