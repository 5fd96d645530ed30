package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"motor_gateway/internal/logger"
	"motor_gateway/internal/models"
	"motor_gateway/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultEventBuffer = 256
	persistTimeout     = 5 * time.Second
)

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "" or one of the models.Event* types
}

// EventLogService queues events from the gateway and writes them to the
// event repository, keeping device presence in step.
type EventLogService struct {
	eventRepo  repository.EventRepo
	deviceRepo repository.DeviceRepo
	log        *logger.Logger

	queue   chan models.Event
	dropped atomic.Int64
}

func NewEventLogService(eventRepo repository.EventRepo, deviceRepo repository.DeviceRepo, buffer int, log *logger.Logger) *EventLogService {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &EventLogService{
		eventRepo:  eventRepo,
		deviceRepo: deviceRepo,
		log:        logger.OrNop(log),
		queue:      make(chan models.Event, buffer),
	}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// Record enqueues e without blocking. When the queue is full the event is
// dropped and counted.
func (s *EventLogService) Record(e models.Event) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	select {
	case s.queue <- e:
	default:
		n := s.dropped.Add(1)
		s.log.Warnw("event_dropped", "type", e.Type, "peer", e.Peer, "dropped_total", n)
	}
}

// Dropped returns how many events Record has discarded.
func (s *EventLogService) Dropped() int64 {
	return s.dropped.Load()
}

// Run persists queued events until ctx is canceled, then flushes what is
// already queued.
func (s *EventLogService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case e := <-s.queue:
			s.persist(ctx, e)
		}
	}
}

func (s *EventLogService) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	for {
		select {
		case e := <-s.queue:
			s.persist(ctx, e)
		default:
			return
		}
	}
}

func (s *EventLogService) persist(ctx context.Context, e models.Event) {
	if err := s.eventRepo.Append(ctx, e); err != nil {
		s.log.Errorw("event_persist_failed", "event_id", e.EventID, "type", e.Type, "err", err)
	}

	online, ok := e.Presence()
	if !ok || s.deviceRepo == nil {
		return
	}
	var err error
	if online {
		err = s.deviceRepo.MarkOnline(ctx, e.Peer, metadataString(e.Metadata, "ip"), e.OccurredAt)
	} else {
		err = s.deviceRepo.MarkOffline(ctx, e.Peer, e.OccurredAt)
	}
	if err != nil {
		s.log.Errorw("device_presence_failed", "device_id", e.Peer, "online", online, "err", err)
	}
}

func metadataString(meta any, key string) string {
	m, ok := meta.(map[string]any)
	if !ok {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.Event, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}
