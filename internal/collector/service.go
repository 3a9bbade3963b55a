package collector

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/storelens/collector/internal/archive"
	"github.com/storelens/collector/internal/geo"
	"github.com/storelens/collector/internal/metrics"
	"github.com/storelens/collector/internal/models"
	"github.com/storelens/collector/internal/storage"
)

// Hit kinds for metrics and logging.
const (
	KindSession     = "session"
	KindInteraction = "interaction"
)

// ErrIncompleteHit is returned for beacons missing the identifying keys.
var ErrIncompleteHit = errors.New("hit missing required identifiers")

// Service orchestrates beacon ingestion: classification, enrichment, the
// archive tee and the session/event upserts.
type Service struct {
	sessions storage.SessionStore
	events   storage.EventStore
	geo      geo.Provider
	archive  *archive.Writer
	metrics  *metrics.Metrics
	logger   *zap.Logger

	writeTimeout time.Duration
	now          func() time.Time
}

// Options carries the optional collaborators. Geo, Archive and Metrics may
// be nil; ingestion works without them.
type Options struct {
	Geo          geo.Provider
	Archive      *archive.Writer
	Metrics      *metrics.Metrics
	WriteTimeout time.Duration
	Now          func() time.Time
}

func NewService(sessions storage.SessionStore, events storage.EventStore, logger *zap.Logger, opts Options) *Service {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		sessions:     sessions,
		events:       events,
		geo:          opts.Geo,
		archive:      opts.Archive,
		metrics:      opts.Metrics,
		logger:       logger,
		writeTimeout: opts.WriteTimeout,
		now:          opts.Now,
	}
}

// RecordAsync persists a hit in a detached goroutine. The beacon response
// has already been written by the time this runs; failures are logged and
// counted, never surfaced to the client.
func (s *Service) RecordAsync(hit *models.BeaconHit) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()

		if err := s.Record(ctx, hit); err != nil {
			s.logger.Error("failed to persist hit",
				zap.String("shop_domain", hit.ShopDomain),
				zap.String("session_id", hit.SessionID),
				zap.String("page_id", hit.PageID),
				zap.String("element_id", hit.ElementID),
				zap.Error(err))
		}
	}()
}

// Record classifies and persists one beacon hit.
func (s *Service) Record(ctx context.Context, hit *models.BeaconHit) error {
	kind := KindSession
	if hit.IsInteraction() {
		kind = KindInteraction
	}
	if s.metrics != nil {
		s.metrics.RecordHit(kind)
	}
	if s.archive != nil {
		s.archive.Record(hit)
	}

	if hit.SessionID == "" || hit.PageID == "" || hit.ShopDomain == "" {
		return ErrIncompleteHit
	}

	start := time.Now()
	var err error
	if kind == KindInteraction {
		err = s.recordInteraction(ctx, hit)
	} else {
		err = s.recordSession(ctx, hit)
	}
	if s.metrics != nil {
		s.metrics.RecordWrite(kind, time.Since(start), err)
	}
	return err
}

// recordSession creates or extends the (sessionId, pageId) session.
func (s *Service) recordSession(ctx context.Context, hit *models.BeaconHit) error {
	country := ""
	if s.geo != nil && hit.RemoteIP != "" {
		country = s.geo.Country(hit.RemoteIP)
	}

	_, err := s.sessions.UpsertSession(ctx, storage.SessionUpsert{
		SessionID:  hit.SessionID,
		PageID:     hit.PageID,
		ShopDomain: hit.ShopDomain,
		UserID:     hit.UserID,
		PageType:   hit.PageType,
		PageTitle:  hit.PageTitle,
		Country:    country,
		Now:        s.now(),
	})
	return err
}

// recordInteraction creates or increments the (sessionId, elementId) event
// and, on creation, links it into the owning session's event list.
func (s *Service) recordInteraction(ctx context.Context, hit *models.BeaconHit) error {
	eventType := hit.Type
	if eventType == "" {
		eventType = models.EventTypeClick
	}

	ev, created, err := s.events.UpsertEvent(ctx, storage.EventUpsert{
		SessionID:   hit.SessionID,
		ElementID:   hit.ElementID,
		ShopDomain:  hit.ShopDomain,
		Type:        eventType,
		ElementType: hit.ElementType,
		ElementName: hit.ElementName,
		Count:       models.ParseCount(hit.Count),
		Now:         s.now(),
	})
	if err != nil {
		return err
	}

	if created {
		return s.sessions.LinkEvent(ctx, hit.SessionID, hit.PageID, ev.ID)
	}
	return nil
}
