package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storelens/collector/internal/metrics"
	"github.com/storelens/collector/internal/models"
)

// Writer archives every raw beacon hit to ClickHouse for later reprocessing.
// Hits are buffered in a channel and flushed in batches by a background
// goroutine; a full buffer drops hits rather than blocking ingestion.
type Writer struct {
	conn    driver.Conn
	logger  *zap.Logger
	metrics *metrics.Metrics

	batchSize     int
	flushInterval time.Duration

	hits chan *models.BeaconHit
	done chan struct{}
}

// InitSchema creates the raw_hits table if it does not exist.
func InitSchema(ctx context.Context, conn driver.Conn) error {
	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS raw_hits (
			id           UUID,
			received_at  DateTime64(3),
			shop_domain  String,
			session_id   String,
			user_id      String,
			page_id      String,
			page_type    String,
			page_title   String,
			element_id   String,
			element_type String,
			element_name String,
			event_type   String,
			count        String,
			remote_ip    String,
			user_agent   String
		) ENGINE = MergeTree()
		ORDER BY (shop_domain, received_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create raw_hits table: %w", err)
	}
	return nil
}

// NewWriter creates a Writer and starts its background flusher.
func NewWriter(conn driver.Conn, batchSize int, flushInterval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Writer {
	w := &Writer{
		conn:          conn,
		logger:        logger,
		metrics:       m,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		hits:          make(chan *models.BeaconHit, batchSize*4),
		done:          make(chan struct{}),
	}
	go w.run()
	return w
}

// Record queues a hit for archiving. Never blocks; drops when the buffer is
// full.
func (w *Writer) Record(hit *models.BeaconHit) {
	select {
	case w.hits <- hit:
	default:
		w.logger.Warn("archive buffer full, dropping hit",
			zap.String("shop_domain", hit.ShopDomain))
	}
}

// Close flushes any buffered hits and stops the background flusher.
func (w *Writer) Close() {
	close(w.hits)
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	buf := make([]*models.BeaconHit, 0, w.batchSize)
	for {
		select {
		case hit, ok := <-w.hits:
			if !ok {
				w.flush(buf)
				return
			}
			buf = append(buf, hit)
			if len(buf) >= w.batchSize {
				w.flush(buf)
				buf = buf[:0]
			}
		case <-ticker.C:
			if len(buf) > 0 {
				w.flush(buf)
				buf = buf[:0]
			}
		}
	}
}

func (w *Writer) flush(hits []*models.BeaconHit) {
	if len(hits) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := w.insertBatch(ctx, hits)
	if w.metrics != nil {
		w.metrics.RecordArchiveFlush(len(hits), err)
	}
	if err != nil {
		w.logger.Error("archive flush failed",
			zap.Int("hits", len(hits)),
			zap.Error(err))
	}
}

func (w *Writer) insertBatch(ctx context.Context, hits []*models.BeaconHit) error {
	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO raw_hits (
			id, received_at, shop_domain, session_id, user_id,
			page_id, page_type, page_title,
			element_id, element_type, element_name, event_type, count,
			remote_ip, user_agent
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, h := range hits {
		if err := batch.Append(
			uuid.New(), h.ReceivedAt, h.ShopDomain, h.SessionID, h.UserID,
			h.PageID, h.PageType, h.PageTitle,
			h.ElementID, h.ElementType, h.ElementName, h.Type, h.Count,
			h.RemoteIP, h.UserAgent,
		); err != nil {
			return fmt.Errorf("failed to append hit: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
