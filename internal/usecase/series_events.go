package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	pkgkafka "BTCPulse/pkg/kafka"
	"BTCPulse/pkg/logger"
)

// Invalidator drops cached responses after the series changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// SeriesListener is told about every applied series update.
type SeriesListener interface {
	SeriesUpdated(e models.SeriesEvent)
}

// SeriesEventsHandler consumes series events published by the pipeline.
type SeriesEventsHandler struct {
	topic     string
	cache     Invalidator
	listeners []SeriesListener
	metrics   domrepo.Metrics
	log       *logger.Logger
}

var _ pkgkafka.MessageHandler = (*SeriesEventsHandler)(nil)

func NewSeriesEventsHandler(topic string, cache Invalidator, metrics domrepo.Metrics, l *logger.Logger, listeners ...SeriesListener) *SeriesEventsHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &SeriesEventsHandler{topic: topic, cache: cache, listeners: listeners, metrics: metrics, log: l}
}

func (h *SeriesEventsHandler) Topic() string { return h.topic }

// Handle invalidates the response cache on series.updated. Other event types
// are acknowledged and ignored.
func (h *SeriesEventsHandler) Handle(ctx context.Context, b []byte) error {
	var e models.SeriesEvent
	if err := json.Unmarshal(b, &e); err != nil {
		h.recordError("series_event_unmarshal")
		return fmt.Errorf("decode series event: %w", err)
	}
	if e.Type != models.EventSeriesUpdated {
		h.log.Debug("ignoring series event", logger.String("type", e.Type))
		return nil
	}

	if err := h.cache.Invalidate(ctx); err != nil {
		h.recordError("series_event_invalidate")
		return fmt.Errorf("invalidate cache: %w", err)
	}
	for _, l := range h.listeners {
		l.SeriesUpdated(e)
	}
	h.log.Info("series update applied",
		logger.String("event_id", e.ID),
		logger.String("mode", e.Mode),
		logger.String("last_date", e.LastDate),
		logger.Int("days", e.Days),
	)
	return nil
}

func (h *SeriesEventsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}
