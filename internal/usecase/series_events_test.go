package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"BTCPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

type recordingListener struct{ events []models.SeriesEvent }

func (r *recordingListener) SeriesUpdated(e models.SeriesEvent) { r.events = append(r.events, e) }

func TestSeriesEventsHandler(t *testing.T) {
	inv := &countingInvalidator{}
	lis := &recordingListener{}
	h := NewSeriesEventsHandler("btcpulse.series", inv, nil, nil, lis)
	ctx := context.Background()
	assert.Equal(t, "btcpulse.series", h.Topic())

	b, err := json.Marshal(models.SeriesEvent{ID: "run-1", Type: models.EventSeriesUpdated, LastDate: "2024-01-05"})
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, b))
	assert.Equal(t, 1, inv.calls)
	require.Len(t, lis.events, 1)
	assert.Equal(t, "run-1", lis.events[0].ID)

	other, err := json.Marshal(models.SeriesEvent{Type: models.EventAnomalies})
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, other))
	assert.Equal(t, 1, inv.calls)

	assert.Error(t, h.Handle(ctx, []byte("{not json")))

	inv.err = errors.New("redis down")
	assert.Error(t, h.Handle(ctx, b))
	assert.Len(t, lis.events, 1)
}
