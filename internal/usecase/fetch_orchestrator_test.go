package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"BTCPulse/internal/domain/models"
	domsvc "BTCPulse/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAllIsolatesFailures(t *testing.T) {
	boom := &models.SourceError{Source: models.ExchangeHuobi, Attempts: 5, Err: errors.New("connection refused")}
	sources := []domsvc.Source{
		&fakeSource{name: models.ExchangeBinance, candles: candles("2024-01-01", 100, 101)},
		&fakeSource{name: models.ExchangeOKX, candles: candles("2024-01-01", 100, 101, 102)},
		&fakeSource{name: models.ExchangeHuobi, err: boom},
	}
	o := NewFetchOrchestrator(sources)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res := o.FetchAll(context.Background(), start, start.AddDate(0, 0, 3))

	assert.Equal(t, 5, res.TotalRecords())
	require.Len(t, res.Series, 3)
	assert.NotNil(t, res.Series[models.ExchangeHuobi])
	assert.Empty(t, res.Series[models.ExchangeHuobi])
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[models.ExchangeHuobi], models.ErrSourceUnavailable)
	assert.Equal(t, []string{models.ExchangeBinance, models.ExchangeOKX, models.ExchangeHuobi}, o.Sources())
}

func TestFetchAllSavesRawSnapshots(t *testing.T) {
	store := newFileStore(t)
	sources := []domsvc.Source{
		&fakeSource{name: models.ExchangeBinance, candles: candles("2024-01-01", 100)},
		&fakeSource{name: models.ExchangeOKX},
	}
	o := NewFetchOrchestrator(sources, WithRawStore(store))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	o.FetchAll(context.Background(), start, start.AddDate(0, 0, 1))

	raw, err := filepath.Glob(filepath.Join(store.Dir(), "raw", "*.json"))
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "btc_price_binance_2024-01-01_2024-01-02.json", filepath.Base(raw[0]))
	_, err = os.Stat(raw[0])
	assert.NoError(t, err)
}
