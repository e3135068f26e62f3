package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	models "BTCPulse/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPriceStream(t *testing.T, s *PriceStream) *websocket.Conn {
	t.Helper()
	e := echo.New()
	s.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readPrice(t *testing.T, conn *websocket.Conn) models.PriceMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg models.PriceMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPriceStreamPushesSubscribedExchange(t *testing.T) {
	store := newTestStore(t)
	seedSeries(t, store, 10)
	s := NewPriceStream(nil, newTestMarket(t, store), WithPushInterval(50*time.Millisecond))
	conn := dialPriceStream(t, s)

	require.NoError(t, conn.WriteJSON(models.PriceSubscription{Type: "subscribe", Channel: "price", Exchange: "okx"}))

	msg := readPrice(t, conn)
	assert.Equal(t, "price", msg.Type)
	assert.Equal(t, models.ExchangeOKX, msg.Exchange)
	require.NotNil(t, msg.Data)
	assert.Equal(t, 111.0, msg.Data.Price)
	assert.Equal(t, "2020-01-10", msg.Data.Date)
	assert.NotZero(t, msg.Data.Timestamp)

	// periodic pushes follow
	msg = readPrice(t, conn)
	assert.Equal(t, "price", msg.Type)
	assert.Equal(t, 1, s.Clients())
}

func TestPriceStreamRejectsInvalidExchange(t *testing.T) {
	s := NewPriceStream(nil, newTestMarket(t, newTestStore(t)))
	conn := dialPriceStream(t, s)

	require.NoError(t, conn.WriteJSON(models.PriceSubscription{Type: "subscribe", Channel: "price", Exchange: "kraken"}))
	msg := readPrice(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Message, "kraken")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	msg = readPrice(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestPriceStreamReportsMissingData(t *testing.T) {
	s := NewPriceStream(nil, newTestMarket(t, newTestStore(t)), WithPushInterval(time.Hour))
	conn := dialPriceStream(t, s)

	require.NoError(t, conn.WriteJSON(models.PriceSubscription{Type: "subscribe", Channel: "price", Exchange: "binance"}))
	msg := readPrice(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.NotEmpty(t, msg.Message)
}

func TestPriceStreamRefreshesOnSeriesUpdate(t *testing.T) {
	store := newTestStore(t)
	seedSeries(t, store, 3)
	s := NewPriceStream(nil, newTestMarket(t, store), WithPushInterval(time.Hour))
	conn := dialPriceStream(t, s)

	require.NoError(t, conn.WriteJSON(models.PriceSubscription{Type: "subscribe", Channel: "price", Exchange: "binance"}))
	assert.Equal(t, "price", readPrice(t, conn).Type)

	s.SeriesUpdated(models.SeriesEvent{Type: models.EventSeriesUpdated})
	msg := readPrice(t, conn)
	assert.Equal(t, "price", msg.Type)
	assert.Equal(t, 102.0, msg.Data.Price)

	s.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
