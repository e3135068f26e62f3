package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	models "BTCPulse/internal/domain/models"
	"BTCPulse/internal/service/metrics"
	"BTCPulse/internal/usecase"
	xlogger "BTCPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait    = 10 * time.Second
	wsMaxMessage   = 4096
	wsOutboxBuffer = 8
)

// PriceStream pushes the latest close of a subscribed exchange to websocket clients.
type PriceStream struct {
	logger    *xlogger.Logger
	market    *usecase.MarketQueryUseCase
	upgrader  websocket.Upgrader
	pushEvery time.Duration
	pingEvery time.Duration

	mu      sync.Mutex
	clients map[*priceClient]struct{}
}

type PriceStreamOption func(*PriceStream)

func WithPushInterval(d time.Duration) PriceStreamOption {
	return func(s *PriceStream) {
		if d > 0 {
			s.pushEvery = d
		}
	}
}

func WithPingInterval(d time.Duration) PriceStreamOption {
	return func(s *PriceStream) {
		if d > 0 {
			s.pingEvery = d
		}
	}
}

func NewPriceStream(logger *xlogger.Logger, market *usecase.MarketQueryUseCase, opts ...PriceStreamOption) *PriceStream {
	if logger == nil {
		logger = xlogger.Nop()
	}
	metrics.Register()
	s := &PriceStream{
		logger:    logger,
		market:    market,
		pushEvery: time.Second,
		pingEvery: 30 * time.Second,
		clients:   make(map[*priceClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PriceStream) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.Serve)
}

type priceClient struct {
	conn      *websocket.Conn
	subscribe chan string
	out       chan models.PriceMessage
	refresh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (cl *priceClient) close() {
	cl.closeOnce.Do(func() {
		close(cl.done)
		_ = cl.conn.Close()
	})
}

// Serve upgrades the connection and blocks until the client goes away.
func (s *PriceStream) Serve(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", xlogger.Error(err))
		return nil
	}
	cl := &priceClient{
		conn:      conn,
		subscribe: make(chan string, 1),
		out:       make(chan models.PriceMessage, wsOutboxBuffer),
		refresh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	s.add(cl)
	defer s.remove(cl)

	go s.writeLoop(cl)
	s.readLoop(cl)
	return nil
}

func (s *PriceStream) readLoop(cl *priceClient) {
	defer cl.close()
	pongWait := 2 * s.pingEvery
	cl.conn.SetReadLimit(wsMaxMessage)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, b, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("ws read", xlogger.Error(err))
			}
			return
		}
		_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg models.PriceSubscription
		if err := json.Unmarshal(b, &msg); err != nil {
			s.enqueue(cl, errorMessage("malformed message"))
			continue
		}
		if msg.Type != "subscribe" || msg.Channel != "price" {
			continue
		}
		ex, ok := models.CanonicalExchange(msg.Exchange)
		if !ok {
			s.enqueue(cl, errorMessage("invalid exchange: "+msg.Exchange))
			continue
		}
		// latest subscription wins
		select {
		case <-cl.subscribe:
		default:
		}
		cl.subscribe <- ex
	}
}

func (s *PriceStream) writeLoop(cl *priceClient) {
	defer cl.close()
	push := time.NewTicker(s.pushEvery)
	defer push.Stop()
	ping := time.NewTicker(s.pingEvery)
	defer ping.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-cl.done
		cancel()
	}()

	var exchange string
	for {
		var err error
		select {
		case <-cl.done:
			return
		case msg := <-cl.out:
			err = s.write(cl, msg)
		case exchange = <-cl.subscribe:
			err = s.pushPrice(ctx, cl, exchange)
		case <-cl.refresh:
			if exchange != "" {
				err = s.pushPrice(ctx, cl, exchange)
			}
		case <-push.C:
			if exchange != "" {
				err = s.pushPrice(ctx, cl, exchange)
			}
		case <-ping.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err = cl.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			s.logger.Debug("ws write", xlogger.Error(err))
			return
		}
	}
}

func (s *PriceStream) pushPrice(ctx context.Context, cl *priceClient, exchange string) error {
	q, err := s.market.LastClose(ctx, exchange)
	if err != nil {
		s.logger.Debug("ws price lookup", xlogger.String("exchange", exchange), xlogger.Error(err))
		return s.write(cl, errorMessage(toAppError(err).Message))
	}
	return s.write(cl, models.PriceMessage{
		Type:     "price",
		Exchange: exchange,
		Data:     &models.PriceTick{Price: q.Price, Date: q.Date, Timestamp: time.Now().UnixMilli()},
	})
}

func (s *PriceStream) write(cl *priceClient, msg models.PriceMessage) error {
	_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return cl.conn.WriteJSON(msg)
}

func (s *PriceStream) enqueue(cl *priceClient, msg models.PriceMessage) {
	select {
	case cl.out <- msg:
	case <-cl.done:
	default:
		s.logger.Warn("ws outbox full, dropping message")
	}
}

func errorMessage(text string) models.PriceMessage {
	return models.PriceMessage{Type: "error", Message: text}
}

// SeriesUpdated pushes a fresh price to every subscriber without waiting for the next tick.
func (s *PriceStream) SeriesUpdated(models.SeriesEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		select {
		case cl.refresh <- struct{}{}:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (s *PriceStream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client. Hijacked connections outlive the HTTP server shutdown.
func (s *PriceStream) Close() {
	s.mu.Lock()
	clients := make([]*priceClient, 0, len(s.clients))
	for cl := range s.clients {
		clients = append(clients, cl)
	}
	s.mu.Unlock()
	for _, cl := range clients {
		_ = cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		cl.close()
	}
}

func (s *PriceStream) add(cl *priceClient) {
	s.mu.Lock()
	s.clients[cl] = struct{}{}
	s.mu.Unlock()
	metrics.WSClients.Inc()
}

func (s *PriceStream) remove(cl *priceClient) {
	s.mu.Lock()
	delete(s.clients, cl)
	s.mu.Unlock()
	metrics.WSClients.Dec()
}
