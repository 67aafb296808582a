package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10

	tradeStaleThreshold = 5 * time.Minute
)

// Trade is the last observed trade for a symbol.
type Trade struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// TradeStream maintains a realtime trade feed over the Finnhub WebSocket API.
// It caches the last trade per subscribed symbol and reconnects automatically
// with exponential backoff, resubscribing to all symbols on reconnect.
type TradeStream struct {
	// Connection
	url        string
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	log zerolog.Logger

	// State
	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool

	// Subscriptions and last-trade cache (thread-safe)
	symbols    map[string]bool
	trades     map[string]Trade
	lastUpdate time.Time
	cacheMu    sync.RWMutex
}

// NewTradeStream creates a new Finnhub trade stream client.
func NewTradeStream(apiKey string, log zerolog.Logger) *TradeStream {
	return &TradeStream{
		url:      "wss://ws.finnhub.io?token=" + apiKey,
		log:      log.With().Str("component", "finnhub_trade_stream").Logger(),
		symbols:  make(map[string]bool),
		trades:   make(map[string]Trade),
		stopChan: make(chan struct{}),
	}
}

// Start initializes the WebSocket connection and starts the read loop
func (ws *TradeStream) Start() error {
	ws.log.Info().Msg("Starting trade stream client")

	if err := ws.Connect(); err != nil {
		ws.log.Warn().Err(err).Msg("Initial WebSocket connection failed, will retry in background")
		go ws.reconnectLoop()
		return err
	}

	ws.mu.RLock()
	ctx := ws.connCtx
	ws.mu.RUnlock()
	go ws.readMessages(ctx)

	ws.log.Info().Msg("Trade stream client started successfully")
	return nil
}

// Stop gracefully shuts down the WebSocket connection
func (ws *TradeStream) Stop() error {
	ws.mu.Lock()
	if ws.stopped {
		ws.mu.Unlock()
		return nil
	}
	ws.stopped = true
	ws.mu.Unlock()

	ws.log.Info().Msg("Stopping trade stream client")

	close(ws.stopChan)

	return ws.Disconnect()
}

// Connect establishes the WebSocket connection and resubscribes to all symbols
func (ws *TradeStream) Connect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.log.Info().Msg("Connecting to Finnhub WebSocket")

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, ws.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial WebSocket: %w", err)
	}

	// Long-lived context for the connection, cancelled on disconnect
	connCtx, connCancel := context.WithCancel(context.Background())
	ws.conn = conn
	ws.connCtx = connCtx
	ws.cancelFunc = connCancel
	ws.connected = true

	// Resubscribe to all tracked symbols
	ws.cacheMu.RLock()
	symbols := make([]string, 0, len(ws.symbols))
	for s := range ws.symbols {
		symbols = append(symbols, s)
	}
	ws.cacheMu.RUnlock()

	for _, symbol := range symbols {
		if err := ws.sendSubscribe(connCtx, conn, symbol); err != nil {
			connCancel()
			conn.Close(websocket.StatusNormalClosure, "subscribe failed")
			ws.conn = nil
			ws.connCtx = nil
			ws.cancelFunc = nil
			ws.connected = false
			return fmt.Errorf("failed to subscribe to %s: %w", symbol, err)
		}
	}

	ws.log.Info().Int("symbols", len(symbols)).Msg("Connected to Finnhub WebSocket")
	return nil
}

// Disconnect closes the WebSocket connection
func (ws *TradeStream) Disconnect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn == nil {
		return nil
	}

	ws.log.Info().Msg("Disconnecting from Finnhub WebSocket")

	if ws.cancelFunc != nil {
		ws.cancelFunc()
		ws.cancelFunc = nil
	}

	err := ws.conn.Close(websocket.StatusNormalClosure, "")

	ws.conn = nil
	ws.connCtx = nil
	ws.connected = false

	if err != nil {
		return fmt.Errorf("error closing WebSocket: %w", err)
	}

	return nil
}

// Subscribe adds a symbol to the stream.
// The subscription survives reconnects.
func (ws *TradeStream) Subscribe(symbol string) error {
	ws.cacheMu.Lock()
	ws.symbols[symbol] = true
	ws.cacheMu.Unlock()

	ws.mu.RLock()
	conn := ws.conn
	ctx := ws.connCtx
	ws.mu.RUnlock()

	if conn == nil {
		// Not connected yet, will subscribe on connect
		return nil
	}

	return ws.sendSubscribe(ctx, conn, symbol)
}

// Unsubscribe removes a symbol from the stream.
func (ws *TradeStream) Unsubscribe(symbol string) error {
	ws.cacheMu.Lock()
	delete(ws.symbols, symbol)
	delete(ws.trades, symbol)
	ws.cacheMu.Unlock()

	ws.mu.RLock()
	conn := ws.conn
	ctx := ws.connCtx
	ws.mu.RUnlock()

	if conn == nil {
		return nil
	}

	return ws.sendControl(ctx, conn, "unsubscribe", symbol)
}

func (ws *TradeStream) sendSubscribe(ctx context.Context, conn *websocket.Conn, symbol string) error {
	return ws.sendControl(ctx, conn, "subscribe", symbol)
}

// sendControl sends a subscribe/unsubscribe control message.
// Finnhub protocol: {"type":"subscribe","symbol":"AAPL"}
func (ws *TradeStream) sendControl(ctx context.Context, conn *websocket.Conn, msgType, symbol string) error {
	msg := struct {
		Type   string `json:"type"`
		Symbol string `json:"symbol"`
	}{Type: msgType, Symbol: symbol}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msgType, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msgType, err)
	}

	return nil
}

// readMessages continuously reads messages from the WebSocket
func (ws *TradeStream) readMessages(ctx context.Context) {
	defer func() {
		ws.log.Info().Msg("Read loop stopped")
		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if !stopped {
			go ws.reconnectLoop()
		}
	}()

	for {
		select {
		case <-ws.stopChan:
			return
		case <-ctx.Done():
			ws.log.Debug().Msg("Read loop context cancelled")
			return
		default:
		}

		ws.mu.RLock()
		conn := ws.conn
		ws.mu.RUnlock()

		if conn == nil {
			ws.log.Warn().Msg("Connection is nil, stopping read loop")
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				ws.log.Info().Int("status", int(closeStatus)).Msg("WebSocket closed normally")
			} else if ctx.Err() != nil {
				ws.log.Debug().Msg("Read cancelled by context")
			} else {
				ws.log.Error().Err(err).Msg("Unexpected WebSocket read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			ws.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text message")
			continue
		}

		if err := ws.handleMessage(message); err != nil {
			ws.log.Error().Err(err).Str("message", string(message)).Msg("Failed to handle WebSocket message")
			// Continue reading despite parse errors
		}
	}
}

// wsTrade matches a single trade in Finnhub's trade message payload.
type wsTrade struct {
	Symbol    string  `json:"s"`
	Price     float64 `json:"p"`
	Volume    float64 `json:"v"`
	Timestamp int64   `json:"t"` // unix milliseconds
}

// handleMessage parses and processes WebSocket messages.
// Finnhub protocol: {"type":"trade","data":[...]} or {"type":"ping"}
func (ws *TradeStream) handleMessage(message []byte) error {
	var envelope struct {
		Type string    `json:"type"`
		Data []wsTrade `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}

	switch envelope.Type {
	case "ping":
		// Keepalive, nothing to do
		return nil
	case "trade":
		return ws.handleTrades(envelope.Data)
	default:
		ws.log.Debug().Str("type", envelope.Type).Msg("Ignoring message")
		return nil
	}
}

// handleTrades updates the last-trade cache from a trade batch
func (ws *TradeStream) handleTrades(trades []wsTrade) error {
	if len(trades) == 0 {
		return nil
	}

	ws.cacheMu.Lock()
	for _, t := range trades {
		ws.trades[t.Symbol] = Trade{
			Symbol:    t.Symbol,
			Price:     t.Price,
			Volume:    t.Volume,
			Timestamp: time.UnixMilli(t.Timestamp),
		}
	}
	ws.lastUpdate = time.Now()
	ws.cacheMu.Unlock()

	ws.log.Debug().Int("trade_count", len(trades)).Msg("Trade cache updated")
	return nil
}

// reconnectLoop handles automatic reconnection with exponential backoff
func (ws *TradeStream) reconnectLoop() {
	ws.mu.Lock()
	if ws.reconnecting || ws.stopped {
		ws.mu.Unlock()
		return
	}
	ws.reconnecting = true
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		ws.reconnecting = false
		ws.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-ws.stopChan:
			ws.log.Info().Msg("Reconnection loop stopped by user")
			return
		default:
		}

		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if stopped {
			return
		}

		attempt++

		delay := ws.calculateBackoff(attempt)

		if attempt <= maxReconnectAttempts {
			ws.log.Info().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Attempting to reconnect to WebSocket")
		} else {
			ws.log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Reconnection attempt (exceeded max attempts, will keep retrying)")
		}

		select {
		case <-time.After(delay):
		case <-ws.stopChan:
			return
		}

		if err := ws.Connect(); err != nil {
			ws.log.Error().Err(err).
				Int("attempt", attempt).
				Msg("Reconnection failed")
			continue
		}

		ws.log.Info().
			Int("attempt", attempt).
			Msg("Successfully reconnected to WebSocket")

		ws.mu.RLock()
		ctx := ws.connCtx
		ws.mu.RUnlock()
		go ws.readMessages(ctx)
		return
	}
}

// calculateBackoff calculates exponential backoff delay
func (ws *TradeStream) calculateBackoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))

	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}

	return time.Duration(delay)
}

// Symbols returns the currently subscribed symbols (thread-safe)
func (ws *TradeStream) Symbols() []string {
	ws.cacheMu.RLock()
	defer ws.cacheMu.RUnlock()

	symbols := make([]string, 0, len(ws.symbols))
	for s := range ws.symbols {
		symbols = append(symbols, s)
	}

	return symbols
}

// LastTrade returns the last observed trade for a symbol (thread-safe)
func (ws *TradeStream) LastTrade(symbol string) (*Trade, error) {
	ws.cacheMu.RLock()
	defer ws.cacheMu.RUnlock()

	trade, exists := ws.trades[symbol]
	if !exists {
		return nil, fmt.Errorf("no trades observed for %s", symbol)
	}

	return &trade, nil
}

// AllTrades returns a copy of the last-trade cache (thread-safe)
func (ws *TradeStream) AllTrades() map[string]Trade {
	ws.cacheMu.RLock()
	defer ws.cacheMu.RUnlock()

	result := make(map[string]Trade, len(ws.trades))
	for k, v := range ws.trades {
		result[k] = v
	}

	return result
}

// IsCacheStale checks if no trades were received recently
func (ws *TradeStream) IsCacheStale() bool {
	ws.cacheMu.RLock()
	defer ws.cacheMu.RUnlock()

	if ws.lastUpdate.IsZero() {
		return true
	}

	return time.Since(ws.lastUpdate) > tradeStaleThreshold
}

// IsConnected returns current connection status
func (ws *TradeStream) IsConnected() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.connected
}
