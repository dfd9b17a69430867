package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polyquery/polymarket-mcp/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// PriceUpdateHandler is called for every price_change or last_trade_price
// message received on the market channel.
type PriceUpdateHandler func(tokenID string, price float64, ts time.Time)

// WSClient is a WebSocket client for the Polymarket CLOB market-data feed.
// It manages the connection lifecycle, the market-channel subscription, and
// dispatches price updates to registered handlers.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// connDone stops the loops serving the current connection; closed and
	// replaced on every (re)connect.
	connDone chan struct{}

	// Asset IDs to (re)subscribe on connect.
	assetIDs []string

	handlerMu     sync.RWMutex
	priceHandlers []PriceUpdateHandler

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a new WebSocket client for the given endpoint.
//
// wsURL is the CLOB market channel, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string, assetIDs []string) *WSClient {
	return &WSClient{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		done:     make(chan struct{}),
	}
}

// OnPriceUpdate registers a handler for price updates.
func (w *WSClient) OnPriceUpdate(handler PriceUpdateHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.priceHandlers = append(w.priceHandlers, handler)
}

// Connect establishes the WebSocket connection and subscribes to the market
// channel for the configured asset IDs.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	// Stop the loops serving any previous connection before replacing it.
	// connDone is nilled so a failed dial does not close it twice.
	if w.connDone != nil {
		close(w.connDone)
		w.connDone = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	w.conn = conn

	// Keep-alive via pong deadline extension.
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	connDone := make(chan struct{})
	w.connDone = connDone

	go w.readLoop(connDone)
	go w.pingLoop(connDone)

	if err := w.sendCommand(WSCommand{Type: "market", AssetsIDs: w.assetIDs}); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}

	return nil
}

// Close shuts down the WebSocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendCommand sends a JSON command to the WebSocket. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd WSCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages from the WebSocket and dispatches
// price updates. On disconnect it reconnects with exponential backoff.
func (w *WSClient) readLoop(stop <-chan struct{}) {
	for {
		select {
		case <-w.done:
			return
		case <-stop:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			case <-stop:
				// A newer connection already replaced this one.
				return
			default:
			}

			w.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (w *WSClient) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-stop:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reconnect dials again with capped exponential backoff until it succeeds or
// the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		err := w.Connect(ctx)
		cancel()
		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// handleMessage decodes a frame from the market channel and fans price
// updates out to the handlers. The channel delivers JSON arrays of events;
// single-object frames occur as well.
func (w *WSClient) handleMessage(message []byte) {
	var events []json.RawMessage
	if err := json.Unmarshal(message, &events); err != nil {
		events = []json.RawMessage{message}
	}

	for _, raw := range events {
		var probe struct {
			EventType string `json:"event_type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}

		switch probe.EventType {
		case "price_change":
			var pc WSPriceChange
			if err := json.Unmarshal(raw, &pc); err == nil {
				w.dispatchPrice(pc.AssetID, pc.Price, pc.Timestamp)
			}
		case "last_trade_price":
			var lt WSLastTradePrice
			if err := json.Unmarshal(raw, &lt); err == nil {
				w.dispatchPrice(lt.AssetID, lt.Price, lt.Timestamp)
			}
		}
	}
}

func (w *WSClient) dispatchPrice(tokenID, priceStr, tsStr string) {
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || tokenID == "" {
		return
	}

	ts := time.Now().UTC()
	if ms, err := strconv.ParseInt(tsStr, 10, 64); err == nil && ms > 0 {
		ts = time.UnixMilli(ms).UTC()
	}

	w.handlerMu.RLock()
	handlers := w.priceHandlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(tokenID, price, ts)
	}
}
