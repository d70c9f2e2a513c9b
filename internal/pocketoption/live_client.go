package pocketoption

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultWSUrl     = "wss://api-eu.po.market/socket.io/?EIO=4&transport=websocket"
	liveWriteTimeout = 10 * time.Second
	liveDialTimeout  = 15 * time.Second
)

// wsFrame is the envelope for every message exchanged with the venue.
type wsFrame struct {
	Event     string          `json:"event"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type candleKey struct {
	asset     string
	timeframe int
}

// LiveClient speaks the venue websocket protocol using an SSID taken
// from an authenticated browser session. One goroutine owns all reads
// and dispatches frames to request waiters and candle subscribers.
type LiveClient struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	balance   float64
	pending   map[string]chan wsFrame
	streams   map[candleKey]chan Candle
}

var _ Client = (*LiveClient)(nil)

// NewLiveClient creates a live venue client. Connect must be called
// before any other operation.
func NewLiveClient(cfg Config, logger zerolog.Logger) *LiveClient {
	if cfg.WSUrl == "" {
		cfg.WSUrl = defaultWSUrl
	}
	return &LiveClient{
		cfg:     cfg,
		pending: make(map[string]chan wsFrame),
		streams: make(map[candleKey]chan Candle),
		logger:  logger.With().Str("component", "live_client").Logger(),
	}
}

// Connect dials the venue, authenticates with the SSID and loads the
// account balance.
func (c *LiveClient) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, liveDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.WSUrl, nil)
	if err != nil {
		return fmt.Errorf("dialing venue websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop()

	auth := map[string]interface{}{"ssid": c.cfg.SSID, "demo": c.cfg.Demo}
	reply, err := c.request(ctx, "auth", auth)
	if err != nil {
		c.close()
		return fmt.Errorf("authenticating with venue: %w", err)
	}
	if reply.Event != "auth_ok" {
		c.close()
		return fmt.Errorf("venue rejected session: %s", reply.Event)
	}

	reply, err = c.request(ctx, "get_balance", nil)
	if err != nil {
		c.close()
		return fmt.Errorf("loading balance: %w", err)
	}
	var bal struct {
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal(reply.Data, &bal); err != nil {
		c.close()
		return fmt.Errorf("decoding balance: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.balance = bal.Balance
	c.mu.Unlock()

	c.logger.Info().Float64("balance", bal.Balance).Bool("demo", c.cfg.Demo).
		Msg("Venue session established")
	return nil
}

func (c *LiveClient) Balance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

func (c *LiveClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *LiveClient) IsSimulation() bool { return false }

// SubscribeCandles registers a candle stream and forwards venue candle
// frames to the handler until ctx is cancelled.
func (c *LiveClient) SubscribeCandles(ctx context.Context, asset string, timeframe int, onCandle CandleHandler) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	key := candleKey{asset: asset, timeframe: timeframe}
	stream := make(chan Candle, 16)

	c.mu.Lock()
	if _, exists := c.streams[key]; exists {
		c.mu.Unlock()
		return fmt.Errorf("already subscribed to %s/%d", asset, timeframe)
	}
	c.streams[key] = stream
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.streams, key)
		c.mu.Unlock()
	}()

	sub := map[string]interface{}{"asset": asset, "timeframe": timeframe}
	if _, err := c.request(ctx, "subscribe_candles", sub); err != nil {
		return fmt.Errorf("subscribing to %s/%d: %w", asset, timeframe, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case candle, ok := <-stream:
			if !ok {
				return fmt.Errorf("candle stream for %s/%d closed: %w", asset, timeframe, ErrNotConnected)
			}
			onCandle(candle)
		}
	}
}

func (c *LiveClient) PlaceTrade(ctx context.Context, asset string, amount float64, direction Direction, expiration int) (*TradeTicket, error) {
	if direction != DirectionCall && direction != DirectionPut {
		return nil, ErrInvalidDirection
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	order := map[string]interface{}{
		"asset":      asset,
		"amount":     amount,
		"direction":  string(direction),
		"expiration": expiration,
	}
	reply, err := c.request(ctx, "place_order", order)
	if err != nil {
		return nil, fmt.Errorf("placing trade on %s: %w", asset, err)
	}

	var ticket TradeTicket
	if err := json.Unmarshal(reply.Data, &ticket); err != nil {
		return nil, fmt.Errorf("decoding trade ticket: %w", err)
	}
	if ticket.TradeID == "" {
		return nil, fmt.Errorf("venue rejected trade on %s", asset)
	}
	ticket.Status = "pending"
	return &ticket, nil
}

func (c *LiveClient) CheckTradeOutcome(ctx context.Context, tradeID string) (*TradeOutcome, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}
	reply, err := c.request(ctx, "check_order", map[string]interface{}{"trade_id": tradeID})
	if err != nil {
		return nil, fmt.Errorf("checking trade %s: %w", tradeID, err)
	}
	var outcome TradeOutcome
	if err := json.Unmarshal(reply.Data, &outcome); err != nil {
		return nil, fmt.Errorf("decoding trade outcome: %w", err)
	}
	return &outcome, nil
}

func (c *LiveClient) GetTournaments(ctx context.Context) ([]Tournament, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}
	reply, err := c.request(ctx, "get_tournaments", nil)
	if err != nil {
		return nil, fmt.Errorf("listing tournaments: %w", err)
	}
	var tournaments []Tournament
	if err := json.Unmarshal(reply.Data, &tournaments); err != nil {
		return nil, fmt.Errorf("decoding tournaments: %w", err)
	}
	return tournaments, nil
}

func (c *LiveClient) JoinTournament(ctx context.Context, id string) (bool, error) {
	if !c.IsConnected() {
		return false, ErrNotConnected
	}
	reply, err := c.request(ctx, "join_tournament", map[string]interface{}{"tournament_id": id})
	if err != nil {
		return false, fmt.Errorf("joining tournament %s: %w", id, err)
	}
	var result struct {
		Joined bool `json:"joined"`
	}
	if err := json.Unmarshal(reply.Data, &result); err != nil {
		return false, fmt.Errorf("decoding join result: %w", err)
	}
	return result.Joined, nil
}

// request writes one frame and waits for the frame carrying the same
// request ID.
func (c *LiveClient) request(ctx context.Context, event string, data interface{}) (wsFrame, error) {
	frame := wsFrame{Event: event, RequestID: uuid.NewString()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return wsFrame{}, fmt.Errorf("encoding %s request: %w", event, err)
		}
		frame.Data = raw
	}

	reply := make(chan wsFrame, 1)
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return wsFrame{}, ErrNotConnected
	}
	c.pending[frame.RequestID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, frame.RequestID)
		c.mu.Unlock()
	}()

	conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		return wsFrame{}, fmt.Errorf("writing %s frame: %w", event, err)
	}

	select {
	case <-ctx.Done():
		return wsFrame{}, ctx.Err()
	case f := <-reply:
		if f.Event == "error" {
			return wsFrame{}, fmt.Errorf("venue error for %s: %s", event, string(f.Data))
		}
		return f, nil
	}
}

// readLoop owns all reads from the connection, routing reply frames to
// their waiters and candle frames to their streams.
func (c *LiveClient) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			c.logger.Error().Err(err).Msg("Venue connection lost")
			c.close()
			return
		}

		switch {
		case frame.RequestID != "":
			c.mu.Lock()
			waiter, ok := c.pending[frame.RequestID]
			c.mu.Unlock()
			if ok {
				waiter <- frame
			}
		case frame.Event == "candle":
			var candle Candle
			if err := json.Unmarshal(frame.Data, &candle); err != nil {
				c.logger.Warn().Err(err).Msg("Dropping malformed candle frame")
				continue
			}
			key := candleKey{asset: candle.Asset, timeframe: candle.Timeframe}
			c.mu.Lock()
			stream, ok := c.streams[key]
			c.mu.Unlock()
			if ok {
				select {
				case stream <- candle:
				default:
					c.logger.Warn().Str("asset", candle.Asset).Msg("Candle stream backed up, dropping bar")
				}
			}
		case frame.Event == "balance_update":
			var bal struct {
				Balance float64 `json:"balance"`
			}
			if err := json.Unmarshal(frame.Data, &bal); err == nil {
				c.mu.Lock()
				c.balance = bal.Balance
				c.mu.Unlock()
			}
		}
	}
}

// close tears down the session and unblocks every candle subscriber.
func (c *LiveClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	for key, stream := range c.streams {
		close(stream)
		delete(c.streams, key)
	}
}
