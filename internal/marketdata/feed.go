package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// FeedConfig configures the websocket bar feed client.
type FeedConfig struct {
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultFeedConfig returns the default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// barMessage is the wire format of one bar on the feed.
type barMessage struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"` // "2006-01-02"
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// subscribeMessage requests bar updates for a symbol set.
type subscribeMessage struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// FeedClient consumes end-of-day bars from a websocket feed and writes
// them into a BarStore. It is the ingest side of the market-data
// boundary; the simulation engine only ever reads from the store.
type FeedClient struct {
	endpoint string
	config   FeedConfig
	store    storage.BarStore
	logger   *log.Logger

	conn *websocket.Conn
}

// NewFeedClient creates a feed client. logger may be nil.
func NewFeedClient(endpoint string, store storage.BarStore, config FeedConfig, logger *log.Logger) *FeedClient {
	return &FeedClient{
		endpoint: endpoint,
		config:   config,
		store:    store,
		logger:   logger,
	}
}

// Connect dials the feed endpoint and subscribes to symbols.
func (c *FeedClient) Connect(ctx context.Context, symbols []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial feed %s: %w", c.endpoint, err)
	}
	c.conn = conn

	sub := subscribeMessage{Op: "subscribe", Symbols: symbols}
	if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Run reads bar messages until the context is cancelled or the
// connection drops. Malformed messages are logged and skipped;
// duplicate bars are tolerated.
func (c *FeedClient) Run(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("feed client not connected")
	}
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read feed message: %w", err)
		}

		var msg barMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			if c.logger != nil {
				c.logger.Printf("skipping malformed feed message: %v", err)
			}
			continue
		}

		bar, err := msg.toBar()
		if err != nil {
			if c.logger != nil {
				c.logger.Printf("skipping invalid bar: %v", err)
			}
			continue
		}

		if err := c.store.InsertBulk(ctx, []*domain.Bar{bar}); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return fmt.Errorf("store bar %s %s: %w", bar.Symbol, bar.Date.Format("2006-01-02"), err)
		}
	}
}

// Close closes the feed connection.
func (c *FeedClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// toBar converts a wire message into a domain bar.
func (m *barMessage) toBar() (*domain.Bar, error) {
	if m.Symbol == "" {
		return nil, fmt.Errorf("missing symbol")
	}
	date, err := time.Parse("2006-01-02", m.Date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", m.Date, err)
	}
	if m.Close <= 0 {
		return nil, fmt.Errorf("non-positive close %f for %s", m.Close, m.Symbol)
	}
	return &domain.Bar{
		Symbol: m.Symbol,
		Date:   domain.DateOnly(date),
		Open:   m.Open,
		High:   m.High,
		Low:    m.Low,
		Close:  m.Close,
		Volume: m.Volume,
	}, nil
}
