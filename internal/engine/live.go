package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"veraguard-go/internal/models"

	"github.com/gorilla/websocket"
)

// LiveStream is one open push channel connection. Frames arrive as
// {"event": tag, "data": payload} JSON messages.
type LiveStream struct {
	conn *websocket.Conn
}

// SubscribeLive opens the push channel. The caller owns the returned stream
// and must Close it; reconnection policy lives in the live bridge.
func (s *Service) SubscribeLive(ctx context.Context, dialTimeout time.Duration) (*LiveStream, error) {
	wsURL, err := s.websocketURL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("push channel dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("push channel dial failed: %w", err)
	}

	return &LiveStream{conn: conn}, nil
}

// Next blocks until the next push event arrives. Unknown tags are returned
// as-is; the bridge decides what to ignore.
func (st *LiveStream) Next() (*models.LiveEvent, error) {
	var frame struct {
		Event models.EventTag `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := st.conn.ReadJSON(&frame); err != nil {
		return nil, fmt.Errorf("push channel read failed: %w", err)
	}

	event := models.LiveEvent{Tag: frame.Event, ReceivedAt: time.Now()}
	if len(frame.Data) > 0 {
		var payload struct {
			Address   string `json:"address"`
			Heuristic string `json:"heuristic"`
			Message   string `json:"message"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return nil, fmt.Errorf("push channel payload malformed for %q: %w", frame.Event, err)
		}
		event.Address = payload.Address
		event.Heuristic = payload.Heuristic
		event.Message = payload.Message
	}
	return &event, nil
}

// Close tears down the connection.
func (st *LiveStream) Close() error {
	return st.conn.Close()
}
