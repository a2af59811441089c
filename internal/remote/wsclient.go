package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// sendRequest is the frame written to open a remote task stream.
type sendRequest struct {
	Query          string            `json:"query"`
	ConversationID string            `json:"conversation_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// WSClient is a websocket transport for the remote agent protocol.
// Each SendMessage opens its own connection, so one client may serve
// concurrent callers.
type WSClient struct {
	endpoint string
	dialer   *websocket.Dialer
	header   http.Header
}

// NewWSClient creates a client for the agent at the given ws:// or
// wss:// endpoint.
func NewWSClient(endpoint string) *WSClient {
	return &WSClient{
		endpoint: endpoint,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

// SendMessage dials the agent, writes the query frame, and streams
// decoded pairs until the socket closes or the context is cancelled.
func (c *WSClient) SendMessage(ctx context.Context, query, conversationID string, metadata map[string]string) (<-chan StreamPair, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, c.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.endpoint, err)
	}

	req := sendRequest{Query: query, ConversationID: conversationID, Metadata: metadata}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send query: %w", err)
	}

	pairs := make(chan StreamPair, 32)

	// Close the socket when the caller gives up so the read loop
	// unblocks promptly.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(pairs)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("[remote] read from %s: %v", c.endpoint, err)
				}
				return
			}

			var pair StreamPair
			if err := json.Unmarshal(data, &pair); err != nil {
				log.Printf("[remote] skip malformed frame from %s: %v", c.endpoint, err)
				continue
			}

			select {
			case pairs <- pair:
			case <-ctx.Done():
				return
			}

			if pair.Handle.State == TaskStateCompleted || pair.Handle.State == TaskStateFailed {
				return
			}
		}
	}()

	return pairs, nil
}

// Close is a no-op; connections are per-call.
func (c *WSClient) Close() error {
	return nil
}
