package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"squizy/internal/model"
)

// RemoteStore is the client side of the relay: writes go over HTTP, snapshots
// arrive over a WebSocket.
type RemoteStore struct {
	baseURL string
	client  *http.Client
	dialer  *websocket.Dialer
}

// NewRemoteStore creates a store talking to the relay at baseURL (http or https)
func NewRemoteStore(baseURL string) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (s *RemoteStore) roomURL(code string) string {
	return s.baseURL + "/v1/rooms/" + url.PathEscape(code)
}

func (s *RemoteStore) Set(ctx context.Context, code string, doc model.Update) error {
	return s.send(ctx, http.MethodPut, code, doc)
}

func (s *RemoteStore) Update(ctx context.Context, code string, u model.Update) error {
	return s.send(ctx, http.MethodPatch, code, u)
}

func (s *RemoteStore) send(ctx context.Context, method, code string, u model.Update) error {
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.roomURL(code), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return relayError(resp)
	}
	return nil
}

func (s *RemoteStore) Snapshot(ctx context.Context, code string) (model.Update, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.roomURL(code), nil)
	if err != nil {
		return model.Update{}, false, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return model.Update{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.Update{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return model.Update{}, false, relayError(resp)
	}

	var doc model.Update
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return model.Update{}, false, fmt.Errorf("failed to decode room: %w", err)
	}
	return doc, true, nil
}

// Subscribe opens the room WebSocket. The channel is closed when ctx is done or
// the connection drops.
func (s *RemoteStore) Subscribe(ctx context.Context, code string) (<-chan model.Update, error) {
	wsURL, err := s.socketURL(code)
	if err != nil {
		return nil, err
	}
	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}

	out := make(chan model.Update)
	readerDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() // unblocks the reader
		case <-readerDone:
		}
	}()
	go func() {
		defer close(out)
		defer close(readerDone)
		defer conn.Close()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					log.Printf("[sync] room %s: connection lost: %v", code, err)
				}
				return
			}
			if msg.Type != MsgSnapshot {
				continue
			}

			var doc model.Update
			if err := json.Unmarshal(msg.Payload, &doc); err != nil {
				log.Printf("[sync] room %s: bad snapshot: %v", code, err)
				continue
			}
			select {
			case out <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *RemoteStore) socketURL(code string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String() + "/v1/ws/rooms/" + url.PathEscape(code), nil
}

func relayError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("relay returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("relay returned %d", resp.StatusCode)
}
