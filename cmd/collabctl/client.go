package main

import (
	"collab-lab/domain/collab"
	"collab-lab/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) apiClient {
	return apiClient{base: strings.TrimSuffix(base, "/"), http: &http.Client{Timeout: 10 * time.Second}}
}

type snapshot struct {
	SessionID  string    `json:"sessionId"`
	Name       string    `json:"name"`
	Version    uint64    `json:"version"`
	Reason     string    `json:"reason"`
	Length     int       `json:"length"`
	CreatedAt  time.Time `json:"createdAt"`
	ArchivedAt time.Time `json:"archivedAt"`
	Content    *string   `json:"content,omitempty"`
}

func (c apiClient) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("%s %s: %s %s", http.MethodGet, path, resp.Status, body.Error)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c apiClient) Sessions(ctx context.Context) ([]collab.Summary, error) {
	var sessions []collab.Summary
	err := c.get(ctx, "/sessions", &sessions)
	return sessions, err
}

func (c apiClient) Session(ctx context.Context, id string) (event.SessionState, error) {
	var state event.SessionState
	err := c.get(ctx, "/sessions/"+url.PathEscape(id), &state)
	return state, err
}

func (c apiClient) Snapshots(ctx context.Context) ([]snapshot, error) {
	var snapshots []snapshot
	err := c.get(ctx, "/snapshots", &snapshots)
	return snapshots, err
}

func (c apiClient) Snapshot(ctx context.Context, id string) (snapshot, error) {
	var s snapshot
	err := c.get(ctx, "/snapshots/"+url.PathEscape(id), &s)
	return s, err
}

// Dial joins a session over websocket as user.
func (c apiClient) Dial(ctx context.Context, id, user string) (*websocket.Conn, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/sessions/" + url.PathEscape(id) + "/ws"
	u.RawQuery = url.Values{"user": {user}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}
