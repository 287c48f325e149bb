// Package ws is the realtime gateway: it upgrades HTTP requests to websocket
// connections and binds each of them to one participant of one session.
package ws

import (
	"collab-lab/contract"
	"collab-lab/domain/event"
	"collab-lab/domain/presence"
	"collab-lab/errors"
	"collab-lab/observability"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type Options struct {
	KeepaliveInterval time.Duration
	MissedPongLimit   int
	BufferSize        int
	WriteTimeout      time.Duration
	MaxMessageSize    int64
	// AllowedOrigins empty accepts any origin.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.KeepaliveInterval <= 0 {
		o.KeepaliveInterval = 30 * time.Second
	}
	if o.MissedPongLimit <= 0 {
		o.MissedPongLimit = 2
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 1 << 20
	}
	return o
}

type joinParams struct {
	User  string `validate:"required,max=64"`
	Color string `validate:"omitempty,hexcolor"`
}

type Gateway struct {
	registry contract.IRegistry
	upgrader websocket.Upgrader
	validate *validator.Validate
	options  Options
	log      *slog.Logger
}

func NewGateway(log *slog.Logger, registry contract.IRegistry, options Options) *Gateway {
	options = options.withDefaults()
	return &Gateway{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(options.AllowedOrigins),
		},
		validate: validator.New(),
		options:  options,
		log:      log,
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}

// ServeHTTP handles /sessions/{id}/ws?user=<name>[&color=<hex>]. Request
// problems are reported over the upgraded socket as a single error frame.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	sessionID := mux.Vars(r)["id"]
	log := g.log.With("session_id", sessionID)

	handle, err := g.registry.GetSession(sessionID)
	if err != nil {
		g.reject(conn, errors.ErrSessionNotFound.Error())
		return
	}

	params := joinParams{
		User:  strings.TrimSpace(r.URL.Query().Get("user")),
		Color: r.URL.Query().Get("color"),
	}
	if err := g.validate.Struct(params); err != nil {
		g.reject(conn, "invalid join parameters: user is required, color must be a hex colour")
		return
	}

	participantID := uuid.NewString()
	c := newConnection(conn, participantID, g.options, log)
	go c.writePump()

	err = handle.Join(r.Context(), contract.JoinRequest{
		ParticipantID: participantID,
		DisplayName:   params.User,
		Color:         presence.Color(strings.ToUpper(params.Color)),
		Sink:          c,
	})
	if err != nil {
		_ = c.Consume(r.Context(), event.Error{Message: err.Error()})
		c.Close()
		<-c.done
		return
	}

	observability.ConnectionsActive.Inc()
	defer observability.ConnectionsActive.Dec()
	log.Info("Connection attached", "participant_id", participantID, "name", params.User)

	readErr := c.readPump(r.Context(), func(ctx context.Context, msg event.Inbound) error {
		return handle.Dispatch(ctx, participantID, msg)
	})

	leaveCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), g.options.WriteTimeout)
	defer cancel()
	if err := handle.Leave(leaveCtx, participantID); err != nil &&
		!errors.Is(err, errors.ErrSessionClosed) && !errors.Is(err, errors.ErrParticipantNotFound) {
		log.Warn("Leave failed", "participant_id", participantID, "error", err)
	}
	if errors.Is(readErr, errors.ErrSessionClosed) {
		// The session already queued its terminal frames: let them drain.
		c.Close()
	} else {
		c.abort()
	}
	<-c.done
	log.Info("Connection detached", "participant_id", participantID)
}

// reject sends one error frame then closes a connection that never joined.
func (g *Gateway) reject(conn *websocket.Conn, message string) {
	defer func() { _ = conn.Close() }()
	data, err := event.Encode(event.Error{Message: message})
	if err != nil {
		return
	}
	deadline := time.Now().Add(g.options.WriteTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	closeFrame := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message)
	_ = conn.WriteControl(websocket.CloseMessage, closeFrame, deadline)
}
