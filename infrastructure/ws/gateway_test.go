package ws

import (
	"collab-lab/contract"
	"collab-lab/domain/delta"
	"collab-lab/domain/event"
	"collab-lab/errors"
	"collab-lab/mocks"
	"collab-lab/runtime"
	"collab-lab/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testServer struct {
	registry *runtime.Registry
	server   *httptest.Server
}

func newTestServer(t *testing.T, options Options) *testServer {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	supervisor := workers.NewSupervisor(log, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go supervisor.Run(ctx)

	registry := runtime.NewRegistry(log, supervisor, nil, nil, runtime.RegistryOptions{CommandBufferSize: 16})
	router := mux.NewRouter()
	router.Handle("/sessions/{id}/ws", NewGateway(log, registry, options))
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &testServer{registry: registry, server: server}
}

func (s *testServer) dial(t *testing.T, sessionID, user string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/sessions/" + sessionID + "/ws?user=" + url.QueryEscape(user)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// read returns the next frame that is not a server ping.
func read(t *testing.T, conn *websocket.Conn) event.Message {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		msg, err := event.Decode(data)
		require.NoError(t, err)
		if _, ok := msg.(event.Ping); ok {
			continue
		}
		return msg
	}
}

func send(t *testing.T, conn *websocket.Conn, msg event.Message) {
	t.Helper()
	data, err := event.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestGateway_AliceAndBobCollaborate(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, Options{KeepaliveInterval: time.Hour})
	summary, err := srv.registry.CreateSession("pairing")
	req.NoError(err)

	// Given Alice joined an empty session
	alice := srv.dial(t, summary.ID, "Alice")
	state := read(t, alice).(event.SessionState)
	req.Equal(summary.ID, state.SessionID)
	req.Len(state.Participants, 1)
	aliceID := state.YourUserID

	// When she types "hello"
	send(t, alice, event.DocumentEdit{Operation: delta.Operation{delta.Insert("hello")}})

	// And Bob joins
	bob := srv.dial(t, summary.ID, "Bob")

	// Then Bob sees the committed text and both participants with distinct colours
	state = read(t, bob).(event.SessionState)
	req.Equal(event.DocumentView{Content: "hello", Version: 1}, state.Document)
	req.Len(state.Participants, 2)
	req.NotEqual(state.Participants[0].Color, state.Participants[1].Color)
	bobID := state.YourUserID

	// And Alice is told Bob arrived
	joined := read(t, alice).(event.UserJoined)
	req.Equal(bobID, joined.User.ID)

	// When Bob moves his cursor to the end of the line
	send(t, bob, event.CursorUpdate{Line: 0, Column: 5})

	// Then Alice receives it
	cursor := read(t, alice).(event.CursorUpdate)
	req.Equal(event.CursorUpdate{UserID: bobID, Line: 0, Column: 5}, cursor)

	// When Alice appends " world"
	send(t, alice, event.DocumentEdit{BaseVersion: 1, Operation: delta.Diff("hello", "hello world")})

	// Then Bob receives version 2 from Alice
	edit := read(t, bob).(event.DocumentEdit)
	req.Equal(aliceID, edit.UserID)
	req.Equal(uint64(2), edit.Version)

	// When Bob disconnects
	req.NoError(bob.Close())

	// Then Alice is told he left
	left := read(t, alice).(event.UserLeft)
	req.Equal(bobID, left.UserID)
}

func TestGateway_MalformedFrameOnlyAnswersSender(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, Options{KeepaliveInterval: time.Hour})
	summary, err := srv.registry.CreateSession("")
	req.NoError(err)

	alice := srv.dial(t, summary.ID, "Alice")
	read(t, alice)
	bob := srv.dial(t, summary.ID, "Bob")
	read(t, bob)
	read(t, alice)

	// When Alice sends garbage and then an unknown type
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)))

	// Then she receives two errors and stays connected
	req.IsType(event.Error{}, read(t, alice))
	req.IsType(event.Error{}, read(t, alice))
	send(t, alice, event.Ping{})
	req.Equal(event.Pong{}, read(t, alice))

	// And Bob only sees what Alice does next
	send(t, alice, event.ChatMessage{Message: "hi"})
	chat := read(t, bob).(event.ChatMessage)
	req.Equal("hi", chat.Message)
	req.Equal("Alice", chat.UserName)
}

func TestGateway_UnknownSession(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, Options{KeepaliveInterval: time.Hour})

	// When connecting to a session that does not exist
	conn := srv.dial(t, "00000000-0000-4000-8000-000000000000", "Alice")

	// Then one error frame arrives and the socket closes
	errFrame := read(t, conn).(event.Error)
	req.Equal("session not found", errFrame.Message)
	_, _, err := conn.ReadMessage()
	req.Error(err)
}

func TestGateway_MissingUserIsRejected(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, Options{KeepaliveInterval: time.Hour})
	summary, err := srv.registry.CreateSession("")
	req.NoError(err)

	conn := srv.dial(t, summary.ID, "  ")

	req.IsType(event.Error{}, read(t, conn))
	_, _, err = conn.ReadMessage()
	req.Error(err)
}

func TestGateway_IdleEvictionSendsErrorBeforeClose(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, Options{KeepaliveInterval: time.Hour})
	summary, err := srv.registry.CreateSession("")
	req.NoError(err)

	alice := srv.dial(t, summary.ID, "Alice")
	read(t, alice)

	// When the registry sweeps with a zero threshold
	time.Sleep(5 * time.Millisecond)
	evicted := srv.registry.SweepIdle(context.Background(), 0)
	req.Equal([]string{summary.ID}, evicted)

	// Then Alice receives the terminal error, then the close
	errFrame := read(t, alice).(event.Error)
	req.Contains(errFrame.Message, "inactivity")
	_, _, err = alice.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))

	// And the session is no longer listed
	req.Empty(srv.registry.ListSessions())
}

func TestGateway_KeepaliveDropsSilentClient(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, Options{KeepaliveInterval: 20 * time.Millisecond, MissedPongLimit: 2})
	summary, err := srv.registry.CreateSession("")
	req.NoError(err)

	// Given Bob stays connected and answers pings
	bob := srv.dial(t, summary.ID, "Bob")
	read(t, bob)
	stopBob := make(chan struct{})
	received := make(chan event.Message, 16)
	go func() {
		for {
			select {
			case <-stopBob:
				return
			default:
			}
			_ = bob.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := bob.ReadMessage()
			if err != nil {
				return
			}
			msg, err := event.Decode(data)
			if err != nil {
				continue
			}
			if _, ok := msg.(event.Ping); ok {
				_ = bob.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
				continue
			}
			received <- msg
		}
	}()
	defer close(stopBob)

	// And Alice connects but never reads nor answers
	srv.dial(t, summary.ID, "Alice")

	var aliceID string
	select {
	case msg := <-received:
		aliceID = msg.(event.UserJoined).User.ID
	case <-time.After(2 * time.Second):
		req.FailNow("Bob never saw Alice join")
	}

	// Then after the missed pong limit Alice is dropped and Bob is told
	select {
	case msg := <-received:
		left, ok := msg.(event.UserLeft)
		req.True(ok)
		req.Equal(aliceID, left.UserID)
	case <-time.After(2 * time.Second):
		req.Fail("Alice was never dropped")
	}
}

func TestGateway_ClosedSessionDrainsQueuedFrames(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	handle := mocks.NewMockSessionHandle(ctrl)

	// Given a session that is evicted while frames are still queued for Alice
	var sink contract.EventSink
	registry.EXPECT().GetSession("s1").Return(handle, nil).Times(1)
	handle.EXPECT().Join(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, join contract.JoinRequest) error {
			sink = join.Sink
			return sink.Consume(ctx, event.SessionState{SessionID: "s1", Name: "pairing"})
		}).Times(1)
	handle.EXPECT().Dispatch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ event.Inbound) error {
			for i := 0; i < 50; i++ {
				_ = sink.Consume(ctx, event.ChatMessage{UserID: "bob", Message: fmt.Sprintf("message %d", i)})
			}
			_ = sink.Consume(ctx, event.Error{Message: "session closed after inactivity"})
			return errors.ErrSessionClosed
		}).Times(1)
	handle.EXPECT().Leave(gomock.Any(), gomock.Any()).Return(errors.ErrSessionClosed).Times(1)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	router := mux.NewRouter()
	router.Handle("/sessions/{id}/ws", NewGateway(log, registry, Options{KeepaliveInterval: time.Hour, BufferSize: 128}))
	server := httptest.NewServer(router)
	defer server.Close()
	srv := &testServer{server: server}

	alice := srv.dial(t, "s1", "Alice")
	req.IsType(event.SessionState{}, read(t, alice))

	// When Alice's next frame is refused because the session is gone
	send(t, alice, event.Ping{})

	// Then every queued frame reaches her, the terminal error last, then a normal close
	for i := 0; i < 50; i++ {
		chat := read(t, alice).(event.ChatMessage)
		req.Equal(fmt.Sprintf("message %d", i), chat.Message)
	}
	req.Equal(event.Error{Message: "session closed after inactivity"}, read(t, alice))
	req.NoError(alice.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := alice.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
