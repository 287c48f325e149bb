package httpapi

import (
	"collab-lab/domain/collab"
	"collab-lab/domain/event"
	"collab-lab/errors"
	"collab-lab/mocks"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	registry *mocks.MockIRegistry
	archive  *mocks.MockSnapshotStore
	router   http.Handler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := mocks.NewMockIRegistry(ctrl)
	archive := mocks.NewMockSnapshotStore(ctrl)
	gateway := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	server := NewServer(log, registry, gateway, archive)
	return fixture{registry: registry, archive: archive, router: server.Router()}
}

func (f fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func TestServer_CreateSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	created := collab.Summary{ID: uuid.NewString(), Name: "retro", CreatedAt: time.Now().UTC()}

	// Given the registry accepts the creation
	f.registry.EXPECT().CreateSession("retro").Return(created, nil).Times(1)

	// When posting a named session
	w := f.do(http.MethodPost, "/sessions", `{"name":"retro"}`)

	// Then the new id is returned with 201
	req.Equal(http.StatusCreated, w.Code)
	var got map[string]any
	req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
	req.Equal(created.ID, got["sessionId"])
	req.Equal("retro", got["name"])
}

func TestServer_CreateSessionWithoutBody(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.registry.EXPECT().CreateSession("").Return(collab.Summary{ID: "s1", Name: "Session s1"}, nil).Times(1)

	w := f.do(http.MethodPost, "/sessions", "")

	req.Equal(http.StatusCreated, w.Code)
}

func TestServer_CreateSessionRejectsInvalidBody(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// When the body is not JSON or the name is too long
	w := f.do(http.MethodPost, "/sessions", `{"name":`)
	req.Equal(http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/sessions", fmt.Sprintf(`{"name":%q}`, strings.Repeat("x", 129)))
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestServer_GetSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	handle := mocks.NewMockSessionHandle(ctrl)

	state := event.SessionState{SessionID: "s1", Name: "pairing", Document: event.DocumentView{Content: "hi", Version: 3}}
	f.registry.EXPECT().GetSession("s1").Return(handle, nil).Times(1)
	handle.EXPECT().Snapshot().Return(state).Times(1)

	w := f.do(http.MethodGet, "/sessions/s1", "")

	// Then the body is the session_state frame the websocket sends on join
	req.Equal(http.StatusOK, w.Code)
	var raw map[string]any
	req.NoError(json.Unmarshal(w.Body.Bytes(), &raw))
	req.Equal("session_state", raw["type"])
	got, err := event.Decode(w.Body.Bytes())
	req.NoError(err)
	req.Equal(state, got)
}

func TestServer_UnknownSessionIs404(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.registry.EXPECT().GetSession("nope").Return(nil, errors.ErrSessionNotFound).Times(1)
	f.registry.EXPECT().DeleteSession(gomock.Any(), "nope").Return(errors.ErrSessionNotFound).Times(1)

	req.Equal(http.StatusNotFound, f.do(http.MethodGet, "/sessions/nope", "").Code)
	req.Equal(http.StatusNotFound, f.do(http.MethodDelete, "/sessions/nope", "").Code)
}

func TestServer_ListSessions(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.registry.EXPECT().ListSessions().Return([]collab.Summary{
		{ID: "a", Name: "one", ParticipantCount: 2},
		{ID: "b", Name: "two"},
	}).Times(1)

	w := f.do(http.MethodGet, "/sessions", "")

	req.Equal(http.StatusOK, w.Code)
	var raw []map[string]any
	req.NoError(json.Unmarshal(w.Body.Bytes(), &raw))
	req.Len(raw, 2)
	req.ElementsMatch([]string{"id", "name", "participantCount", "createdAt"}, keys(raw[0]))
}

func TestServer_DeleteSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.registry.EXPECT().DeleteSession(gomock.Any(), "s1").Return(nil).Times(1)

	req.Equal(http.StatusNoContent, f.do(http.MethodDelete, "/sessions/s1", "").Code)
}

func TestServer_LeaveSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	handle := mocks.NewMockSessionHandle(ctrl)
	userID := uuid.NewString()

	f.registry.EXPECT().GetSession("s1").Return(handle, nil).Times(1)
	handle.EXPECT().Leave(gomock.Any(), userID).Return(nil).Times(1)

	// When leaving with a valid participant id
	w := f.do(http.MethodPost, "/sessions/s1/leave?userId="+userID, "")
	req.Equal(http.StatusNoContent, w.Code)

	// And without one
	w = f.do(http.MethodPost, "/sessions/s1/leave", "")
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestServer_Snapshots(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	archive := collab.Archive{SessionID: "s1", Name: "pairing", Content: "héllo", Version: 4, Reason: collab.ReasonEmpty}

	f.archive.EXPECT().List(gomock.Any()).Return([]collab.Archive{archive}, nil).Times(1)
	f.archive.EXPECT().Get(gomock.Any(), "s1").Return(archive, nil).Times(1)
	f.archive.EXPECT().Get(gomock.Any(), "s2").Return(collab.Archive{}, errors.ErrSnapshotNotFound).Times(1)

	// When listing, content is left out
	w := f.do(http.MethodGet, "/snapshots", "")
	req.Equal(http.StatusOK, w.Code)
	var list []snapshotView
	req.NoError(json.Unmarshal(w.Body.Bytes(), &list))
	req.Len(list, 1)
	req.Nil(list[0].Content)
	req.Equal(5, list[0].Length)

	// When fetching one, content is included
	w = f.do(http.MethodGet, "/snapshots/s1", "")
	req.Equal(http.StatusOK, w.Code)
	var one snapshotView
	req.NoError(json.Unmarshal(w.Body.Bytes(), &one))
	req.NotNil(one.Content)
	req.Equal("héllo", *one.Content)

	req.Equal(http.StatusNotFound, f.do(http.MethodGet, "/snapshots/s2", "").Code)
}

func TestServer_InspectPage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.registry.EXPECT().ListSessions().Return([]collab.Summary{{ID: "live-1", Name: "pairing"}}).Times(1)
	f.archive.EXPECT().List(gomock.Any()).Return([]collab.Archive{{SessionID: "old-1", Name: "retro"}}, nil).Times(1)

	w := f.do(http.MethodGet, "/debug/inspect", "")

	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "live-1")
	req.Contains(w.Body.String(), "old-1")
}

func TestServer_HealthAndWebsocketRoute(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.registry.EXPECT().ListSessions().Return(nil).Times(1)

	w := f.do(http.MethodGet, "/healthz", "")
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), `"status":"ok"`)

	// The websocket path is handed to the gateway
	req.Equal(http.StatusTeapot, f.do(http.MethodGet, "/sessions/s1/ws", "").Code)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
