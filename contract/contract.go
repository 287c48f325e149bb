//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"collab-lab/domain/collab"
	"collab-lab/domain/event"
	"collab-lab/domain/presence"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Spawn(worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one realtime connection.
// Consume must never block: a sink that cannot keep up tears itself down.
type EventSink interface {
	Consume(ctx context.Context, msg event.Message) error
	// Close flushes what is already queued, then closes the connection.
	Close()
}

type JoinRequest struct {
	ParticipantID string
	DisplayName   string
	Color         presence.Color
	Sink          EventSink
}

// SessionHandle is how connections and the control plane talk to one live session.
type SessionHandle interface {
	ID() string
	Join(ctx context.Context, req JoinRequest) error
	Leave(ctx context.Context, participantID string) error
	Dispatch(ctx context.Context, participantID string, msg event.Inbound) error
	Snapshot() event.SessionState
	Summary() collab.Summary
}

type IRegistry interface {
	CreateSession(name string) (collab.Summary, error)
	GetSession(id string) (SessionHandle, error)
	ListSessions() []collab.Summary
	DeleteSession(ctx context.Context, id string) error
	SweepIdle(ctx context.Context, threshold time.Duration) []string
}

// SnapshotStore archives the final document of destroyed sessions.
type SnapshotStore interface {
	Save(ctx context.Context, archive collab.Archive) error
	Get(ctx context.Context, sessionID string) (collab.Archive, error)
	List(ctx context.Context) ([]collab.Archive, error)
	Close() error
}

// ChatFilter sanitises chat text and tags its language.
type ChatFilter interface {
	Filter(text string) (content string, language string)
}
