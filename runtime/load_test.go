package runtime

import (
	"collab-lab/contract"
	"collab-lab/domain/event"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LoadTest(t *testing.T) {
	if testing.Short() {
		t.Skip("load test")
	}
	req := require.New(t)
	ctx := context.Background()
	registry, _ := newTestRegistry(t)

	numSessions := 20
	participantsPerSession := 5
	updatesPerParticipant := 100

	type member struct {
		session contract.SessionHandle
		id      string
		sink    *Sink
	}
	var members []member
	for s := 0; s < numSessions; s++ {
		summary, err := registry.CreateSession(fmt.Sprintf("load-%d", s))
		req.NoError(err)
		handle, err := registry.GetSession(summary.ID)
		req.NoError(err)
		for p := 0; p < participantsPerSession; p++ {
			m := member{session: handle, id: uuid.NewString(), sink: newSink()}
			req.NoError(handle.Join(ctx, contract.JoinRequest{
				ParticipantID: m.id,
				DisplayName:   fmt.Sprintf("user-%d", p),
				Sink:          m.sink,
			}))
			members = append(members, m)
		}
	}

	// When every participant moves its cursor concurrently
	var wg sync.WaitGroup
	errs := make(chan error, len(members))
	for _, m := range members {
		wg.Add(1)
		go func(m member) {
			defer wg.Done()
			for i := 0; i < updatesPerParticipant; i++ {
				if err := m.session.Dispatch(ctx, m.id, event.CursorUpdate{Line: 0, Column: i}); err != nil {
					errs <- err
					return
				}
			}
		}(m)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// A join is acknowledged only once every earlier command of the session ran
	for s := 0; s < len(members); s += participantsPerSession {
		req.NoError(members[s].session.Join(ctx, contract.JoinRequest{
			ParticipantID: uuid.NewString(), DisplayName: "watcher", Sink: newSink(),
		}))
	}

	// Then each participant saw every update of the others, in per-sender order
	want := (participantsPerSession - 1) * updatesPerParticipant
	for _, m := range members {
		last := map[string]int{}
		count := 0
		for _, msg := range m.sink.Messages() {
			update, ok := msg.(event.CursorUpdate)
			if !ok {
				continue
			}
			req.NotEqual(m.id, update.UserID)
			if prev, seen := last[update.UserID]; seen {
				req.Equal(prev+1, update.Column)
			}
			last[update.UserID] = update.Column
			count++
		}
		req.Equal(want, count)
	}
	req.Len(registry.ListSessions(), numSessions)
}
