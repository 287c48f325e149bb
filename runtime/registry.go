package runtime

import (
	"collab-lab/contract"
	"collab-lab/domain/collab"
	"collab-lab/errors"
	"collab-lab/observability"
	"collab-lab/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const idleEvictionMessage = "session closed after inactivity"

type RegistryOptions struct {
	CommandBufferSize int
	Strict            bool
	ArchiveTimeout    time.Duration
}

// Registry owns the live sessions. Its lock only guards the map: it is
// always taken before a session lock, never while holding one.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*workers.SessionWorker
	supervisor contract.ISupervisor
	archive    contract.SnapshotStore
	filter     contract.ChatFilter
	options    RegistryOptions
	now        func() time.Time
	log        *slog.Logger
}

func NewRegistry(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	archive contract.SnapshotStore,
	filter contract.ChatFilter,
	options RegistryOptions,
) *Registry {
	return &Registry{
		sessions:   make(map[string]*workers.SessionWorker),
		supervisor: supervisor,
		archive:    archive,
		filter:     filter,
		options:    options,
		now:        time.Now,
		log:        log,
	}
}

// CreateSession registers a new empty session under a random UUIDv4 and
// starts its worker.
func (r *Registry) CreateSession(name string) (collab.Summary, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return collab.Summary{}, err
	}
	sessionID := id.String()
	if name == "" {
		name = fmt.Sprintf("Session %s", sessionID[:8])
	}

	session := collab.NewSession(sessionID, name, r.now)
	worker := workers.NewSessionWorker(session, r.archive, r.filter, r.release, workers.SessionWorkerOptions{
		CommandBufferSize: r.options.CommandBufferSize,
		Strict:            r.options.Strict,
		ArchiveTimeout:    r.options.ArchiveTimeout,
	}, r.log)

	r.mu.Lock()
	r.sessions[sessionID] = worker
	r.mu.Unlock()

	r.supervisor.Spawn(worker)
	observability.SessionsActive.Inc()
	r.log.Info("Session created", "session_id", sessionID, "name", name)
	return session.Summary(), nil
}

func (r *Registry) GetSession(id string) (contract.SessionHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	worker, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}
	return worker, nil
}

// ListSessions returns the live sessions, oldest first.
func (r *Registry) ListSessions() []collab.Summary {
	r.mu.RLock()
	summaries := lo.MapToSlice(r.sessions, func(_ string, w *workers.SessionWorker) collab.Summary {
		return w.Summary()
	})
	r.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

func (r *Registry) DeleteSession(ctx context.Context, id string) error {
	worker, ok := r.remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}
	return worker.Evict(ctx, collab.ReasonDeleted, "session deleted")
}

// SweepIdle destroys every session idle for longer than threshold and
// returns their ids.
func (r *Registry) SweepIdle(ctx context.Context, threshold time.Duration) []string {
	now := r.now()

	r.mu.Lock()
	idle := lo.PickBy(r.sessions, func(_ string, w *workers.SessionWorker) bool {
		return w.Session().IdleFor(now) > threshold
	})
	for id := range idle {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for id, worker := range idle {
		observability.SessionsActive.Dec()
		if err := worker.Evict(ctx, collab.ReasonIdle, idleEvictionMessage); err != nil {
			r.log.Warn("Failed to evict idle session", "session_id", id, "error", err)
		}
	}
	return lo.Keys(idle)
}

// release is called by a worker whose last participant left.
func (r *Registry) release(worker *workers.SessionWorker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[worker.ID()]; ok && current == worker {
		delete(r.sessions, worker.ID())
		observability.SessionsActive.Dec()
	}
}

func (r *Registry) remove(id string) (*workers.SessionWorker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	worker, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		observability.SessionsActive.Dec()
	}
	return worker, ok
}
