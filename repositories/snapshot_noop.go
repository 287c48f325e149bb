package repositories

import (
	"collab-lab/domain/collab"
	"collab-lab/errors"
	"context"
	"fmt"
)

// NoopSnapshotRepository drops archives, for SNAPSHOT_BACKEND=none.
type NoopSnapshotRepository struct{}

func (NoopSnapshotRepository) Save(context.Context, collab.Archive) error { return nil }

func (NoopSnapshotRepository) Get(_ context.Context, sessionID string) (collab.Archive, error) {
	return collab.Archive{}, fmt.Errorf("%w: %s", errors.ErrSnapshotNotFound, sessionID)
}

func (NoopSnapshotRepository) List(context.Context) ([]collab.Archive, error) { return nil, nil }

func (NoopSnapshotRepository) Close() error { return nil }
