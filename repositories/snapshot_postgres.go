package repositories

import (
	"collab-lab/domain/collab"
	"collab-lab/errors"
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS collab_snapshots (
	session_id  TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	version     BIGINT NOT NULL,
	reason      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL,
	content     BYTEA NOT NULL
)`

// PostgresSnapshotRepository archives destroyed sessions in a Postgres table.
type PostgresSnapshotRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresSnapshotRepository connects to databaseURL and makes sure the
// snapshots table exists.
func NewPostgresSnapshotRepository(ctx context.Context, databaseURL string, log *slog.Logger) (*PostgresSnapshotRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	repository := &PostgresSnapshotRepository{pool: pool, log: log}
	if err := repository.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repository, nil
}

func (r *PostgresSnapshotRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, createSnapshotsTable)
	return err
}

func (r *PostgresSnapshotRepository) Save(ctx context.Context, archive collab.Archive) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO collab_snapshots (session_id, name, version, reason, created_at, archived_at, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			reason = EXCLUDED.reason,
			archived_at = EXCLUDED.archived_at,
			content = EXCLUDED.content`,
		archive.SessionID, archive.Name, int64(archive.Version), archive.Reason,
		archive.CreatedAt, archive.ArchivedAt, compress(archive.Content),
	)
	return err
}

func (r *PostgresSnapshotRepository) Get(ctx context.Context, sessionID string) (collab.Archive, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT session_id, name, version, reason, created_at, archived_at, content
		FROM collab_snapshots WHERE session_id = $1`, sessionID)
	archive, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return collab.Archive{}, fmt.Errorf("%w: %s", errors.ErrSnapshotNotFound, sessionID)
	}
	return archive, err
}

func (r *PostgresSnapshotRepository) List(ctx context.Context) ([]collab.Archive, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id, name, version, reason, created_at, archived_at, content
		FROM collab_snapshots ORDER BY archived_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archives []collab.Archive
	for rows.Next() {
		archive, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		archives = append(archives, archive)
	}
	return archives, rows.Err()
}

func (r *PostgresSnapshotRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanSnapshot(row pgx.Row) (collab.Archive, error) {
	var (
		archive    collab.Archive
		version    int64
		compressed []byte
	)
	err := row.Scan(&archive.SessionID, &archive.Name, &version, &archive.Reason,
		&archive.CreatedAt, &archive.ArchivedAt, &compressed)
	if err != nil {
		return collab.Archive{}, err
	}
	archive.Version = uint64(version)
	archive.CreatedAt = archive.CreatedAt.UTC()
	archive.ArchivedAt = archive.ArchivedAt.UTC()
	archive.Content, err = decompress(compressed)
	return archive, err
}
