package repositories

import (
	"collab-lab/domain/collab"
	"collab-lab/errors"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newArchive(id string, archivedAt time.Time, content string) collab.Archive {
	return collab.Archive{
		SessionID:  id,
		Name:       "Session " + id,
		Content:    content,
		Version:    7,
		CreatedAt:  archivedAt.Add(-time.Hour),
		ArchivedAt: archivedAt,
		Reason:     collab.ReasonIdle,
	}
}

func Test_Snapshot_Save_And_Get(t *testing.T) {
	req := require.New(t)
	repository := NewSnapshotRepository(openInMemory(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Given an archive with multi-byte content
	archive := newArchive("s1", at, "héllo wörld\n"+strings.Repeat("ab", 1000))

	// When it is saved then fetched
	req.NoError(repository.Save(ctx, archive))
	got, err := repository.Get(ctx, "s1")

	// Then it comes back identical
	req.NoError(err)
	req.Equal(archive, got)
}

func Test_Snapshot_Get_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewSnapshotRepository(openInMemory(t), slog.Default())

	_, err := repository.Get(context.Background(), "missing")

	req.ErrorIs(err, errors.ErrSnapshotNotFound)
}

func Test_Snapshot_List_Most_Recent_First(t *testing.T) {
	req := require.New(t)
	repository := NewSnapshotRepository(openInMemory(t), slog.Default())
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Given three archives saved out of order
	req.NoError(repository.Save(ctx, newArchive("b", at.Add(time.Minute), "two")))
	req.NoError(repository.Save(ctx, newArchive("a", at, "one")))
	req.NoError(repository.Save(ctx, newArchive("c", at.Add(2*time.Minute), "")))

	// When listing
	archives, err := repository.List(ctx)

	// Then the newest comes first
	req.NoError(err)
	req.Len(archives, 3)
	req.Equal([]string{"c", "b", "a"}, []string{archives[0].SessionID, archives[1].SessionID, archives[2].SessionID})
	req.Equal("", archives[0].Content)
}

func Test_Snapshot_Save_Overwrites(t *testing.T) {
	req := require.New(t)
	repository := NewSnapshotRepository(openInMemory(t), slog.Default())
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	req.NoError(repository.Save(ctx, newArchive("s1", at, "first")))
	req.NoError(repository.Save(ctx, newArchive("s1", at, "second")))

	archives, err := repository.List(ctx)
	req.NoError(err)
	req.Len(archives, 1)
	req.Equal("second", archives[0].Content)
}

func Test_Snapshot_Codec_Compresses_Content(t *testing.T) {
	req := require.New(t)
	archive := newArchive("s1", time.Now().UTC(), strings.Repeat("all work and no play ", 500))

	data, err := encodeSnapshot(archive)
	req.NoError(err)
	req.Less(len(data), len(archive.Content)/10)

	decoded, err := decodeSnapshot(data)
	req.NoError(err)
	req.Equal(archive.Content, decoded.Content)
}

func Test_Noop_Snapshot(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	var repository NoopSnapshotRepository

	req.NoError(repository.Save(ctx, newArchive("s1", time.Now(), "x")))
	_, err := repository.Get(ctx, "s1")
	req.ErrorIs(err, errors.ErrSnapshotNotFound)
	archives, err := repository.List(ctx)
	req.NoError(err)
	req.Empty(archives)
}

// Runs only against a real database: COLLAB_TEST_DATABASE_URL=postgres://...
func Test_Postgres_Snapshot(t *testing.T) {
	databaseURL := os.Getenv("COLLAB_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("COLLAB_TEST_DATABASE_URL not set")
	}
	req := require.New(t)
	ctx := context.Background()

	repository, err := NewPostgresSnapshotRepository(ctx, databaseURL, slog.Default())
	req.NoError(err)
	defer repository.Close()

	archive := newArchive("pg-"+time.Now().Format("150405.000000"), time.Now().UTC().Truncate(time.Microsecond), "héllo")
	req.NoError(repository.Save(ctx, archive))

	got, err := repository.Get(ctx, archive.SessionID)
	req.NoError(err)
	req.Equal(archive, got)

	_, err = repository.Get(ctx, "missing-"+archive.SessionID)
	req.ErrorIs(err, errors.ErrSnapshotNotFound)
}
