package repositories

import (
	"collab-lab/domain/collab"
	"collab-lab/errors"
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

const snapshotPrefix = "snapshot:"

// SnapshotRepository archives destroyed sessions in BadgerDB, one key per
// session: "snapshot:{session_id}".
type SnapshotRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSnapshotRepository(db *badger.DB, log *slog.Logger) SnapshotRepository {
	return SnapshotRepository{db: db, log: log}
}

func snapshotKey(sessionID string) []byte {
	return []byte(snapshotPrefix + sessionID)
}

func (r SnapshotRepository) Save(_ context.Context, archive collab.Archive) error {
	bytes, err := encodeSnapshot(archive)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(archive.SessionID), bytes)
	})
}

func (r SnapshotRepository) Get(_ context.Context, sessionID string) (collab.Archive, error) {
	var archive collab.Archive
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			archive, err = decodeSnapshot(value)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return collab.Archive{}, fmt.Errorf("%w: %s", errors.ErrSnapshotNotFound, sessionID)
	}
	return archive, err
}

// List returns every archive, most recently archived first.
func (r SnapshotRepository) List(_ context.Context) ([]collab.Archive, error) {
	var archives []collab.Archive
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(snapshotPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				archive, err := decodeSnapshot(value)
				if err != nil {
					r.log.Warn("Skipping unreadable snapshot", "key", string(item.Key()), "error", err)
					return nil
				}
				archives = append(archives, archive)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByArchivedAt(archives)
	return archives, nil
}

// Close is a no-op: the database belongs to whoever opened it.
func (r SnapshotRepository) Close() error {
	return nil
}

func sortByArchivedAt(archives []collab.Archive) {
	sort.SliceStable(archives, func(i, j int) bool {
		return archives[i].ArchivedAt.After(archives[j].ArchivedAt)
	})
}
