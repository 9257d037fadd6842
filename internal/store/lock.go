package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
)

// AcquireLock checks out the document under (collection, key) and returns
// the new lock id. It fails with a locked error if the document already
// holds a lock or changed between read and write.
func (s *Store) AcquireLock(ctx context.Context, collection, key string, now time.Time) (string, error) {
	const op = "store.acquire_lock"

	m, raw, err := getDoc(ctx, s.db, collection, key)
	if err != nil {
		return "", err
	}
	if held, ok := m["lock_id"].(doc.String); ok {
		s.metrics.lockConflict(collection)
		return "", errs.Locked(op, "%s/%s is locked by %s", collection, key, held)
	}

	lockID := uuid.NewString()
	updated, err := doc.Apply(m, doc.Update{
		"lock_id":   doc.String(lockID),
		"lock_time": doc.NewTime(now),
	})
	if err != nil {
		return "", fmt.Errorf("acquire lock %s/%s: %w", collection, key, err)
	}
	if err := s.swap(ctx, op, collection, key, raw, updated); err != nil {
		return "", err
	}

	s.logger.Info("lock acquired", "collection", collection, "key", key, "lock_id", lockID)
	return lockID, nil
}

// ReleaseLock clears the lock on (collection, key) if it is held by lockID.
func (s *Store) ReleaseLock(ctx context.Context, collection, key, lockID string) error {
	const op = "store.release_lock"

	m, raw, err := getDoc(ctx, s.db, collection, key)
	if err != nil {
		return err
	}
	// An unlocked document stores lock_id as null, which never matches.
	held, _ := m["lock_id"].(doc.String)
	if string(held) != lockID {
		s.metrics.lockConflict(collection)
		return errs.Locked(op, "%s/%s: lock %s is not held (holder %q)", collection, key, lockID, held)
	}

	updated, err := doc.Apply(m, doc.Update{
		"lock_id":   doc.Null{},
		"lock_time": doc.Null{},
	})
	if err != nil {
		return fmt.Errorf("release lock %s/%s: %w", collection, key, err)
	}
	if err := s.swap(ctx, op, collection, key, raw, updated); err != nil {
		return err
	}

	s.logger.Info("lock released", "collection", collection, "key", key, "lock_id", lockID)
	return nil
}

// swap replaces the stored document with updated only if the stored bytes
// still equal old.
func (s *Store) swap(ctx context.Context, op, collection, key, old string, updated doc.Map) error {
	data, err := doc.Marshal(updated)
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w", op, collection, key, err)
	}
	// Compare on the canonical bytes read earlier; equal documents always
	// encode identically.
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET doc = ?
		WHERE collection = ? AND key = ? AND doc = ?
	`, string(data), collection, key, old)
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w", op, collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s/%s: rows affected: %w", op, collection, key, err)
	}
	// No row matched: another writer got there between our read and write.
	if n == 0 {
		s.metrics.lockConflict(collection)
		return errs.Locked(op, "%s/%s changed concurrently", collection, key)
	}
	s.metrics.wrote(collection, 1)
	return nil
}
