// Package quota tracks how many votes each anonymous session has spent per
// show. Counters live in a badger store keyed vote/<show>/<session> and
// expire on their own once the quota window passes.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

type Ledger struct {
	db    *badger.DB
	limit int
	ttl   time.Duration
}

// Open opens (or creates) the ledger in dir. limit is the number of votes an
// anonymous session may spend per show; counters expire ttl after the
// session's last vote.
func Open(dir string, limit int, ttl time.Duration) (*Ledger, error) {
	if limit < 1 {
		return nil, fmt.Errorf("quota limit must be at least 1, got %d", limit)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening quota ledger at '%s': %w", dir, err)
	}
	return &Ledger{db: db, limit: limit, ttl: ttl}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Spend consumes one vote from the session's allowance for the show. It
// reports false, without consuming anything, when the allowance is already
// exhausted.
func (l *Ledger) Spend(ctx context.Context, showID, sessionID string) (bool, error) {
	if showID == "" || sessionID == "" {
		return false, fmt.Errorf("spend needs a show and session id")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := voteKey(showID, sessionID)
	var allowed bool
	// Badger transactions are optimistic; retry the read-modify-write a few
	// times on conflict.
	for attempt := 0; ; attempt++ {
		err := l.db.Update(func(txn *badger.Txn) error {
			count, err := readCount(txn, key)
			if err != nil {
				return err
			}
			if count >= l.limit {
				allowed = false
				return nil
			}
			allowed = true
			entry := badger.NewEntry(key, []byte(strconv.Itoa(count+1))).WithTTL(l.ttl)
			return txn.SetEntry(entry)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < 3 {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("error spending quota for show '%s': %w", showID, err)
		}
		return allowed, nil
	}
}

// Remaining reports how many votes the session has left for the show.
func (l *Ledger) Remaining(ctx context.Context, showID, sessionID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		count, err = readCount(txn, voteKey(showID, sessionID))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("error reading quota for show '%s': %w", showID, err)
	}
	if count > l.limit {
		return 0, nil
	}
	return l.limit - count, nil
}

func readCount(txn *badger.Txn, key []byte) (int, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(string(val))
	if err != nil {
		return 0, fmt.Errorf("corrupt quota counter '%s': %w", key, err)
	}
	return count, nil
}

func voteKey(showID, sessionID string) []byte {
	return []byte("vote/" + showID + "/" + sessionID)
}
