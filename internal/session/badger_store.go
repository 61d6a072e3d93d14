// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

// Key prefixes for BadgerDB storage. The user index key is
// user:<userID>:<sessionID> with the current status as value; the metrics
// log key is metrics:<sessionID>:<receivedAt unix nanos>.
const (
	sessionKeyPrefix = "session:"
	userKeyPrefix    = "user:"
	metricsKeyPrefix = "metrics:"
)

// BadgerStore implements Store on BadgerDB for durable sessions that
// survive restarts. Badger transactions provide the per-session
// serialization Mutate promises: conflicting read-modify-write cycles
// abort and are retried.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the session database at path.
// inMemory avoids disk entirely, for development and tests.
func OpenBadgerStore(path string, inMemory bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Create implements Store.
func (s *BadgerStore) Create(_ context.Context, session *models.StreamingSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "marshal session", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(sessionKey(session.ID), data); err != nil {
			return err
		}
		return txn.Set(userKey(session.UserID, session.ID), []byte(session.Status))
	})
	if err != nil {
		return storeUnavailable("create session", err)
	}
	return nil
}

// Get implements Store.
func (s *BadgerStore) Get(_ context.Context, id string) (*models.StreamingSession, error) {
	var session models.StreamingSession
	err := s.db.View(func(txn *badger.Txn) error {
		return readSession(txn, id, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Mutate implements Store. Badger aborts conflicting transactions with
// ErrConflict; those retry until the callback's read-modify-write cycle
// applies cleanly.
func (s *BadgerStore) Mutate(_ context.Context, id string, fn func(*models.StreamingSession) error) (*models.StreamingSession, error) {
	for {
		var session models.StreamingSession
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := readSession(txn, id, &session); err != nil {
				return err
			}
			if err := fn(&session); err != nil {
				return err
			}
			data, err := json.Marshal(&session)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, "marshal session", err)
			}
			if err := txn.Set(sessionKey(id), data); err != nil {
				return err
			}
			return txn.Set(userKey(session.UserID, id), []byte(session.Status))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, storeUnavailable("mutate session", err)
		}
		return &session, nil
	}
}

// ListByUser implements Store using the user index.
func (s *BadgerStore) ListByUser(_ context.Context, userID string, statuses ...models.SessionStatus) ([]*models.StreamingSession, error) {
	var sessions []*models.StreamingSession
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(userKeyPrefix + userID + ":")
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var status models.SessionStatus
			if err := item.Value(func(val []byte) error {
				status = models.SessionStatus(val)
				return nil
			}); err != nil {
				return err
			}
			if !statusIn(status, statuses) {
				continue
			}

			id := string(item.Key()[len(prefix):])
			var session models.StreamingSession
			if err := readSession(txn, id, &session); err != nil {
				return err
			}
			sessions = append(sessions, &session)
		}
		return nil
	})
	if err != nil {
		return nil, storeUnavailable("list sessions", err)
	}
	return sessions, nil
}

// ListStale implements Store with a scan over all sessions. Session
// volume is bounded by active listeners, so a prefix scan every janitor
// tick stays cheap.
func (s *BadgerStore) ListStale(_ context.Context, cutoff time.Time) ([]*models.StreamingSession, error) {
	var stale []*models.StreamingSession
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(sessionKeyPrefix)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session models.StreamingSession
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			}); err != nil {
				return err
			}
			if session.StaleSince(cutoff) {
				copied := session
				stale = append(stale, &copied)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeUnavailable("scan stale sessions", err)
	}
	return stale, nil
}

// AppendMetrics implements Store. Entries are keyed by receive time so
// the log reads back in arrival order.
func (s *BadgerStore) AppendMetrics(_ context.Context, id string, receivedAt time.Time, m models.HeartbeatMetrics) error {
	data, err := json.Marshal(&m)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "marshal metrics", err)
	}
	key := []byte(metricsKeyPrefix + id + ":" + strconv.FormatInt(receivedAt.UnixNano(), 10))
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return storeUnavailable("append metrics", err)
	}
	return nil
}

// Ping implements Store.
func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return apperrors.New(apperrors.CodeUnavailable, "session database is closed")
	}
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// readSession loads and unmarshals one session inside a transaction.
func readSession(txn *badger.Txn, id string, out *models.StreamingSession) error {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.Newf(apperrors.CodeNotFound, "session %s not found", id)
	}
	if err != nil {
		return storeUnavailable("get session", err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

func userKey(userID, id string) []byte {
	return []byte(userKeyPrefix + userID + ":" + id)
}

// storeUnavailable wraps storage-layer failures as UNAVAILABLE unless the
// error already carries an application code.
func storeUnavailable(op string, err error) error {
	if isAppError(err) {
		return err
	}
	return apperrors.Wrap(apperrors.CodeUnavailable, "session store: "+op, err)
}

func isAppError(err error) bool {
	var appErr *apperrors.Error
	return errors.As(err, &appErr)
}
