// Package store persists the tunables in a buntdb file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
	"go.uber.org/zap"

	"nyiyui.ca/hato/dcatc/config"
)

const tunablesKey = "config:tunables"

type writeReq struct {
	c    *config.Config
	done chan struct{}
}

// Store implements config.Persister. Writes happen on a background goroutine.
type Store struct {
	db      *buntdb.DB
	syncReq chan writeReq
	closed  chan struct{}
}

// Open opens (or creates) the database at path. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := &Store{
		db:      db,
		syncReq: make(chan writeReq, 8),
		closed:  make(chan struct{}),
	}
	go s.writeDB()
	return s, nil
}

func (s *Store) writeDB() {
	defer close(s.closed)
	for req := range s.syncReq {
		if req.c != nil {
			if err := s.write(*req.c); err != nil {
				zap.S().Errorw("store: write failed",
					"config", *req.c,
					"err", err)
			}
		}
		if req.done != nil {
			close(req.done)
		}
	}
}

func (s *Store) write(c config.Config) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(tunablesKey, string(data), nil)
		if err != nil {
			return err
		}
		_, _, err = tx.Set("config:saved-at", time.Now().Format(time.RFC3339), nil)
		return err
	})
}

// Save queues c for writing. If the queue is full the write is dropped.
func (s *Store) Save(c config.Config) {
	select {
	case s.syncReq <- writeReq{c: &c}:
	default:
		zap.S().Warnw("store: write queue full, dropping", "config", c)
	}
}

// Sync waits until all queued writes are done.
func (s *Store) Sync() {
	done := make(chan struct{})
	s.syncReq <- writeReq{done: done}
	<-done
}

// Load returns the saved tunables. ok is false if nothing has been saved.
func (s *Store) Load() (c config.Config, ok bool, err error) {
	err = s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(tunablesKey)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), &c)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return config.Config{}, false, nil
	}
	if err != nil {
		return config.Config{}, false, fmt.Errorf("load tunables: %w", err)
	}
	if err := c.Validate(); err != nil {
		return config.Config{}, false, fmt.Errorf("saved tunables: %w", err)
	}
	return c, true, nil
}

// Close flushes pending writes and closes the database.
func (s *Store) Close() error {
	close(s.syncReq)
	<-s.closed
	return s.db.Close()
}
