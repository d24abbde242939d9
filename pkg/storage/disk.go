package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"heart-audio/pkg/models"
)

const badgerKeyPrefix = "analysis/"

type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func badgerKey(id string) []byte {
	return []byte(badgerKeyPrefix + id)
}

func (s *BadgerStore) Save(_ context.Context, a *models.Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(a.ID), data)
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (*models.Analysis, error) {
	var a models.Analysis

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrAnalysisNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return &a, nil
}

// ListByUser scans every record; fine at the volumes a single node sees.
func (s *BadgerStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Analysis, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []*models.Analysis
	for _, a := range all {
		if a.UserID != userID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// List returns all analyses, newest first.
func (s *BadgerStore) List(ctx context.Context) ([]*models.Analysis, error) {
	var out []*models.Analysis

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var a models.Analysis
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, &a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
