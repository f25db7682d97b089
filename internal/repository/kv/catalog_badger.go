package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"

	"gallery/internal/model"
	"gallery/internal/repository"
)

const keyPrefix = "catalog/"

var errClosed = errors.New("catalog store is closed")

// storedRecord is the on-disk JSON document. Optional fields are omitted
// rather than written as zero values.
type storedRecord struct {
	FileURL   string     `json:"fileUrl"`
	Folder    string     `json:"folder,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// CatalogBadger is an embedded key-value implementation of
// repository.CatalogRepository. Each record lives under catalog/<id>.
type CatalogBadger struct {
	db *badger.DB
}

var _ repository.CatalogRepository = (*CatalogBadger)(nil)

// Open opens (or creates) a Badger store in dir. An empty dir keeps
// everything in memory, which is what the tests use.
func Open(dir string, log zerolog.Logger) (*CatalogBadger, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{log: log.With().Str("component", "badger").Logger()}).
		WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &CatalogBadger{db: db}, nil
}

// Append writes one record in its own transaction.
func (r *CatalogBadger) Append(ctx context.Context, rec model.CatalogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(storedRecord{
		FileURL:   rec.FileURL,
		Folder:    rec.Folder,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.ID), val)
	})
}

// Scan iterates every record under the catalog prefix inside one read
// transaction, so the result is a consistent snapshot.
func (r *CatalogBadger) Scan(ctx context.Context) ([]model.CatalogRecord, error) {
	items := make([]model.CatalogRecord, 0)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var doc storedRecord
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &doc)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			items = append(items, model.CatalogRecord{
				ID:        string(item.Key()[len(keyPrefix):]),
				FileURL:   doc.FileURL,
				Folder:    doc.Folder,
				CreatedAt: doc.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Ping reports an error once the store has been closed.
func (r *CatalogBadger) Ping(ctx context.Context) error {
	if r.db.IsClosed() {
		return errClosed
	}
	return nil
}

// Close flushes and closes the store.
func (r *CatalogBadger) Close() error {
	return r.db.Close()
}

// badgerLogger routes Badger's printf-style logging into zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any)   { l.log.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...any) { l.log.Warn().Msgf(f, v...) }
func (l badgerLogger) Infof(f string, v ...any)    { l.log.Info().Msgf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...any)   { l.log.Debug().Msgf(f, v...) }
