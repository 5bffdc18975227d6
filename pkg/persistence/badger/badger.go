package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/adstack-labs/fraud-oracle-go/pkg/persistence"
	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// Key prefixes for namespacing
const (
	keyPrefixPrediction  = "prediction:"
	keyPrefixPublisher   = "publisher:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerStore is a production-ready prediction store using Badger.
// Provides durable, disk-based storage with ACID guarantees.
type BadgerStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerStore creates a new Badger-backed prediction store.
// The database is opened at the specified path with SyncWrites enabled for
// durability. A background goroutine is started for garbage collection.
func NewBadgerStore(dataPath string, logger *zap.Logger) (*BadgerStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // fsync on every write
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bs := &BadgerStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger prediction store initialized", "path", absPath)

	return bs, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			// First time setup
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// predictionKey builds the primary key for a record
func predictionKey(predictionID string) []byte {
	return []byte(keyPrefixPrediction + predictionID)
}

// publisherKey builds the publisher index key for a record. The index maps a
// publisher to its prediction IDs so publisher listings avoid a full scan.
func publisherKey(publisherID, predictionID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", keyPrefixPublisher, publisherID, predictionID))
}

// SavePrediction persists a prediction record and its publisher index entry
func (b *BadgerStore) SavePrediction(record *types.PredictionRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil PredictionRecord")
	}
	if record.PredictionID == "" {
		return fmt.Errorf("cannot save PredictionRecord without a prediction ID")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("prediction store is closed")
	}

	data, err := persistence.MarshalPredictionRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal PredictionRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(predictionKey(record.PredictionID), data); err != nil {
			return err
		}
		return txn.Set(publisherKey(record.PublisherID, record.PredictionID), []byte(record.PredictionID))
	})
}

// GetPrediction retrieves a prediction record by ID
func (b *BadgerStore) GetPrediction(predictionID string) (*types.PredictionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("prediction store is closed")
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(predictionKey(predictionID))
		if err == badgerdb.ErrKeyNotFound {
			return nil // Not found is not an error
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...) // Copy value
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to load PredictionRecord: %w", err)
	}

	if data == nil {
		return nil, nil // Not found
	}

	record, err := persistence.UnmarshalPredictionRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal PredictionRecord: %w", err)
	}

	return record, nil
}

// ListPredictions returns predictions sorted by creation time, newest first
func (b *BadgerStore) ListPredictions(limit int) ([]*types.PredictionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("prediction store is closed")
	}

	records, err := b.scanPrefix(keyPrefixPrediction)
	if err != nil {
		return nil, fmt.Errorf("failed to list PredictionRecords: %w", err)
	}

	persistence.SortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// ListPredictionsByPublisher returns the publisher's predictions, newest first
func (b *BadgerStore) ListPredictionsByPublisher(publisherID string) ([]*types.PredictionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("prediction store is closed")
	}

	// Collect prediction IDs from the publisher index
	var ids []string
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixPublisher + publisherID + ":")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read index value: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan publisher index: %w", err)
	}

	records := make([]*types.PredictionRecord, 0, len(ids))
	for _, id := range ids {
		var data []byte
		err := b.db.View(func(txn *badgerdb.Txn) error {
			item, err := txn.Get(predictionKey(id))
			if err == badgerdb.ErrKeyNotFound {
				return nil // index entry without record, skip
			}
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load indexed PredictionRecord: %w", err)
		}
		if data == nil {
			continue
		}

		record, err := persistence.UnmarshalPredictionRecord(data)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal PredictionRecord, skipping",
				"prediction_id", id, "error", err)
			continue
		}
		records = append(records, record)
	}

	persistence.SortNewestFirst(records)

	return records, nil
}

// PublisherHistory aggregates the publisher's stored predictions
func (b *BadgerStore) PublisherHistory(publisherID string) (*types.PublisherHistory, error) {
	records, err := b.ListPredictionsByPublisher(publisherID)
	if err != nil {
		return nil, err
	}

	return persistence.AggregateHistory(publisherID, records), nil
}

// scanPrefix loads and unmarshals every record under the prefix
func (b *BadgerStore) scanPrefix(prefix string) ([]*types.PredictionRecord, error) {
	var records []*types.PredictionRecord

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...) // Copy value
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := persistence.UnmarshalPredictionRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal PredictionRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}

			records = append(records, record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Close shuts down the store
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil // Already closed, idempotent
	}
	b.closed = true
	b.mu.Unlock()

	// Stop GC goroutine
	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger prediction store closed")
	return nil
}

// HealthCheck verifies the store is operational
func (b *BadgerStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("prediction store is closed")
	}

	// A simple read verifies the database is accessible
	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}

var _ persistence.IPredictionStore = (*BadgerStore)(nil)
