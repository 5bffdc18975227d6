package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adstack-labs/fraud-oracle-go/pkg/persistence"
	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixPrediction  = "oracle:prediction:"
	keySchemaVersion     = "oracle:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Index sets for listing operations (Redis doesn't support prefix
	// iteration natively)
	keySetPredictions      = "oracle:predictions:index"
	keySetPublisherPattern = "oracle:publisher:%s:index"
)

// RedisStore is a production-ready prediction store using Redis.
// Provides durable, distributed storage suitable for cloud-native deployments.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant
	// setups). If set, it is prepended to every key, e.g. "myapp:" results in
	// keys like "myapp:oracle:prediction:<id>".
	KeyPrefix string
}

// NewRedisStore creates a new Redis-backed prediction store.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.KeyPrefix != "" {
		logger.Sugar().Infow("Redis prediction store initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	} else {
		logger.Sugar().Infow("Redis prediction store initialized", "address", cfg.Address, "db", cfg.DB)
	}

	return rs, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisStore) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisStore) predictionKey(predictionID string) string {
	return r.prefixKey(keyPrefixPrediction + predictionID)
}

func (r *RedisStore) publisherIndexKey(publisherID string) string {
	return r.prefixKey(fmt.Sprintf(keySetPublisherPattern, publisherID))
}

// initSchema initializes or validates the schema version
func (r *RedisStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		// First time setup
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SavePrediction persists a prediction record and its index entries
func (r *RedisStore) SavePrediction(record *types.PredictionRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil PredictionRecord")
	}
	if record.PredictionID == "" {
		return fmt.Errorf("cannot save PredictionRecord without a prediction ID")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("prediction store is closed")
	}

	ctx := context.Background()

	data, err := persistence.MarshalPredictionRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal PredictionRecord: %w", err)
	}

	// Store record and index entries using a pipeline for atomicity
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.predictionKey(record.PredictionID), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetPredictions), record.PredictionID)
	pipe.SAdd(ctx, r.publisherIndexKey(record.PublisherID), record.PredictionID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save PredictionRecord: %w", err)
	}

	return nil
}

// GetPrediction retrieves a prediction record by ID
func (r *RedisStore) GetPrediction(predictionID string) (*types.PredictionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("prediction store is closed")
	}

	ctx := context.Background()

	data, err := r.client.Get(ctx, r.predictionKey(predictionID)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load PredictionRecord: %w", err)
	}

	record, err := persistence.UnmarshalPredictionRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal PredictionRecord: %w", err)
	}

	return record, nil
}

// ListPredictions returns predictions sorted by creation time, newest first
func (r *RedisStore) ListPredictions(limit int) ([]*types.PredictionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("prediction store is closed")
	}

	records, err := r.loadIndexedRecords(context.Background(), r.prefixKey(keySetPredictions))
	if err != nil {
		return nil, err
	}

	persistence.SortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// ListPredictionsByPublisher returns the publisher's predictions, newest first
func (r *RedisStore) ListPredictionsByPublisher(publisherID string) ([]*types.PredictionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("prediction store is closed")
	}

	records, err := r.loadIndexedRecords(context.Background(), r.publisherIndexKey(publisherID))
	if err != nil {
		return nil, err
	}

	persistence.SortNewestFirst(records)

	return records, nil
}

// PublisherHistory aggregates the publisher's stored predictions
func (r *RedisStore) PublisherHistory(publisherID string) (*types.PublisherHistory, error) {
	records, err := r.ListPredictionsByPublisher(publisherID)
	if err != nil {
		return nil, err
	}

	return persistence.AggregateHistory(publisherID, records), nil
}

// loadIndexedRecords fetches all records referenced by an index set.
// Stale index entries (record deleted or unparseable) are skipped.
func (r *RedisStore) loadIndexedRecords(ctx context.Context, indexKey string) ([]*types.PredictionRecord, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index set %s: %w", indexKey, err)
	}

	records := make([]*types.PredictionRecord, 0, len(ids))
	for _, id := range ids {
		data, err := r.client.Get(ctx, r.predictionKey(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load indexed PredictionRecord: %w", err)
		}

		record, err := persistence.UnmarshalPredictionRecord(data)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal PredictionRecord, skipping",
				"prediction_id", id, "error", err)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// Close shuts down the store
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil // Already closed, idempotent
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis prediction store closed")
	return nil
}

// HealthCheck verifies the store is operational
func (r *RedisStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("prediction store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

var _ persistence.IPredictionStore = (*RedisStore)(nil)
