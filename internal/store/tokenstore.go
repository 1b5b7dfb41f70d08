// Package store provides the optional persistence backends an ObjectData
// can be configured with: a Redis-backed AuthTokenStore so an auth token
// set on one server process is visible to a peer process sharing the same
// ObjectData address, and a Mongo-backed audit log for generic/typed call
// records. Grounded on the teacher's infra/redis and infra/mongo clients,
// trimmed to the handful of operations this domain needs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phuhao00/czrpc/config"
)

// RedisTokenStore satisfies rpc.AuthTokenStore, letting an ObjectData's
// auth token survive across the process restarts of whichever server owns
// the target object, and be visible to any other process that acquires
// the same ObjectData address (e.g. a gateway and a game node both
// fronting the same player object).
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTokenStore dials cfg.Redis the same way the teacher's
// redisx.NewRedisClient does, minus the Sentinel branch — the sample
// server only ever talks to a single Redis instance.
func NewRedisTokenStore(cfg config.RedisConfig, ttl time.Duration) (*RedisTokenStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("store: redis addr is not configured")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisTokenStore{client: client, ttl: ttl}, nil
}

// Get implements rpc.AuthTokenStore.
func (s *RedisTokenStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements rpc.AuthTokenStore.
func (s *RedisTokenStore) Set(key, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("store: redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}

// CallRecord is one audited RPC invocation: which method, on which
// connection, when, and whether it resulted in an exception. RequestID
// is assigned by NewCallRecord so records can be correlated with logs
// emitted elsewhere for the same call.
type CallRecord struct {
	RequestID string    `bson:"request_id"`
	SessionID string    `bson:"session_id"`
	Method    string    `bson:"method"`
	Exception string    `bson:"exception,omitempty"`
	Aborted   bool      `bson:"aborted"`
	At        time.Time `bson:"at"`
}

// NewCallRecord stamps a CallRecord with a fresh request id and the
// current time.
func NewCallRecord(sessionID, method string) CallRecord {
	return CallRecord{RequestID: uuid.NewString(), SessionID: sessionID, Method: method, At: time.Now()}
}

// CallAuditLog persists CallRecords to Mongo, grounded on the teacher's
// mongo.MongoClient — one collection, written by Record and read back
// per session by Recent.
type CallAuditLog struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewCallAuditLog connects to cfg.URI the way the teacher's
// mongo.NewMongoClient does for its URI case and opens the single
// cfg.Database/cfg.Collection collection; there is no host-list or
// separate auth option.
func NewCallAuditLog(cfg config.MongoConfig) (*CallAuditLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.URI == "" {
		return nil, fmt.Errorf("store: mongo uri is not configured")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("store: mongo connect: %w", err)
	}
	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	return &CallAuditLog{client: client, collection: collection}, nil
}

// Record inserts one CallRecord. Audit failures never fail the RPC itself
// — callers log the error and continue.
func (a *CallAuditLog) Record(ctx context.Context, rec CallRecord) error {
	if _, err := a.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("store: insert call record: %w", err)
	}
	return nil
}

// Recent returns the most recent audit records for a session, newest
// first, bounded by limit.
func (a *CallAuditLog) Recent(ctx context.Context, sessionID string, limit int64) ([]CallRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit)
	cur, err := a.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: find call records: %w", err)
	}
	defer cur.Close(ctx)

	var out []CallRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("store: decode call records: %w", err)
	}
	return out, nil
}

// Disconnect releases the underlying Mongo client.
func (a *CallAuditLog) Disconnect(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
