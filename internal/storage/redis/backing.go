package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dtroode/gophdate-session/internal/model"
)

// Config holds redis connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a redis client and checks the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

var _ model.Backing = (*Backing)(nil)

// Backing stores the credential record as a redis hash.
type Backing struct {
	client redis.Cmdable
	key    string
}

// NewBacking creates a backing storing the record under "<prefix>:<namespace>".
func NewBacking(client redis.Cmdable, prefix, namespace string) *Backing {
	return &Backing{client: client, key: hashKey(prefix, namespace)}
}

func hashKey(prefix, namespace string) string {
	return fmt.Sprintf("%s:%s", prefix, namespace)
}

// Name returns the backing name.
func (b *Backing) Name() string {
	return "redis"
}

// Read loads the record hash. A missing key yields an empty record.
func (b *Backing) Read(ctx context.Context) (model.Record, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return model.Record{}, fmt.Errorf("failed to read credentials hash: %w", err)
	}
	return recordFromHash(fields), nil
}

// Write replaces the hash inside a MULTI/EXEC transaction.
func (b *Backing) Write(ctx context.Context, record model.Record) error {
	fields := hashFromRecord(record)

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key)
		if len(fields) > 0 {
			pipe.HSet(ctx, b.key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write credentials hash: %w", err)
	}
	return nil
}

// Clear deletes the hash.
func (b *Backing) Clear(ctx context.Context) error {
	if err := b.client.Del(ctx, b.key).Err(); err != nil {
		return fmt.Errorf("failed to delete credentials hash: %w", err)
	}
	return nil
}

func hashFromRecord(record model.Record) map[string]interface{} {
	fields := make(map[string]interface{}, 4)
	for key, value := range map[string]string{
		model.KeyAuthToken:    record.AuthToken,
		model.KeyRefreshToken: record.RefreshToken,
		model.KeyUser:         record.User,
		model.KeyUserID:       record.UserID,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

func recordFromHash(fields map[string]string) model.Record {
	return model.Record{
		AuthToken:    fields[model.KeyAuthToken],
		RefreshToken: fields[model.KeyRefreshToken],
		User:         fields[model.KeyUser],
		UserID:       fields[model.KeyUserID],
	}
}
