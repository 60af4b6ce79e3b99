package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr         string        `envconfig:"ADDR" split_words:"true" default:"localhost:6379"`
	Password     string        `envconfig:"PASSWORD" split_words:"true"`
	DB           int           `envconfig:"DB" split_words:"true" default:"0"`
	PoolSize     int           `envconfig:"POOL_SIZE" split_words:"true" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"3s"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" split_words:"true" default:"studybuddy:student:"`
	TTL          time.Duration `envconfig:"TTL" split_words:"true" default:"0s"`
}

// RedisPersister stores student records as JSON strings in Redis.
type RedisPersister struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisPersister dials Redis and pings it once.
func NewRedisPersister(ctx context.Context, cfg RedisConfig) (*RedisPersister, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisPersisterFromClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

func NewRedisPersisterFromClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisPersister {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisPersister{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (p *RedisPersister) Load(ctx context.Context, studentID string) (*Record, error) {
	if studentID == "" {
		return nil, ErrInvalidStudent
	}
	raw, err := p.client.Get(ctx, p.key(studentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeRecord(raw)
}

func (p *RedisPersister) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Profile == nil {
		return ErrNilRecord
	}
	if rec.Profile.StudentID == "" {
		return ErrInvalidStudent
	}
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, p.key(rec.Profile.StudentID), payload, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (p *RedisPersister) Close() error {
	return p.client.Close()
}

func (p *RedisPersister) key(studentID string) string {
	return p.keyPrefix + studentID
}
