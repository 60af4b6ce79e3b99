package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tharun007-TK/studybuddy-ai-agent/pkg/upstash"
)

const defaultKeyPrefix = "studybuddy:student:"

// UpstashOption customizes UpstashPersister.
type UpstashOption func(*UpstashPersister)

func WithKeyPrefix(prefix string) UpstashOption {
	return func(s *UpstashPersister) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

// WithTTL expires idle student records. Zero keeps them forever.
func WithTTL(ttl time.Duration) UpstashOption {
	return func(s *UpstashPersister) {
		s.ttl = ttl
	}
}

// UpstashPersister stores student records in Upstash Redis via REST.
type UpstashPersister struct {
	client    *upstash.Client
	keyPrefix string
	ttl       time.Duration
}

func NewUpstashPersister(client *upstash.Client, opts ...UpstashOption) (*UpstashPersister, error) {
	if client == nil {
		return nil, errors.New("upstash client is nil")
	}
	p := &UpstashPersister{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return p, nil
}

func (s *UpstashPersister) Load(ctx context.Context, studentID string) (*Record, error) {
	key, err := s.redisKey(studentID)
	if err != nil {
		return nil, err
	}
	encoded, ok, err := s.client.GetString(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordNotFound
	}
	return decodeRecord([]byte(encoded))
}

func (s *UpstashPersister) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Profile == nil {
		return ErrNilRecord
	}
	key, err := s.redisKey(rec.Profile.StudentID)
	if err != nil {
		return err
	}
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, string(payload), s.ttl)
}

func (s *UpstashPersister) redisKey(studentID string) (string, error) {
	if strings.TrimSpace(studentID) == "" {
		return "", ErrInvalidStudent
	}
	return s.keyPrefix + studentID, nil
}

func encodeRecord(rec *Record) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal student record: %w", err)
	}
	return payload, nil
}

func decodeRecord(raw []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal student record: %w", err)
	}
	if err := rec.normalize(); err != nil {
		return nil, fmt.Errorf("invalid student record: %w", err)
	}
	return &rec, nil
}
