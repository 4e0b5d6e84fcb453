package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "botlink:program:"

// Store implements ports.ProgramStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for stored programs.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying connection so a Locker can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(robot string) string {
	return s.prefix + robot
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save stores the program and indexes the robot by expiry.
func (s *Store) Save(ctx context.Context, robot string, program *ast.Program) error {
	data, err := json.Marshal(program)
	if err != nil {
		return fmt.Errorf("failed to marshal program: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(robot), data, s.ttl)

	// Without a TTL the entry never expires from the index
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: robot})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the program.
func (s *Store) Load(ctx context.Context, robot string) (*ast.Program, error) {
	val, err := s.client.Get(ctx, s.key(robot)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrProgramNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	program, err := ast.DecodeProgram(val)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored program: %w", err)
	}
	return program, nil
}

// Delete removes the program and its index entry.
func (s *Store) Delete(ctx context.Context, robot string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(robot))
	pipe.ZRem(ctx, s.indexKey(), robot)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns robots whose program has not expired, pruning the index as it goes.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired programs: %w", err)
	}

	robots, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	return robots, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
