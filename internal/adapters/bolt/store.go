// Package bolt stores programs in an embedded bbolt database, one key per robot.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

var bucket = []byte("programs")

// Store implements ports.ProgramStore on a bbolt file.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to ensure database directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes the program under the robot key.
func (s *Store) Save(ctx context.Context, robot string, program *ast.Program) error {
	if robot == "" {
		return fmt.Errorf("robot cannot be empty")
	}
	data, err := json.Marshal(program)
	if err != nil {
		return fmt.Errorf("failed to marshal program: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(robot), data)
	})
}

// Load reads the program for robot.
func (s *Store) Load(ctx context.Context, robot string) (*ast.Program, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// Values are only valid inside the transaction
		if v := tx.Bucket(bucket).Get([]byte(robot)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, domain.ErrProgramNotFound
	}
	return ast.DecodeProgram(data)
}

// Delete removes the robot key.
func (s *Store) Delete(ctx context.Context, robot string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(robot))
	})
}

// List returns the stored robots in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	robots := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			robots = append(robots, string(k))
		}
		return nil
	})
	return robots, err
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
