package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
)

// Store implements ports.ProgramStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Save persists the program in memory.
func (s *Store) Save(ctx context.Context, robot string, program *ast.Program) error {
	// Serialize to keep the stored copy isolated from the caller's tree
	data, err := json.Marshal(program)
	if err != nil {
		return fmt.Errorf("failed to marshal program: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[robot] = data
	return nil
}

// Load retrieves the program from memory.
func (s *Store) Load(ctx context.Context, robot string) (*ast.Program, error) {
	s.mu.RLock()
	data, ok := s.data[robot]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrProgramNotFound
	}
	return ast.DecodeProgram(data)
}

// Delete removes the program.
func (s *Store) Delete(ctx context.Context, robot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, robot)
	return nil
}

// List returns the robots with a stored program.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	robots := make([]string, 0, len(s.data))
	for id := range s.data {
		robots = append(robots, id)
	}
	sort.Strings(robots)
	return robots, nil
}
