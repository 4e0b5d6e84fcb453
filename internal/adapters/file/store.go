package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
)

// Store implements ports.ProgramStore using the local filesystem.
// Each robot's program is one JSON file in BasePath.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".botlink/programs".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".botlink", "programs")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(robot string) (string, error) {
	if robot == "" {
		return "", fmt.Errorf("robot cannot be empty")
	}
	if strings.ContainsAny(robot, `/\`) || robot == "." || robot == ".." {
		return "", fmt.Errorf("invalid robot name %q", robot)
	}
	return filepath.Join(s.BasePath, robot+".json"), nil
}

// Save writes the program atomically: temp file, fsync, rename.
func (s *Store) Save(ctx context.Context, robot string, program *ast.Program) error {
	destPath, err := s.path(robot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure program directory: %w", err)
	}

	data, err := json.MarshalIndent(program, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal program: %w", err)
	}

	// Same directory keeps the rename on one filesystem
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+robot+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing program file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the program file.
func (s *Store) Load(ctx context.Context, robot string) (*ast.Program, error) {
	filePath, err := s.path(robot)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrProgramNotFound
		}
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}

	program, err := ast.DecodeProgram(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode program file: %w", err)
	}
	return program, nil
}

// Delete removes the program file. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, robot string) error {
	filePath, err := s.path(robot)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete program file: %w", err)
	}
	return nil
}

// List returns the robots with a stored program.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}

	robots := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		robots = append(robots, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(robots)
	return robots, nil
}
