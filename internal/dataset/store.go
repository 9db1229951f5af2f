package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one listed dataset source.
type Entry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Store reads datasets from a single data directory.
type Store struct {
	dir string
}

// NewStore returns a Store confined to dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// ValidateIdentifier rejects names that could resolve outside the data directory.
func ValidateIdentifier(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// Load validates the identifier, reads the source and builds the Dataset.
func (s *Store) Load(name string) (*Dataset, error) {
	if err := ValidateIdentifier(name); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, &ParseError{Name: name, Err: err}
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Name: name, Err: err}
	}
	defer f.Close()

	t, err := readerFor(name).Read(f)
	if err != nil {
		return nil, &ParseError{Name: name, Err: err}
	}
	return Build(name, t)
}

// List returns every readable source in the data directory, in name order,
// numbered from 1.
func (s *Store) List() ([]Entry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	out := []Entry{}
	for _, e := range entries {
		if e.IsDir() || !supported(e.Name()) {
			continue
		}
		out = append(out, Entry{ID: len(out) + 1, Name: e.Name()})
	}
	return out, nil
}
