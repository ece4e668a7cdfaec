package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bilancio/internal/storage"
)

// Store keeps snapshot entries in process memory. Contents are lost on exit.
type Store struct {
	mu      sync.Mutex
	entries map[string][]byte
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{entries: make(map[string][]byte)}
}

// NewFromFiles returns a Store whose categories entry is pre-seeded from
// base/seed_categories.txt. Without the file the store starts empty and the
// ledger falls back to its default categories.
func NewFromFiles(base string) *Store {
	s := New()
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		return s
	}
	b, err := json.Marshal(cats)
	if err != nil {
		return s
	}
	s.entries[storage.KeyCategories] = b
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Put(_ context.Context, entries ...storage.Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return storage.ErrEmptyKey
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.Key] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (s *Store) Close() error { return nil }

// readLines returns the distinct non-blank lines of path, skipping # comments.
func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	return lines
}
