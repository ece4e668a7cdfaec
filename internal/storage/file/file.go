// Package file keeps every snapshot entry in a single JSON document inside a
// data directory. A Put rewrites the document into a temporary file and
// renames it into place, so either all entries of the call land or none do.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bilancio/internal/storage"
)

// FileName is the snapshot document inside the data directory.
const FileName = "ledger.json"

// ErrNotJSON is returned by Put for values that are not valid JSON.
var ErrNotJSON = errors.New("entry value is not valid JSON")

type Store struct {
	mu   sync.Mutex
	dir  string
	path string
}

var _ storage.Store = (*Store)(nil)

// New creates dir when missing and returns a Store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir, path: filepath.Join(dir, FileName)}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, storage.ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

// Put merges entries into the current document and commits it with one rename.
func (s *Store) Put(ctx context.Context, entries ...storage.Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return storage.ErrEmptyKey
		}
		if !json.Valid(e.Value) {
			return fmt.Errorf("%w: %q", ErrNotJSON, e.Key)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for _, e := range entries {
		doc[e.Key] = json.RawMessage(append([]byte(nil), e.Value...))
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(b)
}

func (s *Store) Close() error { return nil }

// load reads the document. A missing file is an empty document.
func (s *Store) load() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", FileName, err)
	}
	return doc, nil
}

func (s *Store) commit(b []byte) error {
	f, err := os.CreateTemp(s.dir, "."+FileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	fail := func(step string, err error) error {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%s %s: %w", step, FileName, err)
	}

	if _, err := f.Write(b); err != nil {
		return fail("write", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", FileName, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", FileName, err)
	}
	return nil
}
