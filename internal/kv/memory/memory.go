package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"saldo/internal/kv"
)

var _ kv.Store = (*Store)(nil)

// Store keeps values in process memory. Values are copied on the way in and
// out so callers cannot alias stored bytes.
type Store struct {
	mu     sync.Mutex
	values map[string][]byte
	writes int
}

func New() *Store {
	return &Store{values: map[string][]byte{}}
}

// NewSeeded returns a store pre-populated with the given entries.
func NewSeeded(entries map[string][]byte) *Store {
	s := New()
	for k, v := range entries {
		s.values[k] = append([]byte(nil), v...)
	}
	return s
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	s.writes++
	return nil
}

// Writes returns how many Set calls succeeded.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ReadCategoryFiles reads seed_income_categories.txt and
// seed_expense_categories.txt from base. Missing files yield nil slices.
func ReadCategoryFiles(base string) (income, expense []string) {
	income = readLines(filepath.Join(base, "seed_income_categories.txt"))
	expense = readLines(filepath.Join(base, "seed_expense_categories.txt"))
	return income, expense
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
