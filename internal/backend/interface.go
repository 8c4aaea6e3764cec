package backend

import (
	"context"

	"saldo/internal/kv"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult is a ready persistence adapter.
type BackendResult struct {
	Store   kv.Store
	Cleanup CleanupFunc

	// IncomeCategories and ExpenseCategories are seeds found next to the
	// data (memory backend only). Empty when none were found.
	IncomeCategories  []string
	ExpenseCategories []string
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
