// Package ledger owns the authoritative, insertion-ordered collection of
// transactions and keeps it persisted after every mutation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"saldo/internal/core"
	"saldo/internal/kv"
)

// maxIDAttempts bounds generator retries before falling back to max(id)+1.
const maxIDAttempts = 1000

var (
	ErrNotFound      = errors.New("transaction not found")
	ErrPersistWrite  = errors.New("persist ledger")
	ErrNoPersistence = errors.New("no persistence adapter")
)

// WriteError reports that a mutation was applied in memory but the
// following persistence write failed. The in-memory ledger stays the
// source of truth for the session.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return ErrPersistWrite.Error() + ": " + e.Err.Error() }

func (e *WriteError) Unwrap() []error { return []error{ErrPersistWrite, e.Err} }

// Store is not safe for concurrent use; callers serialize access.
type Store struct {
	kv       kv.Store
	key      string
	ids      IDGenerator
	taxonomy *core.Taxonomy
	notation core.Notation
	logger   *slog.Logger

	txs []core.Transaction
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides DefaultKey.
func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithIDGenerator overrides the random generator.
func WithIDGenerator(g IDGenerator) Option { return func(s *Store) { s.ids = g } }

// WithTaxonomy makes Add and Update reject unknown categories.
func WithTaxonomy(t *core.Taxonomy) Option { return func(s *Store) { s.taxonomy = t } }

// WithNotation sets how amount text is read. The default is core.DotDecimal.
func WithNotation(n core.Notation) Option { return func(s *Store) { s.notation = n } }

// WithLogger sets the logger used for degraded reads and writes.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New returns an empty store persisting through adapter.
func New(adapter kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     adapter,
		key:      DefaultKey,
		ids:      NewRandomIDs(),
		notation: core.DotDecimal,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the persistence key.
func (s *Store) Key() string { return s.key }

// Open reads the persisted payload and loads it. Read failures degrade to
// an empty ledger and are only logged.
func (s *Store) Open(ctx context.Context) []core.Transaction {
	if s.kv == nil {
		s.txs = nil
		return s.Snapshot()
	}
	payload, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.WarnContext(ctx, "Ledger read failed, starting empty", "key", s.key, "error", err)
		s.txs = nil
		return s.Snapshot()
	}
	if !ok {
		s.txs = nil
		return s.Snapshot()
	}
	return s.Load(payload)
}

// Load replaces the ledger with the decoded payload. An absent or malformed
// payload yields an empty ledger; no error reaches the caller.
func (s *Store) Load(payload []byte) []core.Transaction {
	s.txs = nil
	if len(payload) == 0 {
		return s.Snapshot()
	}
	txs, err := Decode(payload)
	if err != nil {
		s.logger.Warn("Malformed ledger payload, starting empty", "key", s.key, "error", err, "bytes", len(payload))
		return s.Snapshot()
	}
	s.txs = txs
	return s.Snapshot()
}

// Add validates in, assigns a fresh id, appends and persists.
// A *WriteError is returned together with the stored transaction when only
// the write failed.
func (s *Store) Add(ctx context.Context, in core.Input) (core.Transaction, error) {
	d, err := s.notation.ParseInput(in, s.taxonomy)
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{ID: s.nextID()}.Apply(d)
	s.txs = append(s.txs, t)
	return t, s.persist(ctx)
}

// Update replaces every field but the id of the matching transaction.
func (s *Store) Update(ctx context.Context, id int64, in core.Input) (core.Transaction, error) {
	d, err := s.notation.ParseInput(in, s.taxonomy)
	if err != nil {
		return core.Transaction{}, err
	}
	i := s.index(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("update %d: %w", id, ErrNotFound)
	}
	s.txs[i] = s.txs[i].Apply(d)
	return s.txs[i], s.persist(ctx)
}

// Remove deletes the matching transaction and reports whether one existed.
// The ledger is persisted either way.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	i := s.index(id)
	if i >= 0 {
		s.txs = slices.Delete(s.txs, i, i+1)
	}
	return i >= 0, s.persist(ctx)
}

// Get returns the transaction with the given id.
func (s *Store) Get(id int64) (core.Transaction, bool) {
	i := s.index(id)
	if i < 0 {
		return core.Transaction{}, false
	}
	return s.txs[i], true
}

// Snapshot returns a copy of the ledger in insertion order.
func (s *Store) Snapshot() []core.Transaction {
	return slices.Clone(s.txs)
}

// Len returns the number of transactions.
func (s *Store) Len() int { return len(s.txs) }

func (s *Store) index(id int64) int {
	return slices.IndexFunc(s.txs, func(t core.Transaction) bool { return t.ID == id })
}

func (s *Store) nextID() int64 {
	used := make(map[int64]struct{}, len(s.txs))
	var maxID int64 = -1
	for _, t := range s.txs {
		used[t.ID] = struct{}{}
		maxID = max(maxID, t.ID)
	}
	for range maxIDAttempts {
		id := s.ids.Next()
		if _, taken := used[id]; !taken {
			return id
		}
	}
	s.logger.Warn("ID generator kept colliding, using max+1", "attempts", maxIDAttempts, "size", len(s.txs))
	return maxID + 1
}

func (s *Store) persist(ctx context.Context) error {
	if s.kv == nil {
		return &WriteError{Err: ErrNoPersistence}
	}
	payload, err := Encode(s.txs)
	if err != nil {
		return &WriteError{Err: err}
	}
	if err := s.kv.Set(ctx, s.key, payload); err != nil {
		s.logger.ErrorContext(ctx, "Ledger write failed", "key", s.key, "error", err)
		return &WriteError{Err: err}
	}
	return nil
}
