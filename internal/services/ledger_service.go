package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"saldo/internal/amqp"
	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/format"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/report"
)

// EmptyMessage is shown in place of the listing when no transaction matches.
const EmptyMessage = "No transactions yet."

// CommandKind names a ledger command.
type CommandKind string

const (
	CommandAdd    CommandKind = "add"
	CommandUpdate CommandKind = "update"
	CommandRemove CommandKind = "remove"
	CommandSearch CommandKind = "search"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is one user action. ID is used by update and remove, Input by
// add and update, Term by search.
type Command struct {
	Kind  CommandKind
	ID    int64
	Input core.Input
	Term  string
}

// Result is everything a renderer needs after a command: the aggregates of
// the whole ledger and the filtered, date-sorted listing.
type Result struct {
	Summary      core.Summary          `json:"summary"`
	Balance      string                `json:"balance"`
	Income       string                `json:"income"`
	Expense      string                `json:"expense"`
	Transactions []core.Transaction    `json:"transactions"`
	Rows         []format.Row          `json:"rows"`
	Distribution []core.CategoryAmount `json:"distribution"`
	SearchTerm   string                `json:"search_term"`
	EmptyMessage string                `json:"empty_message,omitempty"`
	// Warning is set when the mutation applied but could not be persisted.
	Warning string `json:"warning,omitempty"`

	// Affected is the transaction created or updated by the command.
	Affected *core.Transaction `json:"affected,omitempty"`
	// Removed reports whether a remove command found its transaction.
	Removed bool `json:"removed,omitempty"`
}

// ChangeNotifier is told about every persisted mutation.
type ChangeNotifier interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// LedgerService is the single actor in front of a ledger.Store. Every method
// holds one lock, so a command and its recomputation never interleave with
// another command.
type LedgerService struct {
	mu        sync.Mutex
	store     *ledger.Store
	formatter *format.Formatter
	taxonomy  *core.Taxonomy
	views     cache.Cache[[]core.Transaction]
	notifier  ChangeNotifier
	logger    *slog.Logger
	term      string
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithViewCache memoizes listings per search term.
func WithViewCache(c cache.Cache[[]core.Transaction]) Option {
	return func(s *LedgerService) { s.views = c }
}

// WithNotifier publishes a change message after each persisted mutation.
func WithNotifier(n ChangeNotifier) Option {
	return func(s *LedgerService) { s.notifier = n }
}

// WithTaxonomy sets the categories returned by Categories.
func WithTaxonomy(t *core.Taxonomy) Option {
	return func(s *LedgerService) { s.taxonomy = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func NewLedgerService(store *ledger.Store, formatter *format.Formatter, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:     store,
		formatter: formatter,
		taxonomy:  core.DefaultTaxonomy(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.formatter == nil {
		s.formatter = format.Must(format.DefaultConfig())
	}
	s.logger = s.logger.With(log.FieldComponent, log.ComponentLedger)
	return s
}

// Open loads the persisted ledger and returns the initial view.
func (s *LedgerService) Open(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := s.store.Open(ctx)
	s.invalidate()
	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldLedgerKey, s.store.Key(),
		log.FieldCount, len(txs))
	return s.result()
}

// Dispatch applies cmd and returns the recomputed view. Validation and
// not-found errors leave the ledger untouched and return a zero Result.
// A failed write is reported through Result.Warning with a nil error.
func (s *LedgerService) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Kind {
	case CommandAdd:
		t, err := s.store.Add(ctx, cmd.Input)
		return s.afterMutation(ctx, log.OpAdd, t, true, err)
	case CommandUpdate:
		t, err := s.store.Update(ctx, cmd.ID, cmd.Input)
		return s.afterMutation(ctx, log.OpUpdate, t, true, err)
	case CommandRemove:
		removed, err := s.store.Remove(ctx, cmd.ID)
		res, err := s.afterMutation(ctx, log.OpRemove, core.Transaction{ID: cmd.ID}, removed, err)
		res.Removed = removed
		return res, err
	case CommandSearch:
		s.term = cmd.Term
		s.logger.DebugContext(ctx, "Search term changed", log.FieldSearchTerm, cmd.Term)
		return s.result(), nil
	default:
		return Result{}, fmt.Errorf("dispatch %q: %w", cmd.Kind, ErrUnknownCommand)
	}
}

// Add is Dispatch with CommandAdd.
func (s *LedgerService) Add(ctx context.Context, in core.Input) (Result, error) {
	return s.Dispatch(ctx, Command{Kind: CommandAdd, Input: in})
}

// Update is Dispatch with CommandUpdate.
func (s *LedgerService) Update(ctx context.Context, id int64, in core.Input) (Result, error) {
	return s.Dispatch(ctx, Command{Kind: CommandUpdate, ID: id, Input: in})
}

// Remove is Dispatch with CommandRemove.
func (s *LedgerService) Remove(ctx context.Context, id int64) (Result, error) {
	return s.Dispatch(ctx, Command{Kind: CommandRemove, ID: id})
}

// Search is Dispatch with CommandSearch.
func (s *LedgerService) Search(ctx context.Context, term string) Result {
	res, _ := s.Dispatch(ctx, Command{Kind: CommandSearch, Term: term})
	return res
}

// View returns the listing for term without changing the current term.
func (s *LedgerService) View(term string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultFor(term)
}

// Get returns one transaction, e.g. to pre-fill an edit form.
func (s *LedgerService) Get(id int64) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(id)
}

// Categories returns the recognized categories.
func (s *LedgerService) Categories() *core.Taxonomy {
	return s.taxonomy
}

// Formatter returns the formatter used for Result strings.
func (s *LedgerService) Formatter() *format.Formatter {
	return s.formatter
}

func (s *LedgerService) afterMutation(ctx context.Context, op string, t core.Transaction, changed bool, err error) (Result, error) {
	var writeErr *ledger.WriteError
	switch {
	case err == nil:
	case errors.As(err, &writeErr):
	default:
		return Result{}, err
	}

	s.invalidate()
	res := s.result()
	if changed && op != log.OpRemove {
		res.Affected = &t
	}

	fields := log.NewFields().WithOperation(op)
	if op == log.OpRemove {
		fields[log.FieldTransactionID] = t.ID
	} else {
		fields.WithTransaction(t)
	}
	fields[log.FieldLedgerKey] = s.store.Key()
	if writeErr != nil {
		res.Warning = "Changes could not be saved: " + writeErr.Err.Error()
		s.logger.WarnContext(ctx, "Ledger changed in memory only", fields.WithError(writeErr).ToSlice()...)
		return res, nil
	}
	s.logger.InfoContext(ctx, "Ledger changed", fields.ToSlice()...)

	if changed {
		s.notify(ctx, op, t.ID)
	}
	return res, nil
}

func (s *LedgerService) notify(ctx context.Context, op string, id int64) {
	if s.notifier == nil {
		return
	}
	msg := amqp.NewLedgerChangedMessage(s.store.Key(), op, id, s.store.Len())
	if err := s.notifier.PublishLedgerChanged(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.FieldOperation, op,
			log.FieldTransactionID, id,
			log.FieldError, err)
	}
}

func (s *LedgerService) invalidate() {
	if s.views != nil {
		s.views.Purge()
	}
}

func (s *LedgerService) result() Result {
	return s.resultFor(s.term)
}

func (s *LedgerService) resultFor(term string) Result {
	snap := s.store.Snapshot()
	summary := report.Summarize(snap)

	var view []core.Transaction
	cached := false
	if s.views != nil {
		view, cached = s.views.Get(term)
	}
	if !cached {
		view = report.View(snap, term)
		if s.views != nil {
			s.views.Set(term, view)
		}
	}
	view = slices.Clone(view)

	distribution := summary.ByCategory
	if distribution == nil {
		distribution = []core.CategoryAmount{}
	}

	res := Result{
		Summary:      summary,
		Balance:      s.formatter.Money(summary.Balance),
		Income:       s.formatter.Money(summary.Income),
		Expense:      s.formatter.Money(summary.Expense),
		Transactions: view,
		Rows:         s.formatter.Rows(view),
		Distribution: distribution,
		SearchTerm:   term,
	}
	if len(view) == 0 {
		res.EmptyMessage = EmptyMessage
	}
	return res
}
