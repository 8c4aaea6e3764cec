package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/format"
	"saldo/internal/kv/memory"
	"saldo/internal/ledger"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*amqp.LedgerChangedMessage
	err  error
}

func (n *recordingNotifier) PublishLedgerChanged(_ context.Context, msg *amqp.LedgerChangedMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

type flakyKV struct {
	*memory.Store
	fail bool
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("quota exceeded")
	}
	return f.Store.Set(ctx, key, value)
}

type fixture struct {
	svc      *LedgerService
	kv       *flakyKV
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newLocaleFixture(t, format.DefaultConfig())
}

func newLocaleFixture(t *testing.T, cfg format.Config) *fixture {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	formatter := format.Must(cfg)
	kv := &flakyKV{Store: memory.New()}
	store := ledger.New(kv,
		ledger.WithIDGenerator(ledger.NewSequenceIDs(1)),
		ledger.WithNotation(formatter.Notation()),
		ledger.WithLogger(quiet))
	n := &recordingNotifier{}
	svc := NewLedgerService(store, formatter,
		WithNotifier(n),
		WithViewCache(cache.NewLRUCache[[]core.Transaction](8, time.Minute)),
		WithLogger(quiet))
	svc.Open(context.Background())
	return &fixture{svc: svc, kv: kv, notifier: n}
}

func paycheck() core.Input {
	return core.Input{Text: "Paycheck", Amount: "1500.00", Category: "Salary", Date: "2024-01-05"}
}

func rent() core.Input {
	return core.Input{Text: "Rent", Amount: "-1200.00", Category: "Housing", Date: "2024-01-01"}
}

func texts(res Result) []string {
	out := make([]string, len(res.Transactions))
	for i, t := range res.Transactions {
		out[i] = t.Text
	}
	return out
}

func mustDispatch(t *testing.T, svc *LedgerService, cmd Command) Result {
	t.Helper()
	res, err := svc.Dispatch(context.Background(), cmd)
	if err != nil {
		t.Fatalf("%s: unexpected error %v", cmd.Kind, err)
	}
	return res
}

func TestOpenEmptyLedger(t *testing.T) {
	f := newFixture(t)
	res := f.svc.View("")
	if res.EmptyMessage != EmptyMessage {
		t.Fatalf("empty message = %q", res.EmptyMessage)
	}
	if res.Balance != "$0.00" || len(res.Distribution) != 0 || res.Distribution == nil {
		t.Fatalf("unexpected empty result %+v", res)
	}
}

func TestAddTwoEntries(t *testing.T) {
	f := newFixture(t)
	mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: paycheck()})
	res := mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: rent()})

	if res.Balance != "$300.00" || res.Income != "$1,500.00" || res.Expense != "$1,200.00" {
		t.Fatalf("totals = %s / %s / %s", res.Balance, res.Income, res.Expense)
	}
	if len(res.Distribution) != 1 || res.Distribution[0].Name != "Housing" ||
		!res.Distribution[0].Amount.Equal(core.MustMoney("1200")) {
		t.Fatalf("distribution = %+v", res.Distribution)
	}
	if got := texts(res); len(got) != 2 || got[0] != "Paycheck" || got[1] != "Rent" {
		t.Fatalf("listing = %v, want [Paycheck Rent]", got)
	}
	if res.EmptyMessage != "" {
		t.Fatalf("unexpected empty message")
	}
	if res.Affected == nil || res.Affected.Text != "Rent" {
		t.Fatalf("affected = %+v", res.Affected)
	}
	if len(f.notifier.msgs) != 2 || f.notifier.msgs[1].Operation != amqp.OperationAdd || f.notifier.msgs[1].Count != 2 {
		t.Fatalf("notifications = %+v", f.notifier.msgs)
	}
}

func TestAddReadsAmountsInLocaleNotation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     format.Config
		amount  string
		balance string
		wantErr bool
	}{
		{"en-US grouping", format.DefaultConfig(), "1,500", "$1,500.00", false},
		{"en-US grouped fraction", format.DefaultConfig(), "1,500.25", "$1,500.25", false},
		{"en-US misplaced comma", format.DefaultConfig(), "12,5", "", true},
		{"de-DE decimal comma", format.Config{Locale: "de-DE", CurrencyCode: "EUR"}, "12,5", "12,50 €", false},
		{"de-DE grouping", format.Config{Locale: "de-DE", CurrencyCode: "EUR"}, "1.500,00", "1.500,00 €", false},
		{"de-DE dot fraction", format.Config{Locale: "de-DE", CurrencyCode: "EUR"}, "12.5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLocaleFixture(t, tt.cfg)
			in := paycheck()
			in.Amount = tt.amount
			res, err := f.svc.Dispatch(context.Background(), Command{Kind: CommandAdd, Input: in})
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidation) || !errors.Is(err, core.ErrInvalidAmount) {
					t.Fatalf("Add(%q) error = %v, want invalid amount", tt.amount, err)
				}
				if got := f.svc.View(""); len(got.Transactions) != 0 {
					t.Fatalf("rejected amount was stored: %+v", got.Transactions)
				}
				return
			}
			if err != nil {
				t.Fatalf("Add(%q): %v", tt.amount, err)
			}
			if res.Balance != tt.balance {
				t.Fatalf("Add(%q) balance = %q, want %q", tt.amount, res.Balance, tt.balance)
			}
		})
	}
}

func TestLargeTotalsDisplayExactly(t *testing.T) {
	f := newFixture(t)
	small := paycheck()
	small.Amount = "1.50"
	big := paycheck()
	big.Amount = "12345678901234567.89"
	mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: small})
	res := mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: big})

	if !res.Summary.Balance.Equal(core.MustMoney("12345678901234569.39")) {
		t.Fatalf("summary balance = %s", res.Summary.Balance)
	}
	if res.Balance != "$12,345,678,901,234,569.39" || res.Income != res.Balance {
		t.Fatalf("displayed totals = %s / %s", res.Balance, res.Income)
	}
}

func TestEditEntry(t *testing.T) {
	f := newFixture(t)
	mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: paycheck()})
	added := mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: rent()})
	id := added.Affected.ID

	in := rent()
	in.Amount = "-1000.00"
	res := mustDispatch(t, f.svc, Command{Kind: CommandUpdate, ID: id, Input: in})

	if res.Balance != "$500.00" || res.Expense != "$1,000.00" {
		t.Fatalf("after edit balance=%s expense=%s", res.Balance, res.Expense)
	}
	if res.Affected.ID != id {
		t.Fatalf("id changed from %d to %d", id, res.Affected.ID)
	}

	// the persisted ledger matches memory
	payload, ok, _ := f.kv.Get(context.Background(), ledger.DefaultKey)
	if !ok {
		t.Fatal("nothing persisted")
	}
	stored, err := ledger.Decode(payload)
	if err != nil || len(stored) != 2 || !stored[1].Amount.Equal(core.MustMoney("-1000")) {
		t.Fatalf("persisted = %+v, %v", stored, err)
	}
}

func TestSearchKeepsTotals(t *testing.T) {
	f := newFixture(t)
	mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: paycheck()})
	mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: rent()})

	res := mustDispatch(t, f.svc, Command{Kind: CommandSearch, Term: "rent"})
	if got := texts(res); len(got) != 1 || got[0] != "Rent" {
		t.Fatalf("search listing = %v", got)
	}
	if res.Balance != "$300.00" || res.SearchTerm != "rent" {
		t.Fatalf("aggregates must ignore the search term: %+v", res)
	}

	// the term sticks across mutations and the cached view is refreshed
	more := rent()
	more.Text = "Garage rent"
	more.Amount = "-100"
	res = mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: more})
	if got := texts(res); len(got) != 2 {
		t.Fatalf("expected stale cache to be purged, got %v", got)
	}

	res = mustDispatch(t, f.svc, Command{Kind: CommandSearch, Term: "nothing matches"})
	if res.EmptyMessage != EmptyMessage || len(res.Transactions) != 0 {
		t.Fatalf("expected empty listing, got %v", texts(res))
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	added := mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: rent()})

	res := mustDispatch(t, f.svc, Command{Kind: CommandRemove, ID: added.Affected.ID})
	if !res.Removed || len(res.Transactions) != 0 || res.Balance != "$0.00" {
		t.Fatalf("after remove: %+v", res)
	}
	res = mustDispatch(t, f.svc, Command{Kind: CommandRemove, ID: added.Affected.ID})
	if res.Removed {
		t.Fatal("second remove should report nothing removed")
	}
	if len(f.notifier.msgs) != 2 || f.notifier.msgs[1].Operation != amqp.OperationRemove {
		t.Fatalf("notifications = %+v", f.notifier.msgs)
	}
}

func TestWriteFailureBecomesWarning(t *testing.T) {
	f := newFixture(t)
	f.kv.fail = true

	res, err := f.svc.Dispatch(context.Background(), Command{Kind: CommandAdd, Input: paycheck()})
	if err != nil {
		t.Fatalf("write failure should not be an error: %v", err)
	}
	if res.Warning == "" {
		t.Fatal("expected a warning")
	}
	if len(res.Transactions) != 1 || res.Balance != "$1,500.00" {
		t.Fatalf("memory should hold the new entry: %+v", res)
	}
	if len(f.notifier.msgs) != 0 {
		t.Fatal("unsaved changes must not be announced")
	}
	if _, ok, _ := f.kv.Get(context.Background(), ledger.DefaultKey); ok {
		t.Fatal("nothing should be persisted")
	}
}

func TestValidationAndNotFound(t *testing.T) {
	f := newFixture(t)
	mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: paycheck()})

	bad := core.Input{Text: " ", Amount: "abc", Category: "Salary", Date: "2024-13-01"}
	_, err := f.svc.Dispatch(context.Background(), Command{Kind: CommandAdd, Input: bad})
	if !errors.Is(err, core.ErrValidation) || !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = f.svc.Dispatch(context.Background(), Command{Kind: CommandUpdate, ID: 999, Input: rent()})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = f.svc.Dispatch(context.Background(), Command{Kind: "merge"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}

	if res := f.svc.View(""); len(res.Transactions) != 1 {
		t.Fatalf("failed commands must not mutate: %v", texts(res))
	}
	if len(f.notifier.msgs) != 1 {
		t.Fatalf("only the successful add is announced, got %d", len(f.notifier.msgs))
	}
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	if _, err := f.svc.Add(context.Background(), paycheck()); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}

func TestConcurrentCommandsAreSerialized(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Add(context.Background(), rent()); err != nil {
				t.Errorf("add: %v", err)
			}
			f.svc.Search(context.Background(), "rent")
		}()
	}
	wg.Wait()

	res := f.svc.View("")
	if len(res.Transactions) != 20 || res.Expense != "$24,000.00" {
		t.Fatalf("expected 20 rents, got %d expense %s", len(res.Transactions), res.Expense)
	}
	seen := map[int64]bool{}
	for _, tx := range res.Transactions {
		if seen[tx.ID] {
			t.Fatalf("duplicate id %d", tx.ID)
		}
		seen[tx.ID] = true
	}
}

func TestOpenRestoresPersistedLedger(t *testing.T) {
	f := newFixture(t)
	mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: paycheck()})
	mustDispatch(t, f.svc, Command{Kind: CommandAdd, Input: rent()})

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	reopened := NewLedgerService(ledger.New(f.kv, ledger.WithLogger(quiet)), nil, WithLogger(quiet))
	res := reopened.Open(context.Background())
	if res.Balance != "$300.00" || len(res.Transactions) != 2 {
		t.Fatalf("reopened ledger = %+v", res)
	}
	if got := reopened.Categories().All(); len(got) != 12 {
		t.Fatalf("default taxonomy should have 12 categories, got %d", len(got))
	}
}
