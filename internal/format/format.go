// Package format turns ledger values into display strings for a locale and
// currency.
package format

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"saldo/internal/core"
)

const (
	DefaultLocale       = "en-US"
	DefaultCurrencyCode = "USD"
)

var (
	ErrInvalidLocale   = errors.New("invalid locale")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Config selects how amounts and dates are rendered.
type Config struct {
	Locale       string
	CurrencyCode string
}

// DefaultConfig renders US dollars for en-US.
func DefaultConfig() Config {
	return Config{Locale: DefaultLocale, CurrencyCode: DefaultCurrencyCode}
}

// Formatter is safe for concurrent use once built.
type Formatter struct {
	tag        language.Tag
	printer    *message.Printer
	notation   core.Notation
	prefix     string
	suffix     string
	dateLayout string
}

// New validates cfg and builds a Formatter. Empty fields fall back to the
// defaults.
func New(cfg Config) (*Formatter, error) {
	if strings.TrimSpace(cfg.Locale) == "" {
		cfg.Locale = DefaultLocale
	}
	if strings.TrimSpace(cfg.CurrencyCode) == "" {
		cfg.CurrencyCode = DefaultCurrencyCode
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidLocale, cfg.Locale, err)
	}
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(cfg.CurrencyCode)))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidCurrency, cfg.CurrencyCode, err)
	}
	f := &Formatter{
		tag:        tag,
		printer:    message.NewPrinter(tag),
		dateLayout: dateLayoutFor(tag),
	}
	f.notation = notationFor(f.printer)
	symbol := f.printer.Sprint(currency.NarrowSymbol(unit))
	switch {
	case f.notation.Decimal != ".":
		f.suffix = " " + symbol
	case endsInLetter(symbol):
		f.prefix = symbol + " "
	default:
		f.prefix = symbol
	}
	return f, nil
}

// notationFor reads the locale's marks back from a formatted sample. The
// first mark between digits groups thousands and the last one splits the
// fraction.
func notationFor(p *message.Printer) core.Notation {
	sample := p.Sprint(number.Decimal(1234567.5, number.Scale(1)))
	var (
		marks []string
		cur   strings.Builder
	)
	for _, r := range sample {
		if !unicode.IsDigit(r) {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			marks = append(marks, cur.String())
			cur.Reset()
		}
	}
	if len(marks) < 2 {
		return core.DotDecimal
	}
	return core.Notation{Decimal: marks[len(marks)-1], Group: marks[0]}
}

func endsInLetter(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsLetter(r)
}

// Must is New for the default configuration paths where cfg is known good.
func Must(cfg Config) *Formatter {
	f, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return f
}

// Notation reports the decimal and group marks of the locale, so that amount
// text can be read the way Money writes it.
func (f *Formatter) Notation() core.Notation { return f.notation }

// Money renders m with two fraction digits, the locale's grouping and the
// currency symbol, e.g. "$1,500.00", "-$1,200.00" or "1.500,00 €" for de-DE.
func (f *Formatter) Money(m core.Money) string {
	s := f.magnitude(m)
	if m.Display(2).IsNegative() {
		return "-" + s
	}
	return s
}

// magnitude renders |m| without a sign. Digits come from the exact decimal;
// only the marks are taken from the locale.
func (f *Formatter) magnitude(m core.Money) string {
	whole, frac, _ := strings.Cut(m.Display(2).Abs().StringFixed(2), ".")
	return f.prefix + groupDigits(whole, f.notation.Group) + f.notation.Decimal + frac + f.suffix
}

// groupDigits inserts mark between every three digits counted from the right.
func groupDigits(whole, mark string) string {
	if len(whole) <= 3 || mark == "" {
		return whole
	}
	var b strings.Builder
	head := len(whole) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(whole[:head])
	for i := head; i < len(whole); i += 3 {
		b.WriteString(mark)
		b.WriteString(whole[i : i+3])
	}
	return b.String()
}

// Date renders d the way the locale writes short dates.
func (f *Formatter) Date(d core.Date) string {
	return d.Format(f.dateLayout)
}

func dateLayoutFor(tag language.Tag) string {
	base, _ := tag.Base()
	region, _ := tag.Region()
	switch base.String() {
	case "en":
		if region.String() == "US" {
			return "1/2/2006"
		}
		return "02/01/2006"
	case "de", "ru", "pl", "fi", "nb", "cs":
		return "02.01.2006"
	case "ja", "zh", "ko", "sv", "lt":
		return "2006-01-02"
	default:
		return "02/01/2006"
	}
}

// Row is one list entry ready for display.
type Row struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
	// Sign is "-" for expenses and "+" otherwise.
	Sign string `json:"sign"`
	// Amount is the absolute formatted amount.
	Amount  string `json:"amount"`
	Date    string `json:"date"`
	Expense bool   `json:"expense"`
}

// Row prepares t for a listing.
func (f *Formatter) Row(t core.Transaction) Row {
	sign := "+"
	if t.Amount.IsExpense() {
		sign = "-"
	}
	return Row{
		ID:       t.ID,
		Text:     t.Text,
		Category: t.Category,
		Sign:     sign,
		Amount:   f.magnitude(t.Amount),
		Date:     f.Date(t.Date),
		Expense:  t.Amount.IsExpense(),
	}
}

// Rows applies Row to every transaction, keeping order.
func (f *Formatter) Rows(txs []core.Transaction) []Row {
	out := make([]Row, len(txs))
	for i, t := range txs {
		out[i] = f.Row(t)
	}
	return out
}
