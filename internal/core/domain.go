package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used for input and persistence.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date without time of day, stored at UTC midnight.
	Date struct {
		time.Time
	}

	// Transaction is a single signed ledger entry.
	Transaction struct {
		ID       int64  `json:"id"`
		Text     string `json:"text"`
		Amount   Money  `json:"amount"`
		Category string `json:"category"`
		Date     Date   `json:"date"`
	}

	// Input holds the raw field values supplied by a form or command line
	// for add and edit.
	Input struct {
		Text     string `json:"text"`
		Amount   string `json:"amount"`
		Category string `json:"category"`
		Date     string `json:"date"`
	}

	// Draft is a validated Input, ready to become a Transaction.
	Draft struct {
		Text     string
		Amount   Money
		Category string
		Date     Date
	}
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrEmptyText       = errors.New("empty text")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidDate     = errors.New("invalid date")
)

// ValidationError lists every problem found in an Input.
// errors.Is matches ErrValidation as well as each individual cause.
type ValidationError struct {
	Errs []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(msgs, ", ")
}

func (e *ValidationError) Unwrap() []error {
	return append([]error{ErrValidation}, e.Errs...)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// MustDate parses s and panics on failure. Intended for tests.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON shadows time.Time's RFC 3339 encoding with YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return ErrInvalidDate
	}
	return d.UnmarshalText([]byte(s[1 : len(s)-1]))
}

// ParseInput validates raw field values. Text, category and date must be
// non-empty and the amount must be numeric. When tax is non-nil the category
// must also belong to it. Every problem is reported, not just the first one.
// The amount is read in DotDecimal notation.
func ParseInput(in Input, tax *Taxonomy) (Draft, error) {
	return DotDecimal.ParseInput(in, tax)
}

// ParseInput is the package-level ParseInput with amounts read in n.
func (n Notation) ParseInput(in Input, tax *Taxonomy) (Draft, error) {
	var (
		d    Draft
		errs []error
	)

	if strings.TrimSpace(in.Text) == "" {
		errs = append(errs, ErrEmptyText)
	}
	d.Text = in.Text

	amount, err := n.ParseAmount(in.Amount)
	if err != nil {
		errs = append(errs, err)
	}
	d.Amount = amount

	switch cat := strings.TrimSpace(in.Category); {
	case cat == "":
		errs = append(errs, ErrEmptyCategory)
	case tax != nil && !tax.Contains(cat):
		errs = append(errs, ErrUnknownCategory)
	default:
		d.Category = cat
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		errs = append(errs, err)
	}
	d.Date = date

	if len(errs) > 0 {
		return Draft{}, &ValidationError{Errs: errs}
	}
	return d, nil
}

// Validate checks a stored transaction, for example one read back from
// persistence.
func (t Transaction) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Text) == "" {
		errs = append(errs, ErrEmptyText)
	}
	if strings.TrimSpace(t.Category) == "" {
		errs = append(errs, ErrEmptyCategory)
	}
	if err := t.Date.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &ValidationError{Errs: errs}
	}
	return nil
}

// Apply returns t with every field except ID replaced by the draft.
func (t Transaction) Apply(d Draft) Transaction {
	return Transaction{
		ID:       t.ID,
		Text:     d.Text,
		Amount:   d.Amount,
		Category: d.Category,
		Date:     d.Date,
	}
}
