package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/services"
)

type Commands struct {
	Add        AddCmd        `cmd:"" help:"Record a transaction."`
	Edit       EditCmd       `cmd:"" help:"Change fields of a transaction."`
	Rm         RmCmd         `cmd:"" aliases:"remove" help:"Delete a transaction."`
	List       ListCmd       `cmd:"" aliases:"ls" help:"List transactions, newest first."`
	Summary    SummaryCmd    `cmd:"" help:"Show balance, income, expense and spending by category."`
	Categories CategoriesCmd `cmd:"" help:"List the recognized categories."`
}

type AddCmd struct {
	Text     string `arg:"" help:"What the transaction was."`
	Amount   string `arg:"" help:"Amount. Use --expense, or pass it after -- when negative."`
	Category string `arg:"" help:"Category."`
	Date     string `help:"Date as YYYY-MM-DD. Defaults to today."`
	Expense  bool   `short:"x" help:"Record the amount as an expense."`
}

func (cmd *AddCmd) Run(g *Globals, out io.Writer) error {
	ctx := context.Background()
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	date := cmd.Date
	if date == "" {
		date = time.Now().Format(core.DateLayout)
	}
	res, err := s.Service.Add(ctx, core.Input{
		Text:     cmd.Text,
		Amount:   signed(cmd.Amount, cmd.Expense),
		Category: cmd.Category,
		Date:     date,
	})
	if err != nil {
		return err
	}
	return report(out, g, res, func() string {
		row := s.Service.Formatter().Row(*res.Affected)
		return fmt.Sprintf("Added #%d %s %s%s (%s)", row.ID, row.Text, row.Sign, row.Amount, row.Category)
	})
}

type EditCmd struct {
	ID       int64  `arg:"" help:"Transaction id."`
	Text     string `help:"New description."`
	Amount   string `help:"New amount, e.g. --amount=-12.50."`
	Category string `help:"New category."`
	Date     string `help:"New date as YYYY-MM-DD."`
}

func (cmd *EditCmd) Run(g *Globals, out io.Writer) error {
	ctx := context.Background()
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	t, ok := s.Service.Get(cmd.ID)
	if !ok {
		return fmt.Errorf("edit %d: %w", cmd.ID, ledger.ErrNotFound)
	}
	in := core.Input{
		Text:     pick(cmd.Text, t.Text),
		Amount:   pick(cmd.Amount, s.Service.Formatter().Notation().Text(t.Amount)),
		Category: pick(cmd.Category, t.Category),
		Date:     pick(cmd.Date, t.Date.String()),
	}
	res, err := s.Service.Update(ctx, cmd.ID, in)
	if err != nil {
		return err
	}
	return report(out, g, res, func() string {
		row := s.Service.Formatter().Row(*res.Affected)
		return fmt.Sprintf("Updated #%d %s %s%s (%s)", row.ID, row.Text, row.Sign, row.Amount, row.Category)
	})
}

type RmCmd struct {
	ID int64 `arg:"" help:"Transaction id."`
}

func (cmd *RmCmd) Run(g *Globals, out io.Writer) error {
	ctx := context.Background()
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.Service.Remove(ctx, cmd.ID)
	if err != nil {
		return err
	}
	if !res.Removed {
		return fmt.Errorf("remove %d: %w", cmd.ID, ledger.ErrNotFound)
	}
	return report(out, g, res, func() string {
		return fmt.Sprintf("Removed #%d", cmd.ID)
	})
}

type ListCmd struct {
	Query string `short:"q" help:"Only show transactions whose text or category contains this, ignoring case."`
}

func (cmd *ListCmd) Run(g *Globals, out io.Writer) error {
	s, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	res := s.Service.View(strings.TrimSpace(cmd.Query))
	if g.JSON {
		return writeJSON(out, res)
	}
	if res.EmptyMessage != "" {
		printInfo(out, res.EmptyMessage)
		return nil
	}
	printRows(out, res)
	return nil
}

type SummaryCmd struct{}

func (cmd *SummaryCmd) Run(g *Globals, out io.Writer) error {
	s, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	res := s.Service.View("")
	if g.JSON {
		return writeJSON(out, res.Summary)
	}
	printSummary(out, res, s.Service.Formatter())
	return nil
}

type CategoriesCmd struct{}

func (cmd *CategoriesCmd) Run(g *Globals, out io.Writer) error {
	s, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	tax := s.Service.Categories()
	if g.JSON {
		return writeJSON(out, map[string][]string{"income": tax.Income, "expense": tax.Expense})
	}
	printList(out, "Income", tax.Income)
	printList(out, "Expense", tax.Expense)
	return nil
}

// report prints a mutation outcome and any persistence warning.
func report(out io.Writer, g *Globals, res services.Result, message func() string) error {
	if g.JSON {
		return writeJSON(out, res)
	}
	printSuccess(out, message())
	if res.Warning != "" {
		printWarning(out, res.Warning)
	}
	return nil
}

// signed prefixes amount with a minus when expense is set and it has no sign.
func signed(amount string, expense bool) string {
	amount = strings.TrimSpace(amount)
	if !expense || strings.HasPrefix(amount, "-") {
		return amount
	}
	return "-" + strings.TrimPrefix(amount, "+")
}

func pick(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
