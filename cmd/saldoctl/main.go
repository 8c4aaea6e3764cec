package main

import (
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"saldo/internal/backend"
)

var cli struct {
	Globals
	Commands
}

func main() {
	ctx := kong.Parse(&cli, options(&cli.Globals, os.Stdout)...)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

func options(globals *Globals, out io.Writer) []kong.Option {
	return []kong.Option{
		kong.Name("saldoctl"),
		kong.Description("Record and review income and expenses from the command line."),
		kong.UsageOnError(),
		kong.Vars{
			"backends": strings.Join(backend.GetBackendTypeStrings(), ","),
		},
		kong.Bind(globals),
		kong.BindTo(out, (*io.Writer)(nil)),
	}
}
