package main

import (
	"context"
	"flag"
	"fmt"
	"getfile-lab/domain"
	"getfile-lab/internal"
	"getfile-lab/storage"
	"io"
	"os"
	"slices"

	"github.com/google/subcommands"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type inspectCmd struct {
	config internal.Config
	limit  int
}

func (*inspectCmd) Name() string     { return "inspect" }
func (*inspectCmd) Synopsis() string { return "List the transfers recorded in the ledger." }
func (*inspectCmd) Usage() string {
	return `inspect [-ledger DIR] [-limit N] :
  Print recorded downloads, oldest first, and a count per status.
`
}

func (p *inspectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.config.BadgerFilepath, "ledger", p.config.BadgerFilepath, "Transfer ledger directory.")
	f.IntVar(&p.limit, "limit", 50, "Maximum rows, 0 for all.")
}

func (p *inspectCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	code, err := p.run(os.Stdout)
	return status("inspect", code, err)
}

func (p *inspectCmd) run(w io.Writer) (int, error) {
	if p.config.BadgerFilepath == "" {
		return exitConfig, fmt.Errorf("-ledger is required")
	}
	log := logs.GetLoggerFromString(p.config.LogLevel)
	db, err := storage.Open(p.config.BadgerFilepath)
	if err != nil {
		return exitRuntime, err
	}
	defer db.Close()
	repository := storage.NewTransferRepository(db, log)

	transfers, err := repository.List(p.limit)
	if err != nil {
		return exitRuntime, err
	}
	counts, err := repository.CountByStatus()
	if err != nil {
		return exitRuntime, err
	}
	renderTransfers(w, transfers, counts)
	return exitOK, nil
}

func renderTransfers(w io.Writer, transfers []domain.Transfer, counts map[domain.TransferStatus]int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Path", "Status", "Wire", "Bytes", "Started", "Error"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, t := range transfers {
		row := internal.TransferRow(t)
		table.Append([]string{row.ID, row.Path, row.Status, row.Wire, row.Bytes, row.Started, row.Error})
	}
	table.Render()

	statuses := lo.Keys(counts)
	slices.Sort(statuses)
	fmt.Fprintln(w)
	for _, s := range statuses {
		line := fmt.Sprintf("%-12s %d", s.String(), counts[s])
		switch s {
		case domain.StatusCompleted:
			line = color.Green.Sprint(line)
		case domain.StatusFailed:
			line = color.Red.Sprint(line)
		}
		fmt.Fprintln(w, line)
	}
}
