package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
	"git.home.luguber.info/inful/docgen/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Dir   string `help:"Read the history of this directory instead of the binary's directory" type:"path"`
	Limit int    `short:"n" help:"Number of builds to show" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	ws, err := loadWorkspace(g, root, h.Dir)
	if err != nil {
		return err
	}
	path := ws.Config.HistoryPath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return foundation.NotFoundError("no build history recorded (enable history in docgen.yaml)").
			WithContext("path", path).
			Build()
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	return printHistory(g, records)
}

func printHistory(g *Global, records []history.Record) error {
	out := g.stdout()
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No builds recorded")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tOUTCOME\tEXIT\tDURATION\tCOMMIT\tBUILD")
	for _, r := range records {
		commit := r.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		if commit == "" {
			commit = "-"
		} else if r.Dirty {
			commit += "+"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.Outcome,
			r.ExitCode,
			r.Duration.Round(time.Millisecond),
			commit,
			r.BuildID)
	}
	return tw.Flush()
}
