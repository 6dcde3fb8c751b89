package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kiteco/backdoor-sweep/internal/cmdline"
	"github.com/kiteco/backdoor-sweep/internal/rundb"
)

var statusCmd = cmdline.Command{
	Name:     "status",
	Synopsis: "show a run recorded in the ledger",
	Args:     &statusArgs{},
}

type statusArgs struct {
	Ledger string `arg:"positional,required" help:"run ledger directory"`
	Run    string `arg:"--run" help:"run id (default: latest)"`
	List   bool   `arg:"--list" help:"list all runs"`
}

func (args *statusArgs) Handle() error {
	db, err := rundb.Open(args.Ledger)
	if err != nil {
		return err
	}
	defer db.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if args.List {
		runs, err := db.Runs()
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "id\tcreated\tworkers\tcells\tstatus\terror")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
				r.ID, r.CreatedAt.Format(time.RFC3339), r.Workers, r.Cells, r.Status, r.Error)
		}
		return nil
	}

	var info rundb.RunInfo
	if args.Run == "" {
		info, err = db.Latest()
	} else {
		info, err = db.Run(args.Run)
	}
	if err != nil {
		return err
	}

	cells, err := db.Cells(info.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(tw, "run\t%s\n", info.ID)
	fmt.Fprintf(tw, "created\t%s\n", info.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "status\t%s\n", info.Status)
	if info.Error != "" {
		fmt.Fprintf(tw, "error\t%s\n", info.Error)
	}
	fmt.Fprintf(tw, "cells\t%d/%d\n\n", countFinished(cells), info.Cells)

	fmt.Fprintln(tw, "cell\trows\tduration\tstatus\tpath")
	for _, c := range cells {
		detail := c.Path
		if c.Error != "" {
			detail = c.Error
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", c.Name, c.Rows, c.Duration.Round(time.Millisecond), c.Status, detail)
	}
	return nil
}

func countFinished(cells []rundb.CellStatus) int {
	var n int
	for _, c := range cells {
		if c.Status == rundb.StatusFinished {
			n++
		}
	}
	return n
}
