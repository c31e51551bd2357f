package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"srtfix/internal/history"
)

const historyTimeLayout = "2006-01-02 15:04:05"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent repair runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.requireHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.StartedAt.Local().Format(historyTimeLayout),
					string(run.Origin),
					strconv.Itoa(run.Repaired),
					strconv.Itoa(run.Failed),
					strconv.Itoa(run.Replacements),
					runDuration(run),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Started", "Origin", "Repaired", "Failed", "Replacements", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	return historyCmd
}

type runDetail struct {
	Run   *history.Run         `json:"run"`
	Files []history.FileRecord `json:"files"`
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the files of one run (IDs may be abbreviated)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.requireHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.FindRun(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, history.ErrRunNotFound) {
					return fmt.Errorf("no run matches %q", args[0])
				}
				return err
			}
			files, err := store.Files(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if jsonOut {
				if files == nil {
					files = []history.FileRecord{}
				}
				return writeJSON(cmd, runDetail{Run: run, Files: files})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:      %s\n", run.ID)
			fmt.Fprintf(out, "Origin:   %s\n", run.Origin)
			fmt.Fprintf(out, "Mapping:  %s\n", run.Mapping)
			fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(historyTimeLayout))
			if run.ArchivePath != "" {
				fmt.Fprintf(out, "Archive:  %s\n", run.ArchivePath)
			}
			rows := make([][]string, 0, len(files))
			for _, f := range files {
				status := "repaired"
				if f.Failed() {
					status = fmt.Sprintf("failed (%s): %s", f.Stage, f.Error)
				}
				rows = append(rows, []string{
					f.Path,
					f.OutputPath,
					f.Charset,
					confidenceText(f.Confidence, f.Method),
					strconv.Itoa(f.Replacements),
					status,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Output", "Encoding", "Confidence", "Replacements", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				"", "", "", "Total", strconv.Itoa(run.Replacements), fmt.Sprintf("%d ok, %d failed", run.Repaired, run.Failed),
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func runDuration(run history.Run) string {
	if run.FinishedAt == nil {
		return "running"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
