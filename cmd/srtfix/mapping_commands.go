package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"srtfix/internal/mapping"
)

type mappingReport struct {
	Source     string             `json:"source"`
	Entries    []mapping.Entry    `json:"entries"`
	Duplicates []string           `json:"duplicates,omitempty"`
	Conflicts  []mapping.Conflict `json:"conflicts,omitempty"`
	Multiline  []mapping.Entry    `json:"multiline,omitempty"`
}

func newMappingCommand(ctx *commandContext) *cobra.Command {
	mappingCmd := &cobra.Command{
		Use:   "mapping",
		Short: "Inspect the mapping table",
	}
	mappingCmd.AddCommand(newMappingShowCommand(ctx))
	mappingCmd.AddCommand(newMappingCheckCommand(ctx))
	return mappingCmd
}

func newMappingShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List mapping entries in application order",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := ctx.loadTable()
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, mappingReport{
					Source:     table.Source(),
					Entries:    table.Entries(),
					Duplicates: table.Duplicates(),
					Conflicts:  table.Conflicts(),
					Multiline:  table.MultilineEntries(),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source: %s\n", table.Source())
			if table.Len() == 0 {
				fmt.Fprintln(out, "No entries; repair passes decoded text through unchanged")
				return nil
			}
			rows := make([][]string, 0, table.Len())
			table.Each(func(e mapping.Entry) {
				rows = append(rows, []string{
					strconv.Itoa(len(rows) + 1),
					displayText(e.Corrupted),
					displayText(e.Replacement),
				})
			})
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Corrupted", "Replacement"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newMappingCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report duplicate keys and replacements that re-introduce corrupted keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := ctx.loadTable()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source: %s\n", table.Source())
			fmt.Fprintf(out, "Entries: %d\n", table.Len())

			duplicates := table.Duplicates()
			if len(duplicates) > 0 {
				fmt.Fprintf(out, "Duplicate keys (later row wins): %d\n", len(duplicates))
				for _, key := range duplicates {
					fmt.Fprintf(out, "  %s\n", displayText(key))
				}
			}

			multiline := table.MultilineEntries()
			if len(multiline) > 0 {
				fmt.Fprintf(out, "Entries spanning lines (check for an unterminated quote): %d\n", len(multiline))
				for _, e := range multiline {
					fmt.Fprintf(out, "  %s -> %s\n", displayText(e.Corrupted), displayText(e.Replacement))
				}
			}

			conflicts := table.Conflicts()
			if len(conflicts) == 0 {
				if len(multiline) > 0 {
					return fmt.Errorf("mapping has %d entries containing line breaks", len(multiline))
				}
				fmt.Fprintln(out, "Mapping OK")
				return nil
			}
			rows := make([][]string, 0, len(conflicts))
			for _, c := range conflicts {
				rows = append(rows, []string{
					displayText(c.Entry.Corrupted),
					displayText(c.Entry.Replacement),
					displayText(c.Key),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Corrupted", "Replacement", "Contains key"},
				rows,
				nil,
			))
			return fmt.Errorf("mapping has %d conflicts; repairing already repaired text would change it again", len(conflicts))
		},
	}
}
