package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"srtfix/internal/batch"
	"srtfix/internal/repair"
)

type detectReport struct {
	Path      string            `json:"path"`
	Detection *repair.Detection `json:"detection,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "detect <file|dir>...",
		Short: "Report the detected encoding of subtitle files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			inputs, err := batch.Collect(args, cfg.Repair.Extensions)
			if err != nil {
				return err
			}
			for _, skip := range inputs.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", skip.Path, skip.Reason)
			}
			if len(inputs.Files) == 0 {
				return fmt.Errorf("no subtitle files to inspect")
			}

			// Detection never consults the mapping table.
			engine := repair.New(nil,
				repair.WithMinConfidence(cfg.Repair.MinConfidence),
				repair.WithLogger(logger),
			)

			reports := make([]detectReport, 0, len(inputs.Files))
			failed := 0
			for _, path := range inputs.Files {
				det, err := engine.Detect(path)
				if err != nil {
					failed++
					report := detectReport{Path: path, Error: err.Error()}
					if stage, ok := repair.StageOf(err); ok {
						report.Stage = string(stage)
					}
					reports = append(reports, report)
					continue
				}
				reports = append(reports, detectReport{Path: path, Detection: &det})
			}

			if jsonOut {
				if err := writeJSON(cmd, reports); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(reports))
				for _, r := range reports {
					if r.Detection == nil {
						rows = append(rows, []string{r.Path, "-", "-", "-", r.Error})
						continue
					}
					rows = append(rows, []string{
						r.Path,
						r.Detection.Charset,
						strconv.Itoa(r.Detection.Confidence),
						string(r.Detection.Method),
						r.Detection.Language,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"File", "Charset", "Confidence", "Method", "Language / Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
			}

			if failed > 0 {
				return fmt.Errorf("encoding could not be determined for %d of %d files", failed, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}
