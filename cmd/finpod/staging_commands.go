package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"finpod/internal/logging"
	"finpod/internal/staging"
	"finpod/internal/state"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect and prune staged artifacts",
	}
	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))
	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staged unit directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			units, err := staging.ListUnits(cfg.Paths.StagingDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(units) == 0 {
				fmt.Fprintln(out, "Staging directory is empty")
				return nil
			}
			rows := make([][]string, 0, len(units))
			var total int64
			for _, u := range units {
				total += u.Size
				rows = append(rows, []string{u.Company, u.Period, humanize.Bytes(uint64(u.Size)), humanize.Time(u.ModTime)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Company", "Period", "Size", "Modified"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(out, "%d units, %s\n", len(units), humanize.Bytes(uint64(total)))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var (
		published bool
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove staged artifacts of published or stale units",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !published && olderThan <= 0 {
				return errors.New("choose --published, --older-than, or both")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}

			var done map[string]struct{}
			if published {
				store, err := ctx.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				records, err := store.List(cmd.Context(), state.Filter{Status: state.StatusSuccess})
				if err != nil {
					return err
				}
				done = map[string]struct{}{}
				for _, rec := range records {
					if rec.Stage == state.StagePublish {
						done[rec.Company+"/"+rec.Period] = struct{}{}
					}
				}
			}

			stale := staging.OlderThan(olderThan, time.Now())
			match := func(u staging.UnitDir) bool {
				if published {
					if _, ok := done[u.Key()]; ok {
						return true
					}
				}
				return olderThan > 0 && stale(u)
			}
			result := staging.Clean(cmd.Context(), cfg.Paths.StagingDir, match, logging.NewComponentLogger(logger, "staging"))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d staged units\n", len(result.Removed))
			if len(result.Errors) > 0 {
				for _, e := range result.Errors {
					fmt.Fprintf(out, "  %s: %v\n", e.Path, e.Error)
				}
				return fmt.Errorf("%d staged units could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&published, "published", false, "Remove units whose episode has been published")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Remove units untouched for this long (e.g. 720h)")
	return cmd
}
