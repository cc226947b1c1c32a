package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finpod/internal/roster"
)

func newRosterCommand(ctx *commandContext) *cobra.Command {
	rosterCmd := &cobra.Command{
		Use:   "roster",
		Short: "Company roster utilities",
	}
	rosterCmd.AddCommand(newRosterValidateCommand(ctx))
	return rosterCmd
}

func newRosterValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [PATH]",
		Short: "Validate the company roster",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				path = cfg.Roster.Path
			}

			r, err := roster.Load(path)
			if err != nil {
				return fmt.Errorf("roster %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(r.Companies))
			for _, c := range r.Companies {
				pinned := ""
				if p, ok := c.DefaultPeriod(); ok {
					pinned = p.String()
				}
				rows = append(rows, []string{c.Ticker, c.DisplayName(), c.CIK, c.Exchange, pinned})
			}
			fmt.Fprintln(out, renderTable([]string{"Ticker", "Name", "CIK", "Exchange", "Pinned period"}, rows, nil))
			fmt.Fprintf(out, "Roster valid: %d companies\n", len(r.Companies))
			return nil
		},
	}
}
