package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finpod/internal/logging"
	"finpod/internal/preflight"
	"finpod/internal/roster"
	"finpod/internal/services"
	"finpod/internal/stages"
	"finpod/internal/textutil"
	"finpod/internal/workflow"
)

// errUnitsFailed makes the process exit non-zero after the summary prints.
var errUnitsFailed = errors.New("one or more units failed permanently")

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		periodFlag  string
		companyFlag []string
		workers     int
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Advance roster companies through the pipeline",
		Long: `Fetch, structure, script, synthesize, and publish an episode for each
selected company. Units resume from their last completed stage; published
units are skipped without calling any collaborator.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "*.log")

			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg, false)); len(failed) > 0 {
				parts := make([]string, 0, len(failed))
				for _, f := range failed {
					parts = append(parts, f.Name+": "+f.Detail)
				}
				return services.Wrap(services.ErrConfiguration, "run", "preflight", strings.Join(parts, "; "), nil)
			}

			companies, err := ctx.loadRoster()
			if err != nil {
				return err
			}
			selected, err := companies.Select(companyFlag)
			if err != nil {
				return err
			}
			var period *roster.Period
			if strings.TrimSpace(periodFlag) != "" {
				p, err := roster.ParsePeriod(periodFlag)
				if err != nil {
					return err
				}
				period = &p
			}
			targets := workflow.Targets(selected, period, time.Now())
			if len(targets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No companies selected")
				return nil
			}

			collab, err := ctx.collaborators(cfg, logger)
			if err != nil {
				return err
			}
			executors, err := stages.NewPipeline(cfg, companies, collab, logging.NewComponentLogger(logger, "stages"))
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			opts := []workflow.ManagerOption{}
			if workers > 0 {
				opts = append(opts, workflow.WithWorkers(workers))
			}
			manager, err := workflow.NewManager(cfg, store, executors, logger, opts...)
			if err != nil {
				return err
			}

			summary, runErr := manager.Run(cmd.Context(), targets)
			if summary != nil {
				if jsonOutput {
					if err := writeJSON(cmd, summaryView(summary)); err != nil {
						return err
					}
				} else {
					printRunSummary(cmd, summary)
				}
			}
			if runErr != nil {
				return runErr
			}
			if summary.HasFailures() {
				return errUnitsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&periodFlag, "period", "p", "", "Reporting period for every company (e.g. 2024-Q1)")
	cmd.Flags().StringSliceVar(&companyFlag, "company", nil, "Limit the run to these tickers (repeatable)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Units processed concurrently (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run summary as JSON")
	return cmd
}

type unitView struct {
	Company     string `json:"company"`
	Period      string `json:"period"`
	Status      string `json:"status"`
	Stage       string `json:"stage,omitempty"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
	PublishedID string `json:"published_id,omitempty"`
	Resumed     bool   `json:"resumed"`
	DurationMS  int64  `json:"duration_ms"`
}

type runView struct {
	RunID      string     `json:"run_id"`
	DurationMS int64      `json:"duration_ms"`
	Units      []unitView `json:"units"`
}

func summaryView(summary *workflow.Summary) runView {
	view := runView{RunID: summary.RunID, DurationMS: summary.Duration.Milliseconds()}
	for _, u := range summary.Units() {
		view.Units = append(view.Units, unitView{
			Company:     u.Company,
			Period:      u.Period,
			Status:      string(u.Status),
			Stage:       string(u.Stage),
			Attempts:    u.Attempts,
			Error:       u.Error,
			PublishedID: u.PublishedID,
			Resumed:     u.Resumed,
			DurationMS:  u.Duration.Milliseconds(),
		})
	}
	return view
}

func printRunSummary(cmd *cobra.Command, summary *workflow.Summary) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	rows := make([][]string, 0)
	for _, u := range summary.Units() {
		rows = append(rows, []string{
			u.Company,
			u.Period,
			colorUnitStatus(u.Status, colorize),
			string(u.Stage),
			strconv.Itoa(u.Attempts),
			yesNo(u.Resumed),
			textutil.Excerpt(u.Error, 60),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Company", "Period", "Status", "Stage", "Attempts", "Resumed", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "%d published, %d failed, %d awaiting input, %d interrupted in %s\n",
		summary.Count(workflow.UnitPublished),
		summary.Count(workflow.UnitFailed),
		summary.Count(workflow.UnitAwaitingInput),
		summary.Count(workflow.UnitInterrupted),
		summary.Duration.Round(time.Millisecond),
	)
}
