package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finpod/internal/roster"
	"finpod/internal/state"
	"finpod/internal/textutil"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and reset episode progress",
	}
	stateCmd.AddCommand(newStateListCommand(ctx))
	stateCmd.AddCommand(newStateResetCommand(ctx))
	return stateCmd
}

func newStateListCommand(ctx *commandContext) *cobra.Command {
	var (
		company    string
		period     string
		status     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stage records",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := state.Filter{Company: roster.NormalizeTicker(company)}
			if strings.TrimSpace(period) != "" {
				p, err := roster.ParsePeriod(period)
				if err != nil {
					return err
				}
				filter.Period = p.String()
			}
			if status != "" {
				filter.Status = state.Status(strings.ToLower(strings.TrimSpace(status)))
				if !filter.Status.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, recordViews(records))
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No stage records")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.Company,
					rec.Period,
					string(rec.Stage),
					colorStageStatus(rec.Status, colorize),
					strconv.Itoa(rec.AttemptCount),
					rec.UpdatedAt.Local().Format("2006-01-02 15:04"),
					textutil.Excerpt(firstNonEmpty(rec.LastError, rec.ArtifactRef), 60),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Company", "Period", "Stage", "Status", "Attempts", "Updated", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&company, "company", "", "Filter by ticker")
	cmd.Flags().StringVarP(&period, "period", "p", "", "Filter by reporting period")
	cmd.Flags().StringVar(&status, "status", "", "Filter by stage status")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print records as JSON")
	return cmd
}

func newStateResetCommand(ctx *commandContext) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "reset TICKER PERIOD",
		Short: "Forget progress so the next run repeats stages",
		Long: `Delete a unit's stage records from --from onward (default: every stage).
The next run starts the unit again from that stage. Staged artifacts are kept
and overwritten when the stages run again.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := roster.NormalizeTicker(args[0])
			p, err := roster.ParsePeriod(args[1])
			if err != nil {
				return err
			}
			stage := state.StageFetch
			if strings.TrimSpace(from) != "" {
				if stage, err = state.ParseStage(from); err != nil {
					return err
				}
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Reset(cmd.Context(), ticker, p.String(), stage)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if removed == 0 {
				fmt.Fprintf(out, "No records for %s %s from %s\n", ticker, p, stage)
				return nil
			}
			fmt.Fprintf(out, "Reset %s %s from %s (%d records removed)\n", ticker, p, stage, removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First stage to repeat (fetch, structure, generate_script, synthesize_audio, publish)")
	return cmd
}

type recordView struct {
	Company       string     `json:"company"`
	Period        string     `json:"period"`
	Stage         string     `json:"stage"`
	Status        string     `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	LastError     string     `json:"last_error,omitempty"`
	ArtifactRef   string     `json:"artifact_ref,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func recordViews(records []*state.StageRecord) []recordView {
	out := make([]recordView, 0, len(records))
	for _, rec := range records {
		out = append(out, recordView{
			Company:       rec.Company,
			Period:        rec.Period,
			Stage:         string(rec.Stage),
			Status:        string(rec.Status),
			AttemptCount:  rec.AttemptCount,
			LastError:     rec.LastError,
			ArtifactRef:   rec.ArtifactRef,
			CorrelationID: rec.CorrelationID,
			StartedAt:     rec.StartedAt,
			CompletedAt:   rec.CompletedAt,
			UpdatedAt:     rec.UpdatedAt,
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
