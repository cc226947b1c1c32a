package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"finpod/internal/textutil"
	"finpod/internal/transcript"
)

func newStructureCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		maxLabel   int
	)

	cmd := &cobra.Command{
		Use:         "structure FILE|-",
		Short:       "Normalize and structure a raw transcript without running the pipeline",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			lines, err := transcript.Normalize(string(raw))
			if err != nil {
				return err
			}
			t, err := transcript.NewStructurer(transcript.Options{MaxLabelRunes: maxLabel}).Structure(lines)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, t)
			}
			printTranscript(cmd.OutOrStdout(), t)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the structured transcript as JSON")
	cmd.Flags().IntVar(&maxLabel, "max-label-runes", 0, "Longest speaker name accepted as a cue (default 40)")
	return cmd
}

func readInput(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return data, nil
}

func printTranscript(out io.Writer, t *transcript.Transcript) {
	rows := make([][]string, 0, len(t.Turns))
	for i, turn := range t.Turns {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			turn.SpeakerName,
			string(turn.Role),
			string(turn.Section),
			textutil.Excerpt(turn.Text, 60),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Speaker", "Role", "Section", "Text"},
		rows,
		[]columnAlignment{alignRight},
	))

	s := t.Summary()
	fmt.Fprintf(out, "%d turns: %d executive, %d analyst, %d operator, %d unknown\n",
		s.Turns, s.ByRole[transcript.RoleExecutive], s.ByRole[transcript.RoleAnalyst],
		s.ByRole[transcript.RoleOperator], s.ByRole[transcript.RoleUnknown])
	if t.Degraded() {
		fmt.Fprintln(out, "No speaker cues detected; the transcript is a single unattributed turn")
	}
}
