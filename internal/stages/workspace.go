package stages

import (
	"os"
	"path/filepath"
	"strings"

	"finpod/internal/roster"
	"finpod/internal/services"
	"finpod/internal/state"
)

// Workspace resolves artifact paths under the staging directory.
type Workspace struct {
	Root string
}

// UnitDir returns the directory holding one unit's artifacts.
func (w Workspace) UnitDir(company, period string) string {
	return filepath.Join(w.Root, roster.NormalizeTicker(company), period)
}

func (w Workspace) RawPath(unit *state.EpisodeUnit) string {
	return filepath.Join(w.UnitDir(unit.Company, unit.Period), "raw.txt")
}

func (w Workspace) TranscriptPath(unit *state.EpisodeUnit) string {
	return filepath.Join(w.UnitDir(unit.Company, unit.Period), "transcript.json")
}

func (w Workspace) ScriptPath(unit *state.EpisodeUnit) string {
	return filepath.Join(w.UnitDir(unit.Company, unit.Period), "script.md")
}

// AudioPath uses the audio format as the extension.
func (w Workspace) AudioPath(unit *state.EpisodeUnit, format string) string {
	format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if format == "" {
		format = "mp3"
	}
	return filepath.Join(w.UnitDir(unit.Company, unit.Period), "episode."+format)
}

// upstreamArtifact returns the file a previous stage produced. A missing file
// behind a success record is permanent: the unit needs a reset from that stage.
func upstreamArtifact(unit *state.EpisodeUnit, stage state.Stage, fallback string) (string, error) {
	path := unit.Artifact(stage)
	if path == "" {
		path = fallback
	}
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrValidation, string(stage), "load artifact",
			"artifact missing; run 'finpod state reset "+unit.Company+" "+unit.Period+" --from "+string(stage)+"'", err)
	}
	return path, nil
}

// lookupCompany resolves the unit's roster entry and period.
func lookupCompany(companies *roster.Roster, unit *state.EpisodeUnit) (roster.Company, roster.Period, error) {
	period, err := roster.ParsePeriod(unit.Period)
	if err != nil {
		return roster.Company{}, roster.Period{}, services.Wrap(services.ErrValidation, "stage", "parse period", unit.Period, err)
	}
	if companies == nil {
		return roster.Company{Ticker: roster.NormalizeTicker(unit.Company)}, period, nil
	}
	company, ok := companies.Lookup(unit.Company)
	if !ok {
		return roster.Company{}, roster.Period{}, services.Wrap(services.ErrValidation, "stage", "lookup company",
			unit.Company+" is not in the roster", nil)
	}
	return company, period, nil
}
