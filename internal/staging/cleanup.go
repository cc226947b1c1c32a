// Package staging lists and prunes per-unit artifact directories under the
// staging root.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"finpod/internal/logging"
)

// UnitDir describes the staged artifacts of one company and period.
type UnitDir struct {
	Company string
	Period  string
	Path    string
	ModTime time.Time
	Size    int64
}

// Key matches state.EpisodeUnit.Key.
func (d UnitDir) Key() string {
	return d.Company + "/" + d.Period
}

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// ListUnits returns every <staging>/<TICKER>/<PERIOD> directory, ordered by
// company then period. A missing staging directory yields no units.
func ListUnits(stagingDir string) ([]UnitDir, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	companies, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var units []UnitDir
	for _, company := range companies {
		if !company.IsDir() {
			continue
		}
		companyPath := filepath.Join(stagingDir, company.Name())
		periods, err := os.ReadDir(companyPath)
		if err != nil {
			continue
		}
		for _, period := range periods {
			if !period.IsDir() {
				continue
			}
			info, err := period.Info()
			if err != nil {
				continue
			}
			path := filepath.Join(companyPath, period.Name())
			size, _ := dirSize(path)
			units = append(units, UnitDir{
				Company: company.Name(),
				Period:  period.Name(),
				Path:    path,
				ModTime: newestModTime(path, info.ModTime()),
				Size:    size,
			})
		}
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].Company != units[j].Company {
			return units[i].Company < units[j].Company
		}
		return units[i].Period < units[j].Period
	})
	return units, nil
}

// Clean removes unit directories selected by match. Company directories left
// empty are removed too.
func Clean(ctx context.Context, stagingDir string, match func(UnitDir) bool, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	units, err := ListUnits(stagingDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}

	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		if !match(unit) {
			continue
		}
		if err := os.RemoveAll(unit.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: unit.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove staged unit", "staging_cleanup_failed",
				logging.String("path", unit.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, unit.Path)
		logger.Info("removed staged unit",
			logging.String(logging.FieldCompany, unit.Company),
			logging.String(logging.FieldPeriod, unit.Period),
			logging.Int64("bytes", unit.Size),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
		// Fails harmlessly while other periods remain.
		_ = os.Remove(filepath.Dir(unit.Path))
	}
	return result
}

// OlderThan selects units whose newest artifact predates now minus maxAge.
func OlderThan(maxAge time.Duration, now time.Time) func(UnitDir) bool {
	cutoff := now.Add(-maxAge)
	return func(u UnitDir) bool { return u.ModTime.Before(cutoff) }
}

// InSet selects units whose key is in keys.
func InSet(keys map[string]struct{}) func(UnitDir) bool {
	return func(u UnitDir) bool {
		_, ok := keys[u.Key()]
		return ok
	}
}

func newestModTime(path string, fallback time.Time) time.Time {
	newest := fallback
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
