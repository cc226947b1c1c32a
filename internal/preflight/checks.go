package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"finpod/internal/config"
	"finpod/internal/roster"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRoster loads and validates the company roster.
func CheckRoster(path string) Result {
	const name = "Roster"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "roster.path is not set"}
	}
	r, err := roster.Load(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if len(r.Companies) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no companies)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d companies)", path, len(r.Companies))}
}

// CheckCredentials reports missing API keys and SEC identity.
func CheckCredentials(cfg *config.Config) Result {
	const name = "Credentials"
	if err := cfg.ValidateCredentials(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "present"}
}

// CheckEndpoint verifies that a remote service answers HTTP. Any response
// below 500 counts as reachable since most endpoints reject unauthenticated
// GETs.
func CheckEndpoint(ctx context.Context, name, rawURL string) Result {
	base := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	req.Header.Set("User-Agent", "finpod-preflight")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("%s answered %d", base, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// summarizeNetError produces a human-readable summary for reachability failures.
func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (endpoint unreachable)"
	}
	return err.Error()
}
