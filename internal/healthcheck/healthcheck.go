package healthcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/l3aro/hotbundle/internal/config"
	"github.com/l3aro/hotbundle/internal/control"
	"github.com/l3aro/hotbundle/internal/log"
	"github.com/l3aro/hotbundle/internal/scanner"
	"github.com/l3aro/hotbundle/pkg/bundler"
	"github.com/l3aro/hotbundle/pkg/engine"
)

// Check statuses.
const (
	StatusOK      = "ok"
	StatusWarn    = "warn"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// CheckStatus is the outcome of a single check.
type CheckStatus struct {
	Name   string
	Status string // "ok", "warn", "error", "skipped"
	Detail string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	Checks         []CheckStatus
}

// Healthy reports whether no check failed. Warnings and skipped checks
// do not count as failures.
func (r *HealthCheckResult) Healthy() bool {
	for _, c := range r.Checks {
		if c.Status == StatusError {
			return false
		}
	}
	return true
}

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
//
// Checks run in order and a failed check skips the ones that depend on it:
// root, entry file, dependency graph, entry point binding, control channel.
func Check(ctx context.Context, cfg *config.Config, savedPath string, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	root := checkRoot(cfg)
	result.Checks = append(result.Checks, root)

	entry := skipped("entry", "root is not usable")
	if root.Status == StatusOK {
		entry = checkEntry(cfg)
	}
	result.Checks = append(result.Checks, entry)

	graphStatus := skipped("graph", "entry file is not usable")
	entryPoint := skipped("entry point", "bundle was not produced")
	if entry.Status == StatusOK {
		var bundle *bundler.Result
		graphStatus, bundle = checkGraph(ctx, cfg)
		if bundle != nil {
			entryPoint = checkEntryPoint(cfg, bundle)
		}
	}
	result.Checks = append(result.Checks, graphStatus, entryPoint)

	result.Checks = append(result.Checks, checkController(ctx, cfg))

	return result, nil
}

func skipped(name, reason string) CheckStatus {
	return CheckStatus{Name: name, Status: StatusSkipped, Detail: reason}
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".hotbundle")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

func checkRoot(cfg *config.Config) CheckStatus {
	status := CheckStatus{Name: "root"}

	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		status.Status = StatusError
		status.Detail = err.Error()
		return status
	}

	info, err := os.Stat(abs)
	switch {
	case err != nil:
		status.Status = StatusError
		status.Detail = fmt.Sprintf("cannot read %s: %v", abs, err)
	case !info.IsDir():
		status.Status = StatusError
		status.Detail = fmt.Sprintf("%s is not a directory", abs)
	default:
		status.Status = StatusOK
		status.Detail = abs
	}
	return status
}

// checkEntry verifies the entry file exists. When it does not, the scripts
// under the root are searched for likely alternatives.
func checkEntry(cfg *config.Config) CheckStatus {
	status := CheckStatus{Name: "entry"}
	path := cfg.EntryPath()

	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		status.Status = StatusOK
		status.Detail = path
		return status
	}

	status.Status = StatusError
	status.Detail = fmt.Sprintf("%s does not exist", path)
	if suggestions := suggestEntries(cfg.Root, cfg.Entry); len(suggestions) > 0 {
		status.Detail += "; did you mean " + strings.Join(suggestions, ", ") + "?"
	}
	return status
}

const maxSuggestions = 3

func suggestEntries(root, entry string) []string {
	files, err := scanner.Scan(root)
	if err != nil || len(files) == 0 {
		return nil
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Path
	}

	var out []string
	for _, match := range fuzzy.Find(filepath.ToSlash(entry), names) {
		out = append(out, match.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func checkGraph(ctx context.Context, cfg *config.Config) (CheckStatus, *bundler.Result) {
	status := CheckStatus{Name: "graph"}

	b, err := bundler.New(cfg.Root, cfg.Entry, bundler.WithLogger(log.Nop()))
	if err != nil {
		status.Status = StatusError
		status.Detail = err.Error()
		return status, nil
	}

	result, err := b.Precompile(ctx)
	if err != nil {
		status.Status = StatusError
		status.Detail = err.Error()
		return status, nil
	}

	status.Status = StatusOK
	status.Detail = fmt.Sprintf("%d files", len(result.Files))
	if n := len(result.RemovedEdges); n > 0 {
		edges := make([]string, n)
		for i, e := range result.RemovedEdges {
			edges[i] = result.Rel(e.From) + " -> " + result.Rel(e.To)
		}
		status.Status = StatusWarn
		status.Detail += fmt.Sprintf(", circular imports dropped: %s", strings.Join(edges, "; "))
	}
	return status, result
}

// checkEntryPoint evaluates the bundle once and confirms the entry point
// binding is a function. It does not invoke it.
func checkEntryPoint(cfg *config.Config, bundle *bundler.Result) CheckStatus {
	status := CheckStatus{Name: "entry point"}

	sandbox := engine.NewGojaSandbox(
		engine.WithEntryPoint(cfg.EntryPoint),
		engine.WithLogger(log.Nop()),
	)
	if _, err := sandbox.Compile(bundle.Code); err != nil {
		status.Status = StatusError
		status.Detail = err.Error()
		return status
	}

	status.Status = StatusOK
	status.Detail = cfg.EntryPoint
	return status
}

// checkController asks a running loop for its status over the control
// socket. No listener is not an error.
func checkController(ctx context.Context, cfg *config.Config) CheckStatus {
	status := CheckStatus{Name: "control"}

	client := control.NewClient(control.WithSocketPath(cfg.SocketPath), control.WithTimeout(time.Second))
	st, err := client.Status(ctx)
	if err != nil {
		status.Status = StatusSkipped
		status.Detail = fmt.Sprintf("no run loop listening on %s", cfg.SocketPath)
		return status
	}

	status.Status = StatusOK
	status.Detail = fmt.Sprintf("running=%t test_running=%t iteration=%d", st.Running, st.TestRunning, st.Iteration)
	return status
}
