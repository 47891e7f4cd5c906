package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"templateflow/internal/config"
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

// CheckFreeSpace verifies the volume holding path has at least minFree bytes
// available to unprivileged writers.
func CheckFreeSpace(name, path string, minFree uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFree {
		return Result{Name: name, Detail: fmt.Sprintf("%s free, need %s", humanize.IBytes(free), humanize.IBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", humanize.IBytes(free))}
}

// CheckDatabase pings the store with a short timeout.
func CheckDatabase(ctx context.Context, db Pinger) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(checkCtx); err != nil {
		return Result{Name: "Database", Detail: fmt.Sprintf("ping failed: %v", err)}
	}
	return Result{Name: "Database", Passed: true, Detail: "reachable"}
}

// CheckCredentials reports whether any token is configured and whether one
// of them carries the reviewer role. Without tokens every client is rejected.
func CheckCredentials(cfg *config.Config) Result {
	const name = "Credentials"
	if len(cfg.Auth.Tokens) == 0 {
		return Result{Name: name, Detail: "no [[auth.tokens]] configured; all clients will be rejected"}
	}
	reviewers := 0
	for _, token := range cfg.Auth.Tokens {
		if strings.EqualFold(token.Role, cfg.Workflow.ReviewerRole) {
			reviewers++
		}
	}
	if reviewers == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%d tokens, none with role %q", len(cfg.Auth.Tokens), cfg.Workflow.ReviewerRole)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d tokens, %d reviewers", len(cfg.Auth.Tokens), reviewers)}
}
