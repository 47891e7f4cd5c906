package preflight

import (
	"context"

	"templateflow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	// Required checks block daemon startup when they fail.
	Required bool
	Detail   string
}

// Pinger is satisfied by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// minFreeBytes is the free space below which the data directory check fails.
const minFreeBytes = 64 << 20

// RunAll executes every preflight check for the given config. db may be nil
// when no store has been opened yet.
func RunAll(ctx context.Context, cfg *config.Config, db Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		required(CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)),
		required(CheckFreeSpace("Data volume", cfg.Paths.DataDir, minFreeBytes)),
	}
	if db != nil {
		results = append(results, required(CheckDatabase(ctx, db)))
	}
	results = append(results, CheckCredentials(cfg))
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func required(r Result) Result {
	r.Required = true
	return r
}
