package resolve

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchOptions tunes a batch resolution run.
type BatchOptions struct {
	// Workers bounds concurrent resolutions. Resolution is embarrassingly
	// parallel: every worker only reads the tree.
	Workers int

	// Timeout is the per-function deadline. A timed-out function degrades
	// to its placeholder; the batch continues.
	Timeout time.Duration
}

// ResolveAll resolves each distinct function name once and returns the
// mapping keyed by name. Results are written to per-function slots and
// collected only after every worker has finished, so there are no
// interleaved partial writes. Failure isolation is per function: nothing
// a single resolution does can abort the batch.
func (r *Resolver) ResolveAll(ctx context.Context, functions []string, opts BatchOptions) map[string]FunctionLocation {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	seen := make(map[string]bool, len(functions))
	names := make([]string, 0, len(functions))
	for _, name := range functions {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	results := make([]FunctionLocation, len(names))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			fnCtx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				fnCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}
			results[i] = r.Resolve(fnCtx, name)
			return nil
		})
	}
	// Workers never return errors; per-function failures are encoded in
	// the result status.
	_ = g.Wait()

	out := make(map[string]FunctionLocation, len(results))
	for _, loc := range results {
		out[loc.Function] = loc
	}
	return out
}
