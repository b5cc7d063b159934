package tempjobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"go.uber.org/multierr"
)

// Reap removes jobs left behind by earlier runs: every job whose name starts with prefix and that
// was created more than olderThan ago. It returns the removed jobs; removal failures are
// aggregated and the remaining jobs are still attempted.
func Reap(ctx context.Context, gateway Gateway, prefix string, olderThan time.Duration) ([]JobID, error) {
	if prefix == "" {
		return nil, fmt.Errorf("refusing to reap jobs without a name prefix")
	}

	jobs, err := gateway.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)

	ids := make([]JobID, 0, len(jobs))
	for id := range jobs {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var (
		reaped []JobID
		errs   error
	)

	for _, id := range ids {
		spec := jobs[id]
		if spec == nil || !strings.HasPrefix(spec.Name, prefix+"-") {
			continue
		}

		if spec.Created.After(cutoff) {
			glog.V(params.Log100Level).Infof("Keeping job %s created at %s", id, spec.Created)

			continue
		}

		glog.V(params.LogLevel).Infof("Reaping stale job %s created at %s", id, spec.Created)

		if err := gateway.Remove(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to remove job %s: %w", id, err))

			continue
		}

		reaped = append(reaped, id)
	}

	return reaped, errs
}
