package orchestrator

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/draftware/stampkit/internal/update/resolver"
)

// CheckResult is what a background check delivers back to the host side.
type CheckResult struct {
	Descriptor *resolver.ReleaseDescriptor
	State      State
	Err        error
}

// CheckInBackground runs Check without blocking the caller and delivers the
// result over the returned channel. The channel is buffered, so the check
// completes even if nobody ever reads it; the host UI reads the channel from
// its own event loop rather than being called on a foreign goroutine.
func (o *Orchestrator) CheckInBackground(ctx context.Context) <-chan CheckResult {
	results := make(chan CheckResult, 1)

	go func() {
		desc, err := o.Check(ctx)
		if err != nil {
			log.Warnf("background update check failed: %v", err)
		}
		results <- CheckResult{Descriptor: desc, State: o.State(), Err: err}
	}()

	return results
}
