package hostproc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	log "github.com/sirupsen/logrus"

	"github.com/draftware/stampkit/internal/config"
)

// ErrLaunch wraps a failed host relaunch. Never fatal to the update: by the
// time a relaunch runs, the files are already deployed.
var ErrLaunch = errors.New("failed to relaunch host")

// ExitOutcome is the result of waiting for the host process.
type ExitOutcome int

const (
	// Exited means the host process is gone and its file handles have had
	// a grace period to be released.
	Exited ExitOutcome = iota
	// TimedOut means the host was still running when the wait elapsed.
	// Callers proceed with deployment anyway; the copy retry loop absorbs
	// any remaining lock.
	TimedOut
)

func (o ExitOutcome) String() string {
	if o == Exited {
		return "exited"
	}
	return "timed-out"
}

// Coordinator watches the host process that holds the plugin binary locked,
// and relaunches it after deployment.
type Coordinator struct {
	pollInterval time.Duration
	graceDelay   time.Duration

	// pidExists is swapped out in tests.
	pidExists func(ctx context.Context, pid int32) (bool, error)
}

func New(settings config.UpdateSettings) *Coordinator {
	return &Coordinator{
		pollInterval: settings.PollInterval,
		graceDelay:   settings.ExitGraceDelay,
		pidExists:    process.PidExistsWithContext,
	}
}

// WaitForExit polls until pid no longer resolves to a running process, or
// timeout elapses. TimedOut is an outcome, not an error: the host may be
// stuck on an unsaved-work dialog forever, and refusing to deploy would
// leave the update permanently wedged.
func (c *Coordinator) WaitForExit(ctx context.Context, pid int32, timeout time.Duration) ExitOutcome {
	log.Infof("waiting up to %s for host process %d to exit", timeout, pid)
	deadline := time.Now().Add(timeout)

	for {
		alive, err := c.pidExists(ctx, pid)
		if err != nil {
			log.Warnf("could not check process %d, assuming gone: %v", pid, err)
			alive = false
		}
		if !alive {
			log.Infof("host process %d has exited", pid)
			// Give the OS a moment to release file handles held by
			// the exiting process.
			c.sleep(ctx, c.graceDelay)
			return Exited
		}

		if time.Now().After(deadline) {
			log.Warnf("host process %d still running after %s, deploying anyway", pid, timeout)
			return TimedOut
		}
		if !c.sleep(ctx, c.pollInterval) {
			return TimedOut
		}
	}
}

// sleep waits for d or until ctx is done, reporting whether the full delay
// elapsed.
func (c *Coordinator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// RestartHost spawns the host executable with no arguments and does not wait
// for it.
func (c *Coordinator) RestartHost(executablePath string) error {
	cmd := exec.Command(executablePath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	log.Infof("relaunched host: %s (pid %d)", executablePath, cmd.Process.Pid)

	// Detach; the host outlives the launcher.
	if err := cmd.Process.Release(); err != nil {
		log.Warnf("could not release host process handle: %v", err)
	}
	return nil
}
