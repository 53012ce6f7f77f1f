package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/draftware/stampkit/internal/config"
	"github.com/draftware/stampkit/internal/update/deploy"
	"github.com/draftware/stampkit/internal/update/download"
	"github.com/draftware/stampkit/internal/update/hostproc"
	"github.com/draftware/stampkit/internal/update/resolver"
)

var (
	// ErrBusy is returned when Check or Apply is called while a session is
	// already running. A second session is rejected, never queued.
	ErrBusy = errors.New("an update session is already running")

	// ErrInvalidState guards transitions called out of order, e.g.
	// Proceed without a pending confirmation.
	ErrInvalidState = errors.New("operation not valid in current state")
)

// Resolver checks the release feed. Satisfied by *resolver.Resolver.
type Resolver interface {
	CurrentVersion() string
	CheckForUpdate(ctx context.Context) (*resolver.ReleaseDescriptor, error)
}

// Downloader fetches a release package. Satisfied by *download.Downloader.
type Downloader interface {
	Download(ctx context.Context, desc *resolver.ReleaseDescriptor, onProgress download.ProgressFunc) (string, error)
}

// Coordinator handles the host process. Satisfied by *hostproc.Coordinator.
type Coordinator interface {
	WaitForExit(ctx context.Context, pid int32, timeout time.Duration) hostproc.ExitOutcome
	RestartHost(executablePath string) error
}

// Deployer writes package files into targets. Satisfied by *deploy.Engine.
type Deployer interface {
	Deploy(packagePath string, targets []deploy.Target) ([]deploy.Result, error)
}

// Session is the state of the one live update flow. Owned exclusively by the
// orchestrator; reset to Idle by the next Check or Apply after a terminal
// state, so callers may inspect the outcome until then.
type Session struct {
	CurrentVersion        string
	Target                *resolver.ReleaseDescriptor
	DownloadedPackagePath string
	State                 State
	LastError             error
	Results               []deploy.Result
}

// RunOptions carries the caller-side policy for one run: whether to wait for
// a host process to exit before deploying, and whether to relaunch the host
// afterwards. Both come from the launcher's command line; the host decides
// what to pass based on its unsaved-work state.
type RunOptions struct {
	HostPID     int32
	HostExePath string
}

// Orchestrator sequences check, download, host-exit wait and deployment. It
// is the single place component results are turned into state transitions.
type Orchestrator struct {
	mu      sync.Mutex
	session Session

	resolver    Resolver
	downloader  Downloader
	coordinator Coordinator
	deployer    Deployer
	targets     []deploy.Target

	hostExitTimeout time.Duration

	// OnProgress, when set, receives download percent. It is invoked from
	// the download goroutine; UI callers must marshal back to their own
	// context.
	OnProgress download.ProgressFunc
}

func New(r Resolver, d Downloader, c Coordinator, e Deployer, targets []deploy.Target, settings config.UpdateSettings) *Orchestrator {
	return &Orchestrator{
		resolver:        r,
		downloader:      d,
		coordinator:     c,
		deployer:        e,
		targets:         targets,
		hostExitTimeout: settings.HostExitTimeout,
	}
}

// Check starts a new session and queries the release feed. The returned
// descriptor is nil when already up to date (terminal UpToDate). With an
// update available the session rests in AwaitingConfirmation until Proceed
// or Cancel. Rejected with ErrBusy while a session is active.
func (o *Orchestrator) Check(ctx context.Context) (*resolver.ReleaseDescriptor, error) {
	if err := o.beginSession(Checking); err != nil {
		return nil, err
	}

	desc, err := o.resolver.CheckForUpdate(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	// A Cancel may have landed while the feed request was in flight.
	if o.session.State != Checking {
		return nil, nil
	}

	switch {
	case err != nil:
		o.toLocked(Failed)
		o.session.LastError = err
		return nil, err
	case desc == nil:
		o.toLocked(UpToDate)
		return nil, nil
	default:
		o.session.Target = desc
		o.toLocked(UpdateAvailable)
		o.toLocked(AwaitingConfirmation)
		return desc, nil
	}
}

// Cancel aborts a session that is still waiting on a decision (or still
// checking). Anything past Downloading cannot be cancelled; the flow runs to
// a terminal state on its own.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.session.State {
	case AwaitingConfirmation, Checking:
		o.toLocked(Cancelled)
		return nil
	default:
		return ErrInvalidState
	}
}

// Proceed runs the confirmed update: download, optional host-exit wait,
// deployment, optional host relaunch. Returns the terminal state.
func (o *Orchestrator) Proceed(ctx context.Context, opts RunOptions) (State, error) {
	o.mu.Lock()
	if o.session.State != AwaitingConfirmation || o.session.Target == nil {
		state := o.session.State
		o.mu.Unlock()
		return state, ErrInvalidState
	}
	target := o.session.Target
	o.toLocked(Downloading)
	o.mu.Unlock()

	packagePath, err := o.downloader.Download(ctx, target, o.OnProgress)
	if err != nil {
		return o.fail(err), err
	}

	o.mu.Lock()
	o.session.DownloadedPackagePath = packagePath
	o.mu.Unlock()

	return o.deployPhase(ctx, packagePath, opts)
}

// Apply deploys an already-downloaded package, skipping check and download.
// This is the launcher's deploy-only mode: the host half fetched the package
// before handing off, and the launcher finishes the job.
func (o *Orchestrator) Apply(ctx context.Context, packagePath string, opts RunOptions) (State, error) {
	if err := o.beginSession(Deploying); err != nil {
		return o.State(), err
	}

	o.mu.Lock()
	o.session.DownloadedPackagePath = packagePath
	o.mu.Unlock()

	return o.deployPhase(ctx, packagePath, opts)
}

// deployPhase covers WaitingForHostExit onward, shared by Proceed and Apply.
func (o *Orchestrator) deployPhase(ctx context.Context, packagePath string, opts RunOptions) (State, error) {
	if opts.HostPID > 0 {
		o.transition(WaitingForHostExit)
		outcome := o.coordinator.WaitForExit(ctx, opts.HostPID, o.hostExitTimeout)
		// TimedOut is deliberate go-ahead, see hostproc.
		log.Infof("host wait finished: %s", outcome)
	}

	o.transition(Deploying)
	results, err := o.deployer.Deploy(packagePath, o.targets)

	o.mu.Lock()
	o.session.Results = results
	o.mu.Unlock()

	if err != nil {
		return o.fail(err), err
	}

	_, failed := deploy.Summarize(results)
	terminal := Completed
	if failed > 0 {
		terminal = PartiallyFailed
	}
	o.transition(terminal)

	if opts.HostExePath != "" {
		if err := o.coordinator.RestartHost(opts.HostExePath); err != nil {
			// Files are deployed; the user starts the host manually.
			log.Warnf("host relaunch failed: %v", err)
		}
	}

	return terminal, nil
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.State
}

// Session returns a snapshot of the live session for inspection.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := o.session
	snapshot.Results = append([]deploy.Result(nil), o.session.Results...)
	return snapshot
}

// beginSession gates entry: allowed from Idle or any terminal state (which
// it clears), rejected while a session is running.
func (o *Orchestrator) beginSession(initial State) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session.State != Idle && !o.session.State.Terminal() {
		return ErrBusy
	}

	o.session = Session{
		CurrentVersion: o.resolver.CurrentVersion(),
		State:          Idle,
	}
	o.toLocked(initial)
	return nil
}

func (o *Orchestrator) fail(err error) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.LastError = err
	o.toLocked(Failed)
	return Failed
}

func (o *Orchestrator) transition(next State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.toLocked(next)
}

// toLocked records a transition; o.mu must be held.
func (o *Orchestrator) toLocked(next State) {
	log.Debugf("update session: %s -> %s", o.session.State, next)
	o.session.State = next
}
