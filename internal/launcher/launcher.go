package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/draftware/stampkit/internal/config"
	"github.com/draftware/stampkit/internal/update/deploy"
	"github.com/draftware/stampkit/internal/update/download"
	"github.com/draftware/stampkit/internal/update/hostproc"
	"github.com/draftware/stampkit/internal/update/orchestrator"
	"github.com/draftware/stampkit/internal/update/resolver"
	"github.com/draftware/stampkit/internal/utils/spinner"
)

// Options is the launcher's command-line contract. The host process decides
// what to pass: a PID for the seamless-restart flow, or nothing for the
// manual-close flow.
type Options struct {
	// UpdateMode runs the full check+download+deploy flow; when false the
	// launcher deploys PackagePath as-is.
	UpdateMode bool
	// Silent suppresses prompts and console output; the headless flow
	// always proceeds.
	Silent bool
	// AssumeYes skips the confirmation prompt in interactive runs.
	AssumeYes bool

	HostPID     int32
	HostExePath string
	PackagePath string
}

// Launcher wires the update components together for one out-of-process run.
type Launcher struct {
	settings config.Settings

	in     io.Reader
	out    io.Writer
	silent bool
}

func New(settings config.Settings) *Launcher {
	return &Launcher{
		settings: settings,
		in:       os.Stdin,
		out:      os.Stderr,
	}
}

// Run executes one launcher invocation. A nil error covers every non-fatal
// terminal state (Completed, PartiallyFailed, UpToDate, Cancelled); an error
// means the update failed and the process should exit non-zero.
func (l *Launcher) Run(ctx context.Context, opts Options) error {
	l.silent = opts.Silent
	orch := l.buildOrchestrator()
	runOpts := orchestrator.RunOptions{
		HostPID:     opts.HostPID,
		HostExePath: opts.HostExePath,
	}

	if !opts.UpdateMode {
		if opts.PackagePath == "" {
			return fmt.Errorf("deploy-only mode requires a package path")
		}
		state, err := orch.Apply(ctx, opts.PackagePath, runOpts)
		return l.finish(orch, state, err)
	}

	desc, err := orch.Check(ctx)
	if err != nil {
		return err
	}
	if desc == nil {
		log.Info("stampkit is up to date")
		l.say("stampkit is up to date.")
		return nil
	}

	if !l.confirm(orch.Session().CurrentVersion, desc, opts) {
		if err := orch.Cancel(); err != nil {
			return err
		}
		log.Info("update cancelled by user")
		return nil
	}

	if !opts.Silent {
		update, stop := spinner.StartProgressSpinner("Downloading update")
		orch.OnProgress = update
		defer stop()
	}

	state, err := orch.Proceed(ctx, runOpts)
	return l.finish(orch, state, err)
}

func (l *Launcher) buildOrchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(
		resolver.New(l.settings.Feed),
		download.New(l.settings.Update.ScratchDir),
		hostproc.New(l.settings.Update),
		deploy.NewEngine(l.settings.Update),
		deploy.TargetsFromConfig(l.settings.Targets),
		l.settings.Update,
	)
}

// confirm applies the proceed/cancel decision policy: headless runs always
// proceed, interactive runs ask unless --yes was given.
func (l *Launcher) confirm(current string, desc *resolver.ReleaseDescriptor, opts Options) bool {
	if opts.Silent || opts.AssumeYes {
		return true
	}

	l.say("Update available: %s -> %s", current, desc.Version)
	if desc.Notes != "" {
		l.say("%s", desc.Notes)
	}
	fmt.Fprintf(l.out, "Proceed with update? [y/N] ")

	reply, err := bufio.NewReader(l.in).ReadString('\n')
	if err != nil {
		return false
	}
	reply = strings.ToLower(strings.TrimSpace(reply))
	return reply == "y" || reply == "yes"
}

func (l *Launcher) finish(orch *orchestrator.Orchestrator, state orchestrator.State, err error) error {
	for _, result := range orch.Session().Results {
		log.Infof("target %s", result)
	}

	switch state {
	case orchestrator.Completed:
		l.say("Update installed.")
	case orchestrator.PartiallyFailed:
		l.say("Update installed for some targets; see log for failures.")
	case orchestrator.Failed:
		l.say("Update failed; see log. Try again later.")
	}

	if err != nil {
		return err
	}
	if state.Fatal() {
		return fmt.Errorf("update ended in state %s", state)
	}
	return nil
}

// say writes a console line unless the run is silent; the log sink gets
// everything regardless.
func (l *Launcher) say(format string, args ...any) {
	if l.silent {
		return
	}
	fmt.Fprintf(l.out, format+"\n", args...)
}
