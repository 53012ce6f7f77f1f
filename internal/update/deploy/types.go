package deploy

import "fmt"

// Target is one versioned Vektra installation the plugin files are written
// into. Targets come from the static compatibility table in configuration;
// existence of RootPath is checked against the filesystem at deploy time,
// never cached.
type Target struct {
	ID                   string
	RootPath             string
	CompatibilityTag     string
	RequiredFiles        []string
	ManifestTemplatePath string
}

// Outcome classifies a single target's deployment.
type Outcome int

const (
	// Skipped means the target root does not exist: that Vektra release is
	// not installed on this machine. Not a failure.
	Skipped Outcome = iota
	Succeeded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Succeeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// Result is the per-target record of one deployment pass.
type Result struct {
	TargetID    string
	Outcome     Outcome
	FilesCopied []string
	Err         error
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", r.TargetID, r.Outcome, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.TargetID, r.Outcome)
}

// Summarize reduces a deployment pass to its aggregate outcome: Succeeded
// when every non-skipped target succeeded (and at least one did), Failed
// when no target succeeded, and a mixed pass reports Failed=false via
// PartiallyFailed semantics at the orchestrator level.
func Summarize(results []Result) (succeeded, failed int) {
	for _, r := range results {
		switch r.Outcome {
		case Succeeded:
			succeeded++
		case Failed:
			failed++
		}
	}
	return succeeded, failed
}
