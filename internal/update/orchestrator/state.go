package orchestrator

// State is the update session's position in the flow:
//
//	Idle -> Checking -> {UpToDate | UpdateAvailable} -> AwaitingConfirmation
//	     -> Downloading -> WaitingForHostExit -> Deploying
//	     -> {Completed | PartiallyFailed | Failed}
//
// Cancelled is reachable from Checking and AwaitingConfirmation.
type State int

const (
	Idle State = iota
	Checking
	UpToDate
	UpdateAvailable
	AwaitingConfirmation
	Downloading
	WaitingForHostExit
	Deploying
	Completed
	PartiallyFailed
	Failed
	Cancelled
)

var stateNames = map[State]string{
	Idle:                 "idle",
	Checking:             "checking",
	UpToDate:             "up-to-date",
	UpdateAvailable:      "update-available",
	AwaitingConfirmation: "awaiting-confirmation",
	Downloading:          "downloading",
	WaitingForHostExit:   "waiting-for-host-exit",
	Deploying:            "deploying",
	Completed:            "completed",
	PartiallyFailed:      "partially-failed",
	Failed:               "failed",
	Cancelled:            "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the session has finished. Terminal sessions stay
// inspectable until the next Check or Apply clears them.
func (s State) Terminal() bool {
	switch s {
	case UpToDate, Completed, PartiallyFailed, Failed, Cancelled:
		return true
	default:
		return false
	}
}

// Fatal reports whether a terminal state maps to a non-zero launcher exit
// code. Only Failed does: Cancelled, UpToDate and even PartiallyFailed leave
// the installation usable.
func (s State) Fatal() bool {
	return s == Failed
}
