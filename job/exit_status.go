package job

// ExitStatus is the outcome of an execution, reported to whoever launched it.
// Unlike BatchStatus, the exit code can be any string.
type ExitStatus struct {
	ExitCode        string `json:"exitCode"`
	ExitDescription string `json:"exitDescription,omitempty"`
}

var (
	ExitUnknown   = ExitStatus{ExitCode: "UNKNOWN"}
	ExitExecuting = ExitStatus{ExitCode: "EXECUTING"}
	ExitCompleted = ExitStatus{ExitCode: "COMPLETED"}
	ExitNoop      = ExitStatus{ExitCode: "NOOP"}
	ExitFailed    = ExitStatus{ExitCode: "FAILED"}
	ExitStopped   = ExitStatus{ExitCode: "STOPPED"}
)

func (e ExitStatus) severity() int {
	switch e.ExitCode {
	case ExitExecuting.ExitCode:
		return 1
	case ExitCompleted.ExitCode:
		return 2
	case ExitNoop.ExitCode:
		return 3
	case ExitStopped.ExitCode:
		return 4
	case ExitFailed.ExitCode:
		return 5
	case ExitUnknown.ExitCode:
		return 6
	}
	return 7
}

// And combines two exit statuses. The more severe exit code is kept and the descriptions are joined.
// Custom exit codes are considered more severe than any predefined one.
func (e ExitStatus) And(o ExitStatus) ExitStatus {
	combined := e.AddExitDescription(o.ExitDescription)
	if o.severity() > e.severity() {
		combined.ExitCode = o.ExitCode
	}
	return combined
}

// AddExitDescription appends a description, separated by "; ".
func (e ExitStatus) AddExitDescription(desc string) ExitStatus {
	if desc == "" || desc == e.ExitDescription {
		return e
	}
	if e.ExitDescription == "" {
		e.ExitDescription = desc
		return e
	}
	e.ExitDescription += "; " + desc
	return e
}

// WithError adds the error message to the description.
func (e ExitStatus) WithError(err error) ExitStatus {
	if err == nil {
		return e
	}
	return e.AddExitDescription(err.Error())
}

// Equals compares exit codes only.
func (e ExitStatus) Equals(o ExitStatus) bool {
	return e.ExitCode == o.ExitCode
}

func (e ExitStatus) IsRunning() bool {
	return e.ExitCode == ExitExecuting.ExitCode || e.ExitCode == ExitUnknown.ExitCode
}

func (e ExitStatus) String() string {
	if e.ExitDescription == "" {
		return e.ExitCode
	}
	return e.ExitCode + " (" + e.ExitDescription + ")"
}
