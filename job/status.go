package job

import "time"

// BatchStatus is the running state of a job or step execution.
type BatchStatus string

// Statuses are listed in order of severity, where the later wins on Upgrade.
const (
	Completed BatchStatus = "COMPLETED"
	Starting  BatchStatus = "STARTING"
	Started   BatchStatus = "STARTED"
	Stopping  BatchStatus = "STOPPING"
	Stopped   BatchStatus = "STOPPED"
	Failed    BatchStatus = "FAILED"
	Abandoned BatchStatus = "ABANDONED"
	Unknown   BatchStatus = "UNKNOWN"
)

var statusSeverity = map[BatchStatus]int{
	Completed: 0,
	Starting:  1,
	Started:   2,
	Stopping:  3,
	Stopped:   4,
	Failed:    5,
	Abandoned: 6,
	Unknown:   7,
}

func (s BatchStatus) severity() int {
	if v, ok := statusSeverity[s]; ok {
		return v
	}
	return statusSeverity[Unknown]
}

// IsRunning returns true if the execution has not finished yet.
func (s BatchStatus) IsRunning() bool {
	return s == Starting || s == Started || s == Stopping
}

// IsUnsuccessful returns true for FAILED and anything more severe.
func (s BatchStatus) IsUnsuccessful() bool {
	return s.severity() >= Failed.severity()
}

// Upgrade returns the status an execution should have after moving from s to o.
// Once past STARTED, the more severe status wins. Otherwise COMPLETED wins over
// the starting states.
func (s BatchStatus) Upgrade(o BatchStatus) BatchStatus {
	if s.severity() > Started.severity() || o.severity() > Started.severity() {
		return maxStatus(s, o)
	}
	if s == Completed || o == Completed {
		return Completed
	}
	return maxStatus(s, o)
}

func maxStatus(a, b BatchStatus) BatchStatus {
	if a.severity() >= b.severity() {
		return a
	}
	return b
}

// baseStatus is the part of the status common to job and step executions.
type baseStatus struct {
	Status     BatchStatus `json:"status"`
	ExitStatus ExitStatus  `json:"exitStatus"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	EndedAt    *time.Time  `json:"endedAt,omitempty"`
}

func newBaseStatus() baseStatus {
	return baseStatus{
		Status:     Starting,
		ExitStatus: ExitUnknown,
	}
}

func (s *baseStatus) start() {
	now := time.Now()
	s.Status = Started
	s.ExitStatus = ExitExecuting
	s.StartedAt = &now
}

func (s *baseStatus) end() {
	now := time.Now()
	s.EndedAt = &now
}

// Elapsed returns the running time of the execution, up to now if it has not ended yet.
func (s *baseStatus) Elapsed() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.EndedAt == nil {
		return time.Since(*s.StartedAt)
	}
	return s.EndedAt.Sub(*s.StartedAt)
}
