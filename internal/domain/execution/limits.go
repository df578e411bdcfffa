package execution

import "time"

// RunLimits bounds the resources a single sandboxed run may consume.
//
// Zero fields fall back to the runtime defaults; the zero value therefore
// means "use whatever the runtime was configured with".
type RunLimits struct {
	// TimeLimit is the wall-clock budget for the run.
	TimeLimit time.Duration
	// MemoryLimitBytes caps resident memory and swap together.
	MemoryLimitBytes int64
	// MaxProcesses caps the number of processes and threads in the sandbox.
	MaxProcesses int64
}

// Merge returns l with every non-positive field replaced by the matching
// field from fallback.
func (l RunLimits) Merge(fallback RunLimits) RunLimits {
	if l.TimeLimit <= 0 {
		l.TimeLimit = fallback.TimeLimit
	}
	if l.MemoryLimitBytes <= 0 {
		l.MemoryLimitBytes = fallback.MemoryLimitBytes
	}
	if l.MaxProcesses <= 0 {
		l.MaxProcesses = fallback.MaxProcesses
	}
	return l
}
