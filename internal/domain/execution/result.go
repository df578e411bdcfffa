package execution

import "time"

// Status summarises how a sandboxed run ended.
type Status string

const (
	StatusOK          Status = "OK"
	StatusTimeLimit   Status = "TL"
	StatusMemoryLimit Status = "ML"
	StatusBuildFail   Status = "BF"
)

// Result captures the outcome of executing a script.
type Result struct {
	Status   Status
	Stdout   string
	Stderr   string
	ExitCode int64
	Duration time.Duration
	// Artifacts holds the files requested through Script.Artifacts that
	// existed when the run finished, keyed by name.
	Artifacts map[string][]byte
}

// Artifact returns the named artifact and whether it was collected.
func (r *Result) Artifact(name string) ([]byte, bool) {
	if r == nil || r.Artifacts == nil {
		return nil, false
	}
	data, ok := r.Artifacts[name]
	return data, ok
}
