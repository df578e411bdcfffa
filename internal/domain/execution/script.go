package execution

// Language identifies the interpreter a Script targets.
type Language string

const (
	LanguagePython Language = "python"
)

// File is an extra file placed next to the script inside the sandbox.
type File struct {
	Name string
	Mode int64
	Data []byte
}

// Script represents a unit of source code ready for execution.
//
// Source becomes the entrypoint. Files are copied alongside it and Artifacts
// names the files that are read back from the sandbox once the run is over.
type Script struct {
	ID        string
	Language  Language
	Source    string
	Files     []File
	Artifacts []string
	Limits    RunLimits
}
