package docker

import (
	"dsacoach/internal/domain/execution"
	"dsacoach/internal/logging"
)

// Config describes how to create a Docker-backed runtime engine.
type Config struct {
	Languages     map[execution.Language]LanguageConfig
	DefaultLimits execution.RunLimits
	// User is the uid[:gid] the sandboxed process runs as. Empty keeps the image default.
	User string
	// AllowNetwork leaves the default bridge network attached. Sandboxes are offline otherwise.
	AllowNetwork bool
	// Logger reports containers that could not be cleaned up. Optional.
	Logger logging.Logger
}

// LanguageConfig specifies container settings for a single language.
type LanguageConfig struct {
	Image string
	// Workdir must be writable by Config.User; artifacts are written there.
	Workdir string
}
