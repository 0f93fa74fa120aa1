package config

import "fmt"

// ConfigError is returned for problems in the configuration itself: an
// interpreter version that could not be determined, or a registry list
// that leaves nothing to resolve against. Kept distinct from the
// manifest/lockfile error types so a CLI layer can map each to its own
// stable exit code per the error taxonomy.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Reason)
}
