package lux

import (
	"fmt"

	"github.com/lux-pm/lux/internal/installer"
)

// ManifestError is returned for a lux.toml that fails to parse or
// violates the manifest schema: an unknown platform tag, an invalid
// version string, or an unrecognized build backend.
type ManifestError struct {
	Field  string
	Reason string
}

func (e *ManifestError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("manifest: %s", e.Reason)
	}
	return fmt.Sprintf("manifest: %s: %s", e.Field, e.Reason)
}

// LockfileError is returned for a lockfile that fails Validate or whose
// on-disk form doesn't parse. Lock contention itself is never an error
// (WithWriteGuard blocks instead); this covers schema mismatch and
// integrity corruption only.
type LockfileError struct {
	Path   string
	Reason string
}

func (e *LockfileError) Error() string {
	return fmt.Sprintf("lockfile %s: %s", e.Path, e.Reason)
}

// PartialFailureError is returned by a sync when one or more nodes ended
// in installer.StateFailed: the batch as a whole still committed whatever
// succeeded, but the caller must surface a non-zero outcome.
type PartialFailureError struct {
	Failed []installer.NodeResult
}

func (e *PartialFailureError) Error() string {
	if len(e.Failed) == 1 {
		return fmt.Sprintf("sync: 1 package failed to build: %v", e.Failed[0].Err)
	}
	return fmt.Sprintf("sync: %d packages failed to build", len(e.Failed))
}

// FailedResults returns the StateFailed entries of results, or nil if
// none failed.
func FailedResults(results []installer.NodeResult) []installer.NodeResult {
	var failed []installer.NodeResult
	for _, r := range results {
		if r.State == installer.StateFailed {
			failed = append(failed, r)
		}
	}
	return failed
}
