package serde

import (
	"errors"
	"fmt"
)

// ErrVersionMismatch is returned when decoding a version outside
// CompatibleVersions. This is a fatal, job-startup-aborting
// condition, not something swallowed or retried.
var ErrVersionMismatch = errors.New("serde: version mismatch")

func versionMismatch(v int) error {
	return fmt.Errorf("%w: unsupported version %d, supported versions are %v", ErrVersionMismatch, v, CompatibleVersions)
}
