package clone

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPreflightRejected matches every *PreflightError.
var ErrPreflightRejected = errors.New("clone request rejected")

// PreflightError is returned synchronously when a request fails validation.
// No external command has run when it is returned.
type PreflightError struct {
	Reason string
}

func (e *PreflightError) Error() string { return "preflight rejected: " + e.Reason }

func (e *PreflightError) Is(target error) bool { return target == ErrPreflightRejected }

// Rejectf builds a *PreflightError.
func Rejectf(format string, args ...any) error {
	return &PreflightError{Reason: fmt.Sprintf(format, args...)}
}

// Rules is the target safety predicate.
type Rules struct {
	// Marker must appear in every target name and must not appear in the
	// source name.
	Marker string
	// LiveDatabase is the database the host application is connected to.
	LiveDatabase string
}

// Validate checks req against the rules before anything destructive runs.
func (r Rules) Validate(req Request) error {
	switch {
	case req.SourceDatabase == "":
		return Rejectf("source database is empty")
	case req.TargetDatabase == "":
		return Rejectf("target database is empty")
	case r.Marker == "":
		return Rejectf("no target marker configured; refusing destructive clone")
	case req.TargetDatabase == req.SourceDatabase:
		return Rejectf("target %q is the source database", req.TargetDatabase)
	case r.LiveDatabase != "" && req.TargetDatabase == r.LiveDatabase:
		return Rejectf("target %q is the live database", req.TargetDatabase)
	case !strings.Contains(req.TargetDatabase, r.Marker):
		return Rejectf("target %q does not contain the marker %q", req.TargetDatabase, r.Marker)
	case strings.Contains(req.SourceDatabase, r.Marker):
		return Rejectf("source %q is itself a copy (contains %q); clone from the live database", req.SourceDatabase, r.Marker)
	}
	return nil
}

// DefaultTarget is the target name used when none is given.
func (r Rules) DefaultTarget(source string) string { return source + r.Marker }
