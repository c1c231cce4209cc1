package clone

import (
	"fmt"
	"time"

	"github.com/vbp1/pgdbcopy/internal/dumpfile"
	"github.com/vbp1/pgdbcopy/internal/pgtool"
)

// Request describes one clone operation. It is built at submission time and
// never modified afterwards.
type Request struct {
	SourceDatabase string
	TargetDatabase string

	// Zero values fall back to the ambient connection defaults.
	SourceCredentials pgtool.ConnParams
	TargetCredentials pgtool.ConnParams

	// RequestingUser resolves the notification address.
	RequestingUser string

	Dump dumpfile.Policy
}

// Stage is one ordered step of a clone run.
type Stage string

const (
	StageDropTarget    Stage = "DropTarget"
	StageCreateTarget  Stage = "CreateTarget"
	StageDumpSource    Stage = "DumpSource"
	StageRestoreTarget Stage = "RestoreTarget"
	StagePostProcess   Stage = "PostProcess"
	StageCleanup       Stage = "Cleanup"
	StageNotify        Stage = "Notify"

	// StageAborted marks a run that ended abnormally outside any stage.
	// It is not part of Stages().
	StageAborted Stage = "Aborted"
)

// Stages lists every stage in execution order.
func Stages() []Stage {
	return []Stage{
		StageDropTarget, StageCreateTarget, StageDumpSource, StageRestoreTarget,
		StagePostProcess, StageCleanup, StageNotify,
	}
}

// Outcome is the single terminal result of a Request.
// A zero Stage means success.
type Outcome struct {
	Source string
	Target string

	// Stage and Detail are set only on failure. Detail is the failing
	// tool's diagnostic text, verbatim.
	Stage  Stage
	Detail string

	Elapsed time.Duration
}

// Succeeded reports whether every stage completed.
func (o Outcome) Succeeded() bool { return o.Stage == "" }

// DataIntact reports whether the target holds a complete copy, which is the
// case on success and after a PostProcess failure.
func (o Outcome) DataIntact() bool { return o.Succeeded() || o.Stage == StagePostProcess }

func (o Outcome) String() string {
	if o.Succeeded() {
		return fmt.Sprintf("Success(%s -> %s)", o.Source, o.Target)
	}
	return fmt.Sprintf("Failed(%s, %s)", o.Stage, o.Detail)
}
