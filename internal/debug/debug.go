package debug

import (
	"fmt"
	"os"
	"time"
)

// Environment variables controlling test stop points.
const (
	EnvStop   = "PGDBCOPY_TEST_STOP"
	EnvResume = "PGDBCOPY_TEST_RESUME"
)

// StopIf pauses the calling goroutine when PGDBCOPY_TEST_STOP equals label.
// It prints a marker line to stderr so tests know the stop point was reached,
// then waits until the file named by PGDBCOPY_TEST_RESUME exists. Without a
// resume file it blocks forever.
func StopIf(label string) {
	if os.Getenv(EnvStop) != label {
		return
	}
	fmt.Fprintf(os.Stderr, "TEST_stop_point_%s\n", label)
	resume := os.Getenv(EnvResume)
	if resume == "" {
		select {}
	}
	for {
		if _, err := os.Stat(resume); err == nil {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}
