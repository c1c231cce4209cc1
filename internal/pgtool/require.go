package pgtool

import (
	"fmt"
	"os/exec"
	"strings"
)

// LookPathFunc resolves a binary name; exec.LookPath in production.
type LookPathFunc func(file string) (string, error)

// Require ensures every binary in tools can be found before anything
// destructive is attempted.
func Require(look LookPathFunc, tools ...string) error {
	if look == nil {
		look = exec.LookPath
	}
	var missing []string
	for _, t := range tools {
		if _, err := look(t); err != nil {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required commands: %s (install the PostgreSQL client tools)", strings.Join(missing, ", "))
	}
	return nil
}
