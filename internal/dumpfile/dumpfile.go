// Package dumpfile decides where a clone's dump lives and whether it
// survives the run.
package dumpfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vbp1/pgdbcopy/internal/util/fs"
)

// TimestampLayout is used in durable dump file names.
const TimestampLayout = "20060102T150405"

// Policy selects durable or temporary dump storage.
// An empty Dir means temporary.
type Policy struct {
	Dir string
	// Keep bounds the number of durable dumps retained per database;
	// 0 keeps all of them.
	Keep int
}

// Temporary reports whether dumps are deleted after use.
func (p Policy) Temporary() bool { return p.Dir == "" }

func (p Policy) String() string {
	if p.Temporary() {
		return "temporary"
	}
	return "durable(" + p.Dir + ")"
}

// File is one dump file path plus the knowledge of how to dispose of it.
type File struct {
	Path string

	// runDir is the per-run directory owning Path when the policy is temporary.
	runDir string
}

// New allocates a dump path for database. Durable dumps are named
// {database}-{timestamp}.sql inside the policy directory; temporary dumps
// live in a fresh directory under the system temp dir.
func New(p Policy, database string, now time.Time) (*File, error) {
	name := fmt.Sprintf("%s-%s.sql", database, now.Format(TimestampLayout))
	if p.Temporary() {
		dir, err := os.MkdirTemp("", "pgdbcopy_*")
		if err != nil {
			return nil, err
		}
		return &File{Path: filepath.Join(dir, name), runDir: dir}, nil
	}
	if err := fs.MkdirP(p.Dir); err != nil {
		return nil, fmt.Errorf("create dump dir: %w", err)
	}
	return &File{Path: filepath.Join(p.Dir, name)}, nil
}

// Temporary reports whether Remove deletes anything.
func (f *File) Temporary() bool { return f.runDir != "" }

// Remove deletes a temporary dump and its run directory. It is a no-op for
// durable dumps and safe to call more than once.
func (f *File) Remove() error {
	if f == nil || f.runDir == "" {
		return nil
	}
	if err := os.RemoveAll(f.runDir); err != nil {
		return err
	}
	return nil
}

// Discard deletes the dump whatever the policy. It is used for dumps that
// did not complete, so they are never mistaken for retained ones.
func (f *File) Discard() error {
	if f == nil {
		return nil
	}
	if f.runDir != "" {
		return f.Remove()
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Size returns the dump size in bytes, 0 if it does not exist.
func (f *File) Size() int64 {
	st, err := os.Stat(f.Path)
	if err != nil {
		return 0
	}
	return st.Size()
}

func (f *File) String() string { return fmt.Sprintf("DumpFile(%s)", f.Path) }

// Prune removes the oldest durable dumps of database beyond p.Keep and
// returns the removed paths. Only files named {database}-{timestamp}.sql
// are considered.
func Prune(p Policy, database string) ([]string, error) {
	if p.Temporary() || p.Keep <= 0 {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(p.Dir, database+"-*.sql"))
	if err != nil {
		return nil, err
	}
	var dumps []string
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), database+"-"), ".sql")
		if _, err := time.Parse(TimestampLayout, stamp); err == nil {
			dumps = append(dumps, m)
		}
	}
	if len(dumps) <= p.Keep {
		return nil, nil
	}
	// timestamps sort lexically
	sort.Strings(dumps)
	old := dumps[:len(dumps)-p.Keep]
	return old, fs.RemoveFiles(old...)
}
