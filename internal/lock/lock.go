package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// FileLock is a host-wide advisory lock on one clone target.
type FileLock struct {
	fl   *flock.Flock
	path string
}

// ForTarget returns the lock guarding target on the given server. The file
// lives in the system temp dir as pgdbcopy_<hash>.lock.
func ForTarget(host string, port int, target string) *FileLock {
	key := strings.Join([]string{host, fmt.Sprint(port), target}, "\x00")
	sum := sha256.Sum256([]byte(key))
	name := filepath.Join(os.TempDir(), fmt.Sprintf("pgdbcopy_%s.lock", hex.EncodeToString(sum[:8])))
	return &FileLock{fl: flock.New(name), path: name}
}

// Path of the lock file.
func (l *FileLock) Path() string { return l.path }

// TryLock attempts non-blocking lock.
func (l *FileLock) TryLock() (bool, error) {
	return l.fl.TryLock()
}

// Unlock releases.
func (l *FileLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return err
	}
	// lock file is recreated on demand
	_ = os.Remove(l.path)
	return nil
}
