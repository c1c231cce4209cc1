package fs

import (
	"errors"
	"fmt"
	"os"
)

// MkdirP создает путь рекурсивно с правами 0755 (как `mkdir -p`).
// Не генерирует ошибку, если директория уже существует.
func MkdirP(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	return os.MkdirAll(path, 0o755)
}

// RemoveFiles deletes every path, ignoring ones that are already gone.
// All paths are attempted; the errors are joined.
func RemoveFiles(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
