package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileBlob stores the value as a single file.
type FileBlob struct {
	Path string
}

func (f FileBlob) String() string {
	return f.Path
}

func (f FileBlob) Load(ctx context.Context) ([]byte, error) {
	contents, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return contents, nil
}

// Save writes to a temporary file next to Path and renames it over Path.
func (f FileBlob) Save(ctx context.Context, value []byte) error {
	dir := filepath.Dir(f.Path)
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = tmp.Write(value)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	err = tmp.Sync()
	if err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	err = os.Chmod(tmpPath, 0600)
	if err != nil {
		return err
	}

	return os.Rename(tmpPath, f.Path)
}
