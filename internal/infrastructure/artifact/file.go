package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
)

// File is a JSON document on disk replaced by temp-file + rename, so readers
// see either the previous or the next version.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

func (f *File) WriteJSON(ctx context.Context, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := sonic.ConfigStd.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace artifact %s: %w", f.path, err)
	}
	return nil
}

// ReadJSON decodes the artifact into out. ok is false when it does not exist.
func (f *File) ReadJSON(_ context.Context, out any) (bool, error) {
	payload, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read artifact %s: %w", f.path, err)
	}
	if err := sonic.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("decode artifact %s: %w", f.path, err)
	}
	return true, nil
}

func (f *File) ModifiedAt(_ context.Context) (time.Time, bool, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("stat artifact %s: %w", f.path, err)
	}
	return info.ModTime(), true, nil
}
