// Package storage provides the filesystem primitives the resource stores and
// the job queue are built on: the path layout, an atomic whole-document
// store, and the process-local lock manager.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FS is the document store, rooted at the data directory. Documents are
// always written whole (tmp file → fsync → rename), so readers never observe
// a partial file. Serialization is indented JSON so the tree stays greppable.
type FS struct {
	root string // absolute path to data directory
	log  *slog.Logger
}

// NewFS creates a new FS rooted at the given directory.
// The directory must already exist.
func NewFS(root string, log *slog.Logger) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if log == nil {
		log = slog.Default()
	}
	return &FS{root: abs, log: log}, nil
}

// safePath resolves a relative path against the data root and rejects any
// result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" || rel == RootKey {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes data root: %s", rel)
	}
	return abs, nil
}

// EnsureDir creates a directory and all missing ancestors. Idempotent.
func (f *FS) EnsureDir(rel string) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", rel, err)
	}
	return nil
}

// ReadJSON parses the document at rel into a T. A missing file returns
// (nil, nil). A file that exists but fails to parse logs a corruption
// diagnostic and also returns (nil, nil): callers universally treat "absent"
// and "never existed" identically, so corruption is never surfaced as an
// error.
func ReadJSON[T any](f *FS, rel string) (*T, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		f.log.Warn("storage: corrupt document, treating as absent",
			slog.String("path", rel), slog.String("error", err.Error()))
		return nil, nil
	}
	return &v, nil
}

// WriteJSON serializes v with stable two-space indentation and atomically
// replaces the document at rel, creating parent directories as needed.
func (f *FS) WriteJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", rel, err)
	}
	return f.Write(rel, append(data, '\n'))
}

// WriteJSONExisting is WriteJSON without parent directory creation.
func (f *FS) WriteJSONExisting(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", rel, err)
	}
	return f.WriteExisting(rel, append(data, '\n'))
}

// Read returns the raw bytes of a file under the data root.
func (f *FS) Read(rel string) ([]byte, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename. Missing
// parent directories are created.
func (f *FS) Write(rel string, content []byte) error {
	return f.write(rel, content, true)
}

// WriteExisting is Write without parent directory creation: if the owning
// directory is gone the write fails instead of recreating it, so a content
// write racing a structural delete cannot resurrect a removed tree.
func (f *FS) WriteExisting(rel string, content []byte) error {
	return f.write(rel, content, false)
}

func (f *FS) write(rel string, content []byte, mkdirParent bool) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if mkdirParent {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".inkwell-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Remove deletes a single file.
func (f *FS) Remove(rel string) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: remove %s: %w", rel, err)
	}
	return nil
}

// RemoveAll deletes a directory tree. No error if it does not exist.
func (f *FS) RemoveAll(rel string) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: refusing to remove data root")
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("storage: remove all %s: %w", rel, err)
	}
	return nil
}

// Rename moves a file or directory within the data root. Parent directories
// of the destination are created as needed. The rename itself is atomic.
func (f *FS) Rename(oldRel, newRel string) error {
	absOld, err := f.safePath(oldRel)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newRel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for rename: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// DirExists reports whether rel exists and is a directory.
func (f *FS) DirExists(rel string) (bool, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", rel, err)
	}
	return info.IsDir(), nil
}

// FileExists reports whether rel exists and is a regular file.
func (f *FS) FileExists(rel string) (bool, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", rel, err)
	}
	return info.Mode().IsRegular(), nil
}

// ListDir returns the sorted names of entries directly under rel. A missing
// directory yields an empty list, matching the absent-document convention.
func (f *FS) ListDir(rel string) ([]string, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", rel, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".inkwell-tmp-") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// ModTime returns the modification time of rel.
func (f *FS) ModTime(rel string) (time.Time, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: stat %s: %w", rel, err)
	}
	return info.ModTime(), nil
}

// CopyDir deep-copies the directory tree at srcRel to dstRel. Regular files
// only. The copies are not fsynced individually; callers rewrite every
// copied document (atomically) before it becomes reachable through the
// index.
func (f *FS) CopyDir(srcRel, dstRel string) error {
	absSrc, err := f.safePath(srcRel)
	if err != nil {
		return err
	}
	absDst, err := f.safePath(dstRel)
	if err != nil {
		return err
	}
	err = filepath.WalkDir(absSrc, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(absSrc, p)
		if err != nil {
			return err
		}
		target := filepath.Join(absDst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(p, target)
	})
	if err != nil {
		return fmt.Errorf("storage: copy %s to %s: %w", srcRel, dstRel, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
