// Package backup snapshots files before they are overwritten and restores
// the most recent snapshot.
//
// Snapshots live under <root>/backup/<timestamp>/<path relative to root>.
// The fixed-width timestamp makes lexical order chronological.
package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/creachadair/atomicfile"
	"github.com/dustin/go-humanize"

	"github.com/tcserver/tcconfig/logging"
)

const (
	// DirName is the directory under the root holding every backup set.
	DirName = "backup"
	// Layout names a backup set directory.
	Layout = "2006-01-02_15-04-05"
)

// ErrNoBackups is returned by RestoreLatest when the root has no backup set.
var ErrNoBackups = errors.New("no backups found")

// BackupError reports a file that could not be backed up. It aborts the
// operation that asked for the backup.
type BackupError struct {
	File string
	Err  error
}

func (e *BackupError) Error() string { return fmt.Sprintf("backup %s: %v", e.File, e.Err) }

func (e *BackupError) Unwrap() error { return e.Err }

// PermissionError reports a directory that could not be created or written.
type PermissionError struct {
	Dir string
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("directory %s is not writable: %v", e.Dir, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// Versioner creates backup sets under one root.
type Versioner struct {
	root string
	now  func() time.Time
}

// New returns a Versioner for root. A nil clock uses time.Now.
func New(root string, now func() time.Time) *Versioner {
	if now == nil {
		now = time.Now
	}
	return &Versioner{root: root, now: now}
}

// Root returns the directory backups are made relative to.
func (v *Versioner) Root() string { return v.root }

// Set is one timestamped backup directory. Files backed up through the
// same Set share the directory.
type Set struct {
	v     *Versioner
	Stamp string
	Dir   string
}

// Begin starts a backup set stamped with the current time. Nothing is
// created on disk until the first file is backed up.
func (v *Versioner) Begin() *Set {
	stamp := v.now().Format(Layout)
	return &Set{v: v, Stamp: stamp, Dir: filepath.Join(v.root, DirName, stamp)}
}

// Backup copies file into the set and returns the copy's path. A missing
// file is not an error and returns "". When the set directory cannot be
// created the copy is written next to the original as <file>.<stamp>.bak.
func (s *Set) Backup(file string) (string, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("Backup", "Skipping %s: file does not exist", file)
		return "", nil
	}
	if err != nil {
		return "", &BackupError{File: file, Err: err}
	}
	info, err := os.Stat(file)
	if err != nil {
		return "", &BackupError{File: file, Err: err}
	}

	dest := filepath.Join(s.Dir, s.relative(file))
	if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr != nil {
		perm := &PermissionError{Dir: filepath.Dir(dest), Err: mkErr}
		dest = fmt.Sprintf("%s.%s.bak", file, s.Stamp)
		logging.Warn("Backup", "%v; writing %s instead", perm, dest)
		if err := atomicfile.WriteData(dest, data, info.Mode().Perm()); err != nil {
			return "", &BackupError{File: file, Err: errors.Join(perm, err)}
		}
		return dest, nil
	}

	if err := atomicfile.WriteData(dest, data, info.Mode().Perm()); err != nil {
		return "", &BackupError{File: file, Err: err}
	}
	logging.Info("Backup", "Backed up %s (%s) to %s", file, humanize.Bytes(uint64(len(data))), dest)
	return dest, nil
}

// relative maps file to its path inside a set. Files outside the root keep
// only their base name.
func (s *Set) relative(file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		return filepath.Base(file)
	}
	root, err := filepath.Abs(s.v.root)
	if err != nil {
		return filepath.Base(file)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(file)
	}
	return rel
}

// Glob backs up every file under the root matching one of patterns
// (doublestar syntax, slash separated, relative to the root). Existing
// backups are never matched.
func (s *Set) Glob(patterns ...string) ([]string, error) {
	fsys := os.DirFS(s.v.root)
	seen := map[string]bool{}
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return out, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || m == DirName || strings.HasPrefix(m, DirName+"/") {
				continue
			}
			seen[m] = true
			dest, err := s.Backup(filepath.Join(s.v.root, filepath.FromSlash(m)))
			if err != nil {
				return out, err
			}
			if dest != "" {
				out = append(out, dest)
			}
		}
	}
	return out, nil
}

// Info describes one backup set on disk.
type Info struct {
	Name  string
	Time  time.Time
	Files int
	Bytes int64
}

// List returns the backup sets under root, oldest first. Directories whose
// name is not a timestamp are ignored.
func List(root string) ([]Info, error) {
	entries, err := os.ReadDir(filepath.Join(root, DirName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var out []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, err := time.ParseInLocation(Layout, e.Name(), time.Local)
		if err != nil {
			continue
		}
		info := Info{Name: e.Name(), Time: ts}
		err = filepath.WalkDir(filepath.Join(root, DirName, e.Name()), func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			info.Files++
			info.Bytes += fi.Size()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list backup %s: %w", e.Name(), err)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RestoreLatest copies the newest backup set back over root and returns
// its name.
func RestoreLatest(root string) (string, error) {
	sets, err := List(root)
	if err != nil {
		return "", err
	}
	if len(sets) == 0 {
		return "", fmt.Errorf("restore %s: %w", root, ErrNoBackups)
	}
	latest := sets[len(sets)-1]
	src := filepath.Join(root, DirName, latest.Name)

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		return restoreFile(path, filepath.Join(root, rel))
	})
	if err != nil {
		return "", fmt.Errorf("restore %s from %s: %w", root, latest.Name, err)
	}
	logging.Info("Backup", "Restored %d files (%s) from %s", latest.Files, humanize.Bytes(uint64(latest.Bytes)), latest.Name)
	return latest.Name, nil
}

func restoreFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &PermissionError{Dir: filepath.Dir(dest), Err: err}
	}
	return atomicfile.WriteData(dest, data, info.Mode().Perm())
}
