// Package transfer moves whole files in and out of an instance directory as
// base64 text.
package transfer

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creachadair/atomicfile"

	"github.com/tcserver/tcconfig/backup"
	"github.com/tcserver/tcconfig/logging"
)

// ErrPathTraversal rejects names with a segment containing "..".
var ErrPathTraversal = errors.New("path escapes the instance directory")

// resolve checks name before anything touches the filesystem and joins it
// to root.
func resolve(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	for _, seg := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if strings.Contains(seg, "..") {
			logging.Warn("Transfer", "Rejected file name %q", name)
			return "", fmt.Errorf("%q: %w", name, ErrPathTraversal)
		}
	}
	return filepath.Join(root, filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))), nil
}

// Get returns the base64 encoding of root/name.
func Get(root, name string) (string, error) {
	path, err := resolve(root, name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", name, err)
	}
	logging.Info("Transfer", "Read %s (%d bytes)", name, len(data))
	return base64.StdEncoding.EncodeToString(data), nil
}

// Put decodes content and writes it to root/name, backing up the current
// file through set first. A failed backup leaves the file untouched.
func Put(root, name, content string, set *backup.Set) error {
	path, err := resolve(root, name)
	if err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(content))
	if err != nil {
		return fmt.Errorf("put %s: invalid base64: %w", name, err)
	}
	if set != nil {
		if _, err := set.Backup(path); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &backup.PermissionError{Dir: filepath.Dir(path), Err: err}
	}
	if err := atomicfile.WriteData(path, data, 0o644); err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	logging.Info("Transfer", "Wrote %s (%d bytes)", name, len(data))
	return nil
}
