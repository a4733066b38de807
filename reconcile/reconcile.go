// Package reconcile applies a desired Settings model to an instance's
// configuration files: it backs the files up, converts every document in
// memory, writes the results and finally rewrites the environment file.
//
// A save is not a transaction. A failed environment file rewrite does not
// undo the XML writes, and concurrent saves against one instance must be
// serialized by the caller.
package reconcile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creachadair/atomicfile"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/tcserver/tcconfig/backup"
	"github.com/tcserver/tcconfig/config"
	"github.com/tcserver/tcconfig/convert"
	"github.com/tcserver/tcconfig/diag"
	"github.com/tcserver/tcconfig/envfile"
	"github.com/tcserver/tcconfig/logging"
	"github.com/tcserver/tcconfig/placeholder"
	"github.com/tcserver/tcconfig/settings"
	"github.com/tcserver/tcconfig/xmldoc"
)

// WriteError is one file that could not be written.
type WriteError struct {
	File string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.File, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// WriteErrors aggregates every write failure of a save.
type WriteErrors []*WriteError

func (e WriteErrors) Error() string {
	msgs := make([]string, len(e))
	for i, we := range e {
		msgs[i] = we.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e WriteErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, we := range e {
		out[i] = we
	}
	return out
}

// Result summarizes a save.
type Result struct {
	// BackupDir is the backup set holding the previous versions.
	BackupDir string
	Written   []string
	Unchanged []string
}

// FileDiff is the pending change of one file.
type FileDiff struct {
	File string
	Diff string
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used to name backup sets.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator reconciles one instance. It keeps no state between calls.
type Coordinator struct {
	cfg config.Config
	env envfile.File
	now func() time.Time
}

// New validates cfg and returns a Coordinator for it.
func New(cfg config.Config, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	dialect, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		cfg: cfg,
		env: envfile.File{Dialect: dialect, Protected: cfg.ProtectedOptions},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// document binds one managed XML file to its converters.
type document struct {
	path  string
	root  string
	read  func(*convert.Context, *settings.Settings) error
	write func(*convert.Context, *settings.Settings) error
}

func (c *Coordinator) documents() []document {
	return []document{
		{
			path: c.cfg.Path(c.cfg.ServerXML),
			root: convert.ServerRoot,
			read: func(ctx *convert.Context, s *settings.Settings) error {
				var err error
				if s.General, err = convert.ReadGeneral(ctx); err != nil {
					return err
				}
				if s.DataSources, err = convert.ReadDataSources(ctx); err != nil {
					return err
				}
				s.Services, err = convert.ReadServices(ctx)
				return err
			},
			write: func(ctx *convert.Context, s *settings.Settings) error {
				convert.WriteGeneral(ctx, s.General)
				if err := convert.WriteDataSources(ctx, s.DataSources); err != nil {
					return err
				}
				return convert.WriteServices(ctx, s.Services)
			},
		},
		{
			path: c.cfg.Path(c.cfg.WebXML),
			root: convert.WebAppRoot,
			read: func(ctx *convert.Context, s *settings.Settings) error {
				var err error
				s.Defaults, err = convert.ReadDefaults(ctx)
				return err
			},
			write: func(ctx *convert.Context, s *settings.Settings) error {
				return convert.WriteDefaults(ctx, s.Defaults)
			},
		},
		{
			path: c.cfg.Path(c.cfg.ContextXML),
			root: convert.ContextRoot,
			read: func(ctx *convert.Context, s *settings.Settings) error {
				var err error
				s.Context, err = convert.ReadContext(ctx)
				return err
			},
			write: func(ctx *convert.Context, s *settings.Settings) error {
				convert.WriteContext(ctx, s.Context)
				return nil
			},
		},
	}
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Properties loads the property set used to resolve placeholders.
func (c *Coordinator) Properties() (placeholder.Properties, error) {
	return placeholder.LoadProperties(
		c.cfg.Path(c.cfg.PropertiesFile),
		absOrSelf(c.cfg.Home()),
		absOrSelf(c.cfg.InstanceDir),
	)
}

func (c *Coordinator) parse(d document, props placeholder.Properties, w *diag.Warnings) (*convert.Context, []byte, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", d.path, err)
	}
	doc, err := xmldoc.Parse(filepath.Base(d.path), data, d.root)
	if err != nil {
		return nil, nil, err
	}
	return &convert.Context{Doc: doc, Props: props, Warn: w}, data, nil
}

// readEnv returns the environment file, or nil when it does not exist.
func (c *Coordinator) readEnv() ([]byte, error) {
	data, err := os.ReadFile(c.cfg.Path(c.cfg.EnvFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.cfg.EnvFile, err)
	}
	return data, nil
}

// Load reads the current Settings of the instance. Recoverable problems
// such as malformed numbers are returned as warnings.
func (c *Coordinator) Load() (*settings.Settings, *diag.Warnings, error) {
	props, err := c.Properties()
	if err != nil {
		return nil, nil, err
	}
	w := &diag.Warnings{}
	s := &settings.Settings{}
	for _, d := range c.documents() {
		ctx, _, err := c.parse(d, props, w)
		if err != nil {
			return nil, w, err
		}
		if err := d.read(ctx, s); err != nil {
			return nil, w, err
		}
	}

	data, err := c.readEnv()
	if err != nil {
		return nil, w, err
	}
	s.Environment = c.env.Read(data, w)
	return s, w, nil
}

// pending is a converted file waiting to be written.
type pending struct {
	path     string
	old, new []byte
}

func (p pending) changed() bool { return !bytes.Equal(p.old, p.new) }

// convertAll loads every document and merges desired into it in memory.
// Nothing is written; the first failure aborts.
func (c *Coordinator) convertAll(desired *settings.Settings) ([]pending, error) {
	props, err := c.Properties()
	if err != nil {
		return nil, err
	}
	w := &diag.Warnings{}
	var out []pending
	for _, d := range c.documents() {
		ctx, old, err := c.parse(d, props, w)
		if err != nil {
			return nil, err
		}
		if err := d.write(ctx, desired); err != nil {
			return nil, fmt.Errorf("convert %s: %w", d.path, err)
		}
		data, err := ctx.Doc.Marshal()
		if err != nil {
			return nil, err
		}
		out = append(out, pending{path: d.path, old: old, new: data})
	}
	return out, nil
}

func (c *Coordinator) convertEnv(desired *settings.Settings) (pending, error) {
	old, err := c.readEnv()
	if err != nil {
		return pending{}, err
	}
	return pending{
		path: c.cfg.Path(c.cfg.EnvFile),
		old:  old,
		new:  c.env.Rewrite(old, desired.Environment),
	}, nil
}

// Save makes the instance match desired. XML documents are backed up,
// converted and only then written; a backup or conversion failure aborts
// before any file changes. Write failures are collected into WriteErrors.
// The environment file is handled last, under the same backup set.
func (c *Coordinator) Save(desired *settings.Settings) (*Result, error) {
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	set := backup.New(c.cfg.InstanceDir, c.now).Begin()
	for _, d := range c.documents() {
		if _, err := set.Backup(d.path); err != nil {
			return nil, err
		}
	}

	docs, err := c.convertAll(desired)
	if err != nil {
		return nil, err
	}

	res := &Result{BackupDir: set.Dir}
	var errs WriteErrors
	for _, p := range docs {
		c.write(p, res, &errs)
	}

	env, err := c.convertEnv(desired)
	switch {
	case err != nil:
		errs = append(errs, &WriteError{File: c.cfg.Path(c.cfg.EnvFile), Err: err})
	case env.changed():
		if _, err := set.Backup(env.path); err != nil {
			errs = append(errs, &WriteError{File: env.path, Err: err})
			break
		}
		c.write(env, res, &errs)
	default:
		res.Unchanged = append(res.Unchanged, env.path)
	}

	if len(errs) > 0 {
		return res, errs
	}
	return res, nil
}

func (c *Coordinator) write(p pending, res *Result, errs *WriteErrors) {
	if !p.changed() {
		res.Unchanged = append(res.Unchanged, p.path)
		return
	}
	mode := fileMode(p.path, c.cfg.EnvFile)
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		*errs = append(*errs, &WriteError{File: p.path, Err: &backup.PermissionError{Dir: filepath.Dir(p.path), Err: err}})
		return
	}
	if err := atomicfile.WriteData(p.path, p.new, mode); err != nil {
		logging.Error("Reconcile", err, "Failed to write %s", p.path)
		*errs = append(*errs, &WriteError{File: p.path, Err: err})
		return
	}
	logging.Info("Reconcile", "Wrote %s", p.path)
	res.Written = append(res.Written, p.path)
}

// fileMode keeps the mode of an existing file. New shell scripts are
// created executable.
func fileMode(path, envFile string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	if strings.HasSuffix(envFile, ".sh") && strings.HasSuffix(path, envFile) {
		return 0o755
	}
	return 0o644
}

// Plan returns the unified diff of every file Save would change, without
// writing anything.
func (c *Coordinator) Plan(desired *settings.Settings) ([]FileDiff, error) {
	if err := desired.Validate(); err != nil {
		return nil, err
	}
	docs, err := c.convertAll(desired)
	if err != nil {
		return nil, err
	}
	env, err := c.convertEnv(desired)
	if err != nil {
		return nil, err
	}

	var out []FileDiff
	for _, p := range append(docs, env) {
		if !p.changed() {
			continue
		}
		name := c.relative(p.path)
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(p.old)),
			B:        difflib.SplitLines(string(p.new)),
			FromFile: "a/" + name,
			ToFile:   "b/" + name,
			Context:  3,
		})
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", name, err)
		}
		out = append(out, FileDiff{File: name, Diff: diff})
	}
	return out, nil
}

func (c *Coordinator) relative(path string) string {
	if rel, err := filepath.Rel(c.cfg.InstanceDir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// Snapshot backs up every managed file, plus the files matching patterns,
// into a new backup set.
func (c *Coordinator) Snapshot(patterns ...string) (*backup.Set, []string, error) {
	set := backup.New(c.cfg.InstanceDir, c.now).Begin()
	var saved []string
	files := []string{c.cfg.Path(c.cfg.PropertiesFile), c.cfg.Path(c.cfg.EnvFile)}
	for _, d := range c.documents() {
		files = append(files, d.path)
	}
	for _, f := range files {
		dest, err := set.Backup(f)
		if err != nil {
			return set, saved, err
		}
		if dest != "" {
			saved = append(saved, dest)
		}
	}
	if len(patterns) > 0 {
		more, err := set.Glob(patterns...)
		saved = append(saved, more...)
		if err != nil {
			return set, saved, err
		}
	}
	return set, saved, nil
}

// Restore copies the newest backup set over the instance.
func (c *Coordinator) Restore() (string, error) {
	return backup.RestoreLatest(c.cfg.InstanceDir)
}

// Backups lists the backup sets of the instance.
func (c *Coordinator) Backups() ([]backup.Info, error) {
	return backup.List(c.cfg.InstanceDir)
}

// Config returns the configuration the Coordinator was built with.
func (c *Coordinator) Config() config.Config { return c.cfg }
