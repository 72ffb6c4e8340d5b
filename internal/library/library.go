// Package library implements the shared sub-query pool as a directory of
// .sql files with a YAML header. Parsed files are cached; a cached entity
// is stale once its file's modification time passes the cached one, and
// stale entries are reloaded on access.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/ctesplit/internal/scanner"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// FileExt is the extension of library files.
const FileExt = ".sql"

// Config holds Library options.
type Config struct {
	// Dir is the library root; it is created on first write.
	Dir     string
	Scanner *scanner.Scanner
	Logger  *slog.Logger
	// Workers bounds parallel file loads during Refresh.
	Workers int
}

type cached struct {
	entity  *core.Entity
	path    string
	modTime time.Time
}

// Library is a file-backed core.SharedStore.
type Library struct {
	dir     string
	scanner *scanner.Scanner
	logger  *slog.Logger
	workers int

	mu     sync.RWMutex
	byKey  map[string]*cached
	files  map[string]fileState // every parsed file, including shadowed duplicates
	loaded bool
}

var _ core.SharedStore = (*Library)(nil)

// New creates a Library rooted at cfg.Dir.
func New(cfg Config) *Library {
	l := &Library{
		dir:     cfg.Dir,
		scanner: cfg.Scanner,
		logger:  cfg.Logger,
		workers: cfg.Workers,
		byKey:   make(map[string]*cached),
		files:   make(map[string]fileState),
	}
	if l.scanner == nil {
		l.scanner = scanner.New()
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.workers <= 0 {
		l.workers = 8
	}
	return l
}

// Dir returns the library root.
func (l *Library) Dir() string {
	return l.dir
}

// Get returns the entity named name, reloading its file when stale.
func (l *Library) Get(name string) (*core.Entity, error) {
	if err := l.ensureLoaded(); err != nil {
		return nil, err
	}
	stale, err := l.IsStale(name)
	if err != nil {
		return nil, err
	}
	if stale {
		if err := l.Refresh(); err != nil {
			return nil, err
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.byKey[core.NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrEntityNotFound, name)
	}
	return c.entity.Clone(), nil
}

// List refreshes stale files and returns all entities sorted by name.
func (l *Library) List() ([]*core.Entity, error) {
	if err := l.Refresh(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*core.Entity, 0, len(l.byKey))
	for _, c := range l.byKey {
		out = append(out, c.entity.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Put writes an entity to <dir>/<name>.sql, replacing the file of an
// existing entity with the same name.
func (l *Library) Put(e *core.Entity) error {
	if e == nil || e.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if strings.ContainsAny(e.Name, `/\`) || e.Name == "." || e.Name == ".." {
		return fmt.Errorf("invalid library entity name %q", e.Name)
	}
	if err := l.ensureLoaded(); err != nil {
		return err
	}

	content, err := Render(e)
	if err != nil {
		return err
	}

	key := e.Key()
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, e.Name+FileExt)
	if c, ok := l.byKey[key]; ok {
		path = c.path
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	stored := e.Clone()
	stored.UpdatedAt = info.ModTime()
	l.byKey[key] = &cached{entity: stored, path: path, modTime: info.ModTime()}
	l.files[path] = fileState{key: key, modTime: info.ModTime()}
	l.logger.Debug("wrote library entity", "name", e.Name, "path", path)
	return nil
}

// Delete removes the file of an entity.
func (l *Library) Delete(name string) error {
	if err := l.ensureLoaded(); err != nil {
		return err
	}
	key := core.NormalizeName(name)

	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.byKey[key]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrEntityNotFound, name)
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", c.path, err)
	}
	delete(l.byKey, key)
	delete(l.files, c.path)
	return nil
}

// IsStale reports whether the cached copy of name is out of date: its
// file changed or disappeared since it was cached. A name that is not
// cached is stale when a file for it exists.
func (l *Library) IsStale(name string) (bool, error) {
	key := core.NormalizeName(name)

	l.mu.RLock()
	c, ok := l.byKey[key]
	l.mu.RUnlock()

	if !ok {
		_, err := os.Stat(filepath.Join(l.dir, name+FileExt))
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to stat library file: %w", err)
		}
		return true, nil
	}

	info, err := os.Stat(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", c.path, err)
	}
	return info.ModTime().After(c.modTime), nil
}

// Refresh reconciles the cache with the directory: new and modified files
// are parsed, entries for removed files are dropped. Unchanged files are
// not read.
func (l *Library) Refresh() error {
	files, err := l.listFiles()
	if err != nil {
		return err
	}

	l.mu.RLock()
	var changed []fileInfo
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.path] = true
		st, known := l.files[f.path]
		if !known || !f.modTime.Equal(st.modTime) {
			changed = append(changed, f)
		}
	}
	var removed []string
	for path := range l.files {
		if !present[path] {
			removed = append(removed, path)
		}
	}
	l.mu.RUnlock()

	loaded := make([]*cached, len(changed))
	g := new(errgroup.Group)
	g.SetLimit(l.workers)
	for i, f := range changed {
		g.Go(func() error {
			c, err := l.load(f)
			if err != nil {
				return err
			}
			loaded[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, path := range removed {
		st := l.files[path]
		delete(l.files, path)
		if c := l.byKey[st.key]; c != nil && c.path == path {
			delete(l.byKey, st.key)
		}
	}
	for _, c := range loaded {
		key := c.entity.Key()
		if st, ok := l.files[c.path]; ok && st.key != key {
			// renamed through its header
			if prev := l.byKey[st.key]; prev != nil && prev.path == c.path {
				delete(l.byKey, st.key)
			}
		}
		l.files[c.path] = fileState{key: key, modTime: c.modTime}
		if prev, ok := l.byKey[key]; ok && prev.path != c.path {
			l.logger.Warn("duplicate library entity, keeping the later file",
				"name", c.entity.Name, "kept", c.path, "ignored", prev.path)
		}
		l.byKey[key] = c
	}
	l.loaded = true

	if len(changed) > 0 || len(removed) > 0 {
		l.logger.Debug("refreshed library", "loaded", len(changed), "removed", len(removed))
	}
	return nil
}

// Invalidate forgets the cached state of one file so that the next access
// reloads it.
func (l *Library) Invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.files[path]; ok {
		st.modTime = time.Time{}
		l.files[path] = st
		if c := l.byKey[st.key]; c != nil && c.path == path {
			c.modTime = time.Time{}
		}
	}
}

func (l *Library) ensureLoaded() error {
	l.mu.RLock()
	loaded := l.loaded
	l.mu.RUnlock()
	if loaded {
		return nil
	}
	return l.Refresh()
}

type fileState struct {
	key     string
	modTime time.Time
}

type fileInfo struct {
	path    string
	modTime time.Time
}

func (l *Library) listFiles() ([]fileInfo, error) {
	var files []fileInfo
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != l.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != FileExt {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, fileInfo{path: path, modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read library %s: %w", l.dir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

func (l *Library) load(f fileInfo) (*cached, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	parsed, err := ParseFile(string(content))
	if err != nil {
		var pe *FrontmatterParseError
		var ue *UnknownFieldError
		switch {
		case errors.As(err, &pe):
			pe.File = f.path
		case errors.As(err, &ue):
			ue.File = f.path
		}
		return nil, err
	}

	h := parsed.Header
	if h.Name == "" {
		h.Name = strings.TrimSuffix(filepath.Base(f.path), FileExt)
	}
	e := &core.Entity{
		Name:         h.Name,
		Body:         parsed.Body,
		Description:  h.Description,
		Dependencies: h.Dependencies,
		Columns:      h.Columns,
		Recursive:    h.Recursive,
		Quoted:       h.Quoted,
		UpdatedAt:    f.modTime,
	}
	if !parsed.HasDependencies {
		res := l.scanner.ScanWithFallback(e.Body)
		if res.Degraded {
			l.logger.Warn("library file scanned with fallback", "path", f.path, "error", res.Cause)
		}
		e.Dependencies = dropSelf(res.Names, e.Key())
	}
	e.OutputColumns, _ = scanner.OutputColumns(e.Body)
	return &cached{entity: e, path: f.path, modTime: f.modTime}, nil
}

func dropSelf(names []string, key string) []string {
	var out []string
	for _, n := range names {
		if core.NormalizeName(n) != key {
			out = append(out, n)
		}
	}
	return out
}
