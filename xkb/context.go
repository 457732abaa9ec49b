// Package xkb compiles keymaps and tracks keyboard state.
//
// A Context holds the include paths and the log settings used to compile
// keymaps. A Keymap (see package keymap) is immutable and may be shared by
// any number of State values, each tracking one keyboard.
package xkb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/Alia5/goxkb/internal/configpaths"
	"github.com/Alia5/goxkb/internal/log"
	"github.com/Alia5/goxkb/internal/xkbcomp"
	"github.com/Alia5/goxkb/internal/xkbdata"
	"github.com/Alia5/goxkb/rules"
)

// ContextFlags tune NewContext.
type ContextFlags uint32

const (
	NoFlags ContextFlags = 0
	// NoDefaultIncludes starts the Context without any include path.
	NoDefaultIncludes ContextFlags = 1 << 0
	// NoEnvironmentNames ignores the XKB_DEFAULT_* variables when filling
	// in missing RMLVO names.
	NoEnvironmentNames ContextFlags = 1 << 1
)

// BuiltinIncludePath is the include path entry standing for the embedded
// data set.
const BuiltinIncludePath = "builtin:"

// Environment variables seeding the log settings.
const (
	EnvLogLevel     = "XKB_LOG_LEVEL"
	EnvLogVerbosity = "XKB_LOG_VERBOSITY"
)

// Context carries the include paths and log settings keymaps are compiled
// with. It is safe to use from several goroutines, though changing it
// while a compilation runs affects that compilation only partially.
type Context struct {
	mu sync.Mutex

	flags    ContextFlags
	getenv   func(string) string
	builtin  fs.FS
	includes []string
	pending  []string

	level     LogLevel
	verbosity int
	logFn     LogFunc
	logger    *slog.Logger
}

// ContextOption configures a Context in NewContext.
type ContextOption func(*Context) error

// WithGetenv replaces the environment lookup, os.Getenv by default.
func WithGetenv(getenv func(string) string) ContextOption {
	return func(c *Context) error {
		if getenv == nil {
			getenv = func(string) string { return "" }
		}
		c.getenv = getenv
		return nil
	}
}

// WithBuiltinData replaces the embedded data set. A nil fsys disables it.
func WithBuiltinData(fsys fs.FS) ContextOption {
	return func(c *Context) error {
		c.builtin = fsys
		return nil
	}
}

// WithIncludePaths appends include paths ahead of the default ones.
func WithIncludePaths(dirs ...string) ContextOption {
	return func(c *Context) error {
		c.pending = append(c.pending, dirs...)
		return nil
	}
}

// WithLogger sets the logger of the default log sink.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) error {
		if logger == nil {
			return errors.New("nil logger")
		}
		c.logger = logger
		return nil
	}
}

// NewContext returns a Context. Unless NoDefaultIncludes is set it searches
// the default include directories followed by the builtin data.
func NewContext(flags ContextFlags, opts ...ContextOption) (*Context, error) {
	c := &Context{
		flags:   flags,
		getenv:  os.Getenv,
		builtin: xkbdata.FS(),
		level:   LogError,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if v := c.getenv(EnvLogLevel); v != "" {
		if l, err := ParseLogLevel(v); err == nil {
			c.level = l
		}
	}
	if v := c.getenv(EnvLogVerbosity); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.verbosity = n
		}
	}

	pending := c.pending
	c.pending = nil
	for _, dir := range pending {
		if err := c.IncludePathAppend(dir); err != nil {
			return nil, err
		}
	}
	if flags&NoDefaultIncludes == 0 && c.IncludePathAppendDefault() == 0 && len(pending) == 0 {
		c.logf(LogError, "failed to add any default include path")
		return nil, fmt.Errorf("%w: no default include path usable", ErrIncludePath)
	}
	return c, nil
}

// Flags returns the flags the Context was created with.
func (c *Context) Flags() ContextFlags { return c.flags }

// IncludePathAppend adds dir to the end of the include path list. dir
// must be an existing directory, or BuiltinIncludePath.
func (c *Context) IncludePathAppend(dir string) error {
	if dir == BuiltinIncludePath {
		if c.builtin == nil {
			return &includePathError{path: dir, kind: ErrIncludePathNotExist}
		}
		c.appendInclude(dir)
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		c.logf(LogDebug, "include path %s: %v", dir, err)
		if errors.Is(err, fs.ErrNotExist) {
			return &includePathError{path: dir, kind: ErrIncludePathNotExist}
		}
		return &includePathError{path: dir, kind: ErrIncludePath, err: err}
	}
	if !info.IsDir() {
		c.logf(LogDebug, "include path %s is not a directory", dir)
		return &includePathError{path: dir, kind: ErrIncludePathNotDir}
	}
	c.appendInclude(dir)
	c.logf(LogDebug, "include path added: %s", dir)
	return nil
}

func (c *Context) appendInclude(dir string) {
	c.mu.Lock()
	c.includes = append(c.includes, dir)
	c.mu.Unlock()
}

// IncludePathAppendDefault appends the default include directories that
// exist and the builtin data, and returns how many entries were added.
func (c *Context) IncludePathAppendDefault() int {
	n := 0
	for _, dir := range configpaths.DefaultIncludeDirs(c.getenv) {
		if c.IncludePathAppend(dir) == nil {
			n++
		}
	}
	if c.builtin != nil && c.IncludePathAppend(BuiltinIncludePath) == nil {
		n++
	}
	return n
}

// IncludePathResetDefaults replaces the include path list with the
// defaults.
func (c *Context) IncludePathResetDefaults() int {
	c.IncludePathClear()
	return c.IncludePathAppendDefault()
}

// IncludePathClear removes every include path, the builtin data included.
func (c *Context) IncludePathClear() {
	c.mu.Lock()
	c.includes = nil
	c.mu.Unlock()
}

func (c *Context) NumIncludePaths() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.includes)
}

// IncludePath returns the i-th include path.
func (c *Context) IncludePath(i int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.includes) {
		return "", false
	}
	return c.includes[i], true
}

// IncludePaths yields a snapshot of the include paths in search order.
func (c *Context) IncludePaths() iter.Seq[string] {
	return slices.Values(c.includePaths())
}

func (c *Context) includePaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.includes)
}

// readData looks name (a slash separated path like "symbols/us") up in
// the include paths, first match wins.
func (c *Context) readData(name string) (string, []byte, error) {
	for _, dir := range c.includePaths() {
		if dir == BuiltinIncludePath {
			data, err := fs.ReadFile(c.builtin, name)
			if err == nil {
				return BuiltinIncludePath + name, data, nil
			}
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
				continue
			}
			return "", nil, err
		}
		p := filepath.Join(dir, filepath.FromSlash(name))
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return "", nil, err
	}
	return "", nil, fs.ErrNotExist
}

// includer resolves compiler include statements through the include paths.
func (c *Context) includer() xkbcomp.Includer {
	return xkbcomp.IncluderFunc(func(kind xkbcomp.Kind, file string) (string, []byte, error) {
		name, data, err := c.readData(path.Join(kind.Dir(), file))
		if errors.Is(err, fs.ErrNotExist) {
			c.logf(LogDebug, "%s file %q not found in %d include paths", kind.Dir(), file, c.NumIncludePaths())
			return "", nil, fmt.Errorf("%w: %s/%s", xkbcomp.ErrIncludeNotFound, kind.Dir(), file)
		}
		return name, data, err
	})
}

// loadRules reads the rules table called name.
func (c *Context) loadRules(name string) (*rules.Table, error) {
	file, data, err := c.readData(path.Join("rules", name+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", rules.ErrRulesNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	t, err := rules.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return t, nil
}

func (c *Context) compileOptions() xkbcomp.Options {
	return xkbcomp.Options{
		Includer: c.includer(),
		Logger: slog.New(log.NewFuncHandler(func(l slog.Level, msg string) {
			c.log(levelFromSlog(l), msg)
		}, nil)),
		Verbosity: c.LogVerbosity(),
	}
}

// SetLogLevel sets the least important level that is still logged.
func (c *Context) SetLogLevel(level LogLevel) {
	c.mu.Lock()
	c.level = level
	c.mu.Unlock()
}

func (c *Context) LogLevel() LogLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// SetLogVerbosity sets how chatty compiler warnings are. 0 only shows
// warnings that likely break the keymap; 10 shows everything.
func (c *Context) SetLogVerbosity(v int) {
	c.mu.Lock()
	c.verbosity = v
	c.mu.Unlock()
}

func (c *Context) LogVerbosity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verbosity
}

// SetLogFunc routes messages to fn. A nil fn restores the default sink,
// which writes to the Context's slog logger. fn is called without any
// Context lock held and may use the Context.
func (c *Context) SetLogFunc(fn LogFunc) {
	c.mu.Lock()
	c.logFn = fn
	c.mu.Unlock()
}

// SetLogger sets the logger of the default sink.
func (c *Context) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Context) log(level LogLevel, msg string) {
	c.mu.Lock()
	if level > c.level {
		c.mu.Unlock()
		return
	}
	fn, logger, verbosity := c.logFn, c.logger, c.verbosity
	c.mu.Unlock()

	if fn != nil {
		fn(c, level, msg)
		return
	}
	logger.Log(context.Background(), level.Slog(), msg,
		"xkb_level", level.String(),
		"verbosity", verbosity,
	)
}

func (c *Context) logf(level LogLevel, format string, args ...any) {
	if level > c.LogLevel() {
		return
	}
	c.log(level, fmt.Sprintf(format, args...))
}

// defaultNames fills the empty fields of names.
func (c *Context) defaultNames(names *rules.Names) rules.Names {
	var n rules.Names
	if names != nil {
		n = *names
	}
	getenv := c.getenv
	if c.flags&NoEnvironmentNames != 0 {
		getenv = nil
	}
	return n.WithDefaults(getenv)
}
