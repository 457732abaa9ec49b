package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Alia5/goxkb/xkb"
)

// Compile prints the text form of a keymap.
type Compile struct {
	KeymapSource `embed:""`

	Output   string        `help:"Write the keymap here instead of stdout" short:"o"`
	Watch    bool          `help:"Recompile whenever --file changes"`
	Debounce time.Duration `help:"Quiet period before recompiling in watch mode" default:"150ms"`
}

// Run is called by Kong when the compile command is executed.
func (c *Compile) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.Execute(ctx, logger, os.Stdout)
}

// Execute compiles once, or until ctx is done in watch mode.
func (c *Compile) Execute(ctx context.Context, logger *slog.Logger, stdout io.Writer) error {
	if c.Watch && c.File == "" {
		return errors.New("--watch needs --file")
	}
	xctx, err := c.NewContext(logger)
	if err != nil {
		return err
	}
	if err := c.compileOnce(xctx, stdout); err != nil {
		if !c.Watch {
			return err
		}
		logger.Error("compile failed", "file", c.File, "error", err)
	}
	if !c.Watch {
		return nil
	}
	return c.watch(ctx, logger, func() {
		if err := c.compileOnce(xctx, stdout); err != nil {
			logger.Error("compile failed", "file", c.File, "error", err)
			return
		}
		logger.Info("recompiled", "file", c.File)
	})
}

func (c *Compile) compileOnce(xctx *xkb.Context, stdout io.Writer) error {
	km, err := c.Load(xctx)
	if err != nil {
		return err
	}
	defer km.Unref()
	text, err := km.Text()
	if err != nil {
		return err
	}
	if c.Output == "" {
		_, err = io.WriteString(stdout, text)
		return err
	}
	return os.WriteFile(c.Output, []byte(text), 0o644)
}

// watch calls fn after the watched file settles. The directory is watched
// rather than the file so editors that replace the file are followed.
func (c *Compile) watch(ctx context.Context, logger *slog.Logger, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	target, err := filepath.Abs(c.File)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Info("watching keymap", "file", target)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			timer.Reset(c.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case <-timer.C:
			fn()
		}
	}
}
