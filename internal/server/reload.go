package server

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/config"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/system"
)

// BootFunc builds a stack from a freshly loaded configuration.
type BootFunc func(ctx context.Context, cfg *config.Config) (*system.Stack, error)

// Reloader watches the config file and rebuilds the stack when it settles.
// A config that fails to load or boot leaves the running stack in place.
type Reloader struct {
	path     string
	debounce time.Duration
	boot     BootFunc
	apply    func(*system.Stack)
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending time.Time
	stats   ReloadStats
}

// ReloadStats counts watcher activity.
type ReloadStats struct {
	Events   int
	Reloads  int
	Failures int
}

// NewReloader watches path. The directory is watched rather than the file so
// that editors which save by rename are still seen.
func NewReloader(path string, debounce time.Duration, boot BootFunc, apply func(*system.Stack)) (*Reloader, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Reloader{
		path:     abs,
		debounce: debounce,
		boot:     boot,
		apply:    apply,
		watcher:  w,
	}, nil
}

// Stats returns a snapshot of watcher activity.
func (r *Reloader) Stats() ReloadStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()
	logging.Server("watching %s for changes", r.path)

	tick := time.NewTicker(max(r.debounce/5, time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			r.handleEvent(event)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			logging.ServerError("config watcher error: %v", err)

		case <-tick.C:
			if r.settled() {
				r.reload(ctx)
			}
		}
	}
}

func (r *Reloader) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != r.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	logging.ServerDebug("config %s event: %s", event.Op, event.Name)
	r.mu.Lock()
	r.pending = time.Now()
	r.stats.Events++
	r.mu.Unlock()
}

// settled reports whether a change has been quiet for the debounce window,
// clearing it if so.
func (r *Reloader) settled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending.IsZero() || time.Since(r.pending) < r.debounce {
		return false
	}
	r.pending = time.Time{}
	return true
}

func (r *Reloader) reload(ctx context.Context) {
	cfg, err := config.Load(r.path)
	if err == nil {
		var stack *system.Stack
		stack, err = r.boot(ctx, cfg)
		if err == nil {
			r.apply(stack)
			r.mu.Lock()
			r.stats.Reloads++
			r.mu.Unlock()
			logging.Server("configuration reloaded from %s", r.path)
			return
		}
	}
	r.mu.Lock()
	r.stats.Failures++
	r.mu.Unlock()
	logging.ServerWarn("reload rejected, keeping the running stack: %v", err)
}
