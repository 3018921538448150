// Package scheduler re-invokes the extraction pipeline on an interval and,
// optionally, when a workspace store file changes on disk. It holds no
// pipeline state; it only decides when to call the synchronous run function.
package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/thebtf/promptvault/internal/workspace"
)

// DefaultInterval is the fallback cadence between runs.
const DefaultInterval = 5 * time.Minute

// Scheduler triggers extraction runs. Runs are invoked synchronously from the
// scheduler's own loop, so two triggers can never overlap.
type Scheduler struct {
	interval  time.Duration
	watchRoot string // workspace root to watch; "" disables fs triggering
	debounce  time.Duration
	run       func(context.Context)
	logger    zerolog.Logger
	fsw       *fsnotify.Watcher
}

// New creates a Scheduler that calls run on every trigger. If watchRoot is
// non-empty, writes to store files beneath it trigger an early run after a
// short debounce.
func New(interval time.Duration, watchRoot string, run func(context.Context), logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval:  interval,
		watchRoot: watchRoot,
		debounce:  2 * time.Second,
		run:       run,
		logger:    logger,
	}
}

// Run executes one immediate run, then loops until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if s.watchRoot != "" {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			s.logger.Warn().Err(err).Msg("File watching unavailable, interval runs only")
		} else {
			defer fsw.Close()
			s.fsw = fsw
			s.addWatches(fsw)
			events = make(chan fsnotify.Event)
			errs = make(chan error)
			go forward(ctx, fsw, events, errs)
		}
	}

	// Debounce timer for store-change triggers; starts disarmed.
	debounce := time.NewTimer(time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()
	armed := false

	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopped")
			return nil

		case <-ticker.C:
			s.run(ctx)

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleEvent(event, debounce, &armed)

		case <-debounce.C:
			armed = false
			s.logger.Info().Msg("Store change detected, running early")
			s.run(ctx)
			ticker.Reset(s.interval)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// handleEvent arms the debounce timer on store-file writes and extends the
// watch set when a new workspace directory appears.
func (s *Scheduler) handleEvent(event fsnotify.Event, debounce *time.Timer, armed *bool) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// New workspace directory: its store file will appear inside.
			if err := s.fsw.Add(event.Name); err != nil {
				s.logger.Debug().Err(err).Str("path", event.Name).Msg("Failed to watch new workspace directory")
			} else {
				s.logger.Debug().Str("path", event.Name).Msg("Watching new workspace directory")
			}
			return
		}
	}

	if filepath.Base(event.Name) != workspace.StoreFileName {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if *armed && !debounce.Stop() {
		<-debounce.C
	}
	debounce.Reset(s.debounce)
	*armed = true
}

// addWatches watches the root and each workspace directory beneath it.
// fsnotify is not recursive, and the store files live one level down.
func (s *Scheduler) addWatches(fsw *fsnotify.Watcher) {
	if err := fsw.Add(s.watchRoot); err != nil {
		s.logger.Warn().Err(err).Str("path", s.watchRoot).Msg("Failed to watch workspace root")
		return
	}
	entries, err := os.ReadDir(s.watchRoot)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.watchRoot, entry.Name())
		if err := fsw.Add(dir); err != nil {
			s.logger.Debug().Err(err).Str("path", dir).Msg("Failed to watch workspace directory")
		}
	}
}

// forward relays watcher channels so the select loop can treat a closed
// watcher like any other drained source.
func forward(ctx context.Context, fsw *fsnotify.Watcher, events chan<- fsnotify.Event, errs chan<- error) {
	defer close(events)
	defer close(errs)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			select {
			case errs <- err:
			case <-ctx.Done():
				return
			}
		}
	}
}
