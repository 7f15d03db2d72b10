// Package daemon runs the watch loop that bridges filesystem events to the
// conversion and cleanup pipeline.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/farmergreg/rfsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/fsnotify.v1"

	"github.com/amerry19/heic2jpg/internal/config"
	"github.com/amerry19/heic2jpg/internal/convert"
	"github.com/amerry19/heic2jpg/internal/excluder"
	"github.com/amerry19/heic2jpg/internal/recycle"
	"github.com/amerry19/heic2jpg/internal/utils"
)

// Daemon watches a directory and converts HEIC files as they appear.
type Daemon struct {
	cfg       *config.Config
	converter convert.Converter
	recycler  recycle.Recycler

	mu       sync.Mutex
	inflight map[string]bool
}

func New(cfg *config.Config, converter convert.Converter, recycler recycle.Recycler) *Daemon {
	return &Daemon{
		cfg:       cfg,
		converter: converter,
		recycler:  recycler,
		inflight:  make(map[string]bool),
	}
}

// Run watches the configured directory recursively and converts files until
// a termination signal arrives or ctx is cancelled. It blocks for the
// lifetime of the process; per-file errors never end the loop.
func (d *Daemon) Run(ctx context.Context) error {
	dir := utils.ExpandTilde(d.cfg.WatchDirectory)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot watch %s: not a directory", dir)
	}

	ex, err := excluder.New(d.cfg.Exclude)
	if err != nil {
		return fmt.Errorf("failed to compile exclude patterns: %w", err)
	}

	watcher, err := rfsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.AddRecursive(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Signal handling for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	log.Infof("Watching %s (auto-delete: %v)", dir, d.cfg.AutoDelete)

	// Main event handler loop. A rewrite of an existing source file emits
	// Write and triggers conversion again; that is the only retry path.
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					// Delay addresses files still being copied in
					if d.cfg.Delay > 0 {
						time.Sleep(d.cfg.Delay)
					}

					d.ProcessFile(event.Name, ex)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("watch error: ", err)
			}
		}
	}()

	select {
	case sig := <-signals:
		log.Infof("Received signal: %s, shutting down...", sig)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessFile converts a single candidate path and, when auto-delete is on,
// moves the source to the trash afterwards. Returns true if a conversion was
// attempted.
func (d *Daemon) ProcessFile(path string, ex *excluder.Excluder) bool {
	if !convert.IsSource(path) {
		return false
	}
	if ex != nil && ex.IsExcluded(path) {
		log.Debugf("Excluded: %s", path)
		return false
	}
	if _, err := os.Stat(path); err != nil {
		// Gone already, e.g. trashed after an earlier event for the same file
		log.Debugf("Skipping %s: %v", path, err)
		return false
	}

	// Watchers may deliver a Create/Write burst for one path; a path already
	// mid-conversion is dropped rather than converted twice.
	d.mu.Lock()
	if d.inflight[path] {
		d.mu.Unlock()
		log.Debugf("Already converting: %s", path)
		return false
	}
	d.inflight[path] = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.inflight, path)
		d.mu.Unlock()
	}()

	target := convert.TargetPath(path)

	log.Debugf("Converting %s...", path)
	if err := d.converter.Convert(path, target); err != nil {
		out := fmt.Sprintf("Conversion failed for %s: %v", path, err)
		log.Error(out)
		utils.SendNotification(d.cfg.Notifications, "heic2jpg", out)
		return true
	}

	out := fmt.Sprintf("Converted %s -> %s", path, target)
	log.Info(out)
	utils.SendNotification(d.cfg.Notifications, "heic2jpg", out)

	if d.cfg.AutoDelete {
		if err := d.recycler.Trash(path); err != nil {
			// The conversion stands; only the cleanup failed.
			out := fmt.Sprintf("Could not trash %s: %v", path, err)
			log.Warn(out)
			utils.SendNotification(d.cfg.Notifications, "heic2jpg", out)
		} else {
			log.Infof("Moved %s to trash", path)
		}
	}

	return true
}
