// Package daemon runs the sync engine continuously: periodic reconciliation
// passes, a manual trigger, and reactive propagation of local note edits
// observed through a file system watcher.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/markvault/ksync/internal/logger"
	"github.com/markvault/ksync/internal/sync"
	"github.com/markvault/ksync/internal/vault"
)

// Config holds daemon configuration.
type Config struct {
	// Interval is how often a periodic pass runs.
	Interval time.Duration

	// EditDebounce is the quiet window after a local document modification
	// before the edit is propagated upstream. Every further modification
	// within the window restarts it.
	EditDebounce time.Duration

	// Logger for daemon activity.
	Logger logger.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:     time.Hour,
		EditDebounce: 3 * time.Second,
		Logger:       logger.Nop(),
	}
}

// Daemon orchestrates periodic passes and local-edit watching.
type Daemon struct {
	syncer *sync.Syncer
	store  *vault.Store
	config *Config

	watcher *fsnotify.Watcher
	trigger chan struct{}

	pendingMu gosync.Mutex
	pending   map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// New creates a daemon around a configured driver and vault.
func New(syncer *sync.Syncer, store *vault.Store, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("vault store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		syncer:  syncer,
		store:   store,
		config:  config,
		watcher: watcher,
		trigger: make(chan struct{}, 1),
		pending: make(map[string]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// TriggerSync requests an immediate pass. A pass already pending or running
// absorbs the trigger; nothing queues.
func (d *Daemon) TriggerSync() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Start begins daemon operation: one initial pass, then the periodic loop
// and the vault watcher. Blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	syncFolder := d.store.Abs(d.syncer.Policy().SyncFolder)
	if err := d.store.MkdirAll(d.syncer.Policy().SyncFolder); err != nil {
		return err
	}
	if err := d.watcher.Add(syncFolder); err != nil {
		return fmt.Errorf("failed to watch %s: %w", syncFolder, err)
	}
	d.config.Logger.Infof("watching %s", syncFolder)

	d.runPass(ctx)

	d.wg.Add(2)
	go d.passLoop(ctx)
	go d.watchEvents()

	select {
	case <-ctx.Done():
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down, cancelling pending edit timers and backfills.
func (d *Daemon) Stop() error {
	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Warnf("error closing watcher: %v", err)
	}
	d.wg.Wait()

	d.pendingMu.Lock()
	for path, t := range d.pending {
		t.Stop()
		delete(d.pending, path)
	}
	d.pendingMu.Unlock()

	d.syncer.CancelBackfills()
	d.config.Logger.Infof("daemon stopped")
	return nil
}

// passLoop runs passes on the interval ticker and on manual triggers.
func (d *Daemon) passLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runPass(ctx)
		case <-d.trigger:
			d.config.Logger.Infof("manual sync triggered")
			d.runPass(ctx)
		}
	}
}

// runPass executes one pass, logging the outcome. An overlapping trigger is
// rejected by the driver and only noted at debug level.
func (d *Daemon) runPass(ctx context.Context) {
	res, err := d.syncer.Run(ctx)
	switch {
	case errors.Is(err, sync.ErrSyncInProgress):
		d.config.Logger.Debugf("pass skipped: %v", err)
	case err != nil:
		d.config.Logger.Errorf("pass failed: %v", err)
	default:
		d.config.Logger.Infof("%s", res.Message)
	}
}

// watchEvents monitors the vault for document modifications and defers each
// one behind a per-document quiet window.
func (d *Daemon) watchEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isMarkdown(event.Name) {
				continue
			}
			rel, err := d.store.Rel(event.Name)
			if err != nil {
				continue
			}
			d.debounceEdit(rel)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Warnf("watcher error: %v", err)
		}
	}
}

// debounceEdit arms (or restarts) the one-shot propagation timer for a
// document. The timer fires only after the quiet window elapses with no
// further modification.
func (d *Daemon) debounceEdit(rel string) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	if t, ok := d.pending[rel]; ok {
		t.Stop()
	}
	d.pending[rel] = time.AfterFunc(d.config.EditDebounce, func() {
		d.pendingMu.Lock()
		delete(d.pending, rel)
		d.pendingMu.Unlock()

		if err := d.syncer.PropagateLocalEdit(d.ctx, rel); err != nil {
			d.config.Logger.Warnf("local edit propagation for %s failed: %v", rel, err)
		}
	})
}

func isMarkdown(path string) bool {
	return strings.HasSuffix(path, ".md")
}
