// Package services holds the background helpers the TUI relies on.
package services

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// GitWatchDebounce is the debounce window for watcher events.
const GitWatchDebounce = 600 * time.Millisecond

// CommonDirResolver resolves the git directory shared by all working copies.
type CommonDirResolver interface {
	GitCommonDir(ctx context.Context) (string, error)
}

// GitWatchService signals when branch refs or worktree registrations change
// on disk, so the branch list can be reclassified.
type GitWatchService struct {
	started     bool
	waiting     bool
	commonDir   string
	roots       []string
	events      chan struct{}
	done        chan struct{}
	mu          sync.Mutex
	paths       map[string]struct{}
	watcher     *fsnotify.Watcher
	lastRefresh time.Time
	git         CommonDirResolver
	logf        func(string, ...any)
}

// NewGitWatchService creates a new GitWatchService.
func NewGitWatchService(git CommonDirResolver, logf func(string, ...any)) *GitWatchService {
	return &GitWatchService{
		git:  git,
		logf: logf,
	}
}

// Start watches HEAD, packed-refs, refs/ and worktrees/ of the common git
// directory. It reports false without error when watching is not possible.
func (w *GitWatchService) Start(ctx context.Context) (bool, error) {
	if w.started || w.git == nil {
		return false, nil
	}
	commonDir, err := w.git.GitCommonDir(ctx)
	if err != nil || commonDir == "" {
		w.debugf("auto refresh: unable to resolve git common dir: %v", err)
		return false, nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return false, err
	}

	w.started = true
	w.watcher = watcher
	w.commonDir = commonDir
	w.events = make(chan struct{}, 1)
	w.done = make(chan struct{})
	w.paths = make(map[string]struct{})
	w.roots = []string{
		filepath.Join(commonDir, "refs"),
		filepath.Join(commonDir, "worktrees"),
	}
	// packed-refs and HEAD live directly in the common dir
	w.addWatchDir(commonDir)
	for _, root := range w.roots {
		w.addWatchTree(root)
	}

	go w.run()
	w.debugf("auto refresh: watching %s", commonDir)
	return true, nil
}

// Started reports whether the watcher is running.
func (w *GitWatchService) Started() bool {
	return w.started
}

// Stop stops the watcher and closes channels.
func (w *GitWatchService) Stop() {
	if !w.started {
		return
	}
	close(w.done)
	w.started = false
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

// NextEvent returns the event channel unless a reader is already waiting on it.
func (w *GitWatchService) NextEvent() <-chan struct{} {
	if w.events == nil || w.waiting {
		return nil
	}
	w.waiting = true
	return w.events
}

// ResetWaiting clears the waiting flag after an event is processed.
func (w *GitWatchService) ResetWaiting() {
	w.waiting = false
}

// ShouldRefresh checks debounce timing for watcher events.
func (w *GitWatchService) ShouldRefresh(now time.Time) bool {
	if !w.lastRefresh.IsZero() && now.Sub(w.lastRefresh) < GitWatchDebounce {
		return false
	}
	w.lastRefresh = now
	return true
}

// Signal notifies listeners of watcher activity. Bursts collapse into one
// pending event.
func (w *GitWatchService) Signal() {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.events <- struct{}{}:
	default:
	}
}

// IsUnderRoot reports whether the path is under any watch root.
func (w *GitWatchService) IsUnderRoot(path string) bool {
	if path == "" {
		return false
	}
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// relevant filters out lock files and object writes in the common dir.
func (w *GitWatchService) relevant(path string) bool {
	if strings.HasSuffix(path, ".lock") {
		return false
	}
	if w.IsUnderRoot(path) {
		return true
	}
	switch filepath.Base(path) {
	case "HEAD", "packed-refs":
		return filepath.Dir(path) == w.commonDir
	}
	return false
}

func (w *GitWatchService) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				w.maybeWatchNewDir(event.Name)
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.Signal()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.debugf("git watcher error: %v", err)
		}
	}
}

func (w *GitWatchService) maybeWatchNewDir(path string) {
	if !w.IsUnderRoot(path) && filepath.Dir(path) != w.commonDir {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	// refs/ or worktrees/ may be created after start
	w.addWatchTree(path)
}

func (w *GitWatchService) addWatchDir(path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.paths[path]; ok {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.debugf("git watcher add failed for %s: %v", path, err)
		return
	}
	w.paths[path] = struct{}{}
}

func (w *GitWatchService) addWatchTree(root string) {
	if root == "" {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		w.addWatchDir(path)
		return nil
	})
}

func (w *GitWatchService) debugf(format string, args ...any) {
	if w.logf == nil {
		return
	}
	w.logf(format, args...)
}
