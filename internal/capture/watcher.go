package capture

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultIgnorePatterns are path substrings skipped when watching notes
// folders, covering editor and VCS metadata that lives inside vaults.
var DefaultIgnorePatterns = []string{
	".obsidian",
	".git",
	".trash",
	".DS_Store",
	"node_modules",
}

const defaultSettleDelay = 500 * time.Millisecond

// Watcher watches a folder for transcript or note files and hands each
// newly seen file to a callback after parsing. A content-hash Tracker
// stored inside the watched folder prevents re-ingesting files across
// restarts.
type Watcher struct {
	root       string
	extensions map[string]bool
	reprocess  bool
	recursive  bool
	ignore     []string
	settle     time.Duration
	tracker    *Tracker
	onParse    func(Parsed)

	mu      sync.Mutex
	notify  *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewTranscriptWatcher watches root, non-recursively, for new .vtt and
// .txt meeting transcripts.
func NewTranscriptWatcher(root string, onParse func(Parsed)) *Watcher {
	return &Watcher{
		root:       root,
		extensions: map[string]bool{".vtt": true, ".txt": true},
		settle:     defaultSettleDelay,
		tracker:    NewTracker(filepath.Join(root, ".weft_processed.json")),
		onParse:    onParse,
	}
}

// NewNotesWatcher watches root for new and modified markdown notes,
// optionally recursing into subfolders. Modified files are re-ingested
// because the tracker keys on content, an unchanged save is still
// skipped. Paths matching DefaultIgnorePatterns are never processed.
func NewNotesWatcher(root string, recursive bool, onParse func(Parsed)) *Watcher {
	return &Watcher{
		root:       root,
		extensions: map[string]bool{".md": true, ".markdown": true},
		reprocess:  true,
		recursive:  recursive,
		ignore:     DefaultIgnorePatterns,
		settle:     defaultSettleDelay,
		tracker:    NewTracker(filepath.Join(root, ".weft_notes_processed.json")),
		onParse:    onParse,
	}
}

// Start validates the watch path, registers the directory tree with
// fsnotify and spawns the event loop. Calling Start on a running watcher
// is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("watch path does not exist: %s", w.root)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch path is not a directory: %s", w.root)
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := notify.Add(w.root); err != nil {
		notify.Close()
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	if w.recursive {
		w.addSubdirs(notify)
	}

	w.notify = notify
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.run(notify, w.stopCh, w.doneCh)

	log.Printf("watcher: watching %s", w.root)
	return nil
}

// Stop shuts down the event loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	_ = w.notify.Close()
	<-w.doneCh
	w.notify = nil
}

// IsRunning reports whether the event loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// ProcessExisting sweeps the watch path for files the tracker has not
// seen and processes each one. It returns the number of files handed to
// the callback.
func (w *Watcher) ProcessExisting() int {
	count := 0
	for _, path := range w.listFiles() {
		if w.processFile(path) {
			count++
		}
	}
	return count
}

func (w *Watcher) run(notify *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-notify.Events:
			if !ok {
				return
			}
			w.handleEvent(notify, event)
		case err, ok := <-notify.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(notify *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// New subfolders need their own watch to keep recursion live.
			if w.recursive && !w.ignored(event.Name) {
				if err := notify.Add(event.Name); err != nil {
					log.Printf("watcher: failed to watch %s: %v", event.Name, err)
				}
			}
			return
		}
		if !w.wants(event.Name) {
			return
		}
		// Give the writer a moment to finish the file.
		if w.settle > 0 {
			time.Sleep(w.settle)
		}
		w.processFile(event.Name)
		return
	}

	if w.reprocess && event.Op&fsnotify.Write == fsnotify.Write && w.wants(event.Name) {
		if w.settle > 0 {
			time.Sleep(w.settle)
		}
		w.processFile(event.Name)
	}
}

func (w *Watcher) wants(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))] && !w.ignored(path)
}

// processFile parses one file and hands it to the callback. The tracker
// is updated before the callback runs, so a failed capture does not
// retrigger on the next sweep.
func (w *Watcher) processFile(path string) bool {
	if !w.wants(path) {
		return false
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return false
	}

	done, err := w.tracker.IsProcessed(path)
	if err != nil {
		log.Printf("watcher: failed to hash %s: %v", filepath.Base(path), err)
		return false
	}
	if done {
		return false
	}

	parsed, err := ParseFile(path)
	if err != nil {
		log.Printf("watcher: failed to parse %s: %v", filepath.Base(path), err)
		return false
	}
	if err := w.tracker.MarkProcessed(path); err != nil {
		log.Printf("watcher: failed to record %s: %v", filepath.Base(path), err)
		return false
	}

	log.Printf("watcher: processing %s", filepath.Base(path))
	w.onParse(parsed)
	return true
}

func (w *Watcher) addSubdirs(notify *fsnotify.Watcher) {
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == w.root {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := notify.Add(path); err != nil {
			log.Printf("watcher: failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) listFiles() []string {
	var files []string
	if w.recursive {
		_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != w.root && w.ignored(path) {
					return filepath.SkipDir
				}
				return nil
			}
			files = append(files, path)
			return nil
		})
		return files
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, filepath.Join(w.root, entry.Name()))
		}
	}
	return files
}

func (w *Watcher) ignored(path string) bool {
	for _, pattern := range w.ignore {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}
