package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fileSuffix marks item files inside the area directory.
const fileSuffix = ".item"

// FileArea stores one file per key in a directory.
// Writes are atomic (temp file + rename), so several processes can share
// the directory. Watchers are told about changes other processes make;
// writes through this FileArea are not reported back to its own watchers.
type FileArea struct {
	dir string

	mu     sync.Mutex
	closed bool
	// known is the last content seen or written per key, used to drop
	// duplicate and self-inflicted fsnotify events.
	known map[string]string

	watchers watchers
	fsw      *fsnotify.Watcher
	done     chan struct{}
	onError  func(error)
}

// FileAreaOption configures FileArea behavior.
type FileAreaOption func(*FileArea)

// WithFileWatchErrors sets a callback for errors reported by the file
// watcher. By default they are dropped.
func WithFileWatchErrors(fn func(error)) FileAreaOption {
	return func(f *FileArea) {
		f.onError = fn
	}
}

// NewFileArea creates the directory if needed and returns an area over it.
func NewFileArea(dir string, opts ...FileAreaOption) (*FileArea, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("file area directory is required")
	}
	clean := filepath.Clean(dir)
	if err := os.MkdirAll(clean, 0o755); err != nil {
		return nil, fmt.Errorf("create file area directory: %w", err)
	}

	f := &FileArea{
		dir:   clean,
		known: make(map[string]string),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Dir returns the area directory.
func (f *FileArea) Dir() string {
	return f.dir
}

func (f *FileArea) path(key string) string {
	name := url.PathEscape(key)
	// A leading dot is reserved for temp files.
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return filepath.Join(f.dir, name+fileSuffix)
}

// keyFromName maps a file name back to its key. ok is false for files that
// are not items (temp files, foreign files).
func keyFromName(name string) (string, bool) {
	if !strings.HasSuffix(name, fileSuffix) || strings.HasPrefix(name, ".") {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
	if err != nil {
		return "", false
	}
	return key, true
}

// GetItem implements Area.
func (f *FileArea) GetItem(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return "", false, ErrAreaClosed{}
	}

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read item %q: %w", key, err)
	}
	return string(data), true, nil
}

// SetItem implements Area.
func (f *FileArea) SetItem(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrAreaClosed{}
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write item %q: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write item %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write item %q: %w", key, err)
	}

	f.known[key] = value
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		delete(f.known, key)
		os.Remove(tmpName)
		return fmt.Errorf("write item %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements Area.
func (f *FileArea) RemoveItem(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrAreaClosed{}
	}

	delete(f.known, key)
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove item %q: %w", key, err)
	}
	return nil
}

// Keys implements Lister.
func (f *FileArea) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyFromName(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch implements Observable. The fsnotify watcher starts with the first
// call.
func (f *FileArea) Watch(fn func(Event)) func() {
	if err := f.startWatching(); err != nil && f.onError != nil {
		f.onError(err)
	}
	return f.watchers.add(fn)
}

func (f *FileArea) startWatching() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrAreaClosed{}
	}
	if f.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}
	if err := fsw.Add(f.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", f.dir, err)
	}
	f.fsw = fsw

	entries, _ := os.ReadDir(f.dir)
	for _, e := range entries {
		key, ok := keyFromName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		if _, seen := f.known[key]; seen {
			continue
		}
		if data, err := os.ReadFile(filepath.Join(f.dir, e.Name())); err == nil {
			f.known[key] = string(data)
		}
	}

	go f.watchLoop(fsw)
	return nil
}

func (f *FileArea) watchLoop(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			f.handleFSEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if f.onError != nil {
				f.onError(err)
			}
		}
	}
}

func (f *FileArea) handleFSEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	key, ok := keyFromName(filepath.Base(ev.Name))
	if !ok {
		return
	}

	data, err := os.ReadFile(ev.Name)
	present := err == nil

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	prev, hadPrev := f.known[key]
	if present {
		if hadPrev && prev == string(data) {
			f.mu.Unlock()
			return
		}
		f.known[key] = string(data)
	} else {
		if !hadPrev {
			f.mu.Unlock()
			return
		}
		delete(f.known, key)
	}
	f.mu.Unlock()

	out := Event{Key: key}
	if present {
		out.NewValue = Text(string(data))
	}
	if hadPrev {
		out.OldValue = Text(prev)
	}
	f.watchers.emit(out)
}

// Close stops the watcher. Files stay on disk.
func (f *FileArea) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	close(f.done)
	if f.fsw != nil {
		return f.fsw.Close()
	}
	return nil
}
