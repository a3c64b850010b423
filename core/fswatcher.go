package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/fsnotify/fsnotify"
)

// WatchedDirectories are the site directories whose changes are applied
// while the server runs
var WatchedDirectories = []string{"content", "layout", FilerDirectory}

// RouterInterface defines the interface that FileWatcher needs from RouterManager
type RouterInterface interface {
	AddFile(file *File)
	RemoveFile(filePath string) error
	RebuildRouter() error
}

// FileWatcher watches filesystem changes and updates the FileManager accordingly
type FileWatcher struct {
	mu          sync.RWMutex
	rm          RouterInterface
	fm          *FileManager
	watcher     *fsnotify.Watcher
	watchedDirs map[string]bool // Track which directories are being watched
	rootPath    string          // Root path being watched
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
	eventChan   chan FileWatchEvent
	wg          sync.WaitGroup
}

// FileWatchEventType represents the type of file system event
type FileWatchEventType int

const (
	FileCreated FileWatchEventType = iota
	FileModified
	FileDeleted
	FileRenamed
	DirCreated
	DirDeleted
)

var eventTypeNames = [...]string{"FileCreated", "FileModified", "FileDeleted", "FileRenamed", "DirCreated", "DirDeleted"}

func (t FileWatchEventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "Unknown"
	}
	return eventTypeNames[t]
}

// FileWatchEvent represents a file system change event
type FileWatchEvent struct {
	Type    FileWatchEventType
	Path    string
	OldPath string // For rename events
	IsDir   bool
	Time    time.Time
}

// Creates a new file watcher
func NewFileWatcher(fm *FileManager) (*FileWatcher, error) {
	if fm == nil {
		return nil, errors.New("file manager cannot be nil")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapIf(err, "failed to create fsnotify watcher")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FileWatcher{
		fm:          fm,
		watcher:     watcher,
		watchedDirs: make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
		eventChan:   make(chan FileWatchEvent, 100),
	}, nil
}

func (fw *FileWatcher) SetRouter(rm RouterInterface) {
	fw.rm = rm
}

// editor and lock files which never become part of the site
var ignoredSuffixes = []string{".bak", ".tmp", "~", ".swp", ".lock"}

// IgnoreFile reports hidden files, symlinks and temporary files
func IgnoreFile(path string, info os.FileInfo) bool {
	if info == nil || info.Mode()&os.ModeSymlink != 0 {
		return true
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// Converts absolute path to relative path from root
func (fw *FileWatcher) getRelativePath(absPath string) (string, error) {
	if fw.rootPath == "" {
		return "", errors.New("root path not set")
	}
	return filepath.Rel(fw.rootPath, absPath)
}

// Adds a directory to the watcher recursively
func (fw *FileWatcher) addDirectoryWatch(dirPath string) error {
	return filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			Warn("error walking path %s: %v", path, err)
			return nil
		}

		if info.IsDir() && !IgnoreFile(path, info) {
			if err := fw.watcher.Add(path); err != nil {
				Warn("failed to watch directory %s: %v", path, err)
				return nil
			}

			fw.mu.Lock()
			fw.watchedDirs[path] = true
			fw.mu.Unlock()

			Debug("watching directory: %s", path)
		}

		return nil
	})
}

// Removes a directory from the watcher
func (fw *FileWatcher) removeDirectoryWatch(dirPath string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	for watchedDir := range fw.watchedDirs {
		if watchedDir != dirPath && !strings.HasPrefix(watchedDir, dirPath+string(filepath.Separator)) {
			continue
		}
		// fsnotify drops watches of deleted directories on its own
		if err := fw.watcher.Remove(watchedDir); err != nil {
			Debug("failed to remove watcher for %s: %v", watchedDir, err)
		}
		delete(fw.watchedDirs, watchedDir)
		Debug("stopped watching directory: %s", watchedDir)
	}
}

// Starts the file watcher on the WatchedDirectories of rootPath. If none
// of them exists, rootPath itself is watched.
func (fw *FileWatcher) Start(rootPath string) error {
	if rootPath == "" {
		return errors.New("root path cannot be empty")
	}

	if info, err := os.Stat(rootPath); err != nil {
		return errors.Wrapf(err, "failed to access root path %s", rootPath)
	} else if !info.IsDir() {
		return errors.Errorf("root path %s is not a directory", rootPath)
	}

	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return errors.WithMessage(ErrWatcherRunning, "file watcher")
	}
	fw.running = true
	fw.rootPath = rootPath
	fw.mu.Unlock()

	var roots []string
	for _, dir := range WatchedDirectories {
		path := filepath.Join(rootPath, dir)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			roots = append(roots, path)
		}
	}
	if len(roots) == 0 {
		roots = []string{rootPath}
	}

	for _, root := range roots {
		if err := fw.addDirectoryWatch(root); err != nil {
			fw.mu.Lock()
			fw.running = false
			fw.mu.Unlock()
			return errors.WrapIf(err, "failed to add initial directory watches")
		}
	}

	fw.wg.Add(1)
	go fw.processWatcherEvents()

	Info("file watcher started, watching %d directories below %s", len(roots), rootPath)
	return nil
}

// Stops the file watcher
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return errors.WithMessage(ErrWatcherNotRunning, "file watcher")
	}
	fw.running = false
	fw.mu.Unlock()

	fw.cancel()
	err := fw.watcher.Close()
	fw.wg.Wait()
	close(fw.eventChan)

	Info("file watcher stopped")
	return err
}

func (fw *FileWatcher) processWatcherEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			RecordFileWatcherEvent()

			switch {
			case event.Has(fsnotify.Create):
				fw.handleExisting(event.Name, true)
			case event.Has(fsnotify.Write):
				fw.handleExisting(event.Name, false)
			case event.Has(fsnotify.Remove):
				fw.handleFileDeleted(event.Name)
			case event.Has(fsnotify.Rename):
				// the new name arrives as a separate Create event
				fw.handleFileDeleted(event.Name)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			Error("file watcher error: %v", err)
		}
	}
}

// stats a created or written path and forwards it; directories are only
// reported on creation
func (fw *FileWatcher) handleExisting(path string, created bool) {
	info, err := os.Stat(path)
	if err != nil {
		// gone again before we got to it
		Debug("failed to stat %s: %v", path, err)
		return
	}
	if IgnoreFile(path, info) || (info.IsDir() && !created) {
		return
	}

	relPath, err := fw.getRelativePath(path)
	if err != nil {
		Error("failed to get relative path for %s: %v", path, err)
		return
	}

	event := FileWatchEvent{Type: FileModified, Path: relPath, IsDir: info.IsDir(), Time: time.Now()}
	switch {
	case info.IsDir():
		event.Type = DirCreated
	case created:
		event.Type = FileCreated
	}
	fw.sendEvent(event)
}

// handles file deletion events
func (fw *FileWatcher) handleFileDeleted(path string) {
	relPath, err := fw.getRelativePath(path)
	if err != nil {
		Error("failed to get relative path for %s: %v", path, err)
		return
	}

	// a deleted directory was one we watched
	fw.mu.RLock()
	wasDir := fw.watchedDirs[path]
	fw.mu.RUnlock()

	eventType := FileDeleted
	if wasDir {
		eventType = DirDeleted
	}
	fw.sendEvent(FileWatchEvent{
		Type:  eventType,
		Path:  relPath,
		IsDir: wasDir,
		Time:  time.Now(),
	})
}

// sends an event to the event channel with proper context handling
func (fw *FileWatcher) sendEvent(event FileWatchEvent) {
	select {
	case fw.eventChan <- event:
	case <-fw.ctx.Done():
		return
	default:
		Warn("event channel full, dropping %s event for %s", event.Type, event.Path)
	}
}

// returns whether the file watcher is currently running
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.running
}

// returns the event channel for subscribers
func (fw *FileWatcher) GetEventChannel() <-chan FileWatchEvent {
	return fw.eventChan
}

// returns a copy of currently watched directories
func (fw *FileWatcher) GetWatchedDirectories() []string {
	fw.mu.RLock()
	defer fw.mu.RUnlock()

	dirs := make([]string, 0, len(fw.watchedDirs))
	for dir := range fw.watchedDirs {
		dirs = append(dirs, dir)
	}
	return dirs
}
