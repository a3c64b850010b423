package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"emperror.dev/errors"
)

// FileEventHandler defines the interface for handling file system events
type FileEventHandler interface {
	HandleFileCreated(event FileWatchEvent) error
	HandleFileModified(event FileWatchEvent) error
	HandleFileDeleted(event FileWatchEvent) error
	HandleDirectoryCreated(event FileWatchEvent) error
	HandleDirectoryDeleted(event FileWatchEvent) error
}

// FileWatcherListener applies file system events to the FileManager and
// the router
type FileWatcherListener struct {
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	fw      *FileWatcher
}

var _ FileEventHandler = (*FileWatcherListener)(nil)

// content files own routes
func affectsRoutes(path string) bool {
	return strings.HasPrefix(filepath.ToSlash(path), "content/")
}

// Registration function
func RegisterFileWatcherListener(fw *FileWatcher) (*FileWatcherListener, error) {
	fwl := newFileWatcherListener(fw)

	if err := fwl.Start(fw); err != nil {
		return nil, errors.WrapIf(err, "failed to start file watcher listener")
	}

	return fwl, nil
}

func newFileWatcherListener(fw *FileWatcher) *FileWatcherListener {
	ctx, cancel := context.WithCancel(context.Background())

	return &FileWatcherListener{
		ctx:    ctx,
		fw:     fw,
		cancel: cancel,
	}
}

// Start begins listening to events from the file watcher
func (fwl *FileWatcherListener) Start(fw *FileWatcher) error {
	if fw == nil {
		return errors.New("file watcher cannot be nil")
	}

	fwl.mu.Lock()
	defer fwl.mu.Unlock()

	if fwl.running {
		return errors.WithMessage(ErrWatcherRunning, "listener")
	}

	fwl.running = true

	fwl.wg.Add(1)
	go fwl.processEvents(fw.GetEventChannel())

	Debug("started listening to file watcher events")
	return nil
}

// Stop stops the event listener
func (fwl *FileWatcherListener) Stop() error {
	fwl.mu.Lock()
	defer fwl.mu.Unlock()

	if !fwl.running {
		return errors.WithMessage(ErrWatcherNotRunning, "listener")
	}

	fwl.running = false
	fwl.cancel()
	fwl.wg.Wait()

	Debug("stopped listening to file watcher events")
	return nil
}

// IsRunning returns whether the listener is currently active
func (fwl *FileWatcherListener) IsRunning() bool {
	fwl.mu.RLock()
	defer fwl.mu.RUnlock()
	return fwl.running
}

func (fwl *FileWatcherListener) dispatch(event FileWatchEvent) error {
	switch event.Type {
	case FileCreated:
		return fwl.HandleFileCreated(event)
	case FileModified:
		return fwl.HandleFileModified(event)
	case FileDeleted:
		return fwl.HandleFileDeleted(event)
	case FileRenamed:
		if err := fwl.HandleFileDeleted(event); err != nil {
			return err
		}
		return fwl.HandleFileCreated(event)
	case DirCreated:
		return fwl.HandleDirectoryCreated(event)
	case DirDeleted:
		return fwl.HandleDirectoryDeleted(event)
	}
	return nil
}

// processEvents is the main event processing loop
func (fwl *FileWatcherListener) processEvents(eventChan <-chan FileWatchEvent) {
	defer fwl.wg.Done()

	for {
		select {
		case <-fwl.ctx.Done():
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}

			if err := fwl.dispatch(event); err != nil {
				GlobalLogger.Error().
					Err(err).
					Str("event", event.Type.String()).
					Str("path", event.Path).
					Msg("failed to apply file event")
			}
		}
	}
}

// re-renders all stale files and publishes the routes of path
func (fwl *FileWatcherListener) refresh(path string) {
	fm := fwl.fw.fm
	fm.ProcessUpdatedFiles()

	if fwl.fw.rm == nil || !affectsRoutes(path) {
		return
	}
	file := fm.GetFile(path)
	if file == nil {
		return
	}

	// a record that no longer validates is not served
	if len(file.Routes) == 0 {
		if err := fwl.fw.rm.RemoveFile(path); err != nil && !errors.Is(err, ErrRouteNotFound) {
			Warn("failed to remove the routes of %s: %v", path, err)
		}
		return
	}
	fwl.fw.rm.AddFile(file)
}

// HandleFileModified implements FileEventHandler
func (fwl *FileWatcherListener) HandleFileModified(event FileWatchEvent) error {
	Debug("file modified: %s", event.Path)

	fwl.fw.fm.AddFile(event.Path)
	fwl.refresh(event.Path)
	return nil
}

// HandleFileCreated implements FileEventHandler
func (fwl *FileWatcherListener) HandleFileCreated(event FileWatchEvent) error {
	Debug("file created: %s", event.Path)

	absolutePath := filepath.Join(fwl.fw.rootPath, event.Path)
	if _, err := os.Stat(absolutePath); err != nil {
		return errors.WrapWithDetails(ErrFileNotFound, "file creation event", "path", event.Path, "cause", err.Error())
	}

	// AddFile creates missing parent directories
	fwl.fw.fm.AddFile(event.Path)
	fwl.refresh(event.Path)
	return nil
}

// HandleFileDeleted implements FileEventHandler
func (fwl *FileWatcherListener) HandleFileDeleted(event FileWatchEvent) error {
	path := event.Path
	Debug("file deleted: %s", path)

	fwl.fw.fm.RemoveFile(path)

	if fwl.fw.rm != nil && affectsRoutes(path) {
		if err := fwl.fw.rm.RemoveFile(path); err != nil {
			// the file might not have had routes
			Debug("no routes removed for %s: %v", path, err)
		}
	}

	fwl.fw.fm.ProcessUpdatedFiles()
	return nil
}

// HandleDirectoryCreated implements FileEventHandler
func (fwl *FileWatcherListener) HandleDirectoryCreated(event FileWatchEvent) error {
	Debug("directory created: %s", event.Path)

	absolutePath := filepath.Join(fwl.fw.rootPath, event.Path)
	if err := fwl.fw.addDirectoryWatch(absolutePath); err != nil {
		return errors.Wrapf(err, "failed to watch new directory %s", absolutePath)
	}

	if err := fwl.fw.fm.WalkDirectory(event.Path); err != nil {
		return errors.Wrapf(err, "failed to walk new directory %s", event.Path)
	}
	fwl.fw.fm.MarkDirectoryChanged(event.Path)
	fwl.fw.fm.ProcessUpdatedFiles()

	if fwl.fw.rm != nil && affectsRoutes(event.Path) {
		if err := fwl.fw.rm.RebuildRouter(); err != nil {
			return errors.Wrapf(err, "failed to rebuild router after creating %s", event.Path)
		}
	}

	return nil
}

// HandleDirectoryDeleted implements FileEventHandler
func (fwl *FileWatcherListener) HandleDirectoryDeleted(event FileWatchEvent) error {
	Debug("directory deleted: %s", event.Path)

	fwl.fw.removeDirectoryWatch(filepath.Join(fwl.fw.rootPath, event.Path))
	fwl.fw.fm.RemoveDirectory(event.Path)
	fwl.fw.fm.ProcessUpdatedFiles()

	if fwl.fw.rm != nil && affectsRoutes(event.Path) {
		if err := fwl.fw.rm.RebuildRouter(); err != nil {
			return errors.Wrapf(err, "failed to rebuild router after deleting %s", event.Path)
		}
	}

	return nil
}
