package core

import (
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// File represents a file with dependency tracking
type File struct {
	Name    string
	Path    string   // Path is relative to Config.SiteDirectory
	Routes  []string // Routes this file is associated with
	Content []byte
	Parent  *Directory // Reference to parent directory

	// Dependencies: files this file depends on
	Dependencies map[string]*File

	// Dependents: files that depend on this file
	Dependents map[string]*File

	// Additional metadata about the File
	Metadata FileMetadata

	// stale is set when the file or one of its dependencies changed. The
	// last rendered Content stays in place until the plugins ran again.
	stale    bool
	revision uint64
}

// Directory represents a directory that can contain files and subdirectories
type Directory struct {
	Name    string
	Path    string                // Full path from root
	Parent  *Directory            // Reference to parent directory (nil for root)
	Subdirs map[string]*Directory // Child directories
	Files   map[string]*File      // Files in this directory

	// Dependents: files that render the listing of this directory
	Dependents map[string]*File

	// Additional metadata about the File
	Metadata DirectoryMetadata
}

// FileManager manages the hierarchical file system with dependencies
type FileManager struct {
	mu            sync.RWMutex // Protects all data structures
	root          *Directory
	Files         map[string]*File // Global file lookup by full path
	SiteDirectory string
	pluginManager *PluginManager // Plugin system for file processing
}

func newDirectory(name, path string, parent *Directory) *Directory {
	return &Directory{
		Name:       name,
		Path:       path,
		Parent:     parent,
		Subdirs:    make(map[string]*Directory),
		Files:      make(map[string]*File),
		Dependents: make(map[string]*File),
	}
}

func newFile(path string, parent *Directory) *File {
	return &File{
		Name:         filepath.Base(path),
		Path:         path,
		Parent:       parent,
		Dependencies: make(map[string]*File),
		Dependents:   make(map[string]*File),
		stale:        true,
	}
}

// NewFileManager creates a new file manager with root directory
func NewFileManager(siteDirectory string) *FileManager {
	return &FileManager{
		root:          newDirectory("", "", nil),
		Files:         make(map[string]*File),
		pluginManager: NewPluginManager(),
		SiteDirectory: siteDirectory,
	}
}

// Do we need to invoke Plugins on this File?
func (f *File) NeedsUpdate() bool {
	return f.stale
}

// Read the file data from disk, or nil in case of error
func (f *File) ReadFile(siteDirectory string) []byte {
	path := filepath.Join(siteDirectory, f.Path)
	body, err := os.ReadFile(path)
	if err != nil {
		Error("failed to read file %s: %v", path, err)
		return nil
	}
	return body
}

// Adds a dependency relationship to the other file
func (f *File) AddDependency(other *File) {
	f.Dependencies[other.Path] = other
	other.Dependents[f.Path] = f
}

// Re-renders f whenever a file is added to or removed from dir
func (f *File) AddDirectoryDependency(dir *Directory) {
	if dir.Dependents == nil {
		dir.Dependents = make(map[string]*File)
	}
	dir.Dependents[f.Path] = f
}

// Marks this file and all its dependents for update (thread-safe)
func (f *File) MarkForUpdate() {
	visited := make(map[string]bool)
	f.markForUpdateRecursive(visited)
}

// Recursively marks file (and its dependencies) for update
func (f *File) markForUpdateRecursive(visited map[string]bool) {
	if visited[f.Path] {
		return
	}

	visited[f.Path] = true
	f.stale = true
	f.revision++

	// Mark all dependents
	for _, dep := range f.Dependents {
		dep.markForUpdateRecursive(visited)
	}
}

// Marks every file that lists this directory for update
func (d *Directory) markDependentsForUpdate() {
	for _, dep := range d.Dependents {
		dep.MarkForUpdate()
	}
}

// Marks the dependents of this directory and of all its ancestors. Records
// pointing at a path that does not exist yet listen on the nearest
// existing ancestor.
func (d *Directory) markTreeChanged() {
	for dir := d; dir != nil; dir = dir.Parent {
		dir.markDependentsForUpdate()
	}
}

// Returns the plugin manager
func (fm *FileManager) GetPluginManager() *PluginManager {
	return fm.pluginManager
}

// stores the processed copy into the tracked file so that pointers held
// by dependents and directories stay valid (assumes lock is held)
func (fm *FileManager) storeProcessed(path string, processed *File) {
	file, ok := fm.Files[path]
	if !ok {
		return // removed while the plugins were running
	}
	file.Content = processed.Content
	file.Routes = processed.Routes
	file.Metadata = processed.Metadata

	// a change that arrived while the plugins ran needs another pass
	if file.revision == processed.revision {
		file.stale = false
	}
}

// copies the files matching keep (thread-safe)
func (fm *FileManager) snapshot(keep func(*File) bool) []File {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	files := make([]File, 0, len(fm.Files))
	for _, file := range fm.Files {
		if keep(file) {
			files = append(files, *file)
		}
	}
	return files
}

// runs the plugins over copies of files, outside the lock (plugin code
// may be slow), and stores the results
func (fm *FileManager) process(files []File) {
	for _, file := range files {
		processed := fm.pluginManager.Process(file, fm)
		fm.mu.Lock()
		fm.storeProcessed(file.Path, processed)
		fm.mu.Unlock()
	}
}

// Processes all files with their applicable plugins (thread-safe)
func (fm *FileManager) ProcessAllFiles() {
	fm.process(fm.snapshot(func(*File) bool { return true }))
}

// Processes all files which need to be updated (e.g. because they were modified)
func (fm *FileManager) ProcessUpdatedFiles() {
	files := fm.snapshot((*File).NeedsUpdate)
	Debug("processing %d updated files", len(files))
	fm.process(files)
}

// Rendered returns what is served for the file at path. Content is nil
// for files that were never rendered or failed to render. The slice is
// shared, rendered content is replaced but never modified in place.
func (fm *FileManager) Rendered(path string) ([]byte, FileMetadata, bool) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	file, ok := fm.Files[filepath.Clean(path)]
	if !ok {
		return nil, FileMetadata{}, false
	}
	return file.Content, file.Metadata, true
}

// GetRoot returns the root directory (thread-safe)
func (fm *FileManager) GetRoot() *Directory {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.root
}

// splits a relative path into its directory names
func pathParts(path string) []string {
	var parts []string
	for _, part := range strings.Split(filepath.Clean(path), string(filepath.Separator)) {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}

// findDirectory finds a directory by path, nil if it is not tracked
// (assumes lock is held)
func (fm *FileManager) findDirectory(path string) *Directory {
	dir := fm.root
	for _, part := range pathParts(path) {
		if dir = dir.Subdirs[part]; dir == nil {
			return nil
		}
	}
	return dir
}

// createDirectory returns the directory at path, creating it and its
// parents as needed (assumes lock is held)
func (fm *FileManager) createDirectory(path string) *Directory {
	dir := fm.root
	for _, part := range pathParts(path) {
		sub, exists := dir.Subdirs[part]
		if !exists {
			sub = newDirectory(part, filepath.Join(dir.Path, part), dir)
			dir.Subdirs[part] = sub
		}
		dir = sub
	}
	return dir
}

// adds a file below its (new) parent directory (assumes lock is held)
func (fm *FileManager) trackFile(relPath string) *File {
	parent := fm.createDirectory(filepath.Dir(relPath))
	file := newFile(relPath, parent)
	fm.Files[relPath] = file
	parent.Files[file.Name] = file
	return file
}

// WalkDirectory recursively walks a directory and populates the FileManager
func (fm *FileManager) WalkDirectory(rootPath string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	return filepath.WalkDir(filepath.Join(fm.SiteDirectory, rootPath), func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil || IgnoreFile(entry.Name(), info) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// relative to the site directory, e.g. "filer/reports/q1.pdf"
		relPath, err := filepath.Rel(fm.SiteDirectory, path)
		if err != nil {
			return err
		}

		switch file, tracked := fm.Files[relPath]; {
		case entry.IsDir():
			fm.createDirectory(relPath)
		case tracked:
			// walking a tracked directory again keeps the dependency edges
			file.MarkForUpdate()
		default:
			fm.trackFile(relPath)
		}
		return nil
	})
}

// Removes all files and directories under the given path
func (fm *FileManager) RemoveDirectory(rootPath string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	rootPath = filepath.Clean(rootPath)

	dir := fm.findDirectory(rootPath)
	if dir == nil {
		return
	}

	// Delete files
	for path, file := range fm.Files {
		if path != rootPath && !strings.HasPrefix(path, rootPath+string(filepath.Separator)) {
			continue
		}

		if file.Parent != nil {
			delete(file.Parent.Files, file.Name)
		}

		file.MarkForUpdate()
		fm.forgetFile(path)
		delete(fm.Files, path)
	}

	// listings of the removed tree and of its parent are stale now
	fm.markDirectoryTree(dir)
	if parent := dir.Parent; parent != nil {
		delete(parent.Subdirs, dir.Name)
		parent.markTreeChanged()
	}
}

// MarkDirectoryChanged marks the listeners of a directory and its
// ancestors for update, e.g. after a new directory was walked (thread-safe)
func (fm *FileManager) MarkDirectoryChanged(path string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if dir := fm.findDirectory(path); dir != nil {
		dir.markTreeChanged()
	}
}

func (fm *FileManager) markDirectoryTree(dir *Directory) {
	dir.markDependentsForUpdate()
	for _, sub := range dir.Subdirs {
		fm.markDirectoryTree(sub)
	}
}

// removes every reference to path from the dependency graph (assumes lock is held)
func (fm *FileManager) forgetFile(path string) {
	for _, f := range fm.Files {
		delete(f.Dependencies, path)
		delete(f.Dependents, path)
	}
	fm.forgetDirectoryDependent(fm.root, path)
}

func (fm *FileManager) forgetDirectoryDependent(dir *Directory, path string) {
	delete(dir.Dependents, path)
	for _, sub := range dir.Subdirs {
		fm.forgetDirectoryDependent(sub, path)
	}
}

// AddFile adds or updates a file in the manager (thread-safe). Missing
// parent directories are created.
func (fm *FileManager) AddFile(path string) *File {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	cleanPath := filepath.Clean(path)
	parentDir := fm.createDirectory(filepath.Dir(cleanPath))

	file, exists := fm.Files[cleanPath]
	if !exists {
		file = fm.trackFile(cleanPath)
	}

	// a modified file can change its size, so listings are refreshed too
	parentDir.markTreeChanged()
	file.MarkForUpdate()
	return file
}

// Removes a file from the manager (thread-safe)
func (fm *FileManager) RemoveFile(path string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	cleanPath := filepath.Clean(path)
	file, exists := fm.Files[cleanPath]
	if !exists {
		return
	}

	delete(fm.Files, cleanPath)
	if file.Parent != nil {
		delete(file.Parent.Files, file.Name)
		file.Parent.markTreeChanged()
	}

	// dependents re-render without this file
	file.MarkForUpdate()
	fm.forgetFile(cleanPath)
}

// GetFile returns a file by its full path (thread-safe)
func (fm *FileManager) GetFile(path string) *File {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	return fm.Files[filepath.Clean(path)]
}

// GetDirectory returns a directory by its full path (thread-safe)
func (fm *FileManager) GetDirectory(path string) *Directory {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	return fm.findDirectory(path)
}

// ListDirectoryFiles returns the files directly inside a directory,
// ordered by name. The second result is false if the directory is unknown.
func (fm *FileManager) ListDirectoryFiles(path string) ([]*File, bool) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	dir := fm.findDirectory(path)
	if dir == nil {
		return nil, false
	}

	files := make([]*File, 0, len(dir.Files))
	for _, file := range dir.Files {
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, true
}

// Returns all files in this directory and subdirectories (thread-safe)
func (fm *FileManager) GetAllFiles() map[string]*File {
	m := make(map[string]*File)

	fm.mu.RLock()
	defer fm.mu.RUnlock()

	maps.Copy(m, fm.Files)
	return m
}
