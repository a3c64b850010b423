// Package filer exposes the site's filer/ tree as the file and folder
// resources that download records link to.
package filer

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"filecms/core"
	"filecms/download"

	"github.com/gabriel-vasile/mimetype"
)

const defaultMimeType = "application/octet-stream"

// Store resolves references below core.FilerDirectory through the file
// manager. It never reads the disk for lookups, so a file only becomes
// visible once the file manager tracks it.
type Store struct {
	fm *core.FileManager
}

var _ download.Resources = (*Store)(nil)

func NewStore(fm *core.FileManager) *Store {
	return &Store{fm: fm}
}

// Path maps a reference to a path relative to the site directory. Both
// "reports/q1.pdf" and "filer/reports/q1.pdf" (with or without a leading
// slash) name the same file. Cleaning the rooted ref keeps ".." from
// escaping the filer.
func Path(ref string) (string, bool) {
	ref = strings.TrimSpace(filepath.ToSlash(ref))
	if ref == "" {
		return "", false
	}

	clean := strings.TrimPrefix(path.Clean("/"+ref), "/")
	if clean != core.FilerDirectory && !strings.HasPrefix(clean, core.FilerDirectory+"/") {
		clean = path.Join(core.FilerDirectory, clean)
	}
	return filepath.FromSlash(clean), true
}

// TrackedFile returns the file manager entry of a file reference
func (s *Store) TrackedFile(ref string) *core.File {
	p, ok := Path(ref)
	if !ok {
		return nil
	}
	return s.fm.GetFile(p)
}

// TrackedDirectory returns the file manager entry of a folder reference
func (s *Store) TrackedDirectory(ref string) *core.Directory {
	p, ok := Path(ref)
	if !ok {
		return nil
	}
	return s.fm.GetDirectory(p)
}

// NearestDirectory returns the deepest tracked directory on the way to
// ref, the one to listen on while ref does not exist
func (s *Store) NearestDirectory(ref string) *core.Directory {
	p, ok := Path(ref)
	if !ok {
		return s.fm.GetDirectory(core.FilerDirectory)
	}
	for p != "." && p != "" {
		if dir := s.fm.GetDirectory(p); dir != nil {
			return dir
		}
		p = filepath.Dir(p)
	}
	return nil
}

// File implements download.Resources
func (s *Store) File(ref string) (download.FileResource, bool) {
	f := s.TrackedFile(ref)
	if f == nil {
		return nil, false
	}
	return newFile(f, s.fm.SiteDirectory), true
}

// Folder implements download.Resources
func (s *Store) Folder(ref string) (download.FolderResource, bool) {
	dir := s.TrackedDirectory(ref)
	if dir == nil {
		return nil, false
	}
	return &Folder{dir: dir, store: s}, true
}

// File is a file of the filer tree
type File struct {
	file *core.File
	abs  string

	once     sync.Once
	size     int64
	modTime  time.Time
	mimeType string
}

var _ download.FileResource = (*File)(nil)

func newFile(f *core.File, siteDirectory string) *File {
	return &File{file: f, abs: filepath.Join(siteDirectory, f.Path)}
}

// stat reads size, modification time and type once per lookup
func (f *File) stat() {
	f.once.Do(func() {
		f.mimeType = defaultMimeType

		info, err := os.Stat(f.abs)
		if err != nil {
			core.Warn("failed to stat %s: %v", f.abs, err)
			return
		}
		f.size = info.Size()
		f.modTime = info.ModTime()

		if mt, err := mimetype.DetectFile(f.abs); err == nil {
			f.mimeType = mt.String()
		}
	})
}

func (f *File) Label() string { return f.file.Name }

// URL is the download route of the file
func (f *File) URL() string {
	return "/" + filepath.ToSlash(f.file.Path)
}

func (f *File) Size() int64 {
	f.stat()
	return f.size
}

func (f *File) MimeType() string {
	f.stat()
	return f.mimeType
}

func (f *File) ModTime() time.Time {
	f.stat()
	return f.modTime
}

// Path returns the path relative to the site directory
func (f *File) Path() string { return f.file.Path }

// Folder is a directory of the filer tree
type Folder struct {
	dir   *core.Directory
	store *Store
}

var _ download.FolderResource = (*Folder)(nil)

func (f *Folder) Name() string { return f.dir.Name }

// Path returns the path relative to the site directory
func (f *Folder) Path() string { return f.dir.Path }

// Files lists the files directly inside the folder, ordered by name
func (f *Folder) Files() []download.FileResource {
	files, ok := f.store.fm.ListDirectoryFiles(f.dir.Path)
	if !ok {
		return []download.FileResource{}
	}

	resources := make([]download.FileResource, 0, len(files))
	for _, file := range files {
		resources = append(resources, newFile(file, f.store.fm.SiteDirectory))
	}
	return resources
}
