package core

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// records the router calls made by the listener
type fakeRouter struct {
	mu       sync.Mutex
	added    []string
	removed  []string
	rebuilds int
}

func (r *fakeRouter) AddFile(file *File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, file.Path)
}

func (r *fakeRouter) RemoveFile(filePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, filePath)
	return nil
}

func (r *fakeRouter) RebuildRouter() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuilds++
	return nil
}

// renders record documents to the names of the filer files they list
func listingPlugin() *mockPlugin {
	return &mockPlugin{
		name:       "listing",
		canProcess: func(f *File) bool { return strings.HasSuffix(f.Name, ".folder.md") },
		process: func(ctx *PluginContext) *PluginResult {
			dir := ctx.FileManager.GetDirectory(filepath.Join("filer", "reports"))
			if dir == nil {
				return &PluginResult{
					Success:               true,
					Modified:              true,
					NewContent:            []byte("missing"),
					DirectoryDependencies: []*Directory{ctx.FileManager.GetDirectory("filer")},
				}
			}
			files, _ := ctx.FileManager.ListDirectoryFiles(dir.Path)
			names := make([]string, 0, len(files))
			for _, f := range files {
				names = append(names, f.Name)
			}
			return &PluginResult{
				Success:               true,
				Modified:              true,
				NewContent:            []byte(strings.Join(names, ",")),
				Routes:                []string{"/reports"},
				DirectoryDependencies: []*Directory{dir},
			}
		},
	}
}

func newTestListener(t *testing.T) (*FileWatcherListener, *fakeRouter, *FileManager, string) {
	t.Helper()
	fm, site := newTestSite(t)
	writeSiteFile(t, site, "content/reports.folder.md", "---\nfolder: reports\n---\n")
	fm.AddFile(filepath.Join("content", "reports.folder.md"))
	fm.GetPluginManager().RegisterPlugin(listingPlugin())
	fm.ProcessAllFiles()

	fw, err := NewFileWatcher(fm)
	require.NoError(t, err)
	fw.rootPath = site

	rm := &fakeRouter{}
	fw.SetRouter(rm)
	return newFileWatcherListener(fw), rm, fm, site
}

func listing(fm *FileManager) string {
	return string(fm.GetFile(filepath.Join("content", "reports.folder.md")).Content)
}

func TestListener_FileCreated(t *testing.T) {
	fwl, rm, fm, site := newTestListener(t)
	require.Equal(t, "q1.pdf,q2.pdf", listing(fm))

	writeSiteFile(t, site, "filer/reports/a.pdf", "%PDF-1.4")
	require.NoError(t, fwl.HandleFileCreated(FileWatchEvent{Type: FileCreated, Path: filepath.Join("filer", "reports", "a.pdf")}))

	assert.Equal(t, "a.pdf,q1.pdf,q2.pdf", listing(fm))
	assert.Empty(t, rm.added, "filer files have no routes")

	// events for files that vanished again are errors
	err := fwl.HandleFileCreated(FileWatchEvent{Type: FileCreated, Path: filepath.Join("filer", "gone.pdf")})
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestListener_FileDeleted(t *testing.T) {
	fwl, _, fm, site := newTestListener(t)

	require.NoError(t, os.Remove(filepath.Join(site, "filer", "reports", "q2.pdf")))
	require.NoError(t, fwl.HandleFileDeleted(FileWatchEvent{Type: FileDeleted, Path: filepath.Join("filer", "reports", "q2.pdf")}))

	assert.Equal(t, "q1.pdf", listing(fm))
}

func TestListener_ContentFileRoutes(t *testing.T) {
	fwl, rm, fm, site := newTestListener(t)

	path := filepath.Join("content", "reports.folder.md")
	writeSiteFile(t, site, "content/reports.folder.md", "---\nfolder: reports\ntitle: Reports\n---\n")
	require.NoError(t, fwl.HandleFileModified(FileWatchEvent{Type: FileModified, Path: path}))
	assert.Equal(t, []string{path}, rm.added)

	require.NoError(t, fwl.HandleFileDeleted(FileWatchEvent{Type: FileDeleted, Path: path}))
	assert.Equal(t, []string{path}, rm.removed)
	assert.Nil(t, fm.GetFile(path))
}

func TestListener_InvalidRecordLosesRoutes(t *testing.T) {
	fwl, rm, fm, site := newTestListener(t)
	path := filepath.Join("content", "page.file.md")

	fm.GetPluginManager().RegisterPlugin(&mockPlugin{
		name:       "record",
		canProcess: func(f *File) bool { return f.Path == path },
		process: func(ctx *PluginContext) *PluginResult {
			body := ctx.File.ReadFile(ctx.SiteDirectory)
			if strings.Contains(string(body), "broken") {
				return &PluginResult{Error: NewPluginError("record", ctx.File.Path, ErrInvalidRecord), Routes: []string{}}
			}
			return &PluginResult{Success: true, Modified: true, NewContent: body, Routes: []string{"/page"}}
		},
	})

	writeSiteFile(t, site, "content/page.file.md", "valid")
	require.NoError(t, fwl.HandleFileCreated(FileWatchEvent{Type: FileCreated, Path: path}))
	assert.Equal(t, []string{"/page"}, fm.GetFile(path).Routes)
	assert.Equal(t, []string{path}, rm.added)
	assert.Empty(t, rm.removed)

	writeSiteFile(t, site, "content/page.file.md", "broken")
	require.NoError(t, fwl.HandleFileModified(FileWatchEvent{Type: FileModified, Path: path}))
	assert.Empty(t, fm.GetFile(path).Routes)
	assert.Nil(t, fm.GetFile(path).Content)
	assert.Equal(t, []string{path}, rm.removed)
	assert.Equal(t, []string{path}, rm.added)
}

func TestListener_Directories(t *testing.T) {
	fwl, rm, fm, site := newTestListener(t)

	require.NoError(t, os.RemoveAll(filepath.Join(site, "filer", "reports")))
	require.NoError(t, fwl.HandleDirectoryDeleted(FileWatchEvent{Type: DirDeleted, Path: filepath.Join("filer", "reports"), IsDir: true}))
	assert.Equal(t, "missing", listing(fm))
	assert.Zero(t, rm.rebuilds, "filer changes do not touch the routes")

	// the record listens on filer/ while the folder is missing
	writeSiteFile(t, site, "filer/reports/new.pdf", "%PDF-1.4")
	require.NoError(t, fwl.HandleDirectoryCreated(FileWatchEvent{Type: DirCreated, Path: filepath.Join("filer", "reports"), IsDir: true}))
	assert.Equal(t, "new.pdf", listing(fm))
}

func TestListener_StartStop(t *testing.T) {
	fwl, _, _, _ := newTestListener(t)

	assert.Error(t, fwl.Start(nil))
	require.NoError(t, fwl.Start(fwl.fw))
	assert.True(t, fwl.IsRunning())
	assert.ErrorIs(t, fwl.Start(fwl.fw), ErrWatcherRunning)

	require.NoError(t, fwl.Stop())
	assert.False(t, fwl.IsRunning())
	assert.ErrorIs(t, fwl.Stop(), ErrWatcherNotRunning)
}

func TestListener_EndToEnd(t *testing.T) {
	fwl, _, fm, site := newTestListener(t)
	require.NoError(t, fwl.fw.Start(site))
	defer fwl.fw.Stop()

	require.NoError(t, fwl.Start(fwl.fw))
	defer fwl.Stop()

	writeSiteFile(t, site, "filer/reports/b.pdf", "%PDF-1.4")

	assert.Eventually(t, func() bool {
		content, _, ok := fm.Rendered(filepath.Join("content", "reports.folder.md"))
		return ok && string(content) == "b.pdf,q1.pdf,q2.pdf"
	}, 5*time.Second, 50*time.Millisecond)
}
