package plugins

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"testing"

	"filecms/core"
	"filecms/download"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHeader = "<html><head><title>{{ .PageTitle }}</title></head><body>"
	testFooter = "</body></html>"
)

func writeFile(t *testing.T, site, rel, content string) {
	t.Helper()
	path := filepath.Join(site, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// testSite is a site directory with a layout and a filer tree, processed
// by the record and page plugins
type testSite struct {
	t    *testing.T
	dir  string
	ctx  *core.Context
	fm   *core.FileManager
	file *BuiltinFilePlugin
}

func newTestSite(t *testing.T, settings download.Settings, files map[string]string) *testSite {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "layout/header.html", testHeader)
	writeFile(t, dir, "layout/footer.html", testFooter)
	writeFile(t, dir, "filer/reports/q1.pdf", "%PDF-1.4")
	writeFile(t, dir, "filer/reports/q2.pdf", "%PDF-1.4 second")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "filer", "empty"), 0755))
	for rel, content := range files {
		writeFile(t, dir, rel, content)
	}

	fm := core.NewFileManager(dir)
	for _, root := range []string{"content", "layout", core.FilerDirectory} {
		require.NoError(t, fm.WalkDirectory(root))
	}

	ctx := &core.Context{FileManager: fm}
	ctx.Config.SiteDirectory = dir
	ctx.Config.Server.Title = "Test Site"

	site := &testSite{t: t, dir: dir, ctx: ctx, fm: fm, file: NewFilePlugin(ctx, settings)}

	pm := fm.GetPluginManager()
	pm.RegisterPlugin(site.file)
	pm.RegisterPlugin(NewFolderPlugin(ctx, settings))
	pm.RegisterPlugin(&BuiltinHtmlPlugin{Context: ctx})
	pm.RegisterPlugin(&BuiltinTextPlugin{})
	pm.RegisterPlugin(NewMarkdownPlugin(ctx))
	return site
}

func (s *testSite) process() {
	s.fm.ProcessAllFiles()
}

func (s *testSite) get(rel string) *core.File {
	s.t.Helper()
	file := s.fm.GetFile(filepath.FromSlash(rel))
	require.NotNil(s.t, file, rel)
	return file
}

func (s *testSite) content(rel string) string {
	s.t.Helper()
	return string(s.get(rel).Content)
}

// writes a file below the site and tells the file manager, the way the
// file watcher listener does
func (s *testSite) add(rel, content string) {
	s.t.Helper()
	writeFile(s.t, s.dir, rel, content)
	s.fm.AddFile(filepath.FromSlash(rel))
	s.fm.ProcessUpdatedFiles()
}

func (s *testSite) pluginContext(rel string) *core.PluginContext {
	copy := *s.get(rel)
	return &core.PluginContext{File: &copy, FileManager: s.fm, SiteDirectory: s.dir}
}

func TestContentRoute(t *testing.T) {
	assert.Equal(t, "/docs/report.html", ContentRoute(filepath.Join("content", "docs", "report.html")))
	assert.Equal(t, "/index.html", ContentRoute("content/index.html"))
}

func TestPageRoutes(t *testing.T) {
	assert.Equal(t, []string{"/about.html", "/about"}, PageRoutes("content/about.html"))
	assert.Equal(t, []string{"/docs/index.md", "/docs/index", "/docs"}, PageRoutes("content/docs/index.md"))
}

func TestRecordRoutes(t *testing.T) {
	tests := []struct {
		path   string
		suffix string
		want   []string
	}{
		{"content/docs/report.file.md", FileRecordSuffix, []string{"/docs/report"}},
		{"content/docs/Annual Report.file.md", FileRecordSuffix, []string{"/docs/Annual Report", "/docs/annual-report"}},
		{"content/Downloads.FOLDER.md", FolderRecordSuffix, []string{"/Downloads", "/downloads"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, RecordRoutes(filepath.FromSlash(tt.path), tt.suffix))
		})
	}
}

func TestIsRecordDocument(t *testing.T) {
	assert.True(t, IsRecordDocument(&core.File{Name: "report.file.md"}))
	assert.True(t, IsRecordDocument(&core.File{Name: "Reports.Folder.md"}))
	assert.False(t, IsRecordDocument(&core.File{Name: "file.md"}))
	assert.False(t, IsRecordDocument(&core.File{Name: "report.md"}))
}

func TestTemplateFuncs(t *testing.T) {
	tmpl := template.Must(template.New("t").Funcs(TemplateFuncs()).
		Parse(`{{ filesize .Size }}|{{ .Name | upper }}|{{ filesize -1 }}`))

	var out bytes.Buffer
	require.NoError(t, tmpl.Execute(&out, map[string]interface{}{"Size": int64(2048), "Name": "q1"}))
	assert.Equal(t, "2.0 kB|Q1|0 B", out.String())
}

func TestWrapLayout_MissingLayout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "content/page.html", "body")

	fm := core.NewFileManager(dir)
	require.NoError(t, fm.WalkDirectory("content"))

	ctx := &core.PluginContext{File: fm.GetFile(filepath.Join("content", "page.html")), FileManager: fm, SiteDirectory: dir}
	_, _, err := WrapLayout(ctx, []byte("body"))
	assert.ErrorIs(t, err, core.ErrMissingLayout)
}

func TestPagePlugins(t *testing.T) {
	site := newTestSite(t, download.Settings{}, map[string]string{
		"content/about.html": "---\ntitle: About\n---\n<p>About {{ .SiteTitle }}</p>",
		"content/notes.md":   "---\ntitle: Notes\n---\n# Notes",
		"content/plain.txt":  "just text {{ .SiteTitle }}",
	})
	site.process()

	about := site.get("content/about.html")
	assert.Contains(t, string(about.Content), "<title>About</title>")
	assert.Contains(t, string(about.Content), "<p>About Test Site</p>")
	assert.True(t, bytes.HasSuffix(about.Content, []byte(testFooter)))
	assert.Equal(t, []string{"/about.html", "/about"}, about.Routes)

	notes := site.get("content/notes.md")
	assert.Contains(t, string(notes.Content), "<h1>Notes</h1>")
	assert.Equal(t, "text/html", notes.Metadata.MimeType)

	plain := site.get("content/plain.txt")
	assert.Equal(t, "just text {{ .SiteTitle }}", string(plain.Content))
	assert.Equal(t, []string{"/plain.txt"}, plain.Routes)

	// layout files are dependencies of the pages
	header := site.get("layout/header.html")
	assert.Contains(t, header.Dependents, about.Path)

	// filer files are never rendered
	assert.Nil(t, site.get("filer/reports/q1.pdf").Content)
}
