package core

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func renderedFile(t *testing.T, fm *FileManager, path, content string, routes ...string) *File {
	t.Helper()
	file := fm.AddFile(filepath.FromSlash(path))
	file.Content = []byte(content)
	file.Routes = routes
	file.Metadata.MimeType = "text/html"
	file.stale = false
	return file
}

func newTestRouter(t *testing.T) (*RouterManager, *Context) {
	t.Helper()
	fm, site := newTestSite(t)
	writeSiteFile(t, site, "assets/site.css", "body{}")

	ctx := &Context{FileManager: fm}
	ctx.Config.SiteDirectory = site
	ctx.AddEndpoint("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	renderedFile(t, fm, "content/index.html", "<h1>Home</h1>", "/index.html", "/index", "/")
	renderedFile(t, fm, "content/docs/report.file.md", "<a>report</a>", "/docs/report", "/docs/annual-report")

	rm := NewRouterManager()
	require.NoError(t, rm.InitializeRouter(ctx))
	return rm, ctx
}

func get(rm *RouterManager, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	rm.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_ContentRoutes(t *testing.T) {
	rm, _ := newTestRouter(t)

	for _, route := range []string{"/", "/index", "/docs/report", "/docs/annual-report"} {
		assert.True(t, rm.RouteExists(route), route)
	}
	assert.Equal(t, 5, rm.GetRouteCount())

	w := get(rm, "/docs/report")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<a>report</a>", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	assert.Equal(t, http.StatusNotFound, get(rm, "/nope").Code)

	info, err := rm.GetRouteInfo("docs/report")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("content", "docs", "report.file.md"), info.FilePath)
	assert.Equal(t, "/docs/report", info.Pattern)
}

func TestRouter_UnrenderedFile(t *testing.T) {
	rm, ctx := newTestRouter(t)

	// e.g. a record that failed to render after it got its route
	broken := renderedFile(t, ctx.FileManager, "content/broken.file.md", "", "/broken")
	broken.Content = nil
	rm.AddFile(broken)

	require.True(t, rm.RouteExists("/broken"))
	assert.Equal(t, http.StatusNotFound, get(rm, "/broken").Code)
}

func TestRouter_ServesWhileRerendering(t *testing.T) {
	rm, ctx := newTestRouter(t)
	fm := ctx.FileManager
	record := fm.GetFile(filepath.Join("content", "docs", "report.file.md"))
	pdf := filepath.Join("filer", "reports", "q1.pdf")
	record.AddDependency(fm.GetFile(pdf))

	fm.GetPluginManager().RegisterPlugin(&mockPlugin{
		name:       "record",
		canProcess: func(f *File) bool { return f.Path == record.Path },
		process: func(ctx *PluginContext) *PluginResult {
			return &PluginResult{
				Success:      true,
				Modified:     true,
				NewContent:   []byte("<a>report</a>"),
				MimeType:     "text/html",
				Routes:       []string{"/docs/report"},
				Dependencies: []*File{ctx.FileManager.GetFile(pdf)},
			}
		},
	})
	fm.ProcessUpdatedFiles()

	// the filer file keeps changing while the page is requested
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			fm.AddFile(pdf)
			fm.ProcessUpdatedFiles()
		}
	}()
	defer func() { <-done }()

	for {
		select {
		case <-done:
			return
		default:
		}

		w := get(rm, "/docs/report")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "<a>report</a>", w.Body.String())
	}
}

func TestRouter_FixedRoutes(t *testing.T) {
	rm, _ := newTestRouter(t)

	w := get(rm, "/filer/reports/q1.pdf")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	assert.Equal(t, http.StatusNotFound, get(rm, "/filer/reports/missing.pdf").Code)
	assert.Equal(t, http.StatusNotFound, get(rm, "/filer/../config/site.yaml").Code)

	assert.Equal(t, http.StatusOK, get(rm, "/assets/site.css").Code)
	assert.Equal(t, "pong", get(rm, "/ping").Body.String())
}

func TestRouter_ReservedRoutes(t *testing.T) {
	rm, ctx := newTestRouter(t)

	shadow := renderedFile(t, ctx.FileManager, "content/filer/x.html", "x", "/filer/x.html", "/ping", "/a:b")
	rm.AddFile(shadow)

	assert.False(t, rm.RouteExists("/filer/x.html"))
	assert.False(t, rm.RouteExists("/ping"))
	assert.False(t, rm.RouteExists("/a:b"))
	assert.Equal(t, "pong", get(rm, "/ping").Body.String())

	assert.ErrorIs(t, rm.AddRoute("/assets/x", shadow.Path), ErrRouteReserved)
}

func TestRouter_AddAndRemoveFile(t *testing.T) {
	rm, ctx := newTestRouter(t)

	about := renderedFile(t, ctx.FileManager, "content/about.html", "about", "/about")
	rm.AddFile(about)
	assert.Equal(t, "about", get(rm, "/about").Body.String())

	// a route owned by another file is not taken over
	dup := renderedFile(t, ctx.FileManager, "content/about2.html", "other", "/about")
	rm.AddFile(dup)
	assert.Equal(t, "about", get(rm, "/about").Body.String())

	// the file manager forgets a file before its routes are removed; the
	// rebuild hands the route to the remaining file
	ctx.FileManager.RemoveFile(about.Path)
	require.NoError(t, rm.RemoveFile(about.Path))
	assert.Equal(t, "other", get(rm, "/about").Body.String())

	ctx.FileManager.RemoveFile(dup.Path)
	require.NoError(t, rm.RemoveFile(dup.Path))
	assert.False(t, rm.RouteExists("/about"))
	assert.Equal(t, http.StatusNotFound, get(rm, "/about").Code)

	assert.ErrorIs(t, rm.RemoveFile(about.Path), ErrRouteNotFound)
}

func TestRouter_RebuildPicksUpReprocessedFiles(t *testing.T) {
	rm, ctx := newTestRouter(t)

	renderedFile(t, ctx.FileManager, "content/new.html", "new", "/new")
	assert.False(t, rm.RouteExists("/new"))

	require.NoError(t, rm.RebuildRouter())
	assert.True(t, rm.RouteExists("/new"))
	assert.Equal(t, "new", get(rm, "/new").Body.String())

	// routes of removed files are dropped
	ctx.FileManager.RemoveFile(filepath.Join("content", "new.html"))
	require.NoError(t, rm.RebuildRouter())
	assert.False(t, rm.RouteExists("/new"))
}

func TestRouter_AddRoute(t *testing.T) {
	rm, _ := newTestRouter(t)

	require.NoError(t, rm.AddRoute("home", filepath.Join("content", "index.html")))
	assert.Equal(t, "<h1>Home</h1>", get(rm, "/home").Body.String())

	assert.ErrorIs(t, rm.AddRoute("/home", filepath.Join("content", "index.html")), ErrRouteExists)
	assert.ErrorIs(t, rm.AddRoute("", filepath.Join("content", "index.html")), ErrInvalidRoute)

	require.NoError(t, rm.RemoveRoute("/home"))
	assert.ErrorIs(t, rm.RemoveRoute("/home"), ErrRouteNotFound)
}

func TestRouter_Middleware(t *testing.T) {
	fm, site := newTestSite(t)
	ctx := &Context{FileManager: fm}
	ctx.Config.SiteDirectory = site
	renderedFile(t, fm, "content/index.html", "home", "/")

	rm := NewRouterManager()
	rm.AddMiddleware(SecurityHeadersMiddleware(true))
	require.NoError(t, rm.InitializeRouter(ctx))

	w := get(rm, "/")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "googletagmanager.com")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}
