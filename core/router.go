package core

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
)

const (
	// FilerDirectory holds the downloadable files, relative to the site
	FilerDirectory = "filer"
	FilerRoute     = "/filer"
	HealthRoute    = "/_health"
	MetricsRoute   = "/_metrics"
)

// RouteInfo holds information about a registered route
type RouteInfo struct {
	Pattern  string
	FilePath string
	Method   string
}

// RouterManager manages dynamic route registration and removal
type RouterManager struct {
	mu         sync.RWMutex
	router     *gin.Engine
	routes     map[string]string // pattern -> filePath mapping
	fm         *FileManager
	ctx        *Context
	middleware []gin.HandlerFunc
}

func NewRouterManager() *RouterManager {
	return &RouterManager{
		routes:     make(map[string]string),
		middleware: make([]gin.HandlerFunc, 0),
	}
}

func (rm *RouterManager) AddMiddleware(middleware ...gin.HandlerFunc) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.middleware = append(rm.middleware, middleware...)
}

// creates a handler function for a specific file path
func (rm *RouterManager) makeFileHandler(filePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rm.mu.RLock()
		fm := rm.fm
		rm.mu.RUnlock()

		if fm == nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		content, metadata, ok := fm.Rendered(filePath)
		if !ok {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		if metadata.RedirectUrl != "" {
			c.Redirect(http.StatusFound, metadata.RedirectUrl)
			return
		}

		// e.g. a record that no longer validates
		if content == nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		mimeType := metadata.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		c.Data(http.StatusOK, mimeType, content)
	}
}

// serves the files below <site>/filer
func (rm *RouterManager) makeFilerHandler(siteDirectory string) gin.HandlerFunc {
	root := filepath.Join(siteDirectory, FilerDirectory)
	return func(c *gin.Context) {
		rel := path.Clean("/" + c.Param("filepath"))

		// only files tracked by the file manager, which skips hidden ones
		rm.mu.RLock()
		fm := rm.fm
		rm.mu.RUnlock()
		if fm == nil || fm.GetFile(path.Join(FilerDirectory, rel)) == nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		RecordFilerDownload()
		c.File(filepath.Join(root, filepath.FromSlash(rel)))
	}
}

// ensures the route starts with / and has no double slashes
func normalizeRoute(route string) (string, error) {
	if route == "" {
		return "", errors.WithMessage(ErrInvalidRoute, "empty route")
	}

	route = path.Clean("/" + strings.TrimPrefix(route, "/"))
	if !strings.HasPrefix(route, "/") {
		return "", NewRouterError("normalize", route, ErrInvalidRoute)
	}

	return route, nil
}

// reports routes that would clash with the fixed routes of the engine;
// gin panics on such conflicts (assumes lock is held)
func (rm *RouterManager) reservedUnsafe(route string) bool {
	if strings.ContainsAny(route, ":*") {
		return true
	}
	for _, prefix := range []string{FilerRoute, "/assets"} {
		if route == prefix || strings.HasPrefix(route, prefix+"/") {
			return true
		}
	}
	if rm.ctx != nil {
		if _, ok := rm.ctx.Endpoints[route]; ok {
			return true
		}
	}
	return false
}

// creates a gin engine with the middleware and the fixed routes (assumes lock is held)
func (rm *RouterManager) newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(RequestLogger(GlobalLogger))
	engine.Use(gin.Recovery())

	for _, middleware := range rm.middleware {
		engine.Use(middleware)
	}

	if rm.ctx == nil {
		return engine
	}

	siteDirectory := rm.ctx.Config.SiteDirectory
	engine.Static("/assets", filepath.Join(siteDirectory, "assets"))
	engine.GET(FilerRoute+"/*filepath", rm.makeFilerHandler(siteDirectory))

	for route, handler := range rm.ctx.Endpoints {
		engine.GET(route, handler)
	}

	return engine
}

// creates and configures the gin router with all current files
func (rm *RouterManager) InitializeRouter(ctx *Context) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.fm = ctx.FileManager
	rm.ctx = ctx
	rm.router = rm.newEngine()
	rm.routes = make(map[string]string)

	for _, file := range ctx.FileManager.GetAllFiles() {
		if !strings.HasPrefix(file.Path, "content/") {
			continue
		}
		rm.addFileUnsafe(file)
	}

	SetRoutesCount(int64(len(rm.routes)))
	return nil
}

func (rm *RouterManager) AddRoute(pattern, filePath string) error {
	normalizedPattern, err := normalizeRoute(pattern)
	if err != nil {
		return errors.WrapIf(err, "invalid route pattern")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.routes[normalizedPattern]; exists {
		return NewRouterError("add", normalizedPattern, ErrRouteExists)
	}
	if rm.reservedUnsafe(normalizedPattern) {
		return NewRouterError("add", normalizedPattern, ErrRouteReserved)
	}

	rm.router.GET(normalizedPattern, rm.makeFileHandler(filePath))
	rm.routes[normalizedPattern] = filePath
	SetRoutesCount(int64(len(rm.routes)))

	return nil
}

// AddFile registers the routes of a file (thread-safe)
func (rm *RouterManager) AddFile(file *File) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.addFileUnsafe(file)
	SetRoutesCount(int64(len(rm.routes)))
}

// addFileUnsafe is the internal implementation that assumes the lock is already held
func (rm *RouterManager) addFileUnsafe(file *File) {
	for _, route := range file.Routes {
		normalizedRoute, err := normalizeRoute(route)
		if err != nil {
			continue
		}

		if owner, exists := rm.routes[normalizedRoute]; exists {
			if owner != file.Path {
				Warn("route %s of %s is already served by %s", normalizedRoute, file.Path, owner)
			}
			continue
		}
		if rm.reservedUnsafe(normalizedRoute) {
			Warn("route %s of %s is reserved", normalizedRoute, file.Path)
			continue
		}

		rm.routes[normalizedRoute] = file.Path
		rm.router.GET(normalizedRoute, rm.makeFileHandler(file.Path))
	}
}

func (rm *RouterManager) RemoveRoute(pattern string) error {
	normalizedPattern, err := normalizeRoute(pattern)
	if err != nil {
		return errors.WrapIf(err, "invalid route pattern")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.routes[normalizedPattern]; !exists {
		return NewRouterError("remove", normalizedPattern, ErrRouteNotFound)
	}

	delete(rm.routes, normalizedPattern)

	// gin cannot remove routes, the engine is rebuilt instead
	return rm.rebuildRouterUnsafe()
}

// RemoveFile removes all routes associated with a file
func (rm *RouterManager) RemoveFile(filePath string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var routesToRemove []string
	for pattern, fp := range rm.routes {
		if fp == filePath {
			routesToRemove = append(routesToRemove, pattern)
		}
	}

	if len(routesToRemove) == 0 {
		return NewRouterError("remove", filePath, ErrRouteNotFound)
	}

	for _, pattern := range routesToRemove {
		delete(rm.routes, pattern)
	}

	return rm.rebuildRouterUnsafe()
}

// GetAllRoutes returns a copy of all current routes (thread-safe)
func (rm *RouterManager) GetAllRoutes() map[string]string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	routes := make(map[string]string, len(rm.routes))
	for pattern, filePath := range rm.routes {
		routes[pattern] = filePath
	}
	return routes
}

// rebuildRouterUnsafe recreates the router with current routes
// This method assumes the caller already holds the write lock
func (rm *RouterManager) rebuildRouterUnsafe() error {
	timer := NewRouteRebuildTimer()
	defer timer.ObserveDuration()

	engine := rm.newEngine()
	for pattern, filePath := range rm.routes {
		if rm.fm != nil && rm.fm.GetFile(filePath) == nil {
			delete(rm.routes, pattern)
			continue
		}
		engine.GET(pattern, rm.makeFileHandler(filePath))
	}

	// routes of content files which were (re)processed since the last build
	if rm.fm != nil {
		for _, file := range rm.fm.GetAllFiles() {
			if !strings.HasPrefix(file.Path, "content/") {
				continue
			}
			for _, route := range file.Routes {
				normalized, err := normalizeRoute(route)
				if err != nil {
					continue
				}
				if _, exists := rm.routes[normalized]; exists || rm.reservedUnsafe(normalized) {
					continue
				}
				rm.routes[normalized] = file.Path
				engine.GET(normalized, rm.makeFileHandler(file.Path))
			}
		}
	}

	rm.router = engine
	SetRoutesCount(int64(len(rm.routes)))
	return nil
}

// RebuildRouter recreates the gin engine from the tracked routes and the
// current content files
func (rm *RouterManager) RebuildRouter() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.rebuildRouterUnsafe()
}

func (rm *RouterManager) GetRouteInfo(pattern string) (*RouteInfo, error) {
	normalizedPattern, err := normalizeRoute(pattern)
	if err != nil {
		return nil, errors.WrapIf(err, "invalid route pattern")
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	filePath, exists := rm.routes[normalizedPattern]
	if !exists {
		return nil, NewRouterError("lookup", normalizedPattern, ErrRouteNotFound)
	}

	return &RouteInfo{
		Pattern:  normalizedPattern,
		FilePath: filePath,
		Method:   "GET",
	}, nil
}

// GetRouter returns the current router (thread-safe)
func (rm *RouterManager) GetRouter() *gin.Engine {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.router
}

// ServeHTTP dispatches to the current engine, so rebuilds take effect
// without restarting the server
func (rm *RouterManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rm.GetRouter().ServeHTTP(w, r)
}

// RouteExists checks if a route pattern exists (thread-safe)
func (rm *RouterManager) RouteExists(pattern string) bool {
	normalizedPattern, err := normalizeRoute(pattern)
	if err != nil {
		return false
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, exists := rm.routes[normalizedPattern]
	return exists
}

// GetRouteCount returns the number of registered routes (thread-safe)
func (rm *RouterManager) GetRouteCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.routes)
}
