package core

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown" // not run yet
)

// HealthCheck is the last outcome of one named check
type HealthCheck struct {
	Name        string                          `json:"name"`
	Status      HealthStatus                    `json:"status"`
	Message     string                          `json:"message,omitempty"`
	LastChecked time.Time                       `json:"last_checked"`
	Duration    time.Duration                   `json:"duration"`
	CheckFunc   func(ctx context.Context) error `json:"-"`
}

type HealthChecker struct {
	mu           sync.RWMutex
	checks       map[string]*HealthCheck
	globalStatus HealthStatus
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:       make(map[string]*HealthCheck),
		globalStatus: HealthStatusUnknown,
	}
}

// RegisterCheck adds or replaces the check called name
func (hc *HealthChecker) RegisterCheck(name string, checkFunc func(ctx context.Context) error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = &HealthCheck{Name: name, Status: HealthStatusUnknown, CheckFunc: checkFunc}
}

// RunCheck executes a specific health check
func (hc *HealthChecker) RunCheck(ctx context.Context, name string) error {
	hc.mu.RLock()
	check, exists := hc.checks[name]
	hc.mu.RUnlock()

	if !exists {
		return errors.WithDetails(errors.New("unknown health check"), "check", name)
	}

	start := time.Now()
	err := check.CheckFunc(ctx)
	duration := time.Since(start)

	hc.mu.Lock()
	defer hc.mu.Unlock()

	check.Duration = duration
	check.LastChecked = time.Now()

	check.Status, check.Message = HealthStatusHealthy, ""
	if err != nil {
		check.Status, check.Message = HealthStatusUnhealthy, err.Error()
	}
	return err
}

// RunAllChecks executes all registered health checks
func (hc *HealthChecker) RunAllChecks(ctx context.Context) map[string]error {
	hc.mu.RLock()
	checkNames := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		checkNames = append(checkNames, name)
	}
	hc.mu.RUnlock()

	failed := make(map[string]error)
	for _, name := range checkNames {
		if err := hc.RunCheck(ctx, name); err != nil {
			failed[name] = err
		}
	}

	hc.updateGlobalStatus()
	return failed
}

// the worst status of any check, unknown without checks
func (hc *HealthChecker) updateGlobalStatus() {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if len(hc.checks) == 0 {
		hc.globalStatus = HealthStatusUnknown
		return
	}

	status := HealthStatusHealthy
	for _, check := range hc.checks {
		if check.Status == HealthStatusUnhealthy {
			status = HealthStatusUnhealthy
			break
		}
		if check.Status == HealthStatusUnknown {
			status = HealthStatusUnknown
		}
	}
	hc.globalStatus = status
}

// GetStatus returns the global status and a snapshot of the checks
func (hc *HealthChecker) GetStatus() (HealthStatus, map[string]*HealthCheck) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	snapshot := make(map[string]*HealthCheck, len(hc.checks))
	for name, check := range hc.checks {
		c := *check
		c.CheckFunc = nil
		snapshot[name] = &c
	}
	return hc.globalStatus, snapshot
}

// HealthHandler returns an HTTP handler for health checks
func (hc *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		hc.RunAllChecks(ctx)
		globalStatus, checks := hc.GetStatus()

		httpStatus := http.StatusOK
		if globalStatus != HealthStatusHealthy {
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":    globalStatus,
			"timestamp": time.Now(),
			"checks":    checks,
		})
	}
}

// FileManagerHealthCheck checks if the file manager is working properly
func FileManagerHealthCheck(fm *FileManager) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if fm == nil {
			return errors.New("file manager is nil")
		}
		if fm.GetRoot() == nil {
			return errors.New("file manager root is nil")
		}
		return nil
	}
}

// FilerHealthCheck checks that the filer directory is tracked and still on disk
func FilerHealthCheck(fm *FileManager) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if fm.GetDirectory(FilerDirectory) == nil {
			return errors.Errorf("%s/ is not tracked", FilerDirectory)
		}
		info, err := os.Stat(filepath.Join(fm.SiteDirectory, FilerDirectory))
		if err != nil {
			return errors.WrapIf(err, "filer directory")
		}
		if !info.IsDir() {
			return errors.Errorf("%s is not a directory", FilerDirectory)
		}
		return nil
	}
}

// FileWatcherHealthCheck checks if the file watcher is running
func FileWatcherHealthCheck(fw *FileWatcher) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if !fw.IsRunning() {
			return errors.WithMessage(ErrWatcherNotRunning, "file watcher")
		}
		if len(fw.GetWatchedDirectories()) == 0 {
			return errors.New("no directories being watched")
		}
		return nil
	}
}

// PluginManagerHealthCheck checks if plugins are loaded
func PluginManagerHealthCheck(pm *PluginManager) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if len(pm.ListPlugins()) == 0 {
			return errors.New("no plugins registered")
		}
		return nil
	}
}

// Global health checker instance
var GlobalHealthChecker = NewHealthChecker()

// RegisterDefaultHealthChecks registers the standard health checks
func RegisterDefaultHealthChecks(ctx *Context) {
	if ctx.FileManager != nil {
		GlobalHealthChecker.RegisterCheck("file_manager", FileManagerHealthCheck(ctx.FileManager))
		GlobalHealthChecker.RegisterCheck("filer", FilerHealthCheck(ctx.FileManager))
		GlobalHealthChecker.RegisterCheck("plugin_manager", PluginManagerHealthCheck(ctx.FileManager.GetPluginManager()))
	}

	if ctx.FileWatcher != nil {
		GlobalHealthChecker.RegisterCheck("file_watcher", FileWatcherHealthCheck(ctx.FileWatcher))
	}

	GlobalHealthChecker.RegisterCheck("memory", func(ctx context.Context) error {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		if memStats.Alloc > 1<<30 {
			return errors.Errorf("high memory usage: %s", humanize.IBytes(memStats.Alloc))
		}
		return nil
	})
}

// StartPeriodicChecks runs all checks every interval until ctx is done
func (hc *HealthChecker) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hc.RunAllChecks(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			failed := hc.RunAllChecks(checkCtx)
			cancel()

			for name, err := range failed {
				Error("health check %s failed: %v", name, err)
			}
		}
	}
}
