package core

import (
	"fmt"
	"sort"
	"sync"
)

// PluginContext provides context information to plugins
type PluginContext struct {
	File          *File
	FileManager   *FileManager
	SiteDirectory string // Path to the site root
}

// PluginResult represents the result of plugin execution
type PluginResult struct {
	Success      bool
	Error        error
	Modified     bool     // Whether the file was modified
	NewContent   []byte   // New content if file was modified
	MimeType     string   // mime type of the file
	Routes       []string // Routes this file should be associated with
	Dependencies []*File  // Dependencies this file has

	// Directories whose listing this file renders
	DirectoryDependencies []*Directory
}

// Plugin interface that all plugins must implement
type Plugin interface {
	// Name returns the plugin name
	Name() string

	// CanProcess determines if this plugin can process the given file
	CanProcess(file *File) bool

	// Process processes the file and returns the result
	Process(ctx *PluginContext) *PluginResult

	// Priority returns the execution priority (lower numbers = higher priority)
	Priority() int
}

// PluginManager manages all registered plugins
type PluginManager struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewPluginManager creates a new plugin manager
func NewPluginManager() *PluginManager {
	return &PluginManager{
		plugins: make([]Plugin, 0),
	}
}

// RegisterPlugin registers a new plugin
func (pm *PluginManager) RegisterPlugin(plugin Plugin) {
	if plugin == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.plugins = append(pm.plugins, plugin)

	// lower numbers first, registration order among equals
	sort.SliceStable(pm.plugins, func(i, j int) bool {
		return pm.plugins[i].Priority() < pm.plugins[j].Priority()
	})

	SetPluginsCount(int64(len(pm.plugins)))
}

// GetPluginsForFile returns all plugins that can process the given file
func (pm *PluginManager) GetPluginsForFile(file *File) []Plugin {
	if file == nil {
		return nil
	}

	pm.mu.RLock()
	defer pm.mu.RUnlock()

	var matchingPlugins []Plugin
	for _, plugin := range pm.plugins {
		if plugin.CanProcess(file) {
			matchingPlugins = append(matchingPlugins, plugin)
		}
	}

	return matchingPlugins
}

// GetPlugin returns a registered plugin by name
func (pm *PluginManager) GetPlugin(name string) (Plugin, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, plugin := range pm.plugins {
		if plugin.Name() == name {
			return plugin, true
		}
	}
	return nil, false
}

// ListPlugins returns information about all registered plugins
func (pm *PluginManager) ListPlugins() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if len(pm.plugins) == 0 {
		return nil
	}

	list := make([]string, 0, len(pm.plugins))
	for _, plugin := range pm.plugins {
		list = append(list, fmt.Sprintf("%s (priority: %d)", plugin.Name(), plugin.Priority()))
	}

	return list
}

// Processes a file with all applicable plugins. Returns a copy of the
// modified file. A plugin reporting empty, non-nil Routes clears the
// routes of the file. Dependencies reported by the plugins are linked to the
// tracked file, so they outlive the copy.
func (pm *PluginManager) Process(copy File, fm *FileManager) *File {
	// rendering starts over, the previous content is what the copy replaces
	copy.Content = nil

	plugins := pm.GetPluginsForFile(&copy)
	if len(plugins) == 0 {
		return &copy
	}

	timer := NewFileProcessingTimer()
	defer timer.ObserveDuration()

	ctx := &PluginContext{
		File:          &copy,
		FileManager:   fm,
		SiteDirectory: fm.SiteDirectory,
	}

	var deps []*File
	var dirs []*Directory

	for _, plugin := range plugins {
		pluginTimer := NewPluginExecutionTimer()
		result := plugin.Process(ctx)
		pluginTimer.ObserveDuration()

		if result == nil {
			continue
		}

		if !result.Success {
			RecordPluginError()
			if result.Error != nil {
				Error("plugin %s failed on %s: %v", plugin.Name(), copy.Path, result.Error)
			}
		}

		if result.Modified && result.NewContent != nil {
			copy.Content = result.NewContent
		}

		deps = append(deps, result.Dependencies...)
		dirs = append(dirs, result.DirectoryDependencies...)

		if result.MimeType != "" {
			copy.Metadata.MimeType = result.MimeType
		}

		if result.Routes != nil {
			copy.Routes = result.Routes
		}
	}

	fm.linkDependencies(copy.Path, deps, dirs)
	return &copy
}

// replaces the dependency edges of the file at path (thread-safe)
func (fm *FileManager) linkDependencies(path string, deps []*File, dirs []*Directory) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	file, ok := fm.Files[path]
	if !ok {
		return
	}

	for depPath, dep := range file.Dependencies {
		delete(dep.Dependents, path)
		delete(file.Dependencies, depPath)
	}
	fm.forgetDirectoryDependent(fm.root, path)

	for _, dep := range deps {
		if dep != nil && dep.Path != path {
			file.AddDependency(dep)
		}
	}
	for _, dir := range dirs {
		if dir != nil {
			file.AddDirectoryDependency(dir)
		}
	}
}
