package main

import (
	"os"
	"path/filepath"

	"filecms/cmd"
	"filecms/core"
	"filecms/download"
	"filecms/plugins"
)

func initializeAndRunPlugins(ctx *core.Context, settings download.Settings) error {
	fm := ctx.FileManager
	pm := fm.GetPluginManager()
	pm.RegisterPlugin(plugins.NewFilePlugin(ctx, settings))
	pm.RegisterPlugin(plugins.NewFolderPlugin(ctx, settings))
	pm.RegisterPlugin(&plugins.BuiltinHtmlPlugin{Context: ctx})
	pm.RegisterPlugin(&plugins.BuiltinTextPlugin{})
	pm.RegisterPlugin(plugins.NewMarkdownPlugin(ctx))

	if _, exists := ctx.Config.Plugins["builtin/search"]; exists {
		search, err := plugins.NewSearchPlugin(fm)
		if err != nil {
			return err
		}
		pm.RegisterPlugin(search)
		ctx.AddEndpoint("/search", search.Handler())
	}

	ctx.AddEndpoint(core.HealthRoute, core.GlobalHealthChecker.HealthHandler())
	ctx.AddEndpoint(core.MetricsRoute, core.GlobalMetrics.MetricsHandler())

	for _, plugin := range pm.ListPlugins() {
		core.Info("plugin %s", plugin)
	}

	// Then invoke all plugins on the files
	fm.ProcessAllFiles()
	core.SetFilesCount(int64(len(fm.GetAllFiles())))

	return nil
}

func initializeFileManager(ctx *core.Context) error {
	fm := core.NewFileManager(ctx.Config.SiteDirectory)

	// Load the "content" and "layout" directory structures
	for _, dir := range []string{"content", "layout"} {
		if err := fm.WalkDirectory(dir); err != nil {
			return err
		}
	}

	// a site without downloads has no filer/
	if _, err := os.Stat(filepath.Join(ctx.Config.SiteDirectory, core.FilerDirectory)); err == nil {
		if err := fm.WalkDirectory(core.FilerDirectory); err != nil {
			return err
		}
	} else {
		core.Warn("no %s/ directory, file records will render as missing", core.FilerDirectory)
	}

	ctx.FileManager = fm
	return nil
}

func main() {
	var err error
	var ctx core.Context

	ctx.Config, err = core.ParseCommandLineArguments()
	if err != nil {
		os.Exit(1)
	}

	level, err := core.ParseLogLevel(ctx.Config.LogLevel)
	if err != nil {
		core.Fatal("%v", err)
	}
	core.GlobalLogger.SetLevel(level)

	// If requested, print the version and leave
	if ctx.Config.Mode == "version" {
		cmd.Version()
		return
	}

	// Now read all yaml files and the file tree
	if err = core.InitializeContext(&ctx); err != nil {
		core.Fatal("failed to initialize context: %v", err)
	}

	settings, err := download.ResolveSettings(ctx.Config.Plugins.Get("builtin/file"))
	if err != nil {
		core.Fatal("failed to read file plugin settings: %v", err)
	}

	if err = initializeFileManager(&ctx); err != nil {
		core.Fatal("failed to initialize file manager: %v", err)
	}

	if err = initializeAndRunPlugins(&ctx, settings); err != nil {
		core.Fatal("failed to initialize plugins: %v", err)
	}

	// "dump" writes the whole state, which can then be compared to a
	// "golden" set of files
	if ctx.Config.Mode == "static" || ctx.Config.Mode == "dump" {
		if err = cmd.Dump(&ctx, ctx.Config.Mode == "dump"); err != nil {
			core.Fatal("%v", err)
		}
		return
	}

	cmd.Run(&ctx, settings.GtmInstalled)
}
