package plugins

import (
	"strings"

	"filecms/core"
)

type BuiltinTextPlugin struct{}

func (p *BuiltinTextPlugin) Name() string {
	return "builtin/text"
}

func (p *BuiltinTextPlugin) Priority() int {
	return 100
}

func (p *BuiltinTextPlugin) CanProcess(file *core.File) bool {
	return IsContent(file) &&
		strings.HasSuffix(strings.ToLower(file.Name), ".txt")
}

func (p *BuiltinTextPlugin) Process(ctx *core.PluginContext) *core.PluginResult {
	content := ctx.File.ReadFile(ctx.SiteDirectory)
	if content == nil {
		return &core.PluginResult{}
	}

	return &core.PluginResult{
		Success:    true,
		Modified:   true,
		MimeType:   "text/plain; charset=utf-8",
		NewContent: content,
		Routes:     []string{ContentRoute(ctx.File.Path)},
	}
}
