package plugins

import (
	"strings"

	"filecms/core"

	"emperror.dev/errors"
	"github.com/adrg/frontmatter"
)

type BuiltinHtmlPlugin struct {
	Context *core.Context
}

func (p *BuiltinHtmlPlugin) Name() string {
	return "builtin/html"
}

func (p *BuiltinHtmlPlugin) Priority() int {
	return 100
}

func (p *BuiltinHtmlPlugin) CanProcess(file *core.File) bool {
	// layout and filer files are not pages
	if !IsContent(file) {
		return false
	}
	name := strings.ToLower(file.Name)
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

func (p *BuiltinHtmlPlugin) Process(ctx *core.PluginContext) *core.PluginResult {
	core.Debug("processing html file: %s", ctx.File.Path)

	// Don't attempt to read a file if it is only a redirection
	if ctx.File.Metadata.RedirectUrl != "" {
		return &core.PluginResult{
			Error: core.NewPluginError(p.Name(), ctx.File.Path, errors.New("redirect-url is not supported for html files")),
		}
	}

	content := ctx.File.ReadFile(ctx.SiteDirectory)
	if content == nil {
		return &core.PluginResult{}
	}

	// Parse (and skip) frontmatter metadata
	rest, err := frontmatter.Parse(strings.NewReader(string(content)), &ctx.File.Metadata)
	if err == nil {
		content = rest
	}

	var result core.PluginResult

	body := content
	if !ctx.File.Metadata.IgnoreLayout {
		body, result.Dependencies, err = WrapLayout(ctx, content)
		if err != nil {
			return &core.PluginResult{Error: core.NewPluginError(p.Name(), ctx.File.Path, err)}
		}
	}

	// "/about.html" is served as "/about.html" and "/about", an index page
	// also as its directory
	result.Routes = PageRoutes(ctx.File.Path)

	vars := BuildTemplateVars(p.Context, ctx.File, result.Routes)
	body, err = ApplyTemplate(body, ctx.File, &vars)
	if err != nil {
		return &core.PluginResult{Error: core.NewPluginError(p.Name(), ctx.File.Path, err)}
	}

	result.Success = true
	result.Modified = true
	result.NewContent = body
	result.MimeType = "text/html"
	return &result
}
