package plugins

import (
	"bytes"
	"strings"

	"filecms/core"

	"emperror.dev/errors"
	"github.com/adrg/frontmatter"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

type BuiltinMarkdownPlugin struct {
	markdown goldmark.Markdown
	Context  *core.Context
}

// NewMarkdownRenderer returns the goldmark converter shared by the
// markdown pages and the record descriptions
func NewMarkdownRenderer() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
				highlighting.WithFormatOptions(
					chromahtml.WithLineNumbers(true),
				),
			),
		),
	)
}

func NewMarkdownPlugin(ctx *core.Context) *BuiltinMarkdownPlugin {
	return &BuiltinMarkdownPlugin{markdown: NewMarkdownRenderer(), Context: ctx}
}

func (p *BuiltinMarkdownPlugin) Name() string {
	return "builtin/markdown"
}

func (p *BuiltinMarkdownPlugin) Priority() int {
	return 100
}

func (p *BuiltinMarkdownPlugin) CanProcess(file *core.File) bool {
	if !IsContent(file) || IsRecordDocument(file) {
		return false
	}
	name := strings.ToLower(file.Name)
	return strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".markdown")
}

func (p *BuiltinMarkdownPlugin) Process(ctx *core.PluginContext) *core.PluginResult {
	core.Debug("processing markdown file: %s", ctx.File.Path)

	// Don't attempt to read a file if it is only a redirection
	if ctx.File.Metadata.RedirectUrl != "" {
		return &core.PluginResult{
			Error: core.NewPluginError(p.Name(), ctx.File.Path, errors.New("redirect-url is not supported for markdown files")),
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

	var html bytes.Buffer
	if err := p.markdown.Convert(content, &html); err != nil {
		return &core.PluginResult{Error: core.NewPluginError(p.Name(), ctx.File.Path, err)}
	}

	var result core.PluginResult

	body := html.Bytes()
	if !ctx.File.Metadata.IgnoreLayout {
		body, result.Dependencies, err = WrapLayout(ctx, body)
		if err != nil {
			return &core.PluginResult{Error: core.NewPluginError(p.Name(), ctx.File.Path, err)}
		}
	}

	// "/about.md" is served as "/about.md" and "/about", an index page also
	// as its directory
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
