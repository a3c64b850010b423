package plugins

import (
	"bytes"
	"strings"

	"filecms/core"
	"filecms/download"
	"filecms/filer"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
)

// BuiltinFilePlugin renders "*.file.md" record documents: a link or button
// to download one file of the filer
type BuiltinFilePlugin struct {
	Context  *core.Context
	Settings download.Settings
	markdown goldmark.Markdown
}

func NewFilePlugin(ctx *core.Context, settings download.Settings) *BuiltinFilePlugin {
	return &BuiltinFilePlugin{
		Context:  ctx,
		Settings: settings,
		markdown: NewMarkdownRenderer(),
	}
}

func (p *BuiltinFilePlugin) Name() string {
	return "builtin/file"
}

func (p *BuiltinFilePlugin) Priority() int {
	return RecordPriority
}

func (p *BuiltinFilePlugin) CanProcess(file *core.File) bool {
	return IsContent(file) && strings.HasSuffix(strings.ToLower(file.Name), FileRecordSuffix)
}

// Fieldsets returns the editor layout of both record kinds
func (p *BuiltinFilePlugin) Fieldsets() map[string][]download.Fieldset {
	return map[string][]download.Fieldset{
		"file":   download.FileFieldsets(p.Settings),
		"folder": download.FolderFieldsets(),
	}
}

// ReadFileForm parses a record document into a cleaned form. The document
// body is returned as the markdown description.
func ReadFileForm(content []byte, settings download.Settings) (*download.FileForm, []byte, error) {
	form := download.NewFileForm(settings)
	rest, err := frontmatter.Parse(bytes.NewReader(content), form)
	if err != nil {
		return nil, nil, err
	}
	form.Clean()
	return form, rest, nil
}

func (p *BuiltinFilePlugin) Process(ctx *core.PluginContext) *core.PluginResult {
	core.Debug("processing file record: %s", ctx.File.Path)

	content := ctx.File.ReadFile(ctx.SiteDirectory)
	if content == nil {
		return &core.PluginResult{}
	}

	form, body, err := ReadFileForm(content, p.Settings)
	if err != nil {
		return invalidRecord(p.Name(), ctx.File.Path, err)
	}
	if err := form.Validate(p.Settings); err != nil {
		return invalidRecord(p.Name(), ctx.File.Path, err)
	}

	description, err := renderDescription(p.markdown, body)
	if err != nil {
		return invalidRecord(p.Name(), ctx.File.Path, err)
	}

	store := filer.NewStore(ctx.FileManager)
	record := form.Record(store, description)
	core.RecordRecordRendered(record.Missing())

	var result core.PluginResult

	// re-render when the file changes, or shows up
	if source := store.TrackedFile(form.File); source != nil {
		result.Dependencies = append(result.Dependencies, source)
	} else if dir := store.NearestDirectory(form.File); dir != nil {
		result.DirectoryDependencies = append(result.DirectoryDependencies, dir)
	}

	ctx.File.Metadata.Title = form.Title
	if ctx.File.Metadata.Title == "" {
		ctx.File.Metadata.Title = record.ShortDescription()
	}
	ctx.File.Metadata.IgnoreLayout = form.IgnoreLayout

	result.Routes = RecordRoutes(ctx.File.Path, FileRecordSuffix)

	name, rctx := download.RenderFile(record, p.Settings)
	page, deps, err := renderRecordPage(p.Context, ctx, name, rctx, result.Routes)
	if err != nil {
		return &core.PluginResult{Error: core.NewPluginError(p.Name(), ctx.File.Path, err)}
	}
	result.Dependencies = append(result.Dependencies, deps...)

	result.Success = true
	result.Modified = true
	result.NewContent = page
	result.MimeType = "text/html"
	return &result
}
