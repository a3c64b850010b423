package plugins

import (
	"bytes"
	"strings"

	"filecms/core"
	"filecms/download"
	"filecms/filer"

	"github.com/adrg/frontmatter"
)

// BuiltinFolderPlugin renders "*.folder.md" record documents: the list of
// files of a filer folder
type BuiltinFolderPlugin struct {
	Context  *core.Context
	Settings download.Settings
}

func NewFolderPlugin(ctx *core.Context, settings download.Settings) *BuiltinFolderPlugin {
	return &BuiltinFolderPlugin{Context: ctx, Settings: settings}
}

func (p *BuiltinFolderPlugin) Name() string {
	return "builtin/folder"
}

func (p *BuiltinFolderPlugin) Priority() int {
	return RecordPriority
}

func (p *BuiltinFolderPlugin) CanProcess(file *core.File) bool {
	return IsContent(file) && strings.HasSuffix(strings.ToLower(file.Name), FolderRecordSuffix)
}

// ReadFolderForm parses a record document into a cleaned form. Folder
// records have no description, the body is ignored.
func ReadFolderForm(content []byte) (*download.FolderForm, error) {
	form := download.NewFolderForm()
	if _, err := frontmatter.Parse(bytes.NewReader(content), form); err != nil {
		return nil, err
	}
	form.Clean()
	return form, nil
}

func (p *BuiltinFolderPlugin) Process(ctx *core.PluginContext) *core.PluginResult {
	core.Debug("processing folder record: %s", ctx.File.Path)

	content := ctx.File.ReadFile(ctx.SiteDirectory)
	if content == nil {
		return &core.PluginResult{}
	}

	form, err := ReadFolderForm(content)
	if err != nil {
		return invalidRecord(p.Name(), ctx.File.Path, err)
	}
	if err := form.Validate(p.Settings); err != nil {
		return invalidRecord(p.Name(), ctx.File.Path, err)
	}

	store := filer.NewStore(ctx.FileManager)
	record := form.Record(store)
	core.RecordRecordRendered(record.Missing())

	var result core.PluginResult

	// the listing follows files being added to or removed from the folder
	if dir := store.TrackedDirectory(form.Folder); dir != nil && form.Folder != "" {
		result.DirectoryDependencies = append(result.DirectoryDependencies, dir)
		files, _ := ctx.FileManager.ListDirectoryFiles(dir.Path)
		result.Dependencies = append(result.Dependencies, files...)
	} else if dir := store.NearestDirectory(form.Folder); dir != nil {
		result.DirectoryDependencies = append(result.DirectoryDependencies, dir)
	}

	ctx.File.Metadata.Title = form.Title
	if ctx.File.Metadata.Title == "" {
		ctx.File.Metadata.Title = record.ShortDescription()
	}
	ctx.File.Metadata.IgnoreLayout = form.IgnoreLayout

	result.Routes = RecordRoutes(ctx.File.Path, FolderRecordSuffix)

	name, rctx := download.RenderFolder(record, p.Settings)
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
