package plugins

import (
	"bytes"
	"embed"
	"html/template"
	"path"
	"path/filepath"
	"strings"

	"filecms/core"
	"filecms/download"

	"emperror.dev/errors"
	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
)

const (
	FileRecordSuffix   = ".file.md"
	FolderRecordSuffix = ".folder.md"

	// RecordPriority runs the record plugins before the page plugins
	RecordPriority = 50
)

//go:embed templates
var defaultTemplates embed.FS

// IsRecordDocument reports whether a content file holds a File or Folder record
func IsRecordDocument(file *core.File) bool {
	name := strings.ToLower(file.Name)
	return strings.HasSuffix(name, FileRecordSuffix) || strings.HasSuffix(name, FolderRecordSuffix)
}

// RecordRoutes returns the route of a record document without its suffix,
// plus the slugged route when it differs ("/docs/Annual Report" also
// answers at "/docs/annual-report")
func RecordRoutes(filePath, suffix string) []string {
	route := ContentRoute(filePath)
	if strings.HasSuffix(strings.ToLower(route), suffix) {
		route = route[:len(route)-len(suffix)]
	}

	routes := []string{route}
	dir, base := path.Split(route)
	if slugged := path.Join(dir, slug.Make(base)); slugged != route && slug.Make(base) != "" {
		routes = append(routes, slugged)
	}
	return routes
}

// loads layout/<name>, falling back to the built-in default template of
// the same record kind. The layout file is returned as dependency.
func loadRecordTemplate(pctx *core.PluginContext, name string) (*template.Template, *core.File, error) {
	layoutPath := filepath.Join("layout", filepath.FromSlash(name))
	if layout := pctx.FileManager.GetFile(layoutPath); layout != nil {
		if body := layout.ReadFile(pctx.SiteDirectory); body != nil {
			tmpl, err := template.New(name).Funcs(TemplateFuncs()).Parse(string(body))
			if err != nil {
				return nil, nil, errors.Wrapf(err, "failed to parse %s", layoutPath)
			}
			return tmpl, layout, nil
		}
	}

	fallback := download.TemplateName(download.DefaultTemplate, strings.TrimSuffix(path.Base(name), ".html"))
	if fallback != name {
		core.Warn("record template %s not found, using the default", layoutPath)
	}

	body, err := defaultTemplates.ReadFile(path.Join("templates", fallback))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "no built-in template %s", fallback)
	}
	tmpl, err := template.New(fallback).Funcs(TemplateFuncs()).Parse(string(body))
	return tmpl, nil, errors.WrapIf(err, "failed to parse built-in template")
}

// renderRecordPage executes the record template and embeds the markup in
// the site layout. The markup is passed as a value, never parsed as part
// of the page template.
func renderRecordPage(site *core.Context, pctx *core.PluginContext, name string, rctx download.RenderContext, routes []string) ([]byte, []*core.File, error) {
	tmpl, layoutFile, err := loadRecordTemplate(pctx, name)
	if err != nil {
		return nil, nil, err
	}

	var markup bytes.Buffer
	if err := tmpl.Execute(&markup, rctx); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to execute %s", name)
	}

	var deps []*core.File
	if layoutFile != nil {
		deps = append(deps, layoutFile)
	}

	page := []byte("{{ .Record }}")
	if !pctx.File.Metadata.IgnoreLayout {
		var layoutDeps []*core.File
		page, layoutDeps, err = WrapLayout(pctx, page)
		if err != nil {
			return nil, nil, err
		}
		deps = append(deps, layoutDeps...)
	}

	vars := BuildTemplateVars(site, pctx.File, routes)
	vars["Record"] = template.HTML(markup.String())

	body, err := ApplyTemplate(page, pctx.File, &vars)
	if err != nil {
		return nil, nil, err
	}
	return body, deps, nil
}

// renders a markdown description to HTML
func renderDescription(md goldmark.Markdown, source []byte) (string, error) {
	source = bytes.TrimSpace(source)
	if len(source) == 0 {
		return "", nil
	}

	var out bytes.Buffer
	if err := md.Convert(source, &out); err != nil {
		return "", errors.WrapIf(err, "failed to render description")
	}
	return strings.TrimSpace(out.String()), nil
}

// reports a record document that cannot be rendered; the error matches
// core.ErrInvalidRecord and keeps the form errors. The record gives up
// its routes until it is fixed.
func invalidRecord(plugin, filePath string, err error) *core.PluginResult {
	return &core.PluginResult{
		Error:  core.NewPluginError(plugin, filePath, errors.Combine(core.ErrInvalidRecord, err)),
		Routes: []string{},
	}
}
