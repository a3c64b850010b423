package plugins

import (
	"bytes"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"filecms/core"

	"emperror.dev/errors"
	"github.com/Masterminds/sprig/v3"
	"github.com/dustin/go-humanize"
)

const (
	layoutHeader = "layout/header.html"
	layoutFooter = "layout/footer.html"
)

// TemplateFuncs is available in page and record templates: the sprig
// functions plus "filesize", which prints a byte count for humans
func TemplateFuncs() template.FuncMap {
	funcs := sprig.HtmlFuncMap()
	funcs["filesize"] = func(size int64) string {
		if size < 0 {
			size = 0
		}
		return humanize.Bytes(uint64(size))
	}
	return funcs
}

func ApplyTemplate(body []byte, file *core.File, vars *map[string]interface{}) ([]byte, error) {
	tmpl, err := template.New(file.Path).Funcs(TemplateFuncs()).Parse(string(body))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse template for %s", file.Path)
	}

	var output bytes.Buffer
	if err := tmpl.Execute(&output, vars); err != nil {
		return nil, errors.Wrapf(err, "failed to execute template for %s", file.Path)
	}

	return output.Bytes(), nil
}

// WrapLayout surrounds body with the layout header and footer. The returned
// files are dependencies of the page.
func WrapLayout(ctx *core.PluginContext, body []byte) ([]byte, []*core.File, error) {
	header := ctx.FileManager.GetFile(layoutHeader)
	footer := ctx.FileManager.GetFile(layoutFooter)
	if header == nil || footer == nil {
		return nil, nil, errors.WithStack(core.ErrMissingLayout)
	}

	// read from disk, the tracked layout files belong to the file manager
	top := header.ReadFile(ctx.SiteDirectory)
	bottom := footer.ReadFile(ctx.SiteDirectory)
	if top == nil || bottom == nil {
		return nil, nil, errors.WithStack(core.ErrMissingLayout)
	}

	page := make([]byte, 0, len(top)+len(body)+len(bottom))
	page = append(page, top...)
	page = append(page, body...)
	page = append(page, bottom...)
	return page, []*core.File{header, footer}, nil
}

// IsContent reports whether a file lives below content/
func IsContent(file *core.File) bool {
	return strings.HasPrefix(filepath.ToSlash(file.Path), "content/")
}

// ContentRoute maps a path below content/ to its URL
func ContentRoute(filePath string) string {
	route := strings.TrimPrefix(filepath.ToSlash(filePath), "content/")
	return path.Clean("/" + strings.TrimLeft(route, "/"))
}

// PageRoutes returns the route of a page, the route without extension and,
// for index pages, the directory route
func PageRoutes(filePath string) []string {
	route := ContentRoute(filePath)
	routes := []string{route, strings.TrimSuffix(route, path.Ext(route))}

	base := path.Base(route)
	if strings.TrimSuffix(base, path.Ext(base)) == "index" {
		routes = append(routes, path.Dir(route))
	}
	return routes
}

func BuildTemplateVars(ctx *core.Context, file *core.File, routes []string) map[string]any {
	vars := map[string]any{
		"SiteTitle":       ctx.Config.Server.Title,
		"SiteDescription": ctx.Config.Server.Description,
		"SiteAuthor":      ctx.Users.Author().Name,
		"BrandingFavicon": ctx.Config.Branding.Favicon,
		"BrandingCssFile": ctx.Config.Branding.CssFile,
		"PageTitle":       file.Metadata.Title,
		"PageAuthor":      file.Metadata.Author,
		"PageTags":        file.Metadata.Tags,
		"PageCssFile":     file.Metadata.CssFile,
		"PageMimeType":    file.Metadata.MimeType,
	}

	// Date of last update is either specified in the metadata or is fetched from the file system
	if file.Metadata.DateOfLastUpdate.IsZero() {
		info, err := os.Stat(filepath.Join(ctx.Config.SiteDirectory, file.Path))
		if err != nil {
			core.Warn("failed to get file info for %s: %v", file.Path, err)
		} else {
			vars["DateOfLastUpdate"] = info.ModTime()
		}
	} else {
		vars["DateOfLastUpdate"] = file.Metadata.DateOfLastUpdate
	}

	if file.Parent != nil { // Can be nil when "dump"ing everything to disk
		vars["Directory"] = map[string]interface{}{
			"Title":   file.Parent.Metadata.Title,
			"CssFile": file.Parent.Metadata.CssFile,
		}
	}

	// Mark the navigation items which point at this page. The items are
	// copied, the site navigation is shared by all pages.
	nav := ctx.Navigation
	nav.Children = make([]core.NavigationItem, len(ctx.Navigation.Children))
	for i, item := range ctx.Navigation.Children {
		item.IsActive = slices.Contains(routes, strings.ToLower(item.Url))
		nav.Children[i] = item
	}
	vars["Navigation"] = nav

	return vars
}
