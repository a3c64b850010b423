package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"filecms/core"
	"filecms/plugins"

	"emperror.dev/errors"
	"gopkg.in/yaml.v2"
)

// per-file metadata written next to each file by "dump"
type dumpedMetadata struct {
	Path         string   `yaml:"path"`
	Routes       []string `yaml:"routes,omitempty"`
	Title        string   `yaml:"title"`
	Author       string   `yaml:"author"`
	Tags         []string `yaml:"tags,flow"`
	MimeType     string   `yaml:"mime-type"`
	IgnoreLayout bool     `yaml:"ignore-layout"`
	RedirectUrl  string   `yaml:"redirect-url,omitempty"`
	DirTitle     string   `yaml:"directory-title,omitempty"`
	DirCssFile   string   `yaml:"directory-css-file,omitempty"`
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to mkdir %s", filepath.Dir(path))
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "failed to create %s", path)
}

// Dump writes every processed file below Config.OutDirectory. Filer files
// are copied as they are. With everything set, the metadata of each file,
// the context and the record editor layout are written as well.
func Dump(ctx *core.Context, everything bool) error {
	outDir := ctx.Config.OutDirectory
	if err := os.Mkdir(outDir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", outDir)
	}

	files := ctx.FileManager.GetAllFiles()
	for _, file := range files {
		outPath := filepath.Join(outDir, file.Path)

		content := file.Content
		if content == nil {
			content = file.ReadFile(ctx.Config.SiteDirectory)
		}
		if err := writeFile(outPath, content); err != nil {
			return err
		}

		if !everything {
			continue
		}

		metadata := dumpedMetadata{
			Path:         file.Path,
			Routes:       file.Routes,
			Title:        file.Metadata.Title,
			Author:       file.Metadata.Author,
			Tags:         file.Metadata.Tags,
			MimeType:     file.Metadata.MimeType,
			IgnoreLayout: file.Metadata.IgnoreLayout,
			RedirectUrl:  file.Metadata.RedirectUrl,
		}
		if file.Parent != nil {
			metadata.DirTitle = file.Parent.Metadata.Title
			metadata.DirCssFile = file.Parent.Metadata.CssFile
		}

		out, err := yaml.Marshal(&metadata)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal metadata of %s", file.Path)
		}
		if err := writeFile(outPath+".yaml", out); err != nil {
			return err
		}
	}

	if !everything {
		return nil
	}

	if plugin, ok := ctx.FileManager.GetPluginManager().GetPlugin("builtin/file"); ok {
		if fp, ok := plugin.(*plugins.BuiltinFilePlugin); ok {
			out, err := json.MarshalIndent(fp.Fieldsets(), "", "  ")
			if err != nil {
				return errors.WrapIf(err, "failed to marshal fieldsets")
			}
			if err := writeFile(filepath.Join(outDir, "fieldsets.json"), out); err != nil {
				return err
			}
		}
	}

	// The file tree has circular references which break the JSON
	// serializer. The process ends after the dump, so they are cut in place.
	ctxcopy := *ctx
	ctxcopy.FileWatcher = nil
	for _, file := range files {
		file.Parent = nil
		file.Dependencies = nil
		file.Dependents = nil
		file.Content = nil
	}

	contextJson, err := json.MarshalIndent(&ctxcopy, "", "  ")
	if err != nil {
		return errors.WrapIf(err, "failed to marshal context")
	}
	return writeFile(filepath.Join(outDir, "context.json"), contextJson)
}
