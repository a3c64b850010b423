package download

import (
	"html/template"
	"path"
)

// RenderContext is handed to the record templates
type RenderContext map[string]interface{}

// TemplateName returns the layout template of a record kind ("file" or
// "folder") for the given template choice
func TemplateName(choice, kind string) string {
	if choice == "" {
		choice = DefaultTemplate
	}
	return path.Join("file", choice, kind+".html")
}

// RenderFile derives the link classes and builds the template context.
// The record itself is left untouched; the context holds a copy.
func RenderFile(f *File, settings Settings) (string, RenderContext) {
	instance := f.Copy()
	instance.Attributes["class"] = LinkClasses(instance.Style(), instance.Attributes.Get("class"))

	terms := instance.Terms
	if terms == "" {
		terms = settings.Terms
	}

	ctx := RenderContext{
		"Instance":     instance,
		"Attributes":   instance.Attributes.HTML(),
		"Description":  template.HTML(instance.Description),
		"Terms":        terms,
		"ShowContext":  settings.ShowContext == 1,
		"GtmInstalled": settings.GtmInstalled,
	}
	return TemplateName(instance.Template, "file"), ctx
}

// RenderFolder lists the folder files into the template context
func RenderFolder(f *Folder, settings Settings) (string, RenderContext) {
	instance := f.Copy()

	ctx := RenderContext{
		"Instance":     instance,
		"Attributes":   instance.Attributes.HTML(),
		"FolderFiles":  instance.Files(),
		"GtmInstalled": settings.GtmInstalled,
	}
	return TemplateName(instance.Template, "folder"), ctx
}
