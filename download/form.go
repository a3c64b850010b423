package download

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord is wrapped by every form validation failure
const ErrInvalidRecord = errors.Sentinel("invalid record")

var validate = validator.New()

// FieldError describes one rejected form field
type FieldError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s (value: %v): %s", e.Field, e.Value, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidRecord
}

// FileForm is the editable part of a File record as stored in front matter
type FileForm struct {
	Template     string     `yaml:"template" toml:"template" validate:"required"`
	File         string     `yaml:"file" toml:"file"`
	Name         string     `yaml:"name" toml:"name" validate:"max=255"`
	Terms        string     `yaml:"terms" toml:"terms"`
	ShowTerms    bool       `yaml:"show-terms" toml:"show-terms"`
	LinkTarget   string     `yaml:"link-target" toml:"link-target" validate:"omitempty,oneof=_self _blank _parent _top"`
	LinkTitle    string     `yaml:"link-title" toml:"link-title" validate:"max=255"`
	ShowFileSize bool       `yaml:"show-file-size" toml:"show-file-size"`
	LinkType     string     `yaml:"link-type" toml:"link-type" validate:"oneof=link btn"`
	LinkContext  string     `yaml:"link-context" toml:"link-context" validate:"omitempty,oneof=link primary secondary success danger warning info light dark"`
	LinkSize     string     `yaml:"link-size" toml:"link-size" validate:"omitempty,oneof=btn-sm btn-lg"`
	LinkOutline  bool       `yaml:"link-outline" toml:"link-outline"`
	LinkBlock    bool       `yaml:"link-block" toml:"link-block"`
	Attributes   Attributes `yaml:"attributes" toml:"attributes"`

	// Layout handling of the surrounding page
	Title        string `yaml:"title" toml:"title"`
	IgnoreLayout bool   `yaml:"ignore-layout" toml:"ignore-layout"`
}

// FolderForm is the editable part of a Folder record as stored in front matter
type FolderForm struct {
	Template     string     `yaml:"template" toml:"template" validate:"required"`
	Folder       string     `yaml:"folder" toml:"folder"`
	LinkTarget   string     `yaml:"link-target" toml:"link-target" validate:"omitempty,oneof=_self _blank _parent _top"`
	ShowFileSize bool       `yaml:"show-file-size" toml:"show-file-size"`
	Attributes   Attributes `yaml:"attributes" toml:"attributes"`

	Title        string `yaml:"title" toml:"title"`
	IgnoreLayout bool   `yaml:"ignore-layout" toml:"ignore-layout"`
}

// NewFileForm returns a form holding the field defaults
func NewFileForm(settings Settings) *FileForm {
	return &FileForm{
		Template: DefaultTemplate,
		LinkType: LinkTypeButton,
		Terms:    settings.Terms,
	}
}

// NewFolderForm returns a form holding the field defaults
func NewFolderForm() *FolderForm {
	return &FolderForm{Template: DefaultTemplate}
}

// Clean trims the text fields and normalizes the enumerations
func (f *FileForm) Clean() {
	f.Template = strings.TrimSpace(f.Template)
	f.File = strings.TrimSpace(f.File)
	f.Name = strings.TrimSpace(f.Name)
	f.LinkTitle = strings.TrimSpace(f.LinkTitle)
	f.LinkTarget = strings.ToLower(strings.TrimSpace(f.LinkTarget))
	f.LinkType = strings.ToLower(strings.TrimSpace(f.LinkType))
	f.LinkContext = strings.ToLower(strings.TrimSpace(f.LinkContext))
	f.LinkSize = strings.ToLower(strings.TrimSpace(f.LinkSize))
	if f.Attributes == nil {
		f.Attributes = Attributes{}
	}
}

// Clean trims the text fields and normalizes the enumerations
func (f *FolderForm) Clean() {
	f.Template = strings.TrimSpace(f.Template)
	f.Folder = strings.TrimSpace(f.Folder)
	f.LinkTarget = strings.ToLower(strings.TrimSpace(f.LinkTarget))
	if f.Attributes == nil {
		f.Attributes = Attributes{}
	}
}

// Validate checks the form against the enumerations and the configured
// template choices. All problems are reported at once.
func (f *FileForm) Validate(settings Settings) error {
	err := structErrors(f)
	err = errors.Append(err, templateError(f.Template, settings))
	return errors.Append(err, attributeErrors(f.Attributes, FileExcludedAttributes))
}

// Validate checks the form against the enumerations and the configured
// template choices
func (f *FolderForm) Validate(settings Settings) error {
	err := structErrors(f)
	err = errors.Append(err, templateError(f.Template, settings))
	return errors.Append(err, attributeErrors(f.Attributes, FolderExcludedAttributes))
}

// Record builds the File record. A reference that does not resolve leaves
// the record without source.
func (f *FileForm) Record(resources Resources, description string) *File {
	record := &File{
		ID:           newID(),
		Template:     f.Template,
		Name:         f.Name,
		Description:  description,
		Terms:        f.Terms,
		ShowTerms:    f.ShowTerms,
		LinkTarget:   f.LinkTarget,
		LinkTitle:    f.LinkTitle,
		ShowFileSize: f.ShowFileSize,
		LinkType:     f.LinkType,
		LinkContext:  f.LinkContext,
		LinkSize:     f.LinkSize,
		LinkOutline:  f.LinkOutline,
		LinkBlock:    f.LinkBlock,
		Attributes:   f.Attributes.Clone(),
	}

	if f.File != "" && resources != nil {
		if source, ok := resources.File(f.File); ok {
			record.Source = source
		}
	}
	return record
}

// Record builds the Folder record
func (f *FolderForm) Record(resources Resources) *Folder {
	record := &Folder{
		ID:           newID(),
		Template:     f.Template,
		LinkTarget:   f.LinkTarget,
		ShowFileSize: f.ShowFileSize,
		Attributes:   f.Attributes.Clone(),
	}

	if f.Folder != "" && resources != nil {
		if source, ok := resources.Folder(f.Folder); ok {
			record.Source = source
		}
	}
	return record
}

func structErrors(form interface{}) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "cannot validate form")
	}

	var combined error
	for _, fe := range verrs {
		combined = errors.Append(combined, &FieldError{
			Field:   fe.Field(),
			Value:   fe.Value(),
			Message: fmt.Sprintf("failed on %q", strings.TrimSpace(fe.Tag()+" "+fe.Param())),
		})
	}
	return combined
}

func templateError(name string, settings Settings) error {
	if name == "" || settings.HasTemplate(name) {
		return nil
	}
	return &FieldError{Field: "Template", Value: name, Message: "not a configured template"}
}

func attributeErrors(attrs Attributes, excluded []string) error {
	var combined error
	for _, key := range attrs.Excluded(excluded) {
		combined = errors.Append(combined, &FieldError{
			Field:   "Attributes",
			Value:   key,
			Message: "key is managed by the record and cannot be set",
		})
	}
	for _, key := range attrs.Keys() {
		if !validAttributeName(key) {
			combined = errors.Append(combined, &FieldError{
				Field:   "Attributes",
				Value:   key,
				Message: "not a valid attribute name",
			})
		}
	}
	return combined
}
