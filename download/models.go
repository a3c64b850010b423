package download

import (
	"time"

	"github.com/google/uuid"
)

// FileResource is a file owned by the file-management subsystem. Records
// only reference it.
type FileResource interface {
	Label() string
	URL() string
	Size() int64
	MimeType() string
	ModTime() time.Time
}

// FolderResource is a folder owned by the file-management subsystem
type FolderResource interface {
	Name() string
	// Files returns the current contents, ordered by the subsystem
	Files() []FileResource
}

// Resources resolves references to file and folder resources. A reference
// that cannot be resolved yields ok == false.
type Resources interface {
	File(ref string) (FileResource, bool)
	Folder(ref string) (FolderResource, bool)
}

// File renders a downloadable file wrapped by an anchor
type File struct {
	ID       string
	Template string
	Source   FileResource

	Name         string
	Description  string
	Terms        string
	ShowTerms    bool
	LinkTarget   string
	LinkTitle    string
	ShowFileSize bool

	LinkType    string
	LinkContext string
	LinkSize    string
	LinkOutline bool
	LinkBlock   bool

	Attributes Attributes
}

// Folder renders the files of a folder
type Folder struct {
	ID           string
	Template     string
	Source       FolderResource
	LinkTarget   string
	ShowFileSize bool
	Attributes   Attributes
}

func newID() string {
	return uuid.NewString()
}

// NewFile returns a File record with the field defaults applied
func NewFile(settings Settings) *File {
	return &File{
		ID:         newID(),
		Template:   DefaultTemplate,
		LinkType:   LinkTypeButton,
		Terms:      settings.Terms,
		Attributes: Attributes{},
	}
}

// NewFolder returns a Folder record with the field defaults applied
func NewFolder() *Folder {
	return &Folder{
		ID:         newID(),
		Template:   DefaultTemplate,
		Attributes: Attributes{},
	}
}

func (f *File) String() string {
	if f.Source != nil && f.Source.Label() != "" {
		return f.Source.Label()
	}
	return f.ID
}

// ShortDescription is the label shown to editors and used as link text
func (f *File) ShortDescription() string {
	if f.Source != nil && f.Name != "" {
		return f.Name
	}
	if f.Source != nil && f.Source.Label() != "" {
		return f.Source.Label()
	}
	return MissingFileLabel
}

// Missing reports whether the linked file is gone
func (f *File) Missing() bool {
	return f.Source == nil
}

// CopyRelations re-links the file reference of old to f
func (f *File) CopyRelations(old *File) {
	f.Source = old.Source
}

// Copy duplicates the record under a new ID
func (f *File) Copy() *File {
	c := *f
	c.ID = newID()
	c.Attributes = f.Attributes.Clone()
	c.CopyRelations(f)
	return &c
}

func (f *Folder) String() string {
	if f.Source != nil && f.Source.Name() != "" {
		return f.Source.Name()
	}
	return f.ID
}

// ShortDescription is the label shown to editors
func (f *Folder) ShortDescription() string {
	if f.Source != nil && f.Source.Name() != "" {
		return f.Source.Name()
	}
	return MissingFolderLabel
}

// Missing reports whether the linked folder is gone
func (f *Folder) Missing() bool {
	return f.Source == nil
}

// CopyRelations re-links the folder reference of old to f
func (f *Folder) CopyRelations(old *Folder) {
	f.Source = old.Source
}

// Copy duplicates the record under a new ID
func (f *Folder) Copy() *Folder {
	c := *f
	c.ID = newID()
	c.Attributes = f.Attributes.Clone()
	c.CopyRelations(f)
	return &c
}

// Files lists the files of the linked folder in the folder's own order.
// Without a linked folder the list is empty.
func (f *Folder) Files() []FileResource {
	files := []FileResource{}
	if f.Source == nil {
		return files
	}
	return append(files, f.Source.Files()...)
}
