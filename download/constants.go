// Package download implements the file and folder download records of the
// CMS: installer settings, the editor form, the records themselves and the
// rendering step that turns a record into a styled link or button.
package download

// Choice is a (value, label) pair offered to editors
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Link types
const (
	LinkTypeLink   = "link"
	LinkTypeButton = "btn"
)

// Sizes are complete class tokens, medium is the empty string
const (
	LinkSizeSmall  = "btn-sm"
	LinkSizeMedium = ""
	LinkSizeLarge  = "btn-lg"
)

const DefaultTemplate = "default"

// Placeholders shown when the linked resource no longer exists
const (
	MissingFileLabel   = "<file is missing>"
	MissingFolderLabel = "<folder is missing>"
)

var LinkTargets = []Choice{
	{"_self", "Open in same window"},
	{"_blank", "Open in new window"},
	{"_parent", "Delegate to parent"},
	{"_top", "Delegate to top"},
}

var LinkTypes = []Choice{
	{LinkTypeLink, "Link"},
	{LinkTypeButton, "Button"},
}

var LinkContexts = []Choice{
	{"link", "Link"},
	{"primary", "Primary"},
	{"secondary", "Secondary"},
	{"success", "Success"},
	{"danger", "Danger"},
	{"warning", "Warning"},
	{"info", "Info"},
	{"light", "Light"},
	{"dark", "Dark"},
}

var LinkSizes = []Choice{
	{LinkSizeSmall, "Small"},
	{LinkSizeMedium, "Medium"},
	{LinkSizeLarge, "Large"},
}

// Attribute keys the records manage themselves
var (
	FileExcludedAttributes   = []string{"href", "title", "target"}
	FolderExcludedAttributes = []string{"href", "target"}
)
