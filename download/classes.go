package download

import "strings"

// LinkStyle holds the presentation options of a File record
type LinkStyle struct {
	Type    string
	Context string
	Size    string
	Outline bool
	Block   bool
}

// Style returns the presentation options of the record
func (f *File) Style() LinkStyle {
	return LinkStyle{
		Type:    f.LinkType,
		Context: f.LinkContext,
		Size:    f.LinkSize,
		Outline: f.LinkOutline,
		Block:   f.LinkBlock,
	}
}

// ConcatClasses joins the non-empty class tokens with single spaces
func ConcatClasses(classes []string) string {
	kept := make([]string, 0, len(classes))
	for _, class := range classes {
		if class != "" {
			kept = append(kept, class)
		}
	}
	return strings.Join(kept, " ")
}

// Classes returns the class tokens derived from the style, in order
func (s LinkStyle) Classes() []string {
	var classes []string

	if s.Context != "" {
		if s.Type == LinkTypeLink {
			classes = append(classes, "text-"+s.Context)
		} else {
			classes = append(classes, "btn")
			if !s.Outline {
				classes = append(classes, "btn-"+s.Context)
			} else {
				classes = append(classes, "btn-outline-"+s.Context)
			}
		}
	}

	if s.Size != "" {
		classes = append(classes, s.Size)
	}

	if s.Block {
		classes = append(classes, "btn-block")
	}

	return classes
}

// LinkClasses merges the derived classes with a class string that was
// already set on the attributes
func LinkClasses(s LinkStyle, existing string) string {
	return ConcatClasses(append(s.Classes(), existing))
}
