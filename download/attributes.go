package download

import (
	"html"
	"html/template"
	"maps"
	"regexp"
	"slices"
	"strings"
)

var attributeNameRe = regexp.MustCompile(`^[a-zA-Z_:][-a-zA-Z0-9_:.]*$`)

// Attributes are arbitrary HTML attributes set by the editor
type Attributes map[string]string

// Clone returns an independent copy, never nil
func (a Attributes) Clone() Attributes {
	c := make(Attributes, len(a))
	maps.Copy(c, a)
	return c
}

// Get returns the value of key, or "" if a is nil or key is unset
func (a Attributes) Get(key string) string {
	if a == nil {
		return ""
	}
	return a[key]
}

// Keys returns the sorted attribute names
func (a Attributes) Keys() []string {
	return slices.Sorted(maps.Keys(a))
}

// Excluded returns the keys of a that appear in excluded (case-insensitive)
func (a Attributes) Excluded(excluded []string) []string {
	var found []string
	for _, key := range a.Keys() {
		if slices.Contains(excluded, strings.ToLower(key)) {
			found = append(found, key)
		}
	}
	return found
}

// HTML renders the attributes as ` key="value"` pairs in key order.
// Empty values render as bare attribute names, except for an empty class.
func (a Attributes) HTML() template.HTMLAttr {
	var b strings.Builder
	for _, key := range a.Keys() {
		if !attributeNameRe.MatchString(key) || (key == "class" && a[key] == "") {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(key)
		if value := a[key]; value != "" {
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(value))
			b.WriteByte('"')
		}
	}
	return template.HTMLAttr(b.String())
}

func validAttributeName(key string) bool {
	return attributeNameRe.MatchString(key)
}
