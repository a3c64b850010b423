package download

// Fieldset groups editor fields. Each row lists the fields shown side by side.
type Fieldset struct {
	Title     string     `json:"title,omitempty"`
	Collapsed bool       `json:"collapsed,omitempty"`
	Rows      [][]string `json:"rows"`
}

// FileFieldsets is the editor layout of the File record. The context field
// is only offered when the installation enables it.
func FileFieldsets(settings Settings) []Fieldset {
	rows := [][]string{
		{"file"},
		{"name", "link-type"},
		{"description"},
		{"terms"},
	}
	if settings.ShowContext == 1 {
		rows = append(rows, []string{"link-context"})
	}
	rows = append(rows,
		[]string{"link-size", "link-outline"},
		[]string{"link-block", "show-file-size"},
	)

	return []Fieldset{
		{Rows: rows},
		{
			Title:     "Advanced settings",
			Collapsed: true,
			Rows: [][]string{
				{"template"},
				{"link-target", "link-title"},
				{"attributes"},
			},
		},
	}
}

// FolderFieldsets is the editor layout of the Folder record
func FolderFieldsets() []Fieldset {
	return []Fieldset{
		{Rows: [][]string{{"folder"}}},
		{
			Title:     "Advanced settings",
			Collapsed: true,
			Rows: [][]string{
				{"template"},
				{"link-target"},
				{"show-file-size"},
				{"attributes"},
			},
		},
	}
}
