package download

import (
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to the environment variables read by ReadEnv
const EnvPrefix = "MINICMS_"

// Installer is the raw installation-time input of the file plugin
type Installer struct {
	Templates   string `env:"FILE_TEMPLATES"`
	Terms       string `env:"FILE_TERMS"`
	ShowContext bool   `env:"FILE_SHOW_CONTEXT"`
	Gtm         bool   `env:"FILE_GTM"`
}

// Settings is the normalized configuration consumed by forms and rendering
type Settings struct {
	Templates    []Choice
	Terms        string
	ShowContext  int
	GtmInstalled bool
}

// SplitAndStrip splits a comma separated list, trims every entry and drops
// the empty ones. Order and duplicates are preserved.
func SplitAndStrip(s string) []string {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// InstallerFromParams reads the plugin section of site.yaml. Unparsable
// booleans count as false.
func InstallerFromParams(params map[string]string) Installer {
	var in Installer
	if params == nil {
		return in
	}

	in.Templates = params["templates"]
	in.Terms = params["terms"]
	in.ShowContext, _ = strconv.ParseBool(params["show-context"])
	in.Gtm, _ = strconv.ParseBool(params["gtm"])
	return in
}

// ReadEnv overrides the fields whose environment variables are set
func (in *Installer) ReadEnv() error {
	if err := env.ParseWithOptions(in, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Wrap(err, "cannot read file plugin environment")
	}
	return nil
}

// Clean prettifies the template list
func (in Installer) Clean() Installer {
	in.Templates = strings.Join(SplitAndStrip(in.Templates), ", ")
	return in
}

// ToSettings injects every non-empty input into dst. Empty or false
// inputs leave the corresponding setting untouched.
func (in Installer) ToSettings(dst *Settings) *Settings {
	if templates := SplitAndStrip(in.Templates); len(templates) > 0 {
		dst.Templates = make([]Choice, 0, len(templates))
		for _, item := range templates {
			dst.Templates = append(dst.Templates, Choice{Value: item, Label: item})
		}
	}
	if in.Terms != "" {
		dst.Terms = in.Terms
	}
	if in.ShowContext {
		dst.ShowContext = 1
	}
	if in.Gtm {
		dst.GtmInstalled = true
	}
	return dst
}

// ResolveSettings builds the settings from the site.yaml plugin section and
// the environment
func ResolveSettings(params map[string]string) (Settings, error) {
	var settings Settings

	in := InstallerFromParams(params)
	if err := in.ReadEnv(); err != nil {
		return settings, err
	}

	in.Clean().ToSettings(&settings)
	return settings, nil
}

// TemplateChoices returns the default template followed by the configured ones
func (s Settings) TemplateChoices() []Choice {
	choices := []Choice{{Value: DefaultTemplate, Label: "Default"}}
	return append(choices, s.Templates...)
}

// HasTemplate reports whether name is one of the template choices
func (s Settings) HasTemplate(name string) bool {
	for _, choice := range s.TemplateChoices() {
		if choice.Value == name {
			return true
		}
	}
	return false
}
