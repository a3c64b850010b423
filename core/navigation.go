package core

import (
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"github.com/goccy/go-yaml"
)

type Navigation struct {
	FilePath string
	Children []NavigationItem `yaml:"main"`
}

type NavigationItem struct {
	Url      string           `yaml:"url"`
	Label    string           `yaml:"label"`
	Children []NavigationItem `yaml:"children,omitempty"`
	IsActive bool             `yaml:"-"` // helper field for templating
}

// ReadNavigationYaml reads the main navigation. Every url must be absolute.
func ReadNavigationYaml(path string) (Navigation, error) {
	var navigation Navigation
	navigation.FilePath = path

	data, err := os.ReadFile(path)
	if err != nil {
		return Navigation{}, errors.Wrapf(err, "failed to read %s", path)
	}

	if err := yaml.Unmarshal(data, &navigation); err != nil {
		return Navigation{}, errors.Wrapf(err, "failed to parse %s", path)
	}

	for _, item := range navigation.Children {
		if !strings.HasPrefix(item.Url, "/") {
			return Navigation{}, errors.Errorf("expected absolute url for %s in %s", item.Url, path)
		}
	}

	return navigation, nil
}

// InitializeNavigation loads config/navigation.yaml. A site without
// navigation file gets an empty navigation.
func InitializeNavigation(ctx *Context) (Navigation, error) {
	path := filepath.Join(ctx.Config.SiteDirectory, "config", "navigation.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Navigation{FilePath: path}, nil
	}
	return ReadNavigationYaml(path)
}
