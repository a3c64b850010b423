package core

import (
	"os"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

type Context struct {
	Users       Users
	Config      Config
	Navigation  Navigation
	FileManager *FileManager
	FileWatcher *FileWatcher `json:"-"`

	// Endpoints are served next to the content routes (e.g. "/search")
	Endpoints map[string]gin.HandlerFunc `json:"-"`
}

// AddEndpoint registers a handler for a fixed GET route
func (ctx *Context) AddEndpoint(route string, handler gin.HandlerFunc) {
	if ctx.Endpoints == nil {
		ctx.Endpoints = make(map[string]gin.HandlerFunc)
	}
	ctx.Endpoints[route] = handler
}

// LoadSiteEnv loads <site>/.env into the process environment. Variables
// that are already set win.
func LoadSiteEnv(siteDirectory string) error {
	path := filepath.Join(siteDirectory, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "failed to load %s", path)
	}
	return nil
}

func InitializeContext(ctx *Context) error {
	var err error

	// .env may carry plugin settings overrides
	if err = LoadSiteEnv(ctx.Config.SiteDirectory); err != nil {
		return err
	}

	// read config.yaml
	configFilePath := filepath.Join(ctx.Config.SiteDirectory, "config", "site.yaml")
	err = ReadConfigYaml(&ctx.Config, configFilePath)
	if err != nil {
		return err
	}

	// read users.yaml
	authorsFilePath := filepath.Join(ctx.Config.SiteDirectory, "config", "users.yaml")
	ctx.Users, err = ReadUsersYaml(authorsFilePath)
	if err != nil {
		return err
	}

	// Build the Navigation structure
	ctx.Navigation, err = InitializeNavigation(ctx)
	if err != nil {
		return err
	}

	return nil
}
