package core

import (
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/go-playground/validator/v10"
	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v2"
)

const (
	DefaultPort     = 8080
	DefaultHostname = "localhost"
	DefaultTitle    = "filecms Server"
	DefaultFavicon  = "/assets/favicon.png"
	DefaultLogLevel = "info"
)

const (
	ErrInvalidPort       = errors.Sentinel("port must be between 1 and 65535")
	ErrInvalidHostname   = errors.Sentinel("hostname is invalid")
	ErrEmptyDirectory    = errors.Sentinel("directory cannot be empty")
	ErrDirectoryNotExist = errors.Sentinel("directory does not exist")
	ErrInvalidPath       = errors.Sentinel("path contains invalid characters")
	ErrMissingOutput     = errors.Sentinel("output directory is required")
	ErrConfigNotFound    = errors.Sentinel("configuration file not found")
	ErrInvalidYAML       = errors.Sentinel("invalid YAML configuration")
)

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	// paths must not leave the site and must not contain shell specials
	_ = v.RegisterValidation("sitepath", func(fl validator.FieldLevel) bool {
		return isValidPath(fl.Field().String())
	})
	return v
}

// maps the first failing field to the sentinel of its kind
func validationError(section string, err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrapf(err, "%s configuration", section)
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Port":
		return errors.Wrapf(ErrInvalidPort, "%s: got %v", section, fe.Value())
	case "Hostname":
		return errors.Wrapf(ErrInvalidHostname, "%s: %q", section, fe.Value())
	case "Favicon", "CssFile", "Out":
		return errors.Wrapf(ErrInvalidPath, "%s: %s", section, strings.ToLower(fe.Field()))
	}
	return errors.Errorf("%s configuration: field %s failed on %q", section, fe.Field(), fe.Tag())
}

type Server struct {
	Port        int    `yaml:"port" validate:"min=1,max=65535"`
	Hostname    string `yaml:"hostname" validate:"omitempty,hostname_rfc1123|ip"`
	Title       string `yaml:"title" validate:"max=200"`
	Description string `yaml:"description" validate:"max=500"`
	RateLimit   int    `yaml:"rate-limit" validate:"min=0,max=100000"` // requests per minute and client, 0 disables
}

func (s *Server) Validate() error {
	return validationError("server", configValidator.Struct(s))
}

type Branding struct {
	Favicon string `yaml:"favicon" validate:"omitempty,sitepath"`
	CssFile string `yaml:"cssfile" validate:"omitempty,sitepath"`
}

func (b *Branding) Validate() error {
	return validationError("branding", configValidator.Struct(b))
}

// Plugins holds the installation parameters of each plugin, keyed by
// plugin name ("builtin/file" reads templates, terms, show-context, gtm)
type Plugins map[string]map[string]string

func (p Plugins) Validate() error {
	for name, params := range p {
		if name == "" {
			return errors.New("plugin name cannot be empty")
		}
		for key := range params {
			if key == "" {
				return errors.Errorf("plugin %s has empty configuration key", name)
			}
		}
	}
	return nil
}

// Get returns the parameters of a plugin, nil if it is not configured
func (p Plugins) Get(name string) map[string]string {
	if p == nil {
		return nil
	}
	return p[name]
}

type Config struct {
	FilePath      string
	SiteDirectory string
	Mode          string
	OutDirectory  string
	LogLevel      string
	Server        Server   `yaml:"server"`
	Branding      Branding `yaml:"branding"`
	Plugins       Plugins  `yaml:"plugins"`
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Branding.Validate(); err != nil {
		return err
	}
	return errors.WrapIf(c.Plugins.Validate(), "plugins configuration")
}

func (c *Config) validateSiteDirectory() error {
	if c.SiteDirectory == "" {
		return errors.Wrap(ErrEmptyDirectory, "site directory")
	}
	if !isValidPath(c.SiteDirectory) {
		return errors.Wrap(ErrInvalidPath, "site directory")
	}
	if _, err := os.Stat(c.SiteDirectory); os.IsNotExist(err) {
		return errors.Wrap(ErrDirectoryNotExist, c.SiteDirectory)
	}
	return nil
}

func (c *Config) validateOutDirectory() error {
	if c.OutDirectory == "" {
		return ErrMissingOutput
	}
	if !isValidPath(c.OutDirectory) {
		return errors.Wrap(ErrInvalidPath, "output directory")
	}
	return nil
}

func isValidPath(path string) bool {
	if path == "" {
		return false
	}
	if strings.Contains(path, "../") || strings.Contains(path, `..\`) {
		return false
	}
	return !strings.ContainsAny(path, "\x00<>|?*")
}

// Options are the global command line flags
type Options struct {
	Port     int    `short:"p" long:"port" description:"Port to run the HTTP server on" default:"8080" validate:"min=1,max=65535"`
	Hostname string `short:"h" long:"hostname" description:"Hostname of the HTTP server" default:"localhost" validate:"omitempty,hostname_rfc1123|ip"`
	Out      string `short:"o" long:"out" description:"Output directory" validate:"omitempty,sitepath"`
	LogLevel string `short:"l" long:"log-level" description:"Minimum log level (debug, info, warn, error)" default:"info"`
	Help     bool   `long:"help" description:"Display help information"`
}

func (o *Options) Validate() error {
	if err := validationError("command line", configValidator.Struct(o)); err != nil {
		return err
	}
	_, err := ParseLogLevel(o.LogLevel)
	return err
}

// each command takes the site directory, except version
type siteCommand struct {
	Args struct {
		Directory string `positional-arg-name:"directory" description:"Site directory with content/, layout/ and filer/"`
	} `positional-args:"yes" required:"yes"`
}

type versionCommand struct{}

// Reads and validates a YAML configuration file
func ReadConfigYaml(config *Config, filePath string) error {
	if filePath == "" || !isValidPath(filePath) {
		return errors.Wrapf(ErrInvalidPath, "config file %q", filePath)
	}
	config.FilePath = filePath

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return errors.Wrap(ErrConfigNotFound, filePath)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", filePath)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return errors.Wrap(ErrInvalidYAML, err.Error())
	}

	return errors.WrapIf(config.Validate(), "configuration validation failed")
}

// Creates a new configuration with default values
func NewDefaultConfig() Config {
	return Config{
		Server: Server{
			Port:     DefaultPort,
			Hostname: DefaultHostname,
			Title:    DefaultTitle,
		},
		LogLevel: DefaultLogLevel,
		Branding: Branding{Favicon: DefaultFavicon},
		Plugins:  make(Plugins),
	}
}

// Parses command line arguments and returns a validated configuration
func ParseCommandLineArguments() (Config, error) {
	config := NewDefaultConfig()

	var opts Options
	var run, static, dump siteCommand
	var version versionCommand

	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("run", "Run the server from a directory",
		"Serve the site and watch it for changes", &run)
	parser.AddCommand("static", "Generate static html files",
		"Render the site into the output directory, filer files included", &static)
	parser.AddCommand("dump", "Dumps internal state (for testing)",
		"Render the site, then dump metadata, fieldsets and context", &dump)
	parser.AddCommand("version", "Print the build version",
		"Print the build version", &version)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return config, errors.WrapIf(err, "failed to parse command line arguments")
	}

	if err := opts.Validate(); err != nil {
		return config, errors.WrapIf(err, "invalid command line options")
	}

	config.Server.Port = opts.Port
	config.Server.Hostname = opts.Hostname
	config.LogLevel = opts.LogLevel
	config.OutDirectory = opts.Out

	if parser.Active == nil {
		return config, errors.New("no command specified")
	}

	config.Mode = parser.Active.Name
	switch config.Mode {
	case "run":
		config.SiteDirectory = run.Args.Directory
	case "static":
		config.SiteDirectory = static.Args.Directory
	case "dump":
		config.SiteDirectory = dump.Args.Directory
	case "version":
		return config, nil
	default:
		return config, errors.Errorf("unknown command: %s", config.Mode)
	}

	if err := config.validateSiteDirectory(); err != nil {
		return config, err
	}
	if config.Mode != "run" {
		if err := config.validateOutDirectory(); err != nil {
			return config, err
		}
	}

	return config, errors.WrapIf(config.Validate(), "configuration validation failed")
}
