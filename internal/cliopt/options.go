package cliopt

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
)

const (
	DefaultConfigPath = "~/.dbkeeper/config.yaml"
	DefaultCacheDir   = "~/.dbkeeper/cache"
	envPrefix         = "DBKEEPER_"
	envKeepServices   = "KEEP_SERVICES"
)

// GlobalOptions are resolved once at the CLI root and passed to subcommands.
//
// NOTE: This is a separate package to avoid import cycles between the root
// command router and per-command code.
type GlobalOptions struct {
	// Service names a catalog entry; it wins over Backend and URI.
	Service  string
	Password string

	Backend string
	URI     string

	Format       string
	LogLevel     string
	ConfigPath   string
	CacheDir     string
	KeepServices bool
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		Backend:    "mongodb",
		Format:     "auto",
		LogLevel:   "warn",
		ConfigPath: DefaultConfigPath,
		CacheDir:   DefaultCacheDir,
	}
}

func BindGlobalFlags(fs *pflag.FlagSet, g *GlobalOptions) {
	fs.StringVarP(&g.Service, "service", "s", g.Service, "catalog service name")
	fs.StringVarP(&g.Password, "password", "p", g.Password, "catalog service password")
	fs.StringVarP(&g.Backend, "backend", "b", g.Backend, "backend: mongodb|sqlite|postgres")
	fs.StringVarP(&g.URI, "uri", "u", g.URI, "mongodb uri, postgres dsn or sqlite directory")
	fs.StringVarP(&g.Format, "format", "f", g.Format, "output: auto|pretty|json")
	fs.StringVar(&g.LogLevel, "log-level", g.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&g.ConfigPath, "config", g.ConfigPath, "config file")
	fs.StringVar(&g.CacheDir, "cache-dir", g.CacheDir, "service catalog directory")
	fs.BoolVar(&g.KeepServices, "keep-services", g.KeepServices, "persist the service catalog")
}

// FileConfig is the YAML config file.
type FileConfig struct {
	Backend      string `yaml:"backend"`
	URI          string `yaml:"uri"`
	Service      string `yaml:"service"`
	Format       string `yaml:"format"`
	CacheDir     string `yaml:"cache_dir"`
	KeepServices bool   `yaml:"keep_services"`
	Log          struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func (c FileConfig) options() GlobalOptions {
	return GlobalOptions{
		Backend:      c.Backend,
		URI:          c.URI,
		Service:      c.Service,
		Format:       c.Format,
		CacheDir:     c.CacheDir,
		KeepServices: c.KeepServices,
		LogLevel:     c.Log.Level,
	}
}

// LoadFile reads a config file. A missing file is an empty config unless
// required is set.
func LoadFile(path string, required bool) (FileConfig, error) {
	var cfg FileConfig
	expanded, err := homedir.Expand(path)
	if err != nil {
		return cfg, dkerrors.Wrap(dkerrors.ErrConfig, "expand config path", err)
	}
	b, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return cfg, dkerrors.Wrap(dkerrors.ErrConfig, "read config", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, dkerrors.Wrap(dkerrors.ErrConfig, fmt.Sprintf("parse config %s", expanded), err)
	}
	return cfg, nil
}

// ApplyEnv overrides options from DBKEEPER_* variables and KEEP_SERVICES.
func ApplyEnv(g *GlobalOptions, lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("SERVICE", &g.Service)
	str("PASSWORD", &g.Password)
	str("BACKEND", &g.Backend)
	str("URI", &g.URI)
	str("FORMAT", &g.Format)
	str("LOG_LEVEL", &g.LogLevel)
	str("CACHE_DIR", &g.CacheDir)

	for _, name := range []string{envKeepServices, envPrefix + envKeepServices} {
		if v, ok := lookup(name); ok {
			if keep, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				g.KeepServices = keep
			}
		}
	}
}

// Resolve layers defaults, the config file, the environment and finally the
// flags the user set explicitly. flags holds the parsed flag values.
func Resolve(fs *pflag.FlagSet, flags GlobalOptions, lookup func(string) (string, bool)) (GlobalOptions, error) {
	required := fs != nil && fs.Changed("config")
	cfg, err := LoadFile(flags.ConfigPath, required)
	if err != nil {
		return GlobalOptions{}, err
	}

	g := cfg.options()
	g.ConfigPath = flags.ConfigPath
	if err := mergo.Merge(&g, DefaultGlobalOptions()); err != nil {
		return GlobalOptions{}, dkerrors.Wrap(dkerrors.ErrConfig, "merge defaults", err)
	}
	ApplyEnv(&g, lookup)
	overrideChanged(fs, &g, flags)

	if g.CacheDir, err = homedir.Expand(g.CacheDir); err != nil {
		return GlobalOptions{}, dkerrors.Wrap(dkerrors.ErrConfig, "expand cache dir", err)
	}
	return g, nil
}

func overrideChanged(fs *pflag.FlagSet, dst *GlobalOptions, src GlobalOptions) {
	if fs == nil {
		return
	}
	for name, apply := range map[string]func(){
		"service":       func() { dst.Service = src.Service },
		"password":      func() { dst.Password = src.Password },
		"backend":       func() { dst.Backend = src.Backend },
		"uri":           func() { dst.URI = src.URI },
		"format":        func() { dst.Format = src.Format },
		"log-level":     func() { dst.LogLevel = src.LogLevel },
		"cache-dir":     func() { dst.CacheDir = src.CacheDir },
		"keep-services": func() { dst.KeepServices = src.KeepServices },
	} {
		if fs.Changed(name) {
			apply()
		}
	}
}
