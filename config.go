package native

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes environment overrides of configuration keys, as NATIVE_DEBUG or NATIVE_BASE_DIR.
const EnvPrefix = "NATIVE"

type (
	// Config of loading and binding, read by viper.
	Config struct {
		Debug            bool             `mapstructure:"debug"`
		FixupLibraryName bool             `mapstructure:"fixup_library_name"`
		SkipExisting     bool             `mapstructure:"skip_existing"`
		ExecutableDir    string           `mapstructure:"executable_dir"`
		BaseDir          string           `mapstructure:"base_dir"`
		WorkingDir       string           `mapstructure:"working_dir"`
		Windows          WindowsOptions   `mapstructure:"windows"`
		Overrides        []OverrideConfig `mapstructure:"overrides"`
	}
	// OverrideConfig substitutes the library backing a logical library on one platform.
	OverrideConfig struct {
		Library  string `mapstructure:"library"`
		Platform string `mapstructure:"platform"`
		Name     string `mapstructure:"name"`
		Version  string `mapstructure:"version"`
	}
)

// LoadConfig applies defaults and environment overrides to v and decodes it.
func LoadConfig(v *viper.Viper) (*Config, error) {
	v.SetDefault("debug", false)
	v.SetDefault("fixup_library_name", true)
	v.SetDefault("skip_existing", false)
	v.SetDefault("executable_dir", "")
	v.SetDefault("base_dir", "")
	v.SetDefault("working_dir", "")
	v.SetDefault("windows.add_library_directory", false)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// ReadConfig reads a configuration file, an empty path reads defaults and environment only.
func ReadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return LoadConfig(v)
}

// Resolver creates the probe resolver the configuration describes.
func (c *Config) Resolver() *ProbeResolver {
	r := NewProbeResolver()
	r.Fixup = c.FixupLibraryName
	r.SkipExisting = c.SkipExisting
	if c.ExecutableDir != "" {
		r.ExecutableDir = c.ExecutableDir
	}
	if c.BaseDir != "" {
		r.BaseDir = c.BaseDir
	}
	r.WorkingDir = c.WorkingDir
	return r
}

// LibraryOverrides groups configured overrides by logical library name.
func (c *Config) LibraryOverrides() (map[string][]Override, error) {
	o := make(map[string][]Override)
	for _, x := range c.Overrides {
		if x.Library == "" {
			return nil, fmt.Errorf("%w: override without library", ErrMissingBindingMetadata)
		}
		p, err := ParsePlatform(x.Platform)
		if err != nil {
			return nil, fmt.Errorf("override of %s: %w", x.Library, err)
		}
		o[x.Library] = append(o[x.Library], Override{Platform: p, Name: x.Name, Version: x.Version})
	}
	return o, nil
}

// Logger is a development logger when Debug is set, otherwise a no-op one.
func (c *Config) Logger() (*zap.Logger, error) {
	if c.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

// NewBinder wires backend, registry and binder of the running platform, a nil log uses Logger.
func (c *Config) NewBinder(log *zap.Logger) (b *Binder, err error) {
	if log == nil {
		if log, err = c.Logger(); err != nil {
			return
		}
	}
	be, err := NewBackend(c.Windows, log)
	if err != nil {
		return
	}
	overrides, err := c.LibraryOverrides()
	if err != nil {
		return
	}
	resolver := c.Resolver()
	return NewBinder(NewRegistry(be, resolver, log), WithResolver(resolver), WithOverrides(overrides), WithLogger(log)), nil
}
