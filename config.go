package offheap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/andreyvit/offheap/engine"
	"github.com/andreyvit/offheap/engine/boltengine"
	"github.com/andreyvit/offheap/engine/memengine"
	"github.com/andreyvit/offheap/engine/pebbleengine"
	"github.com/andreyvit/offheap/logger"
)

// Engine names accepted by WithEngine and the engine config key.
const (
	EngineBolt   = "bolt"
	EnginePebble = "pebble"
	EngineMem    = "mem"

	// EngineAuto picks Bolt for hash-style collections and Pebble for
	// sorted ones, since Bolt only supports bytewise key order.
	EngineAuto = "auto"

	DefaultEngine = EngineAuto

	// ConfigKey is the viper subtree read by LoadConfig.
	ConfigKey = "offheap"

	scratchPrefix = "offheap-"
)

var engines = map[string]engine.Opener{
	EngineBolt:   boltengine.Open,
	EnginePebble: pebbleengine.Open,
	EngineMem:    memengine.Open,
}

// Engines lists the engine names that can be passed to WithEngine.
func Engines() []string {
	return []string{EngineAuto, EngineBolt, EnginePebble, EngineMem}
}

// Config controls where and how a collection stores its data.
//
// Dir is the collection directory. When empty, a unique scratch directory is
// created under BaseDir (or the system temp dir). Non-persistent collections
// delete their directory on Close, including a caller-supplied Dir.
type Config struct {
	Dir        string `mapstructure:"dir"`
	BaseDir    string `mapstructure:"base_dir"`
	Persistent bool   `mapstructure:"persistent"`
	CacheSize  int64  `mapstructure:"cache_size"`
	Engine     string `mapstructure:"engine"`

	// OrderName is recorded by engines that persist the key order and
	// checked on reopen. Defaults to the comparator's function name.
	OrderName string `mapstructure:"order_name"`

	Opener   engine.Opener `mapstructure:"-"`
	Logger   logger.Logger `mapstructure:"-"`
	Registry *Registry     `mapstructure:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		Engine: DefaultEngine,
	}
}

type Option func(*Config)

// WithConfig starts from a copy of base, typically one returned by LoadConfig.
func WithConfig(base *Config) Option {
	return func(c *Config) {
		if base != nil {
			*c = *base
		}
	}
}

func WithDir(dir string) Option {
	return func(c *Config) { c.Dir = dir }
}

func WithBaseDir(dir string) Option {
	return func(c *Config) { c.BaseDir = dir }
}

// WithPersistent keeps the directory on Close and loads existing data on
// the first open. Requires WithDir.
func WithPersistent(persistent bool) Option {
	return func(c *Config) { c.Persistent = persistent }
}

func WithCacheSize(size int64) Option {
	return func(c *Config) { c.CacheSize = size }
}

func WithEngine(name string) Option {
	return func(c *Config) { c.Engine = name }
}

// WithOrderName names the key order of a sorted collection. Persistent
// sorted collections should set it so that reopening with another order
// fails instead of reading keys in the wrong order.
func WithOrderName(name string) Option {
	return func(c *Config) { c.OrderName = name }
}

// WithOpener overrides the engine selected by name.
func WithOpener(open engine.Opener) Option {
	return func(c *Config) { c.Opener = open }
}

func WithLogger(log logger.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

func WithRegistry(r *Registry) Option {
	return func(c *Config) { c.Registry = r }
}

func buildConfig(opts []Option) *Config {
	c := DefaultConfig()
	for _, o := range opts {
		o(c)
	}
	return c
}

// LoadConfig reads the offheap.* keys of v on top of DefaultConfig.
func LoadConfig(v *viper.Viper) (*Config, error) {
	c := DefaultConfig()
	sub := v.Sub(ConfigKey)
	if sub == nil {
		return c, nil
	}
	if err := sub.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("%w: config: %w", ErrInvalidArgument, err)
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	if c.Opener == nil {
		if name := strings.ToLower(c.Engine); name != EngineAuto && name != "" && engines[name] == nil {
			return fmt.Errorf("%w: unknown engine %q, expected one of %s", ErrInvalidArgument, c.Engine, strings.Join(Engines(), ", "))
		}
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: negative cache size %d", ErrInvalidArgument, c.CacheSize)
	}
	if c.Persistent && c.Dir == "" {
		return fmt.Errorf("%w: persistent collection requires a directory", ErrInvalidArgument)
	}
	return nil
}

func (c *Config) opener(sorted bool) engine.Opener {
	if c.Opener != nil {
		return c.Opener
	}
	name := strings.ToLower(c.Engine)
	if name == EngineAuto || name == "" {
		if sorted {
			name = EnginePebble
		} else {
			name = EngineBolt
		}
	}
	return engines[name]
}

func (c *Config) log() logger.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Default()
}

func (c *Config) registry() *Registry {
	if c.Registry != nil {
		return c.Registry
	}
	return DefaultRegistry()
}

func (c *Config) dir() (string, error) {
	if c.Dir != "" {
		return filepath.Abs(c.Dir)
	}
	base := c.BaseDir
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, scratchPrefix+uuid.NewString()), nil
}

// child derives the configuration of a sub-collection stored in a
// subdirectory of dir.
func (c *Config) child(dir, name string) *Config {
	cc := *c
	cc.Dir = filepath.Join(dir, name)
	cc.BaseDir = ""
	return &cc
}
