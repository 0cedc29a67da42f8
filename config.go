package isocarto

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"gopkg.in/yaml.v3"
)

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

type Config struct {
	Concurrency int               `hcl:"concurrency,optional" yaml:"concurrency"`
	Store       string            `hcl:"store,optional" yaml:"store"`
	Verbose     bool              `hcl:"verbose,optional" yaml:"verbose"`
	Maps        []*MapConfigBlock `hcl:"map,block" yaml:"maps"`
}

type MapConfigBlock struct {
	Name      string `hcl:"name,label" yaml:"name"`
	World     string `hcl:"world" yaml:"world"`
	Cache     string `hcl:"cache" yaml:"cache"`
	Lighting  bool   `hcl:"lighting,optional" yaml:"lighting"`
	Night     bool   `hcl:"night,optional" yaml:"night"`
	Spawn     bool   `hcl:"spawn,optional" yaml:"spawn"`
	Biomes    bool   `hcl:"biomes,optional" yaml:"biomes"`
	Caves     bool   `hcl:"caves,optional" yaml:"caves"`
	ChunkList string `hcl:"chunklist,optional" yaml:"chunklist"`
	Markers   string `hcl:"markers,optional" yaml:"markers"`
}

func (m *MapConfigBlock) WorldOpts() WorldOpts {
	return WorldOpts{
		Lighting:  m.Lighting,
		Night:     m.Night,
		Spawn:     m.Spawn,
		BiomeTint: m.Biomes,
		Caves:     m.Caves,
	}
}

// newHCLEvalContext exposes the environment to config files as env.NAME.
func newHCLEvalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
		Functions: map[string]function.Function{},
	}
}

// LoadConfig reads an HCL or, by extension, a YAML config file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		err := hclsimple.DecodeFile(path, newHCLEvalContext(), &cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case "":
		c.Store = StoreFile
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}

	seen := map[string]struct{}{}
	for _, m := range c.Maps {
		if m.World == "" || m.Cache == "" {
			return fmt.Errorf("map %q needs both world and cache", m.Name)
		}
		if _, ok := seen[m.Name]; ok {
			return fmt.Errorf("duplicate map %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}
