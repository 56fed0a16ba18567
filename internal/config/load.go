package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// Load reads the configuration for the program directory dir. When path is
// empty, dir/docgen.yaml is used if it exists and defaults otherwise. An
// explicitly named path must exist.
func Load(dir, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, DefaultFileName)
	} else if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, foundation.WrapError(err, foundation.CategoryConfig, "cannot resolve configuration path").Build()
		}
		path = abs
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Default(dir), nil
		}
		return nil, foundation.WrapError(err, foundation.CategoryConfig, "cannot read configuration file").
			WithContext("path", path).
			Fatal().
			Build()
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, foundation.WrapError(err, foundation.CategoryConfig, "cannot parse configuration file").
			WithContext("path", path).
			Fatal().
			Build()
	}
	if cfg.Version != CurrentVersion {
		return nil, foundation.ConfigError("unsupported configuration version").
			WithContext("path", path).
			WithContext("version", cfg.Version).
			WithContext("expected", CurrentVersion).
			Build()
	}

	cfg.Dir = dir
	cfg.Source = path
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
