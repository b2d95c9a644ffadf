// Package config reads and checks the cback configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/peer"
	"github.com/cedar-backup/cback/pkg/schema"
)

const (
	// DefaultConfigPath is read when no --config flag is given.
	DefaultConfigPath = "/etc/cback.yaml"
	// EnvPrefix prefixes environment variables that override configuration
	// values, so CBACK_OPTIONS_WORKING_DIR sets options.working_dir.
	EnvPrefix = "CBACK"
)

// Load reads the YAML configuration at path. Keys unknown to the schema are
// rejected so that typos do not silently disable a section.
func Load(path string) (*schema.Configuration, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errUtils.ErrReadConfig, path, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(expanded)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return nil, errUtils.WithHint(
				fmt.Errorf("%w: %s", errUtils.ErrConfigNotFound, expanded),
				"pass the configuration file with --config",
			)
		}
		return nil, fmt.Errorf("%w: %s: %w", errUtils.ErrReadConfig, expanded, err)
	}
	setDefaultConfiguration(v)
	log.Debug("Read configuration", "file", v.ConfigFileUsed())

	var cfg schema.Configuration
	strict := func(c *mapstructure.DecoderConfig) { c.ErrorUnused = true }
	if err := v.Unmarshal(&cfg, strict); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errUtils.ErrUnmarshalConfig, expanded, err)
	}
	return &cfg, nil
}

// setDefaultConfiguration fills in options that every run needs. Defaults are
// only applied to the options section, since the presence of any other
// section enables the matching action.
func setDefaultConfiguration(v *viper.Viper) {
	if !v.IsSet("options") {
		return
	}
	v.SetDefault("options.rcp_command", peer.DefaultRcpCommand)
	v.SetDefault("options.rsh_command", peer.DefaultRshCommand)
	v.SetDefault("options.cback_command", peer.DefaultCbackCommand)
}
