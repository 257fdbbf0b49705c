// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package config

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Config is the top-level NOCLook configuration.
type Config struct {
	Storage   StorageConfig    `mapstructure:"storage"`
	Graph     GraphConfig      `mapstructure:"graph"`
	Reap      ReapConfig       `mapstructure:"reap"`
	Log       LogConfig        `mapstructure:"log"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Relations RelationsConfig  `mapstructure:"relations"`
	Server    ServerConfig     `mapstructure:"server"`
	Contexts  []string         `mapstructure:"contexts"`
	NodeTypes []NodeTypeConfig `mapstructure:"node_types"`
}

// StorageConfig selects the relational store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// GraphConfig selects the graph store backend.
type GraphConfig struct {
	Backend string      `mapstructure:"backend"`
	Neo4j   Neo4jConfig `mapstructure:"neo4j"`
}

// Neo4jConfig holds Bolt connection settings.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// SecretFields returns the credential values that may hold a
// "keyring:NAME" reference, keyed by config key.
func (c *Config) SecretFields() map[string]*string {
	return map[string]*string{
		"graph.neo4j.username": &c.Graph.Neo4j.Username,
		"graph.neo4j.password": &c.Graph.Neo4j.Password,
	}
}

// ReapConfig holds defaults for the reap commands.
type ReapConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path written after reaps.
	// Empty disables the export.
	Textfile string `mapstructure:"textfile"`
}

// RelationsConfig points at an optional relationship rule table.
type RelationsConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// ServerConfig controls the HTTP API started by noclook serve.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// UserHeader names the header an authenticating proxy sets to the
	// acting user.
	UserHeader string `mapstructure:"user_header"`
}

// NodeTypeConfig is one entry of the node type vocabulary.
type NodeTypeConfig struct {
	Type   string `mapstructure:"type"`
	Hidden bool   `mapstructure:"hidden"`
}

// Load reads the embedded defaults, then the file at path when given,
// then environment overrides (prefix NOCLOOK_).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("graph.backend", "sqlite")
	v.SetDefault("graph.neo4j.uri", "")
	v.SetDefault("graph.neo4j.username", "neo4j")
	v.SetDefault("graph.neo4j.password", "")
	v.SetDefault("graph.neo4j.database", "")
	v.SetDefault("reap.max_age", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("relations.rules_file", "")
	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.user_header", "X-Remote-User")

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, nlerr.Errorf(nlerr.CodeConfigParseInvalidFormat, "reading embedded defaults: %w", err)
	}

	v.SetEnvPrefix("NOCLOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, nlerr.Errorf(nlerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nlerr.Errorf(nlerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateGraph()...)
	errs = append(errs, c.validateReap()...)
	errs = append(errs, c.validateLog()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateVocabulary()...)

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q",
			c.Storage.Backend,
		))
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue, "config: storage.data_dir must not be empty"))
	}

	return errs
}

func (c *Config) validateGraph() []error {
	var errs []error

	switch c.Graph.Backend {
	case "sqlite":
	case "neo4j":
		if c.Graph.Neo4j.URI == "" {
			errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
				"config: graph.neo4j.uri must be set when graph.backend is neo4j"))
		} else if !strings.Contains(c.Graph.Neo4j.URI, "://") {
			errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
				"config: graph.neo4j.uri must include a scheme (neo4j://, bolt://), got %q",
				c.Graph.Neo4j.URI,
			))
		}
	default:
		errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
			"config: graph.backend must be one of [sqlite, neo4j], got %q",
			c.Graph.Backend,
		))
	}

	return errs
}

func (c *Config) validateReap() []error {
	if c.Reap.MaxAge <= 0 {
		return []error{nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
			"config: reap.max_age must be greater than 0, got %s",
			c.Reap.MaxAge,
		)}
	}
	return nil
}

func (c *Config) validateLog() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
			"config: log.level must be one of [debug, info, warn, error], got %q",
			c.Log.Level,
		))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
			"config: log.format must be one of [text, json], got %q",
			c.Log.Format,
		))
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be host:port, got %q", c.Server.Listen))
	}
	if strings.TrimSpace(c.Server.UserHeader) == "" {
		errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
			"config: server.user_header must not be empty"))
	}

	return errs
}

func (c *Config) validateVocabulary() []error {
	var errs []error

	seen := make(map[string]bool, len(c.Contexts))
	for i, name := range c.Contexts {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
				"config: contexts[%d] must not be empty", i))
			continue
		}
		if seen[name] {
			errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
				"config: contexts[%d] %q is listed twice", i, name))
		}
		seen[name] = true
	}

	types := make(map[string]bool, len(c.NodeTypes))
	for i, nt := range c.NodeTypes {
		if strings.TrimSpace(nt.Type) == "" {
			errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
				"config: node_types[%d].type must not be empty", i))
			continue
		}
		if types[nt.Type] {
			errs = append(errs, nlerr.Errorf(nlerr.CodeConfigValidateInvalidValue,
				"config: node_types[%d] %q is listed twice", i, nt.Type))
		}
		types[nt.Type] = true
	}

	return errs
}
