package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = "ddbexpr.yaml"

// Config holds defaults for the ddbexpr commands.
// Loaded from ddbexpr.yaml if present.
type Config struct {
	// LogLevel is used unless --log-level is given.
	LogLevel string `yaml:"logLevel"`

	// Table describes the key schema the query command loads items into.
	Table TableConfig `yaml:"table"`
}

type TableConfig struct {
	PartitionKey     string `yaml:"partitionKey"`
	PartitionKeyType string `yaml:"partitionKeyType"`
	SortKey          string `yaml:"sortKey"`
	SortKeyType      string `yaml:"sortKeyType"`
}

// LoadConfig searches for ddbexpr.yaml starting from the current directory
// and walking up to the filesystem root. Returns empty config if not found.
func LoadConfig() (Config, error) {
	var cfg Config

	configPath := findConfigFile()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return cfg, nil
}

// findConfigFile searches for ddbexpr.yaml walking up from current directory.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
