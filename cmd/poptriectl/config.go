// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// cliConfig is the optional YAML config file accepted via --config. Every
// field can also be set by a flag; flags take precedence (applied after
// loading, in main.go). A YAML-tagged struct decoded with KnownFields(true)
// to reject typos; defaults are filled in before decoding, so any field the
// file leaves out keeps its default.
type cliConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Workers   int    `yaml:"workers"`
}

func defaultConfig() cliConfig {
	return cliConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Workers:   runtime.NumCPU(),
	}
}

func loadConfig(path string) (cliConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file %q: %w", path, err)
	}

	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	return cfg, nil
}
