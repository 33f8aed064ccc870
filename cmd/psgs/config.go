package main

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/psgs/psgs/graph"
	"github.com/psgs/psgs/psgs"
)

type tomlConfig struct {
	Logging psgs.LogConfig
	Graph   graph.Config
}

// loadConfig reads the TOML configuration file.  Without a file the defaults
// are used, and settings missing from the file keep their defaults.
func loadConfig(filename string) (*tomlConfig, error) {
	tc := &tomlConfig{Graph: graph.DefaultConfig()}
	if filename == "" {
		return tc, nil
	}
	if _, err := toml.DecodeFile(filename, tc); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := tc.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	psgs.Debugf("tomlConfig: %v\n", *tc)
	return tc, nil
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *tomlConfig) convertPathsToAbsolute(configPath string) error {
	var err error

	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = psgs.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
	}
	return nil
}
