// Package config reads and writes the app's yaml configuration file, which
// holds default analysis parameters so repeated runs do not need to restate
// them. Every analysis call still receives its configuration explicitly;
// nothing here is shared mutable state.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600
)

// Config represents the app config object.
type Config struct {
	// Alpha is the default statistical significance threshold.
	Alpha float64 `yaml:"alpha"`
	// FairnessLambda is the default fairness penalty strength.
	FairnessLambda float64 `yaml:"fairness_lambda"`
	// BaseL2 is the default baseline ridge penalty.
	BaseL2 float64 `yaml:"base_l2"`
	// SelectionThreshold is the default cutscore for binarizing predictors.
	SelectionThreshold float64 `yaml:"selection_threshold"`
	// MinRef is the smallest group size eligible for referent election.
	MinRef int `yaml:"min_ref"`
	// TestMethod is the default significance test (auto, ztest, fisher).
	TestMethod string `yaml:"test_method"`
	// MaxIterations bounds the solver.
	MaxIterations int `yaml:"max_iterations"`
	// Tolerance is the solver convergence tolerance.
	Tolerance float64 `yaml:"tolerance"`
}

func getDefaultConfig() *Config {
	return &Config{
		Alpha:          0.05,
		FairnessLambda: 1,
		BaseL2:         0.1,
		MinRef:         5,
		TestMethod:     "auto",
		MaxIterations:  10000,
		Tolerance:      1e-6,
	}
}

// Save writes the config file into the given directory.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// ReadOrCreate reads the app config from a directory, creating the directory
// and a default config file on first use.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("creating dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(dirPath, getDefaultConfig()); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling config file %s: %w", path, err)
	}
	return &c, nil
}

// GetOrCreateHomeDir returns the app home directory for the current user.
// The created flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("getting user home dir: %w", err)
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("creating dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
