package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultRunConfigFile is looked up in the analysis directory when no run
// configuration is given.
const DefaultRunConfigFile = "onepass.yaml"

// RunConfig says how to execute an analysis: where the events come from,
// the program runner and where results and the ledger go.
type RunConfig struct {
	Tree     string   `yaml:"tree"`
	Inputs   []string `yaml:"inputs"`
	Threads  int      `yaml:"threads"`
	Output   string   `yaml:"output"`
	Executor []string `yaml:"executor"`
	WorkDir  string   `yaml:"work_dir"`
	Ledger   string   `yaml:"ledger"`
	AutoSyst *bool    `yaml:"auto_syst"`
	Eager    bool     `yaml:"eager"`
}

// DefaultRunConfig returns the configuration used for absent fields.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Tree:    "Events",
		Threads: 1,
		Output:  "results.root",
		Ledger:  filepath.Join(".onepass", "ledger.db"),
	}
}

// AutoSystOn reports whether automatic systematics are enabled; they are
// unless auto_syst is false.
func (c RunConfig) AutoSystOn() bool { return c.AutoSyst == nil || *c.AutoSyst }

// LoadRunConfig reads a YAML run configuration. Unknown fields are
// rejected and absent fields keep their defaults. An empty file is the
// default configuration.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("run config not found: %s", path)}
		}
		return cfg, &LoadError{Code: ErrCodeInvalidRunConfig, Message: fmt.Sprintf("reading run config: %v", err)}
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return DefaultRunConfig(), &LoadError{Code: ErrCodeInvalidRunConfig, Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ResolveRunConfig loads path, or the default file in dir when path is
// empty. A missing default file yields the default configuration.
func ResolveRunConfig(dir, path string) (RunConfig, error) {
	if path != "" {
		return LoadRunConfig(path)
	}
	cfg, err := LoadRunConfig(filepath.Join(dir, DefaultRunConfigFile))
	if ErrorCode(err) == ErrCodeNotFound {
		return DefaultRunConfig(), nil
	}
	return cfg, err
}

// Validate checks field ranges.
func (c RunConfig) Validate() error {
	if c.Threads < 0 {
		return &LoadError{Code: ErrCodeInvalidRunConfig, Message: fmt.Sprintf("threads must not be negative, got %d", c.Threads)}
	}
	if c.Tree == "" {
		return &LoadError{Code: ErrCodeInvalidRunConfig, Message: "tree must not be empty"}
	}
	if c.Output == "" {
		return &LoadError{Code: ErrCodeInvalidRunConfig, Message: "output must not be empty"}
	}
	for i, in := range c.Inputs {
		if in == "" {
			return &LoadError{Code: ErrCodeInvalidRunConfig, Message: fmt.Sprintf("input %d is empty", i)}
		}
	}
	return nil
}
