// Package config defines the configuration of package validation, as read
// from a YAML file.
package config

import (
	"io"
	"io/ioutil"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete validator configuration
type Config struct {
	VirusScanner        VirusScannerConfig        `yaml:"virus_scanner"`
	DescriptorValidator DescriptorValidatorConfig `yaml:"descriptor_validator"`
	Workers             int                       `yaml:"workers"`
	Accounts            map[string][]string       `yaml:"accounts,omitempty"`
	Unwrap              UnwrapConfig              `yaml:"unwrap"`
	Log                 LogConfig                 `yaml:"log"`
}

// VirusScannerConfig describes the external virus scanner.  The path of each file
// to scan is appended to Command.
type VirusScannerConfig struct {
	Command        []string      `yaml:"command"`
	CleanStatus    int           `yaml:"clean_status"`
	InfectedStatus int           `yaml:"infected_status"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DescriptorValidatorConfig describes the external descriptor validator.  An empty
// Command means descriptors are only checked for well-formedness.
type DescriptorValidatorConfig struct {
	Command []string      `yaml:"command,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
	TempDir string        `yaml:"temp_dir,omitempty"`
}

// UnwrapConfig names the programs used to unpack archived packages
type UnwrapConfig struct {
	Tar     string        `yaml:"tar"`
	Unzip   string        `yaml:"unzip"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		VirusScanner: VirusScannerConfig{
			Command:        []string{"clamscan", "--no-summary"},
			CleanStatus:    0,
			InfectedStatus: 1,
			Timeout:        5 * time.Minute,
		},
		DescriptorValidator: DescriptorValidatorConfig{
			Timeout: time.Minute,
		},
		Workers: runtime.NumCPU(),
		Unwrap: UnwrapConfig{
			Tar:     "tar",
			Unzip:   "unzip",
			Timeout: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.VirusScanner.Command) == 0 || c.VirusScanner.Command[0] == "" {
		return errors.New("virus_scanner.command must name a scanner program")
	}

	if c.VirusScanner.CleanStatus == c.VirusScanner.InfectedStatus {
		return errors.Errorf("virus_scanner.clean_status and infected_status must differ (both are %d)",
			c.VirusScanner.CleanStatus)
	}

	if c.VirusScanner.Timeout < 0 || c.DescriptorValidator.Timeout < 0 || c.Unwrap.Timeout < 0 {
		return errors.New("timeouts must not be negative")
	}

	if len(c.DescriptorValidator.Command) > 0 && c.DescriptorValidator.Command[0] == "" {
		return errors.New("descriptor_validator.command must name a validator program")
	}

	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return errors.Errorf("log.format must be 'json' or 'console', got %q", c.Log.Format)
	}

	return nil
}

// Parse reads a YAML configuration, applying it over the defaults
func Parse(r io.Reader) (*Config, error) {
	c := DefaultConfig()

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read configuration")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "could not decode yaml configuration")
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return c, nil
}

// Load reads the configuration file at the given path.  An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		c := DefaultConfig()
		return c, c.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open configuration at %s", path)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load configuration at %s", path)
	}
	return c, nil
}

// Write renders the configuration as YAML
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "could not encode configuration")
	}
	return enc.Close()
}

// AccountAllowed reports whether an account and project pair is configured.  The
// second return value is false when no accounts are configured at all, meaning
// account verification is not performed.
func (c *Config) AccountAllowed(account, project string) (allowed bool, checked bool) {
	if len(c.Accounts) == 0 {
		return false, false
	}

	projects, ok := c.Accounts[account]
	if !ok {
		return false, true
	}

	for _, p := range projects {
		if p == project {
			return true, true
		}
	}
	return false, true
}
