// Package config loads the server's on-disk configuration file and
// merges it with command-line flags, the way delve's pkg/config loads
// and merges ~/.dlv/config.yml.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  = ".riscv-gdbserver"
	configFile = "config.yml"
)

// Config defines all configuration options available to be set through
// the config file, overridable by the flags of "serve" (--listen,
// --timeout, --kill-exits, --debug).
type Config struct {
	// Addr is the "host:port" the server listens on.
	Addr string `yaml:"addr"`

	// Timeout is the default wall-clock bound, in seconds, on a single
	// continue resume. Zero means unbounded.
	Timeout int64 `yaml:"timeout"`

	// KillExits selects whether a GDB 'k' packet terminates the server
	// (true, the default) or is treated as a no-op.
	KillExits bool `yaml:"kill-exits"`

	// TraceFlags seeds the named debug flags (rsp, break, exec) enabled
	// at startup, before any "monitor set debug" command runs.
	TraceFlags map[string]bool `yaml:"trace-flags"`
}

// Default returns the configuration used when no file exists yet and no
// flags override it.
func Default() Config {
	return Config{
		Addr:      "localhost:51000",
		Timeout:   0,
		KillExits: true,
	}
}

// Load populates a Config from the on-disk config file, creating a
// default one on first run. Load never returns an error: a missing or
// malformed file falls back to Default(), logging the reason to stderr,
// mirroring the reference CLI's forgiving startup behavior.
func Load() Config {
	cfg := Default()

	fullPath, err := FilePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not resolve config file path: %v\n", err)
		return cfg
	}

	if err := ensureConfigDir(); err != nil { // directory, not file
		fmt.Fprintf(os.Stderr, "could not create config directory: %v\n", err)
		return cfg
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if f, err = createDefault(fullPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "could not create default config file: %v\n", err)
			return cfg
		}
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read config file: %v\n", err)
		return cfg
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "could not parse config file: %v\n", err)
		return Default()
	}
	return cfg
}

// Save marshals cfg to the on-disk config file.
func Save(cfg Config) error {
	fullPath, err := FilePath()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(fullPath, out, 0644)
}

func createDefault(fullPath string, cfg Config) (*os.File, error) {
	f, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %w", err)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(out); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	return f, nil
}

func ensureConfigDir() error {
	return os.MkdirAll(configDirPath(), 0700)
}

func configDirPath() string {
	home := "."
	if usr, err := user.Current(); err == nil {
		home = usr.HomeDir
	}
	return path.Join(home, configDir)
}

// FilePath returns the full path to the config file.
func FilePath() (string, error) {
	return path.Join(configDirPath(), configFile), nil
}
