// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/nivekxyz/dotlnx/internal/pkg/identity"
	"github.com/nivekxyz/dotlnx/internal/pkg/runreport"
	"github.com/pelletier/go-toml/v2"
)

// SecurityConfig is the optional [security] table of a bundle's
// config.toml. A bundle with no [security] table behaves as if Confine
// were true and every other field were at its zero value.
type SecurityConfig struct {
	Confine      *bool    `toml:"confine"`
	ReadPaths    []string `toml:"read_paths"`
	WritePaths   []string `toml:"write_paths"`
	Network      bool     `toml:"network"`
	Capabilities []string `toml:"capabilities"` // reserved, accepted but not interpreted
}

// Confine reports whether this bundle should be confined, applying the
// default of true when [security] is present but confine is unset.
func (s *SecurityConfig) Confine() bool {
	if s == nil || s.Confine == nil {
		return true
	}
	return *s.Confine
}

// Config is the parsed and validated content of a bundle's config.toml.
type Config struct {
	Name       string          `toml:"name"`
	Executable string          `toml:"executable"`
	Args       []string        `toml:"args"`
	Env        []string        `toml:"env"`
	WorkingDir string          `toml:"working_dir"`
	Icon       string          `toml:"icon"`
	Comment    string          `toml:"comment"`
	Categories []string        `toml:"categories"`
	Terminal   bool            `toml:"terminal"`
	Security   *SecurityConfig `toml:"security"`
}

// Confine reports whether this bundle should be confined.
func (c *Config) Confine() bool {
	return c.Security.Confine()
}

func parseErr(path string, sub runreport.SubKind, detail string, cause error) *runreport.Error {
	kind := runreport.KindConfigInvalid
	if sub == runreport.SubSyntax {
		kind = runreport.KindConfigParse
	}
	return &runreport.Error{Kind: kind, Sub: sub, Path: path, Detail: detail, Err: cause}
}

// ParseConfig parses and validates the config.toml at bundleRoot, returning
// a fully defaulted Config or the first runreport.Error encountered.
// bundleRoot must be the absolute path to the bundle directory (the one
// ending in .lnx); configPath is bundleRoot/config.toml.
func ParseConfig(bundleRoot string) (*Config, error) {
	configPath := filepath.Join(bundleRoot, "config.toml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &runreport.Error{
			Kind:   runreport.KindBundleLayout,
			Path:   bundleRoot,
			Detail: "missing or unreadable config.toml",
			Err:    err,
		}
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, parseErr(configPath, runreport.SubSyntax, "TOML syntax error", err)
	}

	if err := validate(bundleRoot, configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(bundleRoot, configPath string, cfg *Config) error {
	if cfg.Name == "" {
		return parseErr(configPath, runreport.SubMissingField, "name", nil)
	}
	if err := identity.ValidateName(cfg.Name); err != nil {
		return parseErr(configPath, runreport.SubInvalidName, err.Error(), nil)
	}

	if cfg.Executable == "" {
		return parseErr(configPath, runreport.SubMissingField, "executable", nil)
	}
	if err := identity.ValidateRelativePath(cfg.Executable); err != nil {
		return parseErr(configPath, runreport.SubInvalidRelativePath, cfg.Executable, err)
	}

	if cfg.WorkingDir != "" {
		if err := identity.ValidateRelativePath(cfg.WorkingDir); err != nil {
			return parseErr(configPath, runreport.SubInvalidRelativePath, cfg.WorkingDir, err)
		}
	}

	for _, e := range cfg.Env {
		key, _, ok := strings.Cut(e, "=")
		if !ok {
			return parseErr(configPath, runreport.SubInvalidEnv, e, errors.New("missing '='"))
		}
		if err := identity.ValidateEnvKey(key); err != nil {
			return parseErr(configPath, runreport.SubInvalidEnv, e, err)
		}
	}

	if cfg.Security != nil {
		for _, p := range cfg.Security.ReadPaths {
			if err := identity.ValidateAbsolutePath(p); err != nil {
				return parseErr(configPath, runreport.SubInvalidAbsolutePath, p, err)
			}
		}
		for _, p := range cfg.Security.WritePaths {
			if err := identity.ValidateAbsolutePath(p); err != nil {
				return parseErr(configPath, runreport.SubInvalidAbsolutePath, p, err)
			}
		}
	}

	execAbs, err := securejoin.SecureJoin(bundleRoot, cfg.Executable)
	if err != nil {
		return &runreport.Error{
			Kind: runreport.KindConfigInvalid, Sub: runreport.SubExecutableNotFound,
			Path: configPath, Detail: cfg.Executable, Err: err,
		}
	}
	info, err := os.Stat(execAbs)
	if err != nil || !info.Mode().IsRegular() {
		return &runreport.Error{
			Kind: runreport.KindConfigInvalid, Sub: runreport.SubExecutableNotFound,
			Path: configPath, Detail: cfg.Executable, Err: err,
		}
	}
	if info.Mode()&0o111 == 0 {
		return &runreport.Error{
			Kind: runreport.KindConfigInvalid, Sub: runreport.SubExecutableNotFound,
			Path: configPath, Detail: fmt.Sprintf("%s is not executable", cfg.Executable),
		}
	}

	return nil
}
