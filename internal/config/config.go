// Package config persists ryu's small user-level configuration as
// JSON under $HOME/.config/ryu/config.json, following the XDG
// convention and the teacher's LoadConfig/SaveConfig/ConfigExists
// free-function shape.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the defaults applied when a CLI flag is omitted.
type Config struct {
	DefaultRemote       string `json:"default_remote,omitempty"`
	StackCommentVersion int    `json:"stack_comment_version,omitempty"`
	PreferredForge      string `json:"preferred_forge,omitempty"` // "github" | "gitlab" | ""
}

const (
	defaultRemote              = "origin"
	defaultStackCommentVersion = 1
)

func LoadConfig() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults(), nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func ConfigExists() (bool, error) {
	path, err := configPath()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func SaveConfig(cfg Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func defaults() Config {
	return Config{DefaultRemote: defaultRemote, StackCommentVersion: defaultStackCommentVersion}
}

func applyDefaults(cfg *Config) {
	cfg.DefaultRemote = strings.TrimSpace(cfg.DefaultRemote)
	if cfg.DefaultRemote == "" {
		cfg.DefaultRemote = defaultRemote
	}
	if cfg.StackCommentVersion == 0 {
		cfg.StackCommentVersion = defaultStackCommentVersion
	}
	cfg.PreferredForge = strings.ToLower(strings.TrimSpace(cfg.PreferredForge))
}

func configPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "ryu", "config.json"), nil
	}
	home := os.Getenv("HOME")
	if strings.TrimSpace(home) == "" {
		return "", errors.New("HOME not set")
	}
	return filepath.Join(home, ".config", "ryu", "config.json"), nil
}
