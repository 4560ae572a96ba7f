package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"screensnap/src/capture"
	"screensnap/src/singleinstance"
)

const (
	// EnvPathEnvVar points at a .env file used when none sits next to the executable.
	EnvPathEnvVar = "SCREENSNAP_ENV"

	BackendProcess    = "process"
	BackendCompositor = "compositor"

	DefaultHotkey  = "Cmd+Shift+5"
	DefaultSaveDir = "~/Desktop/ScreenSnap"

	settingsName = "settings"
	appDirName   = "ScreenSnap"
)

type LoadOptions struct {
	// EnvFile overrides .env discovery.
	EnvFile string
	// SettingsFile overrides the settings.yaml location.
	SettingsFile string
}

type Config struct {
	SaveDir           string `mapstructure:"save_dir" yaml:"save_dir"`
	ClearOnRestart    bool   `mapstructure:"clear_on_restart" yaml:"clear_on_restart"`
	PlaySound         bool   `mapstructure:"play_sound" yaml:"play_sound"`
	CopyToClipboard   bool   `mapstructure:"copy_to_clipboard" yaml:"copy_to_clipboard"`
	SaveToFile        bool   `mapstructure:"save_to_file" yaml:"save_to_file"`
	ShowNotification  bool   `mapstructure:"show_notification" yaml:"show_notification"`
	Flash             bool   `mapstructure:"flash" yaml:"flash"`
	ImageFormat       string `mapstructure:"image_format" yaml:"image_format"`
	Hotkey            string `mapstructure:"hotkey" yaml:"hotkey"`
	CaptureBackend    string `mapstructure:"capture_backend" yaml:"capture_backend"`
	CaptureTimeoutSec int    `mapstructure:"capture_timeout_sec" yaml:"capture_timeout_sec"`
	EnableFileLogging bool   `mapstructure:"enable_file_logging" yaml:"enable_file_logging"`
	LogLevel          string `mapstructure:"log_level" yaml:"log_level"`

	// Inclusive TCP range for the single-instance handshake.
	SingleInstancePortStart int `mapstructure:"singleinstance_port_start" yaml:"singleinstance_port_start"`
	SingleInstancePortEnd   int `mapstructure:"singleinstance_port_end" yaml:"singleinstance_port_end"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"save_dir":            DefaultSaveDir,
		"clear_on_restart":    true,
		"play_sound":          true,
		"copy_to_clipboard":   true,
		"save_to_file":        true,
		"show_notification":   false,
		"flash":               true,
		"image_format":        "png",
		"hotkey":              DefaultHotkey,
		"capture_backend":     defaultBackend(),
		"capture_timeout_sec": int(capture.DefaultTimeout / time.Second),
		"enable_file_logging": false,
		"log_level":           "info",

		"singleinstance_port_start": singleinstance.DefaultPortStart,
		"singleinstance_port_end":   singleinstance.DefaultPortEnd,
	}
}

func defaultBackend() string {
	if runtime.GOOS == "darwin" {
		return BackendProcess
	}
	return BackendCompositor
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) process environment, including a .env next to the executable or at $SCREENSNAP_ENV
	// 2) settings.yaml in the user config dir
	// 3) defaults
	envPath := strings.TrimSpace(opts.EnvFile)
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	v := viper.New()
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	settings := strings.TrimSpace(opts.SettingsFile)
	if settings == "" {
		settings = SettingsPath()
	}
	if settings != "" {
		v.SetConfigFile(settings)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("read %s: %w", settings, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}

func (c *Config) normalize() {
	c.ImageFormat = strings.ToLower(strings.TrimSpace(c.ImageFormat))
	if c.ImageFormat == "jpg" {
		c.ImageFormat = "jpeg"
	}
	c.CaptureBackend = strings.ToLower(strings.TrimSpace(c.CaptureBackend))
	c.Hotkey = strings.TrimSpace(c.Hotkey)
	c.CaptureTimeoutSec = int(c.CaptureTimeout() / time.Second)
}

// CaptureTimeout is the OS capture bound, clamped to the supported range.
func (c *Config) CaptureTimeout() time.Duration {
	return capture.ClampTimeout(time.Duration(c.CaptureTimeoutSec) * time.Second)
}

// Validate rejects settings the pipeline cannot act on.
func Validate(c *Config) error {
	var errs []error
	switch c.ImageFormat {
	case "png", "jpeg", "jpg":
	default:
		errs = append(errs, fmt.Errorf("image_format %q: want png or jpeg", c.ImageFormat))
	}
	switch c.CaptureBackend {
	case BackendProcess, BackendCompositor:
	default:
		errs = append(errs, fmt.Errorf("capture_backend %q: want %s or %s", c.CaptureBackend, BackendProcess, BackendCompositor))
	}
	if strings.TrimSpace(c.Hotkey) == "" {
		errs = append(errs, errors.New("hotkey must not be empty"))
	}
	for key, port := range map[string]int{
		"singleinstance_port_start": c.SingleInstancePortStart,
		"singleinstance_port_end":   c.SingleInstancePortEnd,
	} {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s %d: want 0-65535", key, port))
		}
	}
	return errors.Join(errs...)
}

// Dump renders the effective configuration as YAML.
func Dump(c *Config) (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SettingsPath is <UserConfigDir>/ScreenSnap/settings.yaml, or "" when the
// user config dir is unknown.
func SettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDirName, settingsName+".yaml")
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}
