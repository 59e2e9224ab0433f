// Package config loads handsignal settings. HANDSIGNAL_* environment
// variables override the YAML file, which overrides the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/handsignal/internal/detector"
	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/overlay"
	"github.com/ayusman/handsignal/internal/plugin"
	"github.com/ayusman/handsignal/internal/scheduler"
)

// EnvPrefix prefixes environment overrides, e.g. HANDSIGNAL_CAMERA_DEVICE_ID.
const EnvPrefix = "HANDSIGNAL"

type Settings struct {
	Log struct {
		Level  string `mapstructure:"level"`  // debug, info, warn, error
		Format string `mapstructure:"format"` // text, json
	} `mapstructure:"log"`

	Camera struct {
		DeviceID int `mapstructure:"device_id"`
		FPS      int `mapstructure:"fps"`
	} `mapstructure:"camera"`

	Detector struct {
		Python          string        `mapstructure:"python"` // interpreter, empty to search the venv
		Script          string        `mapstructure:"script"` // mediapipe_service.py, empty to search
		MaxHands        int           `mapstructure:"max_hands"`
		MinConfidence   float64       `mapstructure:"min_confidence"`
		MinTrackingConf float64       `mapstructure:"min_tracking_confidence"`
		InitTimeout     time.Duration `mapstructure:"init_timeout"` // 0 waits forever
	} `mapstructure:"detector"`

	Gesture struct {
		FrameInterval   time.Duration `mapstructure:"frame_interval"`
		Cooldown        time.Duration `mapstructure:"cooldown"`
		EndCallDistance float64       `mapstructure:"end_call_distance"`
	} `mapstructure:"gesture"`

	Overlay struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"overlay"`

	Server struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Store struct {
		Path string `mapstructure:"path"` // sqlite database file
	} `mapstructure:"store"`

	Plugins struct {
		Dir     string        `mapstructure:"dir"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"plugins"`

	Tray struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"tray"`
}

// Load reads settings. An explicit path must exist. Without one the default
// config paths are searched and a missing file just means defaults.
func Load(path string) (*Settings, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range defaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func setDefaults(v *viper.Viper) error {
	dataDir, err := DataDir()
	if err != nil {
		return err
	}
	det := detector.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("camera.device_id", 0)
	v.SetDefault("camera.fps", 30)

	v.SetDefault("detector.python", "")
	v.SetDefault("detector.script", "")
	v.SetDefault("detector.max_hands", det.MaxHands)
	v.SetDefault("detector.min_confidence", det.MinConfidence)
	v.SetDefault("detector.min_tracking_confidence", det.MinTrackingConf)
	v.SetDefault("detector.init_timeout", 30*time.Second)

	v.SetDefault("gesture.frame_interval", scheduler.DefaultFrameInterval)
	v.SetDefault("gesture.cooldown", gesture.DefaultCooldown)
	v.SetDefault("gesture.end_call_distance", gesture.DefaultEndCallDistance)

	v.SetDefault("overlay.interval", overlay.DefaultInterval)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("store.path", filepath.Join(dataDir, "handsignal.db"))

	v.SetDefault("plugins.dir", filepath.Join(dataDir, "plugins"))
	v.SetDefault("plugins.timeout", plugin.DefaultTimeout)

	v.SetDefault("tray.enabled", true)
	return nil
}

// Validate reports the first setting that cannot work.
func (s *Settings) Validate() error {
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be debug, info, warn or error", s.Log.Level)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", s.Log.Format)
	}

	if s.Camera.DeviceID < 0 {
		return fmt.Errorf("camera.device_id must not be negative, got %d", s.Camera.DeviceID)
	}
	if s.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %d", s.Camera.FPS)
	}
	if s.Detector.MaxHands < 1 {
		return fmt.Errorf("detector.max_hands must be at least 1, got %d", s.Detector.MaxHands)
	}
	if s.Detector.InitTimeout < 0 {
		return fmt.Errorf("detector.init_timeout must not be negative, got %v", s.Detector.InitTimeout)
	}
	if s.Gesture.FrameInterval <= 0 {
		return fmt.Errorf("gesture.frame_interval must be positive, got %v", s.Gesture.FrameInterval)
	}
	if s.Gesture.Cooldown <= 0 {
		return fmt.Errorf("gesture.cooldown must be positive, got %v", s.Gesture.Cooldown)
	}
	if s.Gesture.EndCallDistance <= 0 {
		return fmt.Errorf("gesture.end_call_distance must be positive, got %v", s.Gesture.EndCallDistance)
	}
	if s.Server.Enabled && s.Server.Addr == "" {
		return errors.New("server.addr is required when the server is enabled")
	}
	if s.Store.Path == "" {
		return errors.New("store.path is required")
	}
	return nil
}

// DetectorConfig returns the landmark source settings.
func (s *Settings) DetectorConfig() detector.Config {
	return detector.Config{
		MaxHands:        s.Detector.MaxHands,
		MinConfidence:   s.Detector.MinConfidence,
		MinTrackingConf: s.Detector.MinTrackingConf,
		ScriptPath:      s.Detector.Script,
		PythonPath:      s.Detector.Python,
	}
}

// DataDir is where the database and plugins live by default.
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error fetching user directory: %w", err)
	}
	return filepath.Join(homeDir, ".handsignal"), nil
}

// defaultConfigPaths returns the directories searched for config.yaml.
func defaultConfigPaths() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return []string{"."}
	}

	switch runtime.GOOS {
	case "windows":
		return []string{
			".",
			filepath.Join(homeDir, "AppData", "Roaming", "handsignal"),
		}
	default:
		return []string{
			filepath.Join(homeDir, ".config", "handsignal"),
			"/etc/handsignal",
			".",
		}
	}
}
