package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrActionUnsupported is returned when no plugin handles an action.
	ErrActionUnsupported = errors.New("action not supported by any plugin")
)

// Manager manages plugin discovery and access.
type Manager struct {
	pluginDir string
	plugins   map[string]*Plugin
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewManager creates a new plugin Manager with the given plugin directory.
func NewManager(pluginDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
		logger:    logger,
	}
}

// Discover scans the plugin directory for plugin.json files and loads them.
// Each subdirectory in the plugin directory is expected to be a plugin with a
// plugin.json manifest. Unreadable or invalid manifests are logged and skipped.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.plugins = make(map[string]*Plugin)

	info, err := os.Stat(m.pluginDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("plugin path %s is not a directory", m.pluginDir)
	}

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginPath := filepath.Join(m.pluginDir, entry.Name())
		plugin, err := loadPlugin(pluginPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				m.logger.Warn("skipping plugin", "path", pluginPath, "error", err)
			}
			continue
		}

		m.plugins[plugin.Manifest.Name] = plugin
	}

	m.logger.Info("plugins discovered", "dir", m.pluginDir, "count", len(m.plugins))
	return nil
}

func loadPlugin(pluginPath string) (*Plugin, error) {
	manifestData, err := os.ReadFile(filepath.Join(pluginPath, "plugin.json"))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, errors.New("manifest needs a name and an executable")
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       pluginPath,
		Executable: filepath.Join(pluginPath, manifest.Executable),
	}, nil
}

// Get returns a plugin by name.
// Returns ErrPluginNotFound if the plugin does not exist.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	return plugin, nil
}

// ForAction returns the first plugin, by name, that supports action.
func (m *Manager) ForAction(action string) (*Plugin, error) {
	for _, p := range m.List() {
		if p.Supports(action) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrActionUnsupported, action)
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, plugin := range m.plugins {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})

	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
