package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ManifestFile is the manifest each plugin directory carries.
const ManifestFile = "plugin.json"

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager discovers plugins under a directory, one plugin per subdirectory.
type Manager struct {
	pluginDir string

	mu     sync.RWMutex
	byName map[string]*Plugin
	sorted []*Plugin
}

// NewManager creates a Manager for pluginDir. Nothing is loaded until
// Discover is called.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		byName:    make(map[string]*Plugin),
	}
}

// Discover rescans the plugin directory. A missing directory yields no
// plugins; unreadable or incomplete manifests are logged and skipped. When
// two manifests share a name the first directory in lexical order wins.
func (m *Manager) Discover() error {
	entries, err := os.ReadDir(m.pluginDir)
	if errors.Is(err, os.ErrNotExist) {
		entries = nil
	} else if err != nil {
		return err
	}

	byName := make(map[string]*Plugin)
	var sorted []*Plugin
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := loadPlugin(filepath.Join(m.pluginDir, entry.Name()))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Printf("skipping plugin %s: %v", entry.Name(), err)
			continue
		}
		if prev, ok := byName[p.Manifest.Name]; ok {
			log.Printf("skipping plugin %s: name %q already used by %s", entry.Name(), p.Manifest.Name, prev.Path)
			continue
		}
		byName[p.Manifest.Name] = p
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Manifest.Name < sorted[j].Manifest.Name
	})

	m.mu.Lock()
	m.byName = byName
	m.sorted = sorted
	m.mu.Unlock()
	return nil
}

func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, errors.New("manifest needs name and executable")
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns a plugin by manifest name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byName[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Plugin(nil), m.sorted...)
}

// Subscribers returns the plugins subscribed to an event kind, sorted by name.
func (m *Manager) Subscribers(kind string) []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var subs []*Plugin
	for _, p := range m.sorted {
		if p.Manifest.Subscribes(kind) {
			subs = append(subs, p)
		}
	}
	return subs
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
