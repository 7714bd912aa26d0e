package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"case-reconciler/feature/cases/sources"
)

// PanelManager memoizes panel definitions for one run and caches them to
// local disk keyed by (panelID, version), so repeat runs skip the panel
// service entirely when a cached file exists.
type PanelManager struct {
	source sources.PanelSource
	dir    string

	mu    syncMap[string, *sources.PanelDefinition]
	group singleflight.Group
}

// NewPanelManager creates a manager backed by the given source and cache
// directory. A nil source restricts the manager to the disk cache.
func NewPanelManager(source sources.PanelSource, dir string) (*PanelManager, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("panel cache dir: %w", err)
		}
	}
	return &PanelManager{source: source, dir: dir, mu: newSyncMap[string, *sources.PanelDefinition]()}, nil
}

// Fetch returns the definition for one panel version, consulting in order:
// the run memo, the disk cache, the panel source. Concurrent fetches of the
// same key collapse to a single lookup.
func (m *PanelManager) Fetch(ctx context.Context, panelID, version string) (*sources.PanelDefinition, error) {
	key := panelID + "|" + version
	if def, ok := m.mu.get(key); ok {
		return def, nil
	}

	result, err, _ := m.group.Do(key, func() (any, error) {
		if def, ok := m.mu.get(key); ok {
			return def, nil
		}
		def, err := m.load(ctx, panelID, version)
		if err != nil {
			return nil, err
		}
		m.mu.put(key, def)
		return def, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*sources.PanelDefinition), nil
}

func (m *PanelManager) load(ctx context.Context, panelID, version string) (*sources.PanelDefinition, error) {
	if m.dir != "" {
		if def, err := m.readCached(panelID, version); err == nil {
			return def, nil
		}
	}
	if m.source == nil {
		return nil, fmt.Errorf("panel %s v%s: %w", panelID, version, sources.ErrNotFound)
	}
	def, err := m.source.FetchPanel(ctx, panelID, version)
	if err != nil {
		return nil, fmt.Errorf("fetch panel %s v%s: %w", panelID, version, err)
	}
	if m.dir != "" {
		// best effort; a failed cache write only costs a future fetch
		_ = m.writeCached(panelID, version, def)
	}
	return def, nil
}

func (m *PanelManager) cachePath(panelID, version string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_%s.json", panelID, version))
}

func (m *PanelManager) readCached(panelID, version string) (*sources.PanelDefinition, error) {
	raw, err := os.ReadFile(m.cachePath(panelID, version))
	if err != nil {
		return nil, err
	}
	var def sources.PanelDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (m *PanelManager) writeCached(panelID, version string, def *sources.PanelDefinition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return os.WriteFile(m.cachePath(panelID, version), raw, 0o644)
}
