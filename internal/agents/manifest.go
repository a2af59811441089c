package agents

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// manifest is the on-disk agent catalog format.
type manifest struct {
	Agents []Card `yaml:"agents"`
}

// LoadManifest merges agent cards from a YAML file into the registry.
// Cards with names matching built-ins replace them.
func (r *Registry) LoadManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read agent manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse agent manifest: %w", err)
	}

	for i, c := range m.Agents {
		if c.Name == "" {
			return fmt.Errorf("agent manifest entry %d: missing name", i)
		}
	}

	r.upsert(m.Agents)
	logf("loaded %d agent cards from %s", len(m.Agents), path)
	return nil
}

// WatchManifest reloads the manifest whenever the file changes.
// A bad edit logs a warning and keeps the previous catalog.
func (r *Registry) WatchManifest(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create manifest watcher: %w", err)
	}

	// Watch the directory: editors often replace the file, which drops
	// a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch manifest directory: %w", err)
	}

	r.watcher = watcher
	go r.watchLoop(path)
	return nil
}

func (r *Registry) watchLoop(path string) {
	target := filepath.Clean(path)
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if err := r.LoadManifest(path); err != nil {
				logf("manifest reload failed, keeping previous catalog: %v", err)
			}
		case <-r.watcher.Errors:
			// Keep watching.
		}
	}
}
