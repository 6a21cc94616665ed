package audio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const presetListFile = "_list.json"

type presetListJSON struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
}

// presetManager reads presets from a directory holding _list.json and one
// <name>.json per listed preset. The list is read on first use.
type presetManager struct {
	dir   string
	names []string // nil until the list is read
}

func newPresetManager(dir string) *presetManager {
	return &presetManager{
		dir: dir,
	}
}

func (pm *presetManager) getList() ([]string, error) {
	if pm.names != nil {
		return pm.names, nil
	}
	bytes, err := os.ReadFile(filepath.Join(pm.dir, presetListFile))
	if err != nil {
		return nil, fmt.Errorf("read preset list: %w", err)
	}
	var list presetListJSON
	if err := json.Unmarshal(bytes, &list); err != nil {
		return nil, fmt.Errorf("parse preset list: %w", err)
	}
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Name)
	}
	pm.names = names
	return names, nil
}

func (pm *presetManager) has(name string) (bool, error) {
	names, err := pm.getList()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// applyToParams overwrites the fields the preset sets and leaves the others.
func (pm *presetManager) applyToParams(name string, target *Params) error {
	ok, err := pm.has(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("preset %q is not listed in %s", name, pm.dir)
	}
	bytes, err := os.ReadFile(filepath.Join(pm.dir, name+".json"))
	if err != nil {
		return fmt.Errorf("read preset %q: %w", name, err)
	}
	if !json.Valid(bytes) {
		return fmt.Errorf("preset %q is not valid JSON", name)
	}
	target.applyJSON(bytes)
	return nil
}
