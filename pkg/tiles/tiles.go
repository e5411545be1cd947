// Package tiles supplies the ordered tile records a grid displays: read from
// a YAML or JSON file, generated synthetically, or reloaded as the file
// changes on disk.
package tiles

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tableflip.dev/tilegrid/pkg/grid"
)

// Record is the on-disk shape of one tile. JSON files use the same keys.
type Record struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Subtitle string `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	Image    string `yaml:"image,omitempty" json:"image,omitempty"`
	Back     bool   `yaml:"back,omitempty" json:"back,omitempty"`
	Foil     bool   `yaml:"foil,omitempty" json:"foil,omitempty"`
	Selected bool   `yaml:"selected,omitempty" json:"selected,omitempty"`
}

type document struct {
	Tiles []Record `yaml:"tiles" json:"tiles"`
}

// ErrEmptyID is returned for a record without an id.
var ErrEmptyID = errors.New("tiles: record has no id")

// Load reads tiles from path. The file holds either a list of records or a
// mapping with a "tiles" list. JSON parses as YAML, so both share one
// decoder.
func Load(path string) ([]grid.TileState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tiles: read %s: %w", path, err)
	}
	records, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("tiles: %s: %w", filepath.Base(path), err)
	}
	return ToStates(records)
}

// Decode parses a tile document.
func Decode(raw []byte) ([]Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var records []Record
		if err := root.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return records, nil
	case yaml.MappingNode:
		var doc document
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return doc.Tiles, nil
	default:
		return nil, fmt.Errorf("decode: unexpected top level %v", root.Tag)
	}
}

// ToStates validates records and converts them, preserving order.
func ToStates(records []Record) ([]grid.TileState, error) {
	out := make([]grid.TileState, 0, len(records))
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("%w (record %d)", ErrEmptyID, i)
		}
		if j, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("tiles: duplicate id %q at records %d and %d", r.ID, j, i)
		}
		seen[r.ID] = i
		out = append(out, r.State())
	}
	return out, nil
}

// State converts one record.
func (r Record) State() grid.TileState {
	var flags grid.Flags
	if r.Back {
		flags |= grid.FlagBackFace
	}
	if r.Foil {
		flags |= grid.FlagFoil
	}
	if r.Selected {
		flags |= grid.FlagSelected
	}
	return grid.TileState{
		ID:            r.ID,
		PrimaryText:   r.Name,
		SecondaryText: r.Subtitle,
		ImageKey:      r.Image,
		Flags:         flags,
	}
}

// FromState is the inverse of Record.State.
func FromState(t grid.TileState) Record {
	return Record{
		ID:       t.ID,
		Name:     t.PrimaryText,
		Subtitle: t.SecondaryText,
		Image:    t.ImageKey,
		Back:     t.Flags.Has(grid.FlagBackFace),
		Foil:     t.Flags.Has(grid.FlagFoil),
		Selected: t.Flags.Has(grid.FlagSelected),
	}
}

// Save writes tiles to path, as JSON when the extension is .json and YAML
// otherwise.
func Save(path string, tiles []grid.TileState) error {
	doc := document{Tiles: make([]Record, 0, len(tiles))}
	for _, t := range tiles {
		doc.Tiles = append(doc.Tiles, FromState(t))
	}
	var (
		raw []byte
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		raw, err = json.MarshalIndent(doc, "", "  ")
	} else {
		raw, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("tiles: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("tiles: ensure dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("tiles: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("tiles: replace %s: %w", path, err)
	}
	return nil
}
