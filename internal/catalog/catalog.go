// Package catalog holds the fixed list of parking spots: their ids, the
// default occupant of each spot, the row each tile is laid out in and which
// spots are blocking-vehicle placeholders.  The catalog is read-only once
// built; an optional YAML file may replace the built-in layout at startup.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/parking-schedule/internal/model"
)

// blockingPrompt is the default occupant text of every blocking spot.  It
// asks for the driver's full name and phone number.
const blockingPrompt = "please enter first and last name and a phone number"

// Catalog is an immutable, ordered set of spots.
type Catalog struct {
	spots []model.Spot
	index map[string]int
}

// file is the YAML shape accepted by Load.
type file struct {
	Spots []model.Spot `yaml:"spots"`
}

// Default returns the built-in parking layout: five rows of named or
// numbered spots, each row followed by one blocking-vehicle placeholder.
func Default() *Catalog {
	rows := [][]model.Spot{
		{
			{ID: "spot-2", DefaultOccupant: "Dorit"},
			{ID: "spot-1", DefaultOccupant: "Shai"},
		},
		{
			{ID: "spot-5", DefaultOccupant: "Dvora"},
			{ID: "spot-4", DefaultOccupant: "Leah"},
			{ID: "spot-3", DefaultOccupant: "Rivi"},
		},
		{
			{ID: "8", DefaultOccupant: "Dan Alon"},
			{ID: "7", DefaultOccupant: "Information Systems"},
			{ID: "spot-6", DefaultOccupant: "Nurit"},
		},
		{
			{ID: "spot-10", DefaultOccupant: "Gitit"},
			{ID: "spot-11", DefaultOccupant: "Dov"},
			{ID: "spot-12", DefaultOccupant: "Merav"},
		},
		{
			{ID: "spot-15", DefaultOccupant: "Maor"},
			{ID: "spot-14", DefaultOccupant: "Hinit"},
			{ID: "spot-13", DefaultOccupant: "Yoav"},
		},
	}

	spots := make([]model.Spot, 0, 19)
	for i, row := range rows {
		for _, s := range row {
			s.Kind = model.SpotOrdinary
			s.Row = i
			spots = append(spots, s)
		}
		id := fmt.Sprintf("blocking-%d", i+1)
		spots = append(spots, model.Spot{
			ID:              id,
			DefaultOccupant: fmt.Sprintf("Blocking vehicle %d\n%s", i+1, blockingPrompt),
			Kind:            model.SpotBlocking,
			Row:             i,
		})
	}
	c, _ := New(spots)
	return c
}

// New builds a catalog from spots.  Ids must be non-empty and unique and
// rows non-negative; a missing kind defaults to ORDINARY.
func New(spots []model.Spot) (*Catalog, error) {
	if len(spots) == 0 {
		return nil, errors.New("catalog: no spots")
	}
	c := &Catalog{
		spots: make([]model.Spot, 0, len(spots)),
		index: make(map[string]int, len(spots)),
	}
	for _, s := range spots {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			return nil, errors.New("catalog: spot with empty id")
		}
		if _, dup := c.index[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate spot id %q", s.ID)
		}
		if s.Row < 0 {
			return nil, fmt.Errorf("catalog: spot %q has negative row %d", s.ID, s.Row)
		}
		switch s.Kind {
		case "":
			s.Kind = model.SpotOrdinary
		case model.SpotOrdinary, model.SpotBlocking:
		default:
			return nil, fmt.Errorf("catalog: spot %q has unknown kind %q", s.ID, s.Kind)
		}
		c.index[s.ID] = len(c.spots)
		c.spots = append(c.spots, s)
	}
	return c, nil
}

// Load reads a YAML catalog from path.  An empty path returns Default().
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return New(f.Spots)
}

// Spots returns the spots in layout order.
func (c *Catalog) Spots() []model.Spot {
	out := make([]model.Spot, len(c.spots))
	copy(out, c.spots)
	return out
}

// Rows groups the spots by their Row field, preserving layout order.
func (c *Catalog) Rows() [][]model.Spot {
	var rows [][]model.Spot
	for _, s := range c.spots {
		for len(rows) <= s.Row {
			rows = append(rows, nil)
		}
		rows[s.Row] = append(rows[s.Row], s)
	}
	return rows
}

// Lookup returns the spot with the given id.
func (c *Catalog) Lookup(id string) (model.Spot, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.Spot{}, false
	}
	return c.spots[i], true
}

// Contains reports whether id is a catalog spot.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}
