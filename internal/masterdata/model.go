package masterdata

import (
	"sort"
	"strings"

	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
)

// UnitCatalog is the master data of one service unit. JSON names follow the remote sheet.
type UnitCatalog struct {
	Name      string              `json:"name"`
	Officers  []string            `json:"petugas"`
	Feeders   []string            `json:"penyulang"`
	Keypoints map[string][]string `json:"keypoints,omitempty"`
}

// Catalog maps a unit name to its master data.
type Catalog map[string]UnitCatalog

// Clone returns a deep copy.
func (c Catalog) Clone() Catalog {
	if c == nil {
		return nil
	}
	clone := make(Catalog, len(c))
	for name, unit := range c {
		clone[name] = unit.clone()
	}
	return clone
}

// Units lists the unit names, the default units first in their canonical order.
func (c Catalog) Units() []string {
	units := make([]string, 0, len(c))
	for _, name := range DefaultUnitOrder {
		if _, ok := c[name]; ok {
			units = append(units, name)
		}
	}
	extra := make([]string, 0)
	for name := range c {
		if !isDefaultUnit(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(units, extra...)
}

// Rosters returns the officer list of every unit for recap computation.
func (c Catalog) Rosters() []reports.Roster {
	units := c.Units()
	rosters := make([]reports.Roster, 0, len(units))
	for _, name := range units {
		rosters = append(rosters, reports.Roster{
			Unit:     name,
			Officers: append([]string(nil), c[name].Officers...),
		})
	}
	return rosters
}

func (u UnitCatalog) clone() UnitCatalog {
	clone := UnitCatalog{
		Name:     u.Name,
		Officers: append([]string(nil), u.Officers...),
		Feeders:  append([]string(nil), u.Feeders...),
	}
	if u.Keypoints != nil {
		clone.Keypoints = make(map[string][]string, len(u.Keypoints))
		for feeder, keypoints := range u.Keypoints {
			clone.Keypoints[feeder] = append([]string(nil), keypoints...)
		}
	}
	return clone
}

// ParseNames splits admin input on commas and newlines, trimming blanks.
func ParseNames(rawInput string) []string {
	fields := strings.FieldsFunc(rawInput, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// appendUnique appends the names not yet present and returns the grown list with the names added.
func appendUnique(existing []string, names []string) ([]string, []string) {
	seen := make(map[string]struct{}, len(existing)+len(names))
	for _, name := range existing {
		seen[name] = struct{}{}
	}
	added := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		existing = append(existing, trimmed)
		added = append(added, trimmed)
	}
	return existing, added
}

func without(list []string, name string) ([]string, bool) {
	filtered := make([]string, 0, len(list))
	removed := false
	for _, item := range list {
		if item == name {
			removed = true
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered, removed
}
