// Package catalog provides read-only access to the known game entities
// (items, weapons, tomes, characters) that detection results are matched
// against. The catalog is loaded once at startup and never mutated.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Kind identifies the category of a cataloged entity.
type Kind string

const (
	KindItem      Kind = "item"
	KindWeapon    Kind = "weapon"
	KindTome      Kind = "tome"
	KindCharacter Kind = "character"
)

// Kinds lists all entity kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindItem, KindWeapon, KindTome, KindCharacter}
}

// ParseKind converts a string into a Kind, accepting singular and plural forms.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "item", "items":
		return KindItem, nil
	case "weapon", "weapons":
		return KindWeapon, nil
	case "tome", "tomes":
		return KindTome, nil
	case "character", "characters":
		return KindCharacter, nil
	default:
		return "", fmt.Errorf("unknown entity kind: %q", s)
	}
}

// Rarity describes how rare an entity is. Used by adaptive confidence
// thresholds; entities without a rarity are treated as common.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Entity is a single cataloged game entity.
type Entity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Rarity   Rarity `json:"rarity,omitempty"`
	Tier     int    `json:"tier,omitempty"`
	Template string `json:"template,omitempty"` // path to the reference template image
}

// Catalog holds all known entities, indexed by kind and by id.
type Catalog struct {
	byKind map[Kind][]Entity
	byID   map[string]Entity
}

// catalogFile is the on-disk JSON shape produced by the wiki scrape.
type catalogFile struct {
	Items      []Entity `json:"items"`
	Weapons    []Entity `json:"weapons"`
	Tomes      []Entity `json:"tomes"`
	Characters []Entity `json:"characters"`
}

// New builds a catalog from per-kind entity lists. Entity.Kind is filled in
// from the list the entity appears in; entries without an id are skipped.
func New(entities map[Kind][]Entity) *Catalog {
	c := &Catalog{
		byKind: make(map[Kind][]Entity, len(entities)),
		byID:   make(map[string]Entity),
	}
	for kind, list := range entities {
		kept := make([]Entity, 0, len(list))
		for _, e := range list {
			if e.ID == "" || e.Name == "" {
				continue
			}
			e.Kind = kind
			kept = append(kept, e)
			c.byID[e.ID] = e
		}
		sort.Slice(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })
		c.byKind[kind] = kept
	}
	return c
}

// LoadFile reads a catalog from a JSON file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog JSON.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(map[Kind][]Entity{
		KindItem:      f.Items,
		KindWeapon:    f.Weapons,
		KindTome:      f.Tomes,
		KindCharacter: f.Characters,
	}), nil
}

// ByKind returns the entities of the given kind, sorted by name. The returned
// slice is shared and must not be modified.
func (c *Catalog) ByKind(kind Kind) []Entity {
	return c.byKind[kind]
}

// ByID looks up an entity by id.
func (c *Catalog) ByID(id string) (Entity, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Len returns the total number of entities across all kinds.
func (c *Catalog) Len() int {
	return len(c.byID)
}
