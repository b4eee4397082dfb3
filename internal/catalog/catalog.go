package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"reagentbank.io/internal/ledger"
)

type Quality uint8

const (
	QualityPoor Quality = iota
	QualityCommon
	QualityUncommon
	QualityRare
	QualityEpic
	QualityLegendary
	QualityArtifact
	QualityHeirloom
)

var qualityNames = [...]string{"poor", "common", "uncommon", "rare", "epic", "legendary", "artifact", "heirloom"}

func (q Quality) String() string {
	if int(q) < len(qualityNames) {
		return qualityNames[q]
	}
	return "unknown"
}

// Item is one entry of items.json.
type Item struct {
	ID       uint32            `json:"id"`
	Name     string            `json:"name"`
	Class    uint8             `json:"class"`
	Subclass uint8             `json:"subclass"`
	MaxStack uint32            `json:"max_stack"`
	Quality  Quality           `json:"quality"`
	Locales  map[string]string `json:"locales,omitempty"` // locale -> localized name
}

// DisplayName returns the localized name, falling back to the base name.
func (it Item) DisplayName(locale string) string {
	if n, ok := it.Locales[locale]; ok && n != "" {
		return n
	}
	if it.Name == "" {
		return "Unknown"
	}
	return it.Name
}

// Category reports where the item is filed, or false if it cannot be stored.
func (it Item) Category() (ledger.Category, bool) {
	return ledger.Classify(it.Class, it.Subclass, it.MaxStack)
}

type Catalog struct {
	byID   map[uint32]Item
	Digest string
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []Item
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}
	c, err := New(defs)
	if err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}
	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return c, nil
}

// New builds a catalog from in-memory definitions.
func New(defs []Item) (*Catalog, error) {
	c := &Catalog{byID: make(map[uint32]Item, len(defs))}
	for _, d := range defs {
		if d.ID == 0 {
			return nil, fmt.Errorf("item with empty id")
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %d", d.ID)
		}
		if d.MaxStack == 0 {
			return nil, fmt.Errorf("item %d: max_stack must be >= 1", d.ID)
		}
		c.byID[d.ID] = d
	}
	return c, nil
}

func (c *Catalog) Lookup(itemID uint32) (Item, bool) {
	it, ok := c.byID[itemID]
	return it, ok
}

// MaxStack is the stack limit for an item; unknown items do not stack.
func (c *Catalog) MaxStack(itemID uint32) uint32 {
	if it, ok := c.byID[itemID]; ok {
		return it.MaxStack
	}
	return 1
}

func (c *Catalog) Len() int { return len(c.byID) }

// Items returns every definition ordered by id.
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.byID))
	for _, it := range c.byID {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
