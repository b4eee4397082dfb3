package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is the storage section an item is filed under. The numeric values
// are persisted and match the trade goods subclass numbering of the item
// catalog, so rows written by older tooling keep their meaning.
type Category uint8

const (
	CategoryNone            Category = 0
	CategoryParts           Category = 1
	CategoryExplosives      Category = 2
	CategoryDevices         Category = 3
	CategoryJewelcrafting   Category = 4
	CategoryCloth           Category = 5
	CategoryLeather         Category = 6
	CategoryMetalStone      Category = 7
	CategoryMeat            Category = 8
	CategoryHerb            Category = 9
	CategoryElemental       Category = 10
	CategoryOtherTradeGoods Category = 11
	CategoryEnchanting      Category = 12
	CategoryNetherMaterial  Category = 13
	CategoryArmorVellum     Category = 14
	CategoryWeaponVellum    Category = 15
)

// Item classes that can hold reagents.
const (
	ClassGem        uint8 = 3
	ClassTradeGoods uint8 = 7
)

// Legacy generic trade goods subclass; filed under "other".
const subclassTradeGoods uint8 = 0

// sweepOrder is the order categories appear in menus and are emptied by a
// full withdrawal.
var sweepOrder = [...]Category{
	CategoryCloth,
	CategoryMeat,
	CategoryMetalStone,
	CategoryEnchanting,
	CategoryElemental,
	CategoryParts,
	CategoryOtherTradeGoods,
	CategoryHerb,
	CategoryLeather,
	CategoryJewelcrafting,
	CategoryExplosives,
	CategoryDevices,
	CategoryNetherMaterial,
	CategoryArmorVellum,
	CategoryWeaponVellum,
}

var categoryInfo = map[Category]struct {
	slug  string
	label string
}{
	CategoryParts:           {"parts", "Parts"},
	CategoryExplosives:      {"explosives", "Explosives"},
	CategoryDevices:         {"devices", "Devices"},
	CategoryJewelcrafting:   {"jewelcrafting", "Jewelcrafting"},
	CategoryCloth:           {"cloth", "Cloth"},
	CategoryLeather:         {"leather", "Leather"},
	CategoryMetalStone:      {"metal_stone", "Metal & Stone"},
	CategoryMeat:            {"meat", "Meat"},
	CategoryHerb:            {"herb", "Herb"},
	CategoryElemental:       {"elemental", "Elemental"},
	CategoryOtherTradeGoods: {"other", "Other Trade Goods"},
	CategoryEnchanting:      {"enchanting", "Enchanting"},
	CategoryNetherMaterial:  {"nether_material", "Nether Material"},
	CategoryArmorVellum:     {"armor_vellum", "Armor Vellum"},
	CategoryWeaponVellum:    {"weapon_vellum", "Weapon Vellum"},
}

// Categories returns every storable category in menu order.
func Categories() []Category {
	out := make([]Category, len(sweepOrder))
	copy(out, sweepOrder[:])
	return out
}

func (c Category) Valid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// Label is the menu title of the category.
func (c Category) Label() string {
	if info, ok := categoryInfo[c]; ok {
		return info.label
	}
	return "Reagents"
}

func (c Category) String() string {
	if info, ok := categoryInfo[c]; ok {
		return info.slug
	}
	if c == CategoryNone {
		return "none"
	}
	return "category(" + strconv.Itoa(int(c)) + ")"
}

// ParseCategory accepts a slug ("cloth") or the numeric tag ("5").
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		c := Category(n)
		if n < 0 || n > 255 || !c.Valid() {
			return CategoryNone, fmt.Errorf("unknown category %q", s)
		}
		return c, nil
	}
	for c, info := range categoryInfo {
		if info.slug == s {
			return c, nil
		}
	}
	return CategoryNone, fmt.Errorf("unknown category %q", s)
}

// Classify decides whether an item may be stored and under which category.
// Only trade goods and gems that stack are eligible. Gems are always filed
// under jewelcrafting regardless of their own subclass.
func Classify(class, subclass uint8, maxStack uint32) (Category, bool) {
	if maxStack <= 1 {
		return CategoryNone, false
	}
	switch class {
	case ClassGem:
		return CategoryJewelcrafting, true
	case ClassTradeGoods:
		if subclass == subclassTradeGoods {
			return CategoryOtherTradeGoods, true
		}
		c := Category(subclass)
		if !c.Valid() {
			return CategoryNone, false
		}
		return c, true
	default:
		return CategoryNone, false
	}
}
