package models

import (
	"time"
)

// Item is the canonical catalog entity. Identifiers are assigned by the
// trading-post API, never auto-generated, so upserts key on item_id.
type Item struct {
	ItemID    int       `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Name      string    `json:"name" gorm:"size:100"`
	Level     int       `json:"level"`
	Rarity    string    `json:"rarity" gorm:"size:50"`
	ItemType  string    `json:"item_type" gorm:"size:50"`
	Icon      string    `json:"icon" gorm:"size:500"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Item) TableName() string { return "items" }

// Category detail tables share the item's identifier as both primary key
// and foreign key. A detail row must never exist without its item.

type Armor struct {
	ItemID      int     `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Item        Item    `json:"-" gorm:"foreignKey:ItemID"`
	Type        *string `json:"type" gorm:"size:50"`
	Defense     *int    `json:"defense"`
	WeightClass *string `json:"weight_class" gorm:"size:50"`
}

func (Armor) TableName() string { return "armors" }

type Bag struct {
	ItemID int   `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Item   Item  `json:"-" gorm:"foreignKey:ItemID"`
	Size   *int  `json:"size"`
	IsSafe *bool `json:"is_safe"`
}

func (Bag) TableName() string { return "bags" }

type Consumable struct {
	ItemID   int     `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Item     Item    `json:"-" gorm:"foreignKey:ItemID"`
	Type     *string `json:"type" gorm:"size:50"`
	Duration *int    `json:"duration"`
}

func (Consumable) TableName() string { return "consumables" }

type GatheringTool struct {
	ItemID int     `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Item   Item    `json:"-" gorm:"foreignKey:ItemID"`
	Type   *string `json:"type" gorm:"size:50"`
}

func (GatheringTool) TableName() string { return "gathering_tools" }

type Gizmo struct {
	ItemID int     `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Item   Item    `json:"-" gorm:"foreignKey:ItemID"`
	Type   *string `json:"type" gorm:"size:50"`
}

func (Gizmo) TableName() string { return "gizmos" }

type SalvageKit struct {
	ItemID  int     `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Item    Item    `json:"-" gorm:"foreignKey:ItemID"`
	Type    *string `json:"type" gorm:"size:50"`
	Charges *int    `json:"charges"`
}

func (SalvageKit) TableName() string { return "salvage_kits" }

type Trinket struct {
	ItemID int     `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Item   Item    `json:"-" gorm:"foreignKey:ItemID"`
	Type   *string `json:"type" gorm:"size:50"`
}

func (Trinket) TableName() string { return "trinkets" }

type Upgrade struct {
	ItemID int     `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Item   Item    `json:"-" gorm:"foreignKey:ItemID"`
	Type   *string `json:"type" gorm:"size:50"`
}

func (Upgrade) TableName() string { return "upgrades" }

type Weapon struct {
	ItemID     int     `json:"item_id" gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Item       Item    `json:"-" gorm:"foreignKey:ItemID"`
	Type       *string `json:"type" gorm:"size:50"`
	MinPower   *int    `json:"min_power"`
	MaxPower   *int    `json:"max_power"`
	Defense    *int    `json:"defense"`
	DamageType *string `json:"damage_type" gorm:"size:50"`
}

func (Weapon) TableName() string { return "weapons" }

// Listing is a point-in-time market snapshot for one item. Rows are
// append-only; every ingestion run inserts fresh snapshots.
type Listing struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ItemID      int       `json:"item_id" gorm:"column:item_id;index;not null"`
	Item        Item      `json:"-" gorm:"foreignKey:ItemID"`
	Demand      int       `json:"demand"`
	Supply      int       `json:"supply"`
	BPrice      int       `json:"b_price" gorm:"column:b_price"`
	SPrice      int       `json:"s_price" gorm:"column:s_price"`
	PMargin     *float64  `json:"p_margin" gorm:"column:p_margin"`
	Surplus     int       `json:"surplus"`
	LastUpdated time.Time `json:"last_updated" gorm:"column:last_updated;index"`
}

func (Listing) TableName() string { return "listings" }

// All returns one instance of every persisted model, in parent-first
// order, for schema migration.
func All() []any {
	return []any{
		&Item{},
		&Armor{}, &Bag{}, &Consumable{}, &GatheringTool{}, &Gizmo{},
		&SalvageKit{}, &Trinket{}, &Upgrade{}, &Weapon{},
		&Listing{},
	}
}
