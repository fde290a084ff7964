package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TransformError reports a raw API record that cannot be mapped to a row,
// usually because a required field is missing or has the wrong type.
// Offending records are skipped and logged; they never abort a run.
type TransformError struct {
	Endpoint string
	Err      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s record: %v", e.Endpoint, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

type rawItem struct {
	ID      *int            `json:"id"`
	Name    string          `json:"name"`
	Level   int             `json:"level"`
	Rarity  string          `json:"rarity"`
	Type    string          `json:"type"`
	Icon    string          `json:"icon"`
	Details json.RawMessage `json:"details"`
}

// ItemFromRaw maps one catalog record to an Item row.
func ItemFromRaw(data json.RawMessage) (*Item, error) {
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &TransformError{Endpoint: "items", Err: err}
	}
	if raw.ID == nil {
		return nil, &TransformError{Endpoint: "items", Err: fmt.Errorf("missing id")}
	}
	return &Item{
		ItemID:   *raw.ID,
		Name:     raw.Name,
		Level:    raw.Level,
		Rarity:   raw.Rarity,
		ItemType: raw.Type,
		Icon:     raw.Icon,
	}, nil
}

// DetailFromRaw builds the category-specific extension row for a catalog
// record whose type matches a known category. Fields nested under the
// record's details object resolve to NULL when absent. The second return
// is false when the record's type has no extension table.
func DetailFromRaw(data json.RawMessage) (any, bool, error) {
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, &TransformError{Endpoint: "items", Err: err}
	}
	if raw.ID == nil {
		return nil, false, &TransformError{Endpoint: "items", Err: fmt.Errorf("missing id")}
	}

	// Nested details are best-effort: a malformed or absent sub-object
	// leaves every extension field NULL, matching the catalog's habit of
	// shipping partially filled records.
	var d struct {
		Type         *string `json:"type"`
		Defense      *int    `json:"defense"`
		WeightClass  *string `json:"weight_class"`
		Size         *int    `json:"size"`
		NoSellOrSort *bool   `json:"no_sell_or_sort"`
		DurationMS   *int    `json:"duration_ms"`
		Charges      *int    `json:"charges"`
		MinPower     *int    `json:"min_power"`
		MaxPower     *int    `json:"max_power"`
		DamageType   *string `json:"damage_type"`
	}
	if len(raw.Details) > 0 {
		_ = json.Unmarshal(raw.Details, &d)
	}

	id := *raw.ID
	switch raw.Type {
	case "Armor":
		return &Armor{ItemID: id, Type: d.Type, Defense: d.Defense, WeightClass: d.WeightClass}, true, nil
	case "Bag":
		return &Bag{ItemID: id, Size: d.Size, IsSafe: d.NoSellOrSort}, true, nil
	case "Consumable":
		return &Consumable{ItemID: id, Type: d.Type, Duration: d.DurationMS}, true, nil
	case "GatheringTool":
		return &GatheringTool{ItemID: id, Type: d.Type}, true, nil
	case "Gizmo":
		return &Gizmo{ItemID: id, Type: d.Type}, true, nil
	case "SalvageKit":
		return &SalvageKit{ItemID: id, Type: d.Type, Charges: d.Charges}, true, nil
	case "Trinket":
		return &Trinket{ItemID: id, Type: d.Type}, true, nil
	case "Upgrade":
		return &Upgrade{ItemID: id, Type: d.Type}, true, nil
	case "Weapon":
		return &Weapon{
			ItemID:     id,
			Type:       d.Type,
			MinPower:   d.MinPower,
			MaxPower:   d.MaxPower,
			Defense:    d.Defense,
			DamageType: d.DamageType,
		}, true, nil
	}
	return nil, false, nil
}

type rawPriceSide struct {
	Quantity  *int `json:"quantity"`
	UnitPrice *int `json:"unit_price"`
}

type rawPrice struct {
	ID    *int          `json:"id"`
	Buys  *rawPriceSide `json:"buys"`
	Sells *rawPriceSide `json:"sells"`
}

// ListingFromRaw maps one commerce record to a Listing snapshot. Demand,
// supply and both unit prices are required; surplus and profit margin are
// derived. The margin stays NULL when the sell price is zero. The capture
// timestamp is the transformation wall-clock time, not the response time.
func ListingFromRaw(data json.RawMessage, now time.Time) (*Listing, error) {
	var raw rawPrice
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &TransformError{Endpoint: "commerce/prices", Err: err}
	}
	if raw.ID == nil {
		return nil, &TransformError{Endpoint: "commerce/prices", Err: fmt.Errorf("missing id")}
	}
	if raw.Buys == nil || raw.Buys.Quantity == nil || raw.Buys.UnitPrice == nil {
		return nil, &TransformError{Endpoint: "commerce/prices", Err: fmt.Errorf("item %d: missing buys", *raw.ID)}
	}
	if raw.Sells == nil || raw.Sells.Quantity == nil || raw.Sells.UnitPrice == nil {
		return nil, &TransformError{Endpoint: "commerce/prices", Err: fmt.Errorf("item %d: missing sells", *raw.ID)}
	}

	demand := *raw.Buys.Quantity
	supply := *raw.Sells.Quantity
	bPrice := *raw.Buys.UnitPrice
	sPrice := *raw.Sells.UnitPrice

	var margin *float64
	if sPrice != 0 {
		m := (float64(sPrice) - float64(bPrice)) / float64(sPrice)
		margin = &m
	}

	return &Listing{
		ItemID:      *raw.ID,
		Demand:      demand,
		Supply:      supply,
		BPrice:      bPrice,
		SPrice:      sPrice,
		PMargin:     margin,
		Surplus:     supply - demand,
		LastUpdated: now,
	}, nil
}
