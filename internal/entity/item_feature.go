package entity

import (
	"time"

	"gorm.io/datatypes"
)

// ItemFeature holds the card attributes extracted from a listing or sale text.
// There is at most one row per (ref_type, ref_id); the latest extraction wins.
type ItemFeature struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	RefType    string         `gorm:"not null;uniqueIndex:uq_item_features_ref" json:"ref_type"`
	RefID      uint           `gorm:"not null;uniqueIndex:uq_item_features_ref" json:"ref_id"`
	CardName   string         `gorm:"not null;default:unknown" json:"card_name"`
	Rarity     string         `gorm:"not null;default:unknown" json:"rarity"`
	Edition    string         `gorm:"not null;default:unknown" json:"edition"`
	Condition  string         `gorm:"not null;default:unknown" json:"condition"`
	Confidence float64        `gorm:"not null" json:"confidence"`
	Method     string         `gorm:"not null" json:"method"`
	Extras     datatypes.JSON `gorm:"type:jsonb" json:"extras"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ItemFeature) TableName() string {
	return "item_features"
}
