package entity

import "time"

// Sale is a completed sale used as comparable evidence. The engine never writes it.
type Sale struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Source    string    `gorm:"not null" json:"source"`
	Title     string    `gorm:"not null" json:"title"`
	CardName  string    `json:"card_name"`
	Rarity    string    `json:"rarity"`
	Edition   string    `json:"edition"`
	Condition string    `json:"condition"`
	Price     float64   `gorm:"not null" json:"price"`
	SoldAt    time.Time `gorm:"not null;index" json:"sold_at"`
}

func (Sale) TableName() string {
	return "sales"
}
