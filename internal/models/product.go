package models

import "github.com/google/uuid"

// Product is a catalog entry. Purchasable stock lives on its variants.
type Product struct {
	BaseModel
	Name        string           `json:"name"`
	Price       float64          `json:"price"`
	Description string           `json:"description"`
	Category    string           `gorm:"index" json:"category"`
	AgeGroup    string           `gorm:"index" json:"age_group"`
	Image       string           `json:"image"`
	Featured    bool             `json:"featured"`
	Variants    []ProductVariant `json:"variants,omitempty"`
}

// ProductVariant is one size/color combination of a product, the unit
// against which stock is tracked.
type ProductVariant struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	Color     string    `json:"color"`
	Size      string    `json:"size"`
	Stock     int       `json:"stock"`
	Image     string    `json:"image"`
}
