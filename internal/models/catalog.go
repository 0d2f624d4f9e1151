package models

import "github.com/google/uuid"

type Category struct {
	BaseModel
	Name          string        `json:"name"`
	Slug          string        `gorm:"uniqueIndex" json:"slug"`
	Description   string        `json:"description"`
	ImageURL      string        `json:"image_url"`
	DisplayOrder  int           `json:"display_order"`
	Active        bool          `json:"active"`
	Subcategories []Subcategory `json:"subcategories,omitempty"`
}

type Subcategory struct {
	BaseModel
	CategoryID   uuid.UUID `gorm:"type:uuid;index" json:"category_id"`
	Category     *Category `json:"category,omitempty"`
	Name         string    `json:"name"`
	Slug         string    `gorm:"index" json:"slug"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
}
