package models

import "github.com/google/uuid"

// UserAddress is a saved shipping address.
type UserAddress struct {
	BaseModel
	UserID       uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Label        string    `json:"label"`
	PostalCode   string    `json:"postal_code"`
	Street       string    `json:"street"`
	Number       string    `json:"number"`
	Complement   string    `json:"complement"`
	Neighborhood string    `json:"neighborhood"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	IsDefault    bool      `json:"is_default"`
}
