package models

import "github.com/google/uuid"

// HomepageCategory places a category on the storefront home page.
type HomepageCategory struct {
	BaseModel
	CategoryID   uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"category_id"`
	Category     *Category `json:"category,omitempty"`
	Title        string    `json:"title"`
	ImageURL     string    `json:"image_url"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
}

type FeaturedProduct struct {
	BaseModel
	ProductID    uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"product_id"`
	Product      *Product  `json:"product,omitempty"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
}

type Testimonial struct {
	BaseModel
	CustomerName string `json:"customer_name"`
	City         string `json:"city"`
	Content      string `json:"content"`
	Rating       int    `json:"rating"`
	AvatarURL    string `json:"avatar_url"`
	Active       bool   `json:"active"`
}

type ShippingMethod struct {
	BaseModel
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	FreeAbove     float64 `json:"free_above"`
	EstimatedDays int     `json:"estimated_days"`
	Active        bool    `json:"active"`
}

// ApplyDefaults prepares a row for a create request: rows start active
// unless the request says otherwise.
func (h *HomepageCategory) ApplyDefaults() { h.Active = true }
func (f *FeaturedProduct) ApplyDefaults() { f.Active = true }
func (t *Testimonial) ApplyDefaults() { t.Active = true }
func (m *ShippingMethod) ApplyDefaults() { m.Active = true }
func (k *KnowledgeBaseEntry) ApplyDefaults() { k.Active = true }

// PriceFor returns the shipping fee for an order subtotal.
func (m ShippingMethod) PriceFor(subtotal float64) float64 {
	if m.FreeAbove > 0 && subtotal >= m.FreeAbove {
		return 0
	}
	return m.Price
}

// NewsletterConfig is a singleton row.
type NewsletterConfig struct {
	BaseModel
	Enabled     bool   `json:"enabled"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ButtonText  string `json:"button_text"`
	Coupon      string `json:"coupon"`
}

type NewsletterSubscriber struct {
	BaseModel
	Email string `gorm:"uniqueIndex" json:"email"`
}

// KnowledgeBaseEntry backs the storefront assistant's answers.
type KnowledgeBaseEntry struct {
	BaseModel
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `gorm:"index" json:"category"`
	Active   bool   `json:"active"`
}

func (KnowledgeBaseEntry) TableName() string {
	return "ai_knowledge_base"
}
