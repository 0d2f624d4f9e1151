package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	BaseModel
	UserID           uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User             *User       `json:"user,omitempty"`
	OrderNumber      string      `gorm:"uniqueIndex" json:"order_number"`
	StoreSlug        string      `gorm:"index" json:"store_slug"`
	Status           string      `gorm:"index" json:"status"`
	PlacedAt         time.Time   `json:"placed_at"`
	PaidAt           *time.Time  `json:"paid_at"`
	Subtotal         float64     `json:"subtotal"`
	ShippingFee      float64     `json:"shipping_fee"`
	TotalAmount      float64     `json:"total_amount"`
	Currency         string      `json:"currency"`
	ShippingMethodID *uuid.UUID  `gorm:"type:uuid" json:"shipping_method_id"`
	PostalCode       string      `json:"postal_code"`
	Street           string      `json:"street"`
	Number           string      `json:"number"`
	Complement       string      `json:"complement"`
	Neighborhood     string      `json:"neighborhood"`
	City             string      `json:"city"`
	State            string      `json:"state"`
	PaymentMethod    string      `json:"payment_method"`
	PaymentID        string      `gorm:"index" json:"payment_id"`
	PixQRCode        string      `json:"pix_qr_code,omitempty"`
	PixQRCodeImage   string      `json:"pix_qr_code_image,omitempty"`
	PixTicketURL     string      `json:"pix_ticket_url,omitempty"`
	PixExpiresAt     *time.Time  `json:"pix_expires_at,omitempty"`
	TrackingCode     string      `json:"tracking_code"`
	Notes            string      `json:"notes"`
	Items            []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID   *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductName string     `json:"product_name"`
	Variants    StringMap  `gorm:"type:jsonb" json:"variants,omitempty"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	LineTotal   float64    `json:"line_total"`
}

// PaymentTransaction records gateway events for an order.
type PaymentTransaction struct {
	BaseModel
	OrderID   uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	Provider  string    `json:"provider"`
	PaymentID string    `gorm:"index" json:"payment_id"`
	EventID   string    `gorm:"uniqueIndex" json:"event_id"`
	EventType string    `json:"event_type"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	Payload   []byte    `gorm:"type:jsonb" json:"-"`
}
