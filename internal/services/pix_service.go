package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"

	"github.com/example/vitrine/internal/pricing"
)

var (
	ErrInvalidPixAmount = errors.New("pix: amount must be positive")
	ErrPixUnavailable   = errors.New("pix: gateway did not return a QR code")
)

// PixPayer identifies who pays a PIX charge.
type PixPayer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	CPF   string `json:"cpf"`
	Phone string `json:"phone"`
}

type PixOrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type PixShippingAddress struct {
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// PixRequest is the input of a PIX payment creation.
type PixRequest struct {
	OrderID         string
	OrderNumber     string
	Amount          float64
	Description     string
	Payer           PixPayer
	Items           []PixOrderItem
	ShippingAddress PixShippingAddress
}

// PixPaymentData is what the storefront needs to show a PIX charge.
type PixPaymentData struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	QRCode       string     `json:"qr_code"`
	QRCodeBase64 string     `json:"qr_code_base64,omitempty"`
	QRCodeImage  string     `json:"qr_code_image,omitempty"`
	TicketURL    string     `json:"ticket_url,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// PixGateway creates PIX charges.
type PixGateway interface {
	CreatePix(ctx context.Context, req PixRequest) (*PixPaymentData, error)
}

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripePixConfig configures StripePix.
type StripePixConfig struct {
	APIKey       string
	ExpiresAfter time.Duration
	Logger       *zap.Logger
	Intents      stripePaymentIntentAPI
}

// StripePix creates PIX charges as confirmed Stripe PaymentIntents.
type StripePix struct {
	intents      stripePaymentIntentAPI
	expiresAfter time.Duration
	log          *zap.Logger
}

func NewStripePix(cfg StripePixConfig) (*StripePix, error) {
	intents := cfg.Intents
	if intents == nil {
		key := strings.TrimSpace(cfg.APIKey)
		if key == "" {
			return nil, errors.New("stripe: api key is required")
		}
		intents = client.New(key, nil).PaymentIntents
	}

	expires := cfg.ExpiresAfter
	if expires <= 0 {
		expires = 30 * time.Minute
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &StripePix{intents: intents, expiresAfter: expires, log: log}, nil
}

// ToCentavos converts a BRL amount to the gateway's minor unit.
func ToCentavos(amount float64) int64 {
	return pricing.ToCentavos(amount)
}

func (p *StripePix) CreatePix(ctx context.Context, req PixRequest) (*PixPaymentData, error) {
	amount := ToCentavos(req.Amount)
	if amount <= 0 {
		return nil, ErrInvalidPixAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(string(stripe.CurrencyBRL)),
		PaymentMethodTypes: stripe.StringSlice([]string{"pix"}),
		Confirm:            stripe.Bool(true),
		PaymentMethodData: &stripe.PaymentIntentPaymentMethodDataParams{
			Type: stripe.String("pix"),
			BillingDetails: &stripe.PaymentIntentPaymentMethodDataBillingDetailsParams{
				Name:  stripe.String(req.Payer.Name),
				Email: stripe.String(req.Payer.Email),
			},
		},
		PaymentMethodOptions: &stripe.PaymentIntentPaymentMethodOptionsParams{
			Pix: &stripe.PaymentIntentPaymentMethodOptionsPixParams{
				ExpiresAfterSeconds: stripe.Int64(int64(p.expiresAfter / time.Second)),
			},
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Payer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Payer.Email)
	}
	if req.OrderID != "" {
		params.SetIdempotencyKey("pix-" + req.OrderID)
		params.AddMetadata("order_id", req.OrderID)
	}
	if req.OrderNumber != "" {
		params.AddMetadata("order_number", req.OrderNumber)
	}
	if req.ShippingAddress.PostalCode != "" {
		params.AddMetadata("shipping_postal_code", req.ShippingAddress.PostalCode)
	}
	params.AddMetadata("items", fmt.Sprintf("%d", len(req.Items)))

	intent, err := p.intents.New(params)
	if err != nil {
		p.log.Error("stripe pix intent failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, fmt.Errorf("stripe: create pix payment: %w", err)
	}

	data, err := pixDataFromIntent(intent)
	if err != nil {
		return nil, err
	}
	p.log.Info("stripe pix intent created",
		zap.String("order_id", req.OrderID),
		zap.String("payment_intent", intent.ID),
		zap.Int64("amount", amount),
	)
	return data, nil
}

func pixDataFromIntent(intent *stripe.PaymentIntent) (*PixPaymentData, error) {
	if intent == nil || intent.NextAction == nil || intent.NextAction.PixDisplayQRCode == nil {
		return nil, ErrPixUnavailable
	}
	qr := intent.NextAction.PixDisplayQRCode
	data := &PixPaymentData{
		ID:          intent.ID,
		Status:      string(intent.Status),
		QRCode:      qr.Data,
		QRCodeImage: qr.ImageURLPNG,
		TicketURL:   qr.HostedInstructionsURL,
	}
	if qr.ExpiresAt > 0 {
		at := time.Unix(qr.ExpiresAt, 0).UTC()
		data.ExpiresAt = &at
	}
	return data, nil
}

// DisabledPix is used when no gateway key is configured; every charge fails.
type DisabledPix struct{}

func (DisabledPix) CreatePix(context.Context, PixRequest) (*PixPaymentData, error) {
	return nil, ErrPixUnavailable
}
