package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/vitrine/internal/pricing"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramService sends back-office notifications to a Telegram chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
	log         *zap.Logger
}

// NewTelegramService creates a new TelegramService. An empty token turns every
// send into a no-op.
func NewTelegramService(botToken, adminChatID string, log *zap.Logger) *TelegramService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     telegramAPIBase,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML message to chatID.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug("telegram bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("telegram send failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("telegram unexpected status", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// OrderNotification contains order data for Telegram notification.
type OrderNotification struct {
	OrderNumber   string
	StoreSlug     string
	Items         []OrderItemNotification
	TotalAmount   float64
	CustomerName  string
	CustomerPhone string
	City          string
	Status        string
}

type OrderItemNotification struct {
	Name     string
	Quantity int
	Price    float64
}

// FormatOrderMessage renders the admin message for a new order.
func FormatOrderMessage(order OrderNotification) string {
	var items strings.Builder
	for i, item := range order.Items {
		fmt.Fprintf(&items, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			pricing.FormatBRL(item.Price),
			pricing.FormatBRL(item.Price*float64(item.Quantity)),
		)
	}

	status := "⏳ Aguardando pagamento"
	if order.Status == "paid" {
		status = "✅ Pago"
	}

	store := order.StoreSlug
	if store == "" {
		store = "loja principal"
	}

	message := fmt.Sprintf(`<b>🛒 NOVO PEDIDO</b>
<b>Pedido:</b> %s
<b>Loja:</b> %s
<b>Cliente:</b> %s
<b>Telefone:</b> %s
<b>Cidade:</b> %s
<b>Itens:</b>
%s
<b>Total:</b> %s
<b>Pagamento:</b> PIX
<b>Status:</b> %s`,
		order.OrderNumber,
		html.EscapeString(store),
		html.EscapeString(order.CustomerName),
		html.EscapeString(order.CustomerPhone),
		html.EscapeString(order.City),
		items.String(),
		pricing.FormatBRL(order.TotalAmount),
		status,
	)
	return strings.TrimSpace(message)
}

// NotifyNewOrder sends notification about a new order to the admin chat.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order OrderNotification) error {
	return s.SendToAdmin(ctx, FormatOrderMessage(order))
}

// NotifyPaymentSuccess sends notification about a confirmed PIX payment.
func (s *TelegramService) NotifyPaymentSuccess(ctx context.Context, orderNumber string, amount float64) error {
	message := fmt.Sprintf("<b>✅ PAGAMENTO CONFIRMADO</b>\n<b>Pedido:</b> %s\n<b>Valor:</b> %s\n<b>Forma:</b> PIX",
		orderNumber, pricing.FormatBRL(amount))
	return s.SendToAdmin(ctx, message)
}
