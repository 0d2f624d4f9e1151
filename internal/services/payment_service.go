package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/models"
)

var ErrPaymentOrderNotFound = errors.New("payment: order not found")

// PaymentEvent is a verified gateway notification about a PIX charge.
type PaymentEvent struct {
	EventID   string
	Type      string
	PaymentID string
	OrderID   string
	Amount    int64
	Payload   []byte
}

// PaymentService applies gateway events to orders.
type PaymentService struct {
	db       *gorm.DB
	telegram *TelegramService
	log      *zap.Logger
	now      func() time.Time
}

func NewPaymentService(db *gorm.DB, telegram *TelegramService, log *zap.Logger) *PaymentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentService{db: db, telegram: telegram, log: log, now: time.Now}
}

// MarkPaid records a succeeded payment and moves the order to paid. Replayed
// events are acknowledged without changing anything.
func (s *PaymentService) MarkPaid(ctx context.Context, evt PaymentEvent) (*models.Order, error) {
	var (
		order   models.Order
		changed bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		if id, err := uuid.Parse(evt.OrderID); err == nil {
			q = q.Where("id = ?", id)
		} else {
			q = q.Where("payment_id = ?", evt.PaymentID)
		}
		if err := q.First(&order).Error; err != nil {
			if database.IsNotFound(err) {
				return ErrPaymentOrderNotFound
			}
			return err
		}

		record := models.PaymentTransaction{
			OrderID:   order.ID,
			Provider:  "stripe",
			PaymentID: evt.PaymentID,
			EventID:   evt.EventID,
			EventType: evt.Type,
			Status:    models.OrderStatusPaid,
			Amount:    evt.Amount,
			Payload:   evt.Payload,
		}
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).Create(&record)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || order.Status != models.OrderStatusPending {
			return nil
		}

		if evt.Amount != ToCentavos(order.TotalAmount) {
			s.log.Warn("payment amount differs from order total",
				zap.String("order_id", order.ID.String()),
				zap.Int64("paid", evt.Amount),
				zap.Float64("total", order.TotalAmount),
			)
		}

		paidAt := s.now().UTC()
		if err := tx.Model(&order).Updates(map[string]any{
			"status":     models.OrderStatusPaid,
			"paid_at":    paidAt,
			"payment_id": evt.PaymentID,
		}).Error; err != nil {
			return err
		}
		order.Status = models.OrderStatusPaid
		order.PaidAt = &paidAt
		changed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	if changed {
		s.log.Info("order paid", zap.String("order_number", order.OrderNumber), zap.String("payment_id", evt.PaymentID))
		if s.telegram != nil {
			go func(number string, total float64) {
				if err := s.telegram.NotifyPaymentSuccess(context.Background(), number, total); err != nil {
					s.log.Warn("telegram payment notification failed", zap.Error(err))
				}
			}(order.OrderNumber, order.TotalAmount)
		}
	}
	return &order, nil
}
