package notify

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// Event describes something the customer should hear about.
type Event struct {
	Type      string
	UserID    int64
	OrderID   int64
	PaymentID int64
	Amount    decimal.Decimal
}

const (
	EventOrderCreated     = "order.created"
	EventPaymentCompleted = "payment.completed"
	EventPaymentRefunded  = "payment.refunded"
)

// Notifier delivers customer notifications. Delivery is best effort; a
// failed dispatch must never affect the business transaction that
// triggered it.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes notifications to the application log. Stands in for
// a real email dispatcher.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	log.Printf("[NOTIFY] %s: user_id=%d order_id=%d payment_id=%d amount=%s",
		ev.Type, ev.UserID, ev.OrderID, ev.PaymentID, ev.Amount)
	return nil
}

// Dispatch sends the event on a separate goroutine and logs failures.
func Dispatch(n Notifier, ev Event) {
	if n == nil {
		return
	}
	go func() {
		if err := n.Notify(context.Background(), ev); err != nil {
			log.Printf("notification dispatch failed for %s: %v", ev.Type, err)
		}
	}()
}
